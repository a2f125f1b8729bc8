// Package synth wraps a synthesizer capability behind the stage runner,
// splitting over-limit turns and synthesizing sub-segments in parallel.
package synth

import "strings"

// Boundary characters, tried in order of preference.
const (
	sentenceEnders = ".!?"
	clauseEnders   = ",;:"
)

// SplitTurn splits turn text into ordered sub-segments no longer than limit,
// cutting at sentence boundaries where possible, then clause boundaries, then
// word boundaries. It never cuts mid-word. Text within the limit is returned
// as a single segment. The rule is deterministic: each segment is filled
// greedily up to the limit before the next begins. The limit is a byte count;
// every boundary character is ASCII, so a cut never lands inside a
// multi-byte rune.
func SplitTurn(text string, limit int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	if limit <= 0 || len(trimmed) <= limit {
		return []string{trimmed}
	}

	var segments []string

	remaining := trimmed
	for len(remaining) > limit {
		cut := findCut(remaining, limit)
		segment := strings.TrimSpace(remaining[:cut])

		if segment != "" {
			segments = append(segments, segment)
		}

		remaining = strings.TrimSpace(remaining[cut:])
	}

	if remaining != "" {
		segments = append(segments, remaining)
	}

	return segments
}

// findCut picks the cut position within the first limit bytes: the last
// sentence ender, else the last clause ender, else the last space. A single
// word longer than the limit is kept whole rather than cut mid-word.
func findCut(text string, limit int) int {
	window := text[:limit]

	if cut := lastBoundary(window, sentenceEnders); cut > 0 {
		return cut
	}

	if cut := lastBoundary(window, clauseEnders); cut > 0 {
		return cut
	}

	if cut := strings.LastIndexByte(window, ' '); cut > 0 {
		return cut + 1
	}

	end := strings.IndexByte(text, ' ')
	if end < 0 {
		return len(text)
	}

	return end + 1
}

// lastBoundary returns the position just past the last boundary rune in the
// window, or 0 when none exists.
func lastBoundary(window, boundaries string) int {
	cut := strings.LastIndexAny(window, boundaries)
	if cut < 0 {
		return 0
	}

	return cut + 1
}
