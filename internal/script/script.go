// Package script defines the structured conversational script model and its
// validation rules.
package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/book-expert/podcast-pipeline/internal/voice"
)

// Static errors.
var (
	// ErrMalformedScript indicates the raw script could not be parsed into
	// speaker turns with non-empty text.
	ErrMalformedScript = errors.New("malformed script")
	// ErrScriptTooLong indicates the script exceeds the configured turn count.
	ErrScriptTooLong = errors.New("script too long")
)

// Turn is one contiguous utterance by a single speaker. Index is assigned
// during validation, strictly increasing from zero in original script order.
type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Index   int    `json:"-"`

	// NeedsSplit marks a turn whose text exceeds the per-turn length limit,
	// measured in bytes. Such turns are split at synthesis time, never
	// rejected here.
	NeedsSplit bool `json:"-"`
}

// Script is an ordered, validated sequence of turns.
type Script struct {
	Title       string
	Description string
	Turns       []Turn
}

// Limits bounds validation.
type Limits struct {
	// MaxTurns caps the turn count to bound synthesis cost.
	MaxTurns int
	// MaxTurnChars is the per-turn character limit beyond which a turn is
	// flagged for splitting.
	MaxTurnChars int
}

// rawScript mirrors the JSON emitted by the script generator.
type rawScript struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Speakers    []string `json:"speakers"`
	Script      []Turn   `json:"script"`
}

// Validate parses a raw generated script and applies the validation rules in
// order, short-circuiting on the first failure: parse, known speakers, turn
// count, per-turn length flagging. Turn order is semantically meaningful and
// is never changed.
func Validate(raw string, roster voice.Snapshot, limits Limits) (*Script, error) {
	parsed, err := parse(raw)
	if err != nil {
		return nil, err
	}

	for _, turn := range parsed.Script {
		if !roster.Has(turn.Speaker) {
			return nil, fmt.Errorf(
				"%w: '%s'", voice.ErrUnknownSpeaker, turn.Speaker,
			)
		}
	}

	if limits.MaxTurns > 0 && len(parsed.Script) > limits.MaxTurns {
		return nil, fmt.Errorf(
			"%w: %d turns exceeds limit of %d",
			ErrScriptTooLong, len(parsed.Script), limits.MaxTurns,
		)
	}

	turns := make([]Turn, len(parsed.Script))
	for i, turn := range parsed.Script {
		turn.Index = i
		turn.NeedsSplit = limits.MaxTurnChars > 0 && len(turn.Text) > limits.MaxTurnChars
		turns[i] = turn
	}

	return &Script{
		Title:       parsed.Title,
		Description: parsed.Description,
		Turns:       turns,
	}, nil
}

// parse decodes the raw script. The generator is asked for a JSON object with
// a "script" array, but language models often wrap the payload in markdown
// fences or return the bare array, so both are tolerated.
func parse(raw string) (*rawScript, error) {
	trimmed := stripFences(strings.TrimSpace(raw))
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty script", ErrMalformedScript)
	}

	var parsed rawScript

	err := json.Unmarshal([]byte(trimmed), &parsed)
	if err != nil {
		var turns []Turn

		arrayErr := json.Unmarshal([]byte(trimmed), &turns)
		if arrayErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedScript, err)
		}

		parsed = rawScript{Title: "", Description: "", Speakers: nil, Script: turns}
	}

	if len(parsed.Script) == 0 {
		return nil, fmt.Errorf("%w: no turns", ErrMalformedScript)
	}

	for i, turn := range parsed.Script {
		if strings.TrimSpace(turn.Speaker) == "" {
			return nil, fmt.Errorf(
				"%w: turn %d has no speaker label", ErrMalformedScript, i,
			)
		}

		if strings.TrimSpace(turn.Text) == "" {
			return nil, fmt.Errorf(
				"%w: turn %d has empty text", ErrMalformedScript, i,
			)
		}
	}

	return &parsed, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag.
func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	if newline := strings.IndexByte(text, '\n'); newline >= 0 {
		firstLine := strings.TrimSpace(text[:newline])
		if firstLine == "" || firstLine == "json" {
			text = text[newline+1:]
		}
	}

	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}
