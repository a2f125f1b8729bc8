// Package core defines the capability interfaces and shared data model for the
// podcast pipeline.
package core

import (
	"context"
	"time"
)

// MediaKind declares the format of an ingested document.
type MediaKind string

const (
	// KindPDF marks a document as a PDF payload.
	KindPDF MediaKind = "pdf"
	// KindImage marks a document as a single page image payload.
	KindImage MediaKind = "image"
)

// Document is an opaque uploaded payload plus its declared media kind.
// It is immutable once ingested and discarded after text extraction.
type Document struct {
	Bytes []byte
	Kind  MediaKind
}

// ExtractedText is the normalized character sequence produced by the
// extractor stage. PageOffsets holds the byte offset at which each page
// begins within Text.
type ExtractedText struct {
	Text        string
	PageOffsets []int
}

// StyleConfig carries the recognized script generation options.
type StyleConfig struct {
	DocumentType string
	Tone         string
	Language     string
	TargetTurns  int
}

// AudioSegment holds the decoded waveform for one logical turn.
type AudioSegment struct {
	TurnIndex  int
	Speaker    string
	Samples    []int
	SampleRate int
}

// Duration reports the playback length of the segment.
func (s AudioSegment) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}

	return time.Duration(len(s.Samples)) * time.Second / time.Duration(s.SampleRate)
}

// TurnBoundary records where one turn starts within the final artifact.
type TurnBoundary struct {
	TurnIndex int           `json:"turn_index"`
	Speaker   string        `json:"speaker"`
	Offset    time.Duration `json:"offset"`
	Duration  time.Duration `json:"duration"`
}

// PodcastArtifact is the final stitched audio output of a pipeline run.
type PodcastArtifact struct {
	WAV      []byte
	Duration time.Duration
	Manifest []TurnBoundary
}

// VoiceProfile is the synthesizer configuration for one logical speaker.
type VoiceProfile struct {
	SpeakerID  string
	Voice      string
	Language   string
	RefPath    string
	SampleRate int
}

// TextExtractor turns a raw document into text. Unreadable or corrupt input
// is a permanent failure.
type TextExtractor interface {
	Extract(ctx context.Context, doc Document) (ExtractedText, error)
}

// ScriptGenerator produces a raw conversational script from document text.
// The returned string is unparsed; validation happens in the scriptwriter
// stage.
type ScriptGenerator interface {
	Generate(
		ctx context.Context,
		text ExtractedText,
		roster []string,
		style StyleConfig,
	) (string, error)
}

// Synthesizer renders one piece of text, in a given voice, into WAV bytes at
// the profile's sample rate.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, profile VoiceProfile) ([]byte, error)
}
