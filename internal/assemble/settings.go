// Package assemble concatenates per-turn audio segments into one podcast
// artifact.
package assemble

import (
	"errors"
	"fmt"
	"time"
)

// Default output settings. Synthesizer profiles are resampled to the
// configured rate at registration time, so assembly never resamples.
const (
	DefaultSampleRate = 22050
	DefaultBitDepth   = 16
	DefaultChannels   = 1

	// Silence gap defaults.
	DefaultLeadIn      = 500 * time.Millisecond
	DefaultTurnGap     = 300 * time.Millisecond
	DefaultSubTurnGap  = 0 * time.Millisecond
	DefaultTail        = 1000 * time.Millisecond
	maxGap             = 10 * time.Second
	maxOutputRate      = 192000
	supportedBitDepth1 = 16
	supportedBitDepth2 = 24
)

// ErrInvalidSettings indicates output settings outside supported bounds.
var ErrInvalidSettings = errors.New("invalid assembly settings")

// Settings holds the output format and the silence gap policy.
type Settings struct {
	SampleRate int
	BitDepth   int
	Channels   int

	// LeadIn is the silence before the first turn.
	LeadIn time.Duration
	// TurnGap is the silence between turns of different speakers. Turns of
	// the same speaker get the shorter SubTurnGap.
	TurnGap time.Duration
	// SubTurnGap is the silence between consecutive turns of one speaker.
	SubTurnGap time.Duration
	// Tail is the silence after the last turn.
	Tail time.Duration
}

// NewDefaultSettings provides sensible podcast output settings.
func NewDefaultSettings() Settings {
	return Settings{
		SampleRate: DefaultSampleRate,
		BitDepth:   DefaultBitDepth,
		Channels:   DefaultChannels,
		LeadIn:     DefaultLeadIn,
		TurnGap:    DefaultTurnGap,
		SubTurnGap: DefaultSubTurnGap,
		Tail:       DefaultTail,
	}
}

// Validate checks that the settings are within supported bounds.
func (s Settings) Validate() error {
	formatErr := s.validateFormat()
	if formatErr != nil {
		return formatErr
	}

	gapErr := s.validateGaps()
	if gapErr != nil {
		return gapErr
	}

	return nil
}

func (s Settings) validateFormat() error {
	if s.SampleRate <= 0 || s.SampleRate > maxOutputRate {
		return fmt.Errorf(
			"%w: sample rate must be between 1 and %d Hz",
			ErrInvalidSettings, maxOutputRate,
		)
	}

	if s.BitDepth != supportedBitDepth1 && s.BitDepth != supportedBitDepth2 {
		return fmt.Errorf(
			"%w: bit depth must be %d or %d",
			ErrInvalidSettings, supportedBitDepth1, supportedBitDepth2,
		)
	}

	if s.Channels != 1 {
		return fmt.Errorf("%w: output is mono only", ErrInvalidSettings)
	}

	return nil
}

func (s Settings) validateGaps() error {
	gaps := []struct {
		name  string
		value time.Duration
	}{
		{"lead-in", s.LeadIn},
		{"turn gap", s.TurnGap},
		{"sub-turn gap", s.SubTurnGap},
		{"tail", s.Tail},
	}

	for _, gap := range gaps {
		if gap.value < 0 || gap.value > maxGap {
			return fmt.Errorf(
				"%w: %s must be between 0 and %s",
				ErrInvalidSettings, gap.name, maxGap,
			)
		}
	}

	return nil
}

// gapSamples converts a gap duration to a sample count at the output rate.
func (s Settings) gapSamples(gap time.Duration) int {
	return int(gap.Seconds() * float64(s.SampleRate))
}
