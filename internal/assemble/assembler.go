package assemble

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-pipeline/internal/core"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// StageName identifies this stage in errors.
const StageName = "Assembling"

// Static errors. All of them signal pipeline invariant violations upstream,
// not recoverable conditions.
var (
	// ErrNoSegments indicates an empty segment list.
	ErrNoSegments = errors.New("no segments to assemble")
	// ErrSequenceGap indicates a missing turn index.
	ErrSequenceGap = errors.New("gap in segment sequence")
	// ErrRateMismatch indicates a segment whose sample rate differs from
	// the output rate.
	ErrRateMismatch = errors.New("segment sample rate mismatch")
)

// Assembler stitches per-turn segments into one artifact, inserting silence
// gaps between turns. Segments are always placed in ascending turn index
// order, never grouped by speaker and never reordered by completion time.
type Assembler struct {
	settings Settings
	log      *logger.Logger
}

// New creates an assembler after validating the settings.
func New(settings Settings, log *logger.Logger) (*Assembler, error) {
	err := settings.Validate()
	if err != nil {
		return nil, err
	}

	return &Assembler{settings: settings, log: log}, nil
}

// Assemble concatenates the segments into a WAV artifact with a turn
// boundary manifest. The segments must form a contiguous zero-based index
// sequence and share the configured sample rate.
func (a *Assembler) Assemble(segments []core.AudioSegment) (*core.PodcastArtifact, error) {
	err := a.checkInvariants(segments)
	if err != nil {
		return nil, err
	}

	var (
		samples  []int
		manifest []core.TurnBoundary
	)

	samples = append(samples, silence(a.settings.gapSamples(a.settings.LeadIn))...)

	previousSpeaker := ""

	for i, segment := range segments {
		if i > 0 {
			gap := a.settings.TurnGap
			if segment.Speaker == previousSpeaker {
				gap = a.settings.SubTurnGap
			}

			samples = append(samples, silence(a.settings.gapSamples(gap))...)
		}

		offset := a.sampleOffset(len(samples))

		samples = append(samples, segment.Samples...)

		manifest = append(manifest, core.TurnBoundary{
			TurnIndex: segment.TurnIndex,
			Speaker:   segment.Speaker,
			Offset:    offset,
			Duration:  segment.Duration(),
		})

		previousSpeaker = segment.Speaker
	}

	samples = append(samples, silence(a.settings.gapSamples(a.settings.Tail))...)

	wavData, err := a.encodeWAV(samples)
	if err != nil {
		return nil, err
	}

	duration := a.sampleOffset(len(samples))

	a.log.Info(
		"Assembled %d turns into %s of audio (%d bytes)",
		len(segments), duration, len(wavData),
	)

	return &core.PodcastArtifact{
		WAV:      wavData,
		Duration: duration,
		Manifest: manifest,
	}, nil
}

// checkInvariants rejects empty input, index gaps, and rate mismatches.
func (a *Assembler) checkInvariants(segments []core.AudioSegment) error {
	if len(segments) == 0 {
		return ErrNoSegments
	}

	for i, segment := range segments {
		if segment.TurnIndex != i {
			return fmt.Errorf(
				"%w: expected turn %d, got %d", ErrSequenceGap, i, segment.TurnIndex,
			)
		}

		if segment.SampleRate != a.settings.SampleRate {
			return fmt.Errorf(
				"%w: turn %d is %d Hz, output is %d Hz",
				ErrRateMismatch, i, segment.SampleRate, a.settings.SampleRate,
			)
		}
	}

	return nil
}

// encodeWAV writes the samples as a mono PCM WAV file. The encoder requires
// a seekable writer, so encoding goes through a temp file.
func (a *Assembler) encodeWAV(samples []int) ([]byte, error) {
	tempFile, err := os.CreateTemp("", "podcast-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file for artifact: %w", err)
	}

	defer func() {
		removeErr := os.Remove(tempFile.Name())
		if removeErr != nil {
			a.log.Warn("Failed to remove temp file '%s': %v", tempFile.Name(), removeErr)
		}
	}()

	buffer := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: a.settings.Channels,
			SampleRate:  a.settings.SampleRate,
		},
		Data:           samples,
		SourceBitDepth: a.settings.BitDepth,
	}

	encoder := wav.NewEncoder(
		tempFile,
		a.settings.SampleRate,
		a.settings.BitDepth,
		a.settings.Channels,
		1,
	)

	err = encoder.Write(buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to encode WAV data: %w", err)
	}

	err = encoder.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to finalize WAV data: %w", err)
	}

	closeErr := tempFile.Close()
	if closeErr != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", closeErr)
	}

	wavData, err := os.ReadFile(tempFile.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact from temp file: %w", err)
	}

	return wavData, nil
}

func (a *Assembler) sampleOffset(sampleCount int) time.Duration {
	return time.Duration(sampleCount) * time.Second / time.Duration(a.settings.SampleRate)
}

func silence(count int) []int {
	if count <= 0 {
		return nil
	}

	return make([]int, count)
}
