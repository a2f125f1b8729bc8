package synth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-pipeline/internal/core"
	"github.com/book-expert/podcast-pipeline/internal/script"
	"github.com/book-expert/podcast-pipeline/internal/stage"
	"github.com/book-expert/podcast-pipeline/internal/voice"
	"github.com/go-audio/wav"
)

// StageName identifies this stage in errors and cache fingerprints.
const StageName = "Synthesizing"

// DefaultWorkers bounds synthesis concurrency when no value is configured,
// reflecting typical external service or local GPU throughput limits.
const DefaultWorkers = 2

// ErrSynthesisFailed indicates a turn could not be synthesized after retries.
var ErrSynthesisFailed = errors.New("synthesis failed")

// Error identifies the turn whose synthesis failed.
type Error struct {
	TurnIndex int
	Cause     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: turn %d: %v", ErrSynthesisFailed, e.TurnIndex, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match ErrSynthesisFailed.
func (e *Error) Is(target error) bool {
	return target == ErrSynthesisFailed
}

// Options configures the synthesis stage.
type Options struct {
	// Workers bounds the number of concurrent synthesizer calls.
	Workers int
	// MaxTurnChars is the sub-segment split limit for over-length turns.
	MaxTurnChars int
	// IntraTurnGapSamples is the silence inserted between sub-segments of
	// one turn, in samples at the profile rate.
	IntraTurnGapSamples int
}

// Stage synthesizes each script turn into one audio segment, splitting
// over-limit turns into sub-segments and synthesizing in parallel up to the
// worker bound.
type Stage struct {
	synthesizer core.Synthesizer
	runner      *stage.Runner
	opts        Options
	log         *logger.Logger
}

// NewStage creates a synthesis stage.
func NewStage(
	synthesizer core.Synthesizer,
	runner *stage.Runner,
	opts Options,
	log *logger.Logger,
) *Stage {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}

	return &Stage{
		synthesizer: synthesizer,
		runner:      runner,
		opts:        opts,
		log:         log,
	}
}

// Synthesize renders every turn of the script using the voice snapshot taken
// at scripting time. Segments are returned in turn index order regardless of
// completion order. A turn whose sub-segment fails after retry exhaustion
// fails the whole stage; no partial turn output is emitted.
func (s *Stage) Synthesize(
	ctx context.Context,
	model *script.Script,
	voices voice.Snapshot,
) ([]core.AudioSegment, error) {
	var (
		waitGroup sync.WaitGroup
		mutex     sync.Mutex
		failures  = make(map[int]error)
	)

	segments := make([]core.AudioSegment, len(model.Turns))

	// Channel semaphore bounds concurrent synthesizer calls.
	workerPool := make(chan struct{}, s.opts.Workers)

	for _, turn := range model.Turns {
		waitGroup.Add(1)

		go func(turn script.Turn) {
			defer waitGroup.Done()

			workerPool <- struct{}{}

			defer func() { <-workerPool }()

			segment, err := s.synthesizeTurn(ctx, turn, voices)

			mutex.Lock()
			defer mutex.Unlock()

			if err != nil {
				failures[turn.Index] = err

				return
			}

			segments[turn.Index] = segment
		}(turn)
	}

	waitGroup.Wait()

	if len(failures) > 0 {
		index := lowestFailedIndex(failures)

		return nil, &Error{TurnIndex: index, Cause: failures[index]}
	}

	s.log.Info("Synthesized %d turns", len(segments))

	return segments, nil
}

// synthesizeTurn renders one logical turn, splitting it into sub-segments
// when flagged, and reassembles the sub-segments in sub-index order with the
// configured intra-turn gap.
func (s *Stage) synthesizeTurn(
	ctx context.Context,
	turn script.Turn,
	voices voice.Snapshot,
) (core.AudioSegment, error) {
	profile, err := voices.Resolve(turn.Speaker)
	if err != nil {
		return core.AudioSegment{}, err
	}

	parts := []string{turn.Text}
	if turn.NeedsSplit {
		parts = SplitTurn(turn.Text, s.opts.MaxTurnChars)
		s.log.Info("Turn %d split into %d sub-segments", turn.Index, len(parts))
	}

	var samples []int

	for subIndex, part := range parts {
		subSamples, subErr := s.synthesizeSubSegment(ctx, turn, subIndex, part, profile)
		if subErr != nil {
			return core.AudioSegment{}, subErr
		}

		if subIndex > 0 && s.opts.IntraTurnGapSamples > 0 {
			samples = append(samples, make([]int, s.opts.IntraTurnGapSamples)...)
		}

		samples = append(samples, subSamples...)
	}

	return core.AudioSegment{
		TurnIndex:  turn.Index,
		Speaker:    turn.Speaker,
		Samples:    samples,
		SampleRate: profile.SampleRate,
	}, nil
}

// synthesizeSubSegment runs one retry-wrapped synthesizer call and decodes
// the WAV response into samples at the profile rate.
func (s *Stage) synthesizeSubSegment(
	ctx context.Context,
	turn script.Turn,
	subIndex int,
	text string,
	profile core.VoiceProfile,
) ([]int, error) {
	key := fmt.Sprintf("%s|%s|%d.%d|%s", profile.Voice, profile.Language, turn.Index, subIndex, text)

	wavData, err := s.runner.Do(ctx, StageName, []byte(key), func(callCtx context.Context) ([]byte, error) {
		return s.synthesizer.Synthesize(callCtx, text, profile)
	})
	if err != nil {
		return nil, err
	}

	samples, rate, err := decodeWAV(wavData)
	if err != nil {
		return nil, err
	}

	if profile.SampleRate > 0 && rate != profile.SampleRate {
		return nil, core.Permanent(fmt.Errorf(
			"synthesizer returned %d Hz for voice '%s', profile requires %d Hz",
			rate, profile.Voice, profile.SampleRate,
		))
	}

	return samples, nil
}

// decodeWAV reads PCM samples and the sample rate from WAV bytes. Stereo
// output is downmixed to mono by averaging channels, so assembly always works
// on a single channel.
func decodeWAV(data []byte) ([]int, int, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))

	buffer, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, core.Permanent(fmt.Errorf("failed to decode WAV data: %w", err))
	}

	if buffer.Format == nil || buffer.Format.SampleRate <= 0 {
		return nil, 0, core.Permanent(errors.New("WAV data has no format information"))
	}

	channels := buffer.Format.NumChannels
	if channels <= 1 {
		return buffer.Data, buffer.Format.SampleRate, nil
	}

	mono := make([]int, 0, len(buffer.Data)/channels)
	for i := 0; i+channels <= len(buffer.Data); i += channels {
		sum := 0
		for c := range channels {
			sum += buffer.Data[i+c]
		}

		mono = append(mono, sum/channels)
	}

	return mono, buffer.Format.SampleRate, nil
}

func lowestFailedIndex(failures map[int]error) int {
	lowest := -1

	for index := range failures {
		if lowest < 0 || index < lowest {
			lowest = index
		}
	}

	return lowest
}
