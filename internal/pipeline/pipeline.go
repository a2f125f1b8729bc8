// Package pipeline orchestrates the document-to-podcast conversion stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-pipeline/internal/assemble"
	"github.com/book-expert/podcast-pipeline/internal/core"
	"github.com/book-expert/podcast-pipeline/internal/extract"
	"github.com/book-expert/podcast-pipeline/internal/scriptgen"
	"github.com/book-expert/podcast-pipeline/internal/synth"
	"github.com/google/uuid"
)

// State names the position of a run within the pipeline. States advance
// strictly forward; no state is revisited.
type State string

// Pipeline states.
const (
	StateCreated      State = "Created"
	StateExtracting   State = "Extracting"
	StateScripting    State = "Scripting"
	StateSynthesizing State = "Synthesizing"
	StateAssembling   State = "Assembling"
	StateCompleted    State = "Completed"
	StateFailed       State = "Failed"
)

// ErrCancelled indicates the run was cancelled between stage boundaries.
var ErrCancelled = errors.New("run cancelled")

// Status is a point-in-time snapshot of a run, suitable for progress display.
type Status struct {
	RunID     string
	StartedAt time.Time
	State     State
	// FailedStage and Cause are set only in the failed state.
	FailedStage string
	Cause       error
}

// run is the correlation record for one conversion. It exists for the
// lifetime of the conversion only.
type run struct {
	mu        sync.Mutex
	id        string
	startedAt time.Time
	state     State
	failedAt  string
	cause     error
}

func (r *run) transition(next State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = next
}

func (r *run) fail(stageName string, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = StateFailed
	r.failedAt = stageName
	r.cause = cause
}

func (r *run) status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Status{
		RunID:       r.id,
		StartedAt:   r.startedAt,
		State:       r.state,
		FailedStage: r.failedAt,
		Cause:       r.cause,
	}
}

// Pipeline composes the extractor, scriptwriter, synthesis, and assembly
// stages behind a single entry point. Each stage retries internally; the
// pipeline itself never retries and never falls back across stages.
type Pipeline struct {
	extractor    *extract.Stage
	scriptwriter *scriptgen.Stage
	synthesizer  *synth.Stage
	assembler    *assemble.Assembler
	log          *logger.Logger

	mu      sync.Mutex
	current *run
}

// New composes a pipeline from its stages.
func New(
	extractor *extract.Stage,
	scriptwriter *scriptgen.Stage,
	synthesizer *synth.Stage,
	assembler *assemble.Assembler,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		extractor:    extractor,
		scriptwriter: scriptwriter,
		synthesizer:  synthesizer,
		assembler:    assembler,
		log:          log,
		mu:           sync.Mutex{},
		current:      nil,
	}
}

// Status reports the most recent run's progress. Before any run it reports a
// created state with an empty run ID.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return Status{
			RunID:       "",
			StartedAt:   time.Time{},
			State:       StateCreated,
			FailedStage: "",
			Cause:       nil,
		}
	}

	return p.current.status()
}

// Run converts one document into a podcast artifact, driving the stages
// sequentially. A stage failure, or cancellation at a stage boundary, moves
// the run to the failed state and surfaces a tagged error; no partial
// artifact is ever returned.
func (p *Pipeline) Run(
	ctx context.Context,
	doc core.Document,
	style core.StyleConfig,
) (*core.PodcastArtifact, error) {
	current := &run{
		mu:        sync.Mutex{},
		id:        uuid.NewString(),
		startedAt: time.Now(),
		state:     StateCreated,
		failedAt:  "",
		cause:     nil,
	}

	p.mu.Lock()
	p.current = current
	p.mu.Unlock()

	p.log.Info("Run %s started", current.id)

	artifact, err := p.drive(ctx, current, doc, style)
	if err != nil {
		p.log.Error("Run %s failed at %s: %v", current.id, current.failedAt, err)

		return nil, err
	}

	current.transition(StateCompleted)
	p.log.Info("Run %s completed: %s of audio", current.id, artifact.Duration)

	return artifact, nil
}

func (p *Pipeline) drive(
	ctx context.Context,
	current *run,
	doc core.Document,
	style core.StyleConfig,
) (*core.PodcastArtifact, error) {
	err := p.enter(ctx, current, StateExtracting)
	if err != nil {
		return nil, err
	}

	text, err := p.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, p.failStage(ctx, current, StateExtracting, err)
	}

	err = p.enter(ctx, current, StateScripting)
	if err != nil {
		return nil, err
	}

	model, voices, err := p.scriptwriter.Write(ctx, text, style)
	if err != nil {
		return nil, p.failStage(ctx, current, StateScripting, err)
	}

	err = p.enter(ctx, current, StateSynthesizing)
	if err != nil {
		return nil, err
	}

	segments, err := p.synthesizer.Synthesize(ctx, model, voices)
	if err != nil {
		return nil, p.failStage(ctx, current, StateSynthesizing, err)
	}

	err = p.enter(ctx, current, StateAssembling)
	if err != nil {
		return nil, err
	}

	artifact, err := p.assembler.Assemble(segments)
	if err != nil {
		return nil, p.failStage(ctx, current, StateAssembling, err)
	}

	return artifact, nil
}

// failStage records a stage failure. A failure that surfaced because the
// context was cancelled while the stage was in flight is a cancellation, not a
// stage fault, and is tagged as such.
func (p *Pipeline) failStage(ctx context.Context, current *run, state State, err error) error {
	if ctx.Err() != nil && !errors.Is(err, ErrCancelled) {
		err = fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	current.fail(string(state), err)

	return err
}

// enter checks for cancellation at the stage boundary and records the
// transition. In-flight work of a previous stage has already finished;
// cancellation never interrupts a stage mid-call from here.
func (p *Pipeline) enter(ctx context.Context, current *run, next State) error {
	ctxErr := ctx.Err()
	if ctxErr != nil {
		err := fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
		current.fail(string(next), err)

		return err
	}

	current.transition(next)
	p.log.Info("Run %s: %s", current.id, next)

	return nil
}
