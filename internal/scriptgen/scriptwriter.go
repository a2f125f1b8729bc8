// Package scriptgen wraps a script generation capability behind the stage
// runner and validates its output into a script model.
package scriptgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-pipeline/internal/core"
	"github.com/book-expert/podcast-pipeline/internal/script"
	"github.com/book-expert/podcast-pipeline/internal/stage"
	"github.com/book-expert/podcast-pipeline/internal/voice"
)

// StageName identifies this stage in errors and cache fingerprints.
const StageName = "Scripting"

// Document type identifiers recognized in style configuration.
const (
	DocTypeResearchArticle = "research_article"
	DocTypeReviewArticle   = "review_article"
	DocTypeCaseStudy       = "case_study"
)

// Stage runs a ScriptGenerator capability under the retry runner and
// validates the raw script against the voice registry.
type Stage struct {
	generator core.ScriptGenerator
	runner    *stage.Runner
	registry  *voice.Registry
	limits    script.Limits
	log       *logger.Logger
}

// NewStage creates a scriptwriter stage.
func NewStage(
	generator core.ScriptGenerator,
	runner *stage.Runner,
	registry *voice.Registry,
	limits script.Limits,
	log *logger.Logger,
) *Stage {
	return &Stage{
		generator: generator,
		runner:    runner,
		registry:  registry,
		limits:    limits,
		log:       log,
	}
}

// Write generates and validates a script for the extracted text. On success
// it returns the script together with the registry snapshot taken at this
// point; the snapshot is used for the remainder of the run so that concurrent
// registration cannot change a profile mid-run.
func (s *Stage) Write(
	ctx context.Context,
	text core.ExtractedText,
	style core.StyleConfig,
) (*script.Script, voice.Snapshot, error) {
	roster := s.registry.Speakers()

	input := fmt.Sprintf("%s|%s|%v", text.Text, styleKey(style), roster)

	raw, err := s.runner.Do(ctx, StageName, []byte(input), func(callCtx context.Context) ([]byte, error) {
		generated, genErr := s.generator.Generate(callCtx, text, roster, style)
		if genErr != nil {
			return nil, genErr
		}

		return []byte(generated), nil
	})
	if err != nil {
		return nil, voice.Snapshot{}, err
	}

	snapshot := s.registry.Snapshot()

	validated, err := script.Validate(string(raw), snapshot, s.limits)
	if err != nil {
		return nil, voice.Snapshot{}, &stage.Error{Stage: StageName, Cause: err}
	}

	s.log.Info(
		"Script '%s' validated: %d turns, %d flagged for splitting",
		validated.Title, len(validated.Turns), countSplits(validated),
	)

	return validated, snapshot, nil
}

func styleKey(style core.StyleConfig) string {
	return strings.Join(
		[]string{
			style.DocumentType,
			style.Tone,
			style.Language,
			fmt.Sprintf("%d", style.TargetTurns),
		},
		"|",
	)
}

func countSplits(validated *script.Script) int {
	count := 0

	for _, turn := range validated.Turns {
		if turn.NeedsSplit {
			count++
		}
	}

	return count
}
