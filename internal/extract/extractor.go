package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-pipeline/internal/core"
	"github.com/book-expert/podcast-pipeline/internal/stage"
)

// StageName identifies this stage in errors and cache fingerprints.
const StageName = "Extracting"

// Static errors.
var (
	// ErrEmptyDocument indicates the document payload had no bytes.
	ErrEmptyDocument = errors.New("document payload is empty")
	// ErrNoText indicates extraction produced no usable text.
	ErrNoText = errors.New("no text extracted from document")
)

// Stage runs a TextExtractor capability under the retry runner and normalizes
// the result.
type Stage struct {
	extractor  core.TextExtractor
	runner     *stage.Runner
	normalizer *Normalizer
	log        *logger.Logger
}

// NewStage creates an extractor stage.
func NewStage(extractor core.TextExtractor, runner *stage.Runner, log *logger.Logger) *Stage {
	return &Stage{
		extractor:  extractor,
		runner:     runner,
		normalizer: NewNormalizer(),
		log:        log,
	}
}

// Extract produces normalized document text with page boundary offsets.
func (s *Stage) Extract(ctx context.Context, doc core.Document) (core.ExtractedText, error) {
	if len(doc.Bytes) == 0 {
		return core.ExtractedText{}, &stage.Error{
			Stage: StageName,
			Cause: core.Permanent(ErrEmptyDocument),
		}
	}

	input := append([]byte(doc.Kind), doc.Bytes...)

	output, err := s.runner.Do(ctx, StageName, input, func(callCtx context.Context) ([]byte, error) {
		extracted, extractErr := s.extractor.Extract(callCtx, doc)
		if extractErr != nil {
			return nil, extractErr
		}

		normalized, normErr := s.normalize(extracted)
		if normErr != nil {
			return nil, normErr
		}

		return json.Marshal(normalized)
	})
	if err != nil {
		return core.ExtractedText{}, err
	}

	var result core.ExtractedText

	err = json.Unmarshal(output, &result)
	if err != nil {
		return core.ExtractedText{}, fmt.Errorf("failed to decode extracted text: %w", err)
	}

	s.log.Info("Extracted %d pages, %d characters", len(result.PageOffsets), len(result.Text))

	return result, nil
}

// normalize cleans each page and recomputes page offsets against the cleaned
// text. Empty output after cleaning is permanent: retrying extraction on the
// same bytes cannot produce different text.
func (s *Stage) normalize(extracted core.ExtractedText) (core.ExtractedText, error) {
	pages := splitPages(extracted)

	var (
		builder strings.Builder
		offsets []int
	)

	for _, page := range pages {
		cleaned := s.normalizer.Normalize(page)
		if cleaned == "" {
			continue
		}

		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}

		offsets = append(offsets, builder.Len())
		builder.WriteString(cleaned)
	}

	if builder.Len() == 0 {
		return core.ExtractedText{}, core.Permanent(ErrNoText)
	}

	return core.ExtractedText{Text: builder.String(), PageOffsets: offsets}, nil
}

// splitPages cuts the raw text at the reported page offsets. Missing or
// inconsistent offsets degrade to a single page.
func splitPages(extracted core.ExtractedText) []string {
	offsets := extracted.PageOffsets
	if len(offsets) < 2 {
		return []string{extracted.Text}
	}

	var pages []string

	for i, start := range offsets {
		if start < 0 || start > len(extracted.Text) {
			return []string{extracted.Text}
		}

		end := len(extracted.Text)
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}

		if end < start || end > len(extracted.Text) {
			return []string{extracted.Text}
		}

		pages = append(pages, extracted.Text[start:end])
	}

	return pages
}
