// Package extract_test tests the extractor stage and text normalization.
package extract_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-pipeline/internal/core"
	"github.com/book-expert/podcast-pipeline/internal/extract"
	"github.com/book-expert/podcast-pipeline/internal/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errScannerDown = errors.New("scanner offline")

// mockExtractor is a mock implementation of the TextExtractor capability.
type mockExtractor struct {
	result    core.ExtractedText
	err       error
	callCount int
}

func (m *mockExtractor) Extract(_ context.Context, _ core.Document) (core.ExtractedText, error) {
	m.callCount++

	if m.err != nil {
		return core.ExtractedText{}, m.err
	}

	return m.result, nil
}

func newTestStage(t *testing.T, extractor core.TextExtractor) *extract.Stage {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	runner := stage.NewRunner(stage.Options{
		MaxAttempts:     2,
		CacheEnabled:    false,
		CacheMaxEntries: 0,
		InitialInterval: time.Millisecond,
	}, log)

	return extract.NewStage(extractor, runner, log)
}

func TestStage_NormalizesAndKeepsPageOffsets(t *testing.T) {
	t.Parallel()

	pageOne := "The   quick\tbrown fox [1] jumped."
	pageTwo := "It kept  running"
	raw := pageOne + "\n\n" + pageTwo

	extractor := &mockExtractor{
		result: core.ExtractedText{
			Text:        raw,
			PageOffsets: []int{0, len(pageOne) + 2},
		},
		err:       nil,
		callCount: 0,
	}

	extracted, err := newTestStage(t, extractor).Extract(
		context.Background(),
		core.Document{Bytes: []byte("%PDF"), Kind: core.KindPDF},
	)
	require.NoError(t, err)

	assert.Equal(t, "The quick brown fox jumped.\n\nIt kept running.", extracted.Text)
	require.Len(t, extracted.PageOffsets, 2)
	assert.Equal(t, 0, extracted.PageOffsets[0])
	assert.Equal(t, len("The quick brown fox jumped.")+2, extracted.PageOffsets[1])
}

func TestStage_EmptyDocumentIsPermanent(t *testing.T) {
	t.Parallel()

	extractor := &mockExtractor{result: core.ExtractedText{Text: "", PageOffsets: nil}, err: nil, callCount: 0}

	_, err := newTestStage(t, extractor).Extract(
		context.Background(),
		core.Document{Bytes: nil, Kind: core.KindPDF},
	)
	require.ErrorIs(t, err, stage.ErrStageFailed)
	require.ErrorIs(t, err, extract.ErrEmptyDocument)
	assert.Zero(t, extractor.callCount)
}

func TestStage_WhitespaceOnlyTextFailsWithoutRetry(t *testing.T) {
	t.Parallel()

	extractor := &mockExtractor{
		result:    core.ExtractedText{Text: "   \n\t  ", PageOffsets: nil},
		err:       nil,
		callCount: 0,
	}

	_, err := newTestStage(t, extractor).Extract(
		context.Background(),
		core.Document{Bytes: []byte("%PDF"), Kind: core.KindPDF},
	)
	require.ErrorIs(t, err, extract.ErrNoText)
	assert.Equal(t, 1, extractor.callCount)
}

func TestStage_TransientCapabilityFailureIsRetried(t *testing.T) {
	t.Parallel()

	extractor := &mockExtractor{
		result:    core.ExtractedText{Text: "", PageOffsets: nil},
		err:       core.Transient(errScannerDown),
		callCount: 0,
	}

	_, err := newTestStage(t, extractor).Extract(
		context.Background(),
		core.Document{Bytes: []byte("%PDF"), Kind: core.KindPDF},
	)
	require.ErrorIs(t, err, stage.ErrStageFailed)
	assert.Equal(t, 2, extractor.callCount)
}

func TestNormalizer_CleansProse(t *testing.T) {
	t.Parallel()

	normalizer := extract.NewNormalizer()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "whitespace collapsed",
			in:   "hello   world\n\ttwice",
			want: "hello world twice.",
		},
		{
			name: "reference markers removed",
			in:   "proven in prior work [12] here",
			want: "proven in prior work here.",
		},
		{
			name: "citations removed",
			in:   "as shown (Smith, 2019) clearly",
			want: "as shown clearly.",
		},
		{
			name: "abbreviations expanded",
			in:   "Dr. Smith arrived",
			want: "Doctor Smith arrived.",
		},
		{
			name: "smart punctuation normalized",
			in:   "“quoted” — done",
			want: `"quoted" - done.`,
		},
		{
			name: "sentence ending preserved",
			in:   "Is that all?",
			want: "Is that all?",
		},
		{
			name: "empty stays empty",
			in:   "",
			want: "",
		},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.want, normalizer.Normalize(testCase.in))
		})
	}
}
