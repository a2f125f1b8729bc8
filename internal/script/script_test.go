// Package script_test tests script parsing and validation.
package script_test

import (
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-pipeline/internal/core"
	"github.com/book-expert/podcast-pipeline/internal/script"
	"github.com/book-expert/podcast-pipeline/internal/voice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoSpeakerScript = `{
	"title": "Introduction to AI",
	"description": "A brief overview",
	"speakers": ["Host", "Guest"],
	"script": [
		{"speaker": "Host", "text": "Welcome to our podcast."},
		{"speaker": "Guest", "text": "Thanks for having me."},
		{"speaker": "Host", "text": "Could you explain what AI is?"}
	]
}`

func rosterWith(t *testing.T, speakers ...string) voice.Snapshot {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	registry := voice.NewRegistry(log)
	for _, speaker := range speakers {
		registry.Register(core.VoiceProfile{
			SpeakerID:  speaker,
			Voice:      "default",
			Language:   "en",
			RefPath:    "",
			SampleRate: 22050,
		})
	}

	return registry.Snapshot()
}

func defaultLimits() script.Limits {
	return script.Limits{MaxTurns: 40, MaxTurnChars: 400}
}

func TestValidate_AssignsIndicesInOrder(t *testing.T) {
	t.Parallel()

	roster := rosterWith(t, "Host", "Guest")

	validated, err := script.Validate(twoSpeakerScript, roster, defaultLimits())
	require.NoError(t, err)

	require.Len(t, validated.Turns, 3)
	assert.Equal(t, "Introduction to AI", validated.Title)

	for i, turn := range validated.Turns {
		assert.Equal(t, i, turn.Index)
	}

	assert.Equal(t, "Host", validated.Turns[0].Speaker)
	assert.Equal(t, "Guest", validated.Turns[1].Speaker)
}

func TestValidate_AcceptsBareArray(t *testing.T) {
	t.Parallel()

	roster := rosterWith(t, "Host")

	validated, err := script.Validate(
		`[{"speaker": "Host", "text": "Hello."}]`, roster, defaultLimits(),
	)
	require.NoError(t, err)
	require.Len(t, validated.Turns, 1)
}

func TestValidate_StripsMarkdownFences(t *testing.T) {
	t.Parallel()

	roster := rosterWith(t, "Host")
	fenced := "```json\n" + `{"script": [{"speaker": "Host", "text": "Hello."}]}` + "\n```"

	validated, err := script.Validate(fenced, roster, defaultLimits())
	require.NoError(t, err)
	require.Len(t, validated.Turns, 1)
}

func TestValidate_MalformedScript(t *testing.T) {
	t.Parallel()

	roster := rosterWith(t, "Host")

	cases := []struct {
		name string
		raw  string
	}{
		{name: "empty input", raw: ""},
		{name: "not JSON", raw: "hello there"},
		{name: "no turns", raw: `{"script": []}`},
		{name: "missing speaker", raw: `{"script": [{"speaker": "", "text": "hi"}]}`},
		{name: "empty text", raw: `{"script": [{"speaker": "Host", "text": "  "}]}`},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, err := script.Validate(testCase.raw, roster, defaultLimits())
			require.ErrorIs(t, err, script.ErrMalformedScript)
		})
	}
}

func TestValidate_UnknownSpeaker(t *testing.T) {
	t.Parallel()

	roster := rosterWith(t, "Host", "Guest")
	raw := `{"script": [
		{"speaker": "Host", "text": "Welcome."},
		{"speaker": "Narrator", "text": "Once upon a time."}
	]}`

	_, err := script.Validate(raw, roster, defaultLimits())
	require.ErrorIs(t, err, voice.ErrUnknownSpeaker)
	require.ErrorContains(t, err, "Narrator")
}

func TestValidate_ScriptTooLong(t *testing.T) {
	t.Parallel()

	roster := rosterWith(t, "Host")
	raw := `{"script": [
		{"speaker": "Host", "text": "One."},
		{"speaker": "Host", "text": "Two."},
		{"speaker": "Host", "text": "Three."}
	]}`

	_, err := script.Validate(raw, roster, script.Limits{MaxTurns: 2, MaxTurnChars: 400})
	require.ErrorIs(t, err, script.ErrScriptTooLong)
	require.ErrorContains(t, err, "3 turns exceeds limit of 2")
}

func TestValidate_FlagsOverLengthTurnsForSplitting(t *testing.T) {
	t.Parallel()

	roster := rosterWith(t, "Host")
	raw := `{"script": [
		{"speaker": "Host", "text": "Short."},
		{"speaker": "Host", "text": "This sentence is longer than the tiny limit."}
	]}`

	validated, err := script.Validate(raw, roster, script.Limits{MaxTurns: 40, MaxTurnChars: 20})
	require.NoError(t, err)

	assert.False(t, validated.Turns[0].NeedsSplit)
	assert.True(t, validated.Turns[1].NeedsSplit)
}
