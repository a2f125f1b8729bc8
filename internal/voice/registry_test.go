// Package voice_test tests the speaker-to-voice registry.
package voice_test

import (
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-pipeline/internal/core"
	"github.com/book-expert/podcast-pipeline/internal/voice"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *voice.Registry {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	return voice.NewRegistry(log)
}

func TestRegistry_ResolveRegistered(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t)
	registry.Register(core.VoiceProfile{
		SpeakerID:  "Host",
		Voice:      "male1",
		Language:   "en",
		RefPath:    "",
		SampleRate: 22050,
	})

	profile, err := registry.Resolve("Host")
	require.NoError(t, err)
	require.Equal(t, "male1", profile.Voice)
	require.Equal(t, 22050, profile.SampleRate)
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t)

	_, err := registry.Resolve("Narrator")
	require.ErrorIs(t, err, voice.ErrUnknownSpeaker)
}

func TestRegistry_LastWriteWins(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t)
	registry.Register(core.VoiceProfile{
		SpeakerID: "Guest", Voice: "female1", Language: "en", RefPath: "", SampleRate: 22050,
	})
	registry.Register(core.VoiceProfile{
		SpeakerID: "Guest", Voice: "female2", Language: "en", RefPath: "", SampleRate: 22050,
	})

	profile, err := registry.Resolve("Guest")
	require.NoError(t, err)
	require.Equal(t, "female2", profile.Voice)
}

func TestRegistry_SpeakersSorted(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t)
	registry.Register(core.VoiceProfile{
		SpeakerID: "Guest", Voice: "female1", Language: "en", RefPath: "", SampleRate: 22050,
	})
	registry.Register(core.VoiceProfile{
		SpeakerID: "Host", Voice: "male1", Language: "en", RefPath: "", SampleRate: 22050,
	})

	require.Equal(t, []string{"Guest", "Host"}, registry.Speakers())
}

func TestRegistry_SnapshotIsolation(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t)
	registry.Register(core.VoiceProfile{
		SpeakerID: "Host", Voice: "male1", Language: "en", RefPath: "", SampleRate: 22050,
	})

	snapshot := registry.Snapshot()

	// Mutating the registry after the snapshot must not change what the
	// snapshot resolves.
	registry.Register(core.VoiceProfile{
		SpeakerID: "Host", Voice: "male2", Language: "en", RefPath: "", SampleRate: 22050,
	})

	profile, err := snapshot.Resolve("Host")
	require.NoError(t, err)
	require.Equal(t, "male1", profile.Voice)

	require.True(t, snapshot.Has("Host"))
	require.False(t, snapshot.Has("Guest"))
}
