// Package objectstore_test tests the NATS artifact store implementation.
package objectstore_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/book-expert/podcast-pipeline/internal/core"
	"github.com/book-expert/podcast-pipeline/internal/objectstore"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

// StartTestServer starts an in-memory NATS server for testing purposes.
func StartTestServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	return natsServer, natsConnection
}

func TestArtifactStore_SaveAndDownload(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := StartTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := objectstore.New(jetstreamContext, "podcast-artifacts")
	require.NoError(t, err)

	artifact := &core.PodcastArtifact{
		WAV:      []byte("RIFF fake wav payload"),
		Duration: 3 * time.Second,
		Manifest: []core.TurnBoundary{
			{TurnIndex: 0, Speaker: "Host", Offset: 500 * time.Millisecond, Duration: time.Second},
			{TurnIndex: 1, Speaker: "Guest", Offset: 1800 * time.Millisecond, Duration: time.Second},
		},
	}

	ctx := context.Background()
	runID := "run-123"

	audioKey, err := store.SaveArtifact(ctx, runID, artifact)
	require.NoError(t, err)
	require.Equal(t, "run-123.wav", audioKey)

	audioData, err := store.Download(ctx, audioKey)
	require.NoError(t, err)
	require.Equal(t, artifact.WAV, audioData)

	manifestData, err := store.Download(ctx, "run-123.manifest.json")
	require.NoError(t, err)

	var manifest []core.TurnBoundary

	require.NoError(t, json.Unmarshal(manifestData, &manifest))
	require.Equal(t, artifact.Manifest, manifest)
}

func TestArtifactStore_BindsToExistingBucket(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := StartTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	first, err := objectstore.New(jetstreamContext, "shared-bucket")
	require.NoError(t, err)

	ctx := context.Background()

	_, err = first.SaveArtifact(ctx, "run-a", &core.PodcastArtifact{
		WAV:      []byte("payload"),
		Duration: time.Second,
		Manifest: nil,
	})
	require.NoError(t, err)

	second, err := objectstore.New(jetstreamContext, "shared-bucket")
	require.NoError(t, err)

	data, err := second.Download(ctx, "run-a.wav")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)
}

func TestArtifactStore_DownloadMissingKey(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := StartTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := objectstore.New(jetstreamContext, "empty-bucket")
	require.NoError(t, err)

	_, err = store.Download(context.Background(), "missing.wav")
	require.Error(t, err)
}
