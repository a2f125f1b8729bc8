// Package objectstore provides NATS JetStream persistence for podcast
// artifacts and their manifests.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/book-expert/podcast-pipeline/internal/core"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Object name suffixes under a run ID.
const (
	audioSuffix    = ".wav"
	manifestSuffix = ".manifest.json"
)

// ArtifactStore persists pipeline artifacts in a NATS object store bucket.
// The pipeline core never requires it; the CLI shell uses it when a NATS URL
// is configured.
type ArtifactStore struct {
	jetstreamContext nats.JetStreamContext
	bucket           string
	store            nats.ObjectStore
}

// New creates an ArtifactStore, creating the bucket or binding to it when it
// already exists.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*ArtifactStore, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Podcast artifacts for the %s bucket.", bucketName),
		TTL:         0,
		MaxBytes:    0,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: false,
	})
	if err != nil {
		if errors.Is(err, jetstream.ErrBucketExists) {
			store, err = jetstreamContext.ObjectStore(bucketName)
			if err != nil {
				return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
			}
		} else {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}
	}

	return &ArtifactStore{
		jetstreamContext: jetstreamContext,
		bucket:           bucketName,
		store:            store,
	}, nil
}

// SaveArtifact uploads the artifact audio and its turn manifest under the run
// ID and returns the audio object key.
func (s *ArtifactStore) SaveArtifact(
	ctx context.Context,
	runID string,
	artifact *core.PodcastArtifact,
) (string, error) {
	audioKey := runID + audioSuffix

	err := s.put(ctx, audioKey, artifact.WAV)
	if err != nil {
		return "", err
	}

	manifestData, err := json.Marshal(artifact.Manifest)
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest for run '%s': %w", runID, err)
	}

	err = s.put(ctx, runID+manifestSuffix, manifestData)
	if err != nil {
		return "", err
	}

	return audioKey, nil
}

// Download retrieves an object by key.
func (s *ArtifactStore) Download(_ context.Context, key string) ([]byte, error) {
	obj, err := s.store.Get(key)
	if err != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, s.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}

	return data, nil
}

func (s *ArtifactStore) put(_ context.Context, key string, data []byte) error {
	reader := bytes.NewReader(data)

	_, err := s.store.Put(&nats.ObjectMeta{
		Name:        key,
		Description: "",
		Headers:     nil,
		Metadata:    nil,
		Opts:        nil,
	}, reader)
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, s.bucket, err)
	}

	return nil
}
