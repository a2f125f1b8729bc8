// Package voice maps logical speaker identities to synthesizer voice profiles.
package voice

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-pipeline/internal/core"
)

// ErrUnknownSpeaker indicates that a speaker has no registered voice profile.
var ErrUnknownSpeaker = errors.New("unknown speaker")

// Registry holds the speaker-to-voice mappings for a process. It is written
// rarely, at configuration time, and read many times per pipeline run.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]core.VoiceProfile
	log      *logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		mu:       sync.RWMutex{},
		profiles: make(map[string]core.VoiceProfile),
		log:      log,
	}
}

// Register inserts or overwrites the profile for its speaker ID. Last write
// wins; an overwrite, or a new ID that collides with an existing one on
// casing only, is logged as a warning.
func (r *Registry) Register(profile core.VoiceProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.profiles[profile.SpeakerID]
	if exists {
		r.log.Warn("Overwriting voice profile for speaker '%s'", profile.SpeakerID)
	} else {
		for id := range r.profiles {
			if strings.EqualFold(id, profile.SpeakerID) {
				r.log.Warn(
					"Speaker '%s' differs only by case from registered '%s'; speaker IDs are case-sensitive",
					profile.SpeakerID, id,
				)
			}
		}
	}

	r.profiles[profile.SpeakerID] = profile
}

// Resolve returns the profile for a speaker ID.
func (r *Registry) Resolve(speakerID string) (core.VoiceProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, ok := r.profiles[speakerID]
	if !ok {
		return core.VoiceProfile{}, fmt.Errorf("%w: '%s'", ErrUnknownSpeaker, speakerID)
	}

	return profile, nil
}

// Speakers returns the registered speaker IDs in sorted order, for use as the
// script generation roster.
func (r *Registry) Speakers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// Snapshot copies the current mappings. A pipeline run takes a snapshot once
// scripting completes, so concurrent registration cannot swap a profile
// mid-run.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profiles := make(map[string]core.VoiceProfile, len(r.profiles))
	for id, profile := range r.profiles {
		profiles[id] = profile
	}

	return Snapshot{profiles: profiles}
}

// Snapshot is an immutable copy of registry state.
type Snapshot struct {
	profiles map[string]core.VoiceProfile
}

// Resolve returns the profile for a speaker ID from the snapshot.
func (s Snapshot) Resolve(speakerID string) (core.VoiceProfile, error) {
	profile, ok := s.profiles[speakerID]
	if !ok {
		return core.VoiceProfile{}, fmt.Errorf("%w: '%s'", ErrUnknownSpeaker, speakerID)
	}

	return profile, nil
}

// Has reports whether the snapshot contains a profile for the speaker ID.
func (s Snapshot) Has(speakerID string) bool {
	_, ok := s.profiles[speakerID]

	return ok
}
