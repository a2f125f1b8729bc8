// Package stage provides a uniform retry and cache wrapper around fallible
// external capability calls.
package stage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-pipeline/internal/core"
	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"
)

// Default retry policy values.
const (
	DefaultMaxAttempts     = 3
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 10 * time.Second
)

// ErrStageFailed indicates a stage exhausted its retries or hit a permanent
// failure. The wrapped cause is the last capability error.
var ErrStageFailed = errors.New("stage failed")

// Error ties a failed capability call to the stage that issued it. Callers
// never see raw capability errors; they see this wrapper.
type Error struct {
	Stage string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: stage '%s': %v", ErrStageFailed, e.Stage, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match both ErrStageFailed and the wrapped cause chain.
func (e *Error) Is(target error) bool {
	return target == ErrStageFailed
}

// Call is one invocation of an external capability.
type Call func(ctx context.Context) ([]byte, error)

// Options configures a Runner.
type Options struct {
	// MaxAttempts bounds the retry loop, including the first attempt.
	MaxAttempts int
	// CacheEnabled keeps results keyed by input fingerprint for the life of
	// the runner.
	CacheEnabled bool
	// CacheMaxEntries bounds a runner shared across runs. Zero means
	// unbounded, which is fine for a run-scoped runner.
	CacheMaxEntries int
	// InitialInterval overrides the first backoff delay, mainly for tests.
	InitialInterval time.Duration
}

// Runner executes capability calls with exponential backoff, jitter, and an
// optional fingerprint-keyed cache. Concurrent callers presenting the same
// fingerprint share a single in-flight invocation.
type Runner struct {
	opts   Options
	log    *logger.Logger
	flight singleflight.Group

	mu    sync.Mutex
	cache map[string][]byte
}

// NewRunner creates a runner with the given options, applying defaults for
// unset fields.
func NewRunner(opts Options, log *logger.Logger) *Runner {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}

	if opts.InitialInterval <= 0 {
		opts.InitialInterval = defaultInitialInterval
	}

	return &Runner{
		opts:   opts,
		log:    log,
		flight: singleflight.Group{},
		mu:     sync.Mutex{},
		cache:  make(map[string][]byte),
	}
}

// Fingerprint derives the deterministic cache key for a stage name and input.
func Fingerprint(stageName string, input []byte) string {
	hash := sha256.New()
	hash.Write([]byte(stageName))
	hash.Write([]byte{0})
	hash.Write(input)

	return hex.EncodeToString(hash.Sum(nil))
}

// Do executes the call for the given stage, retrying transient failures with
// exponential backoff and jitter. With caching enabled, a result is computed
// at most once per fingerprint; later callers with the same fingerprint await
// the in-flight result rather than re-invoking the capability.
func (r *Runner) Do(
	ctx context.Context,
	stageName string,
	input []byte,
	call Call,
) ([]byte, error) {
	if !r.opts.CacheEnabled {
		return r.execute(ctx, stageName, call)
	}

	key := Fingerprint(stageName, input)

	if cached, ok := r.lookup(key); ok {
		return cached, nil
	}

	result, err, _ := r.flight.Do(key, func() (any, error) {
		if cached, ok := r.lookup(key); ok {
			return cached, nil
		}

		output, execErr := r.execute(ctx, stageName, call)
		if execErr != nil {
			return nil, execErr
		}

		r.store(key, output)

		return output, nil
	})
	if err != nil {
		return nil, err
	}

	output, ok := result.([]byte)
	if !ok {
		return nil, &Error{Stage: stageName, Cause: errors.New("unexpected cache value type")}
	}

	return output, nil
}

// execute runs the retry loop. Permanent failures stop immediately; transient
// failures retry up to MaxAttempts with identical input.
func (r *Runner) execute(
	ctx context.Context,
	stageName string,
	call Call,
) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.opts.InitialInterval
	policy.MaxInterval = defaultMaxInterval

	attempt := 0

	operation := func() ([]byte, error) {
		attempt++

		output, err := call(ctx)
		if err == nil {
			return output, nil
		}

		if !core.IsTransient(err) {
			return nil, backoff.Permanent(err)
		}

		r.log.Warn(
			"Stage '%s' attempt %d/%d failed: %v",
			stageName, attempt, r.opts.MaxAttempts, err,
		)

		return nil, err
	}

	output, err := backoff.Retry(
		ctx,
		operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(r.opts.MaxAttempts)),
	)
	if err != nil {
		return nil, &Error{Stage: stageName, Cause: err}
	}

	return output, nil
}

func (r *Runner) lookup(key string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cached, ok := r.cache[key]

	return cached, ok
}

// store records an immutable cache entry. A populated entry is never
// replaced. When the entry cap is reached the result is simply not retained;
// correctness does not depend on the cache.
func (r *Runner) store(key string, output []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cache[key]; ok {
		return
	}

	if r.opts.CacheMaxEntries > 0 && len(r.cache) >= r.opts.CacheMaxEntries {
		return
	}

	r.cache[key] = output
}
