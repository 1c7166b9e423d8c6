// Package cache implements the content-addressed artifact cache for
// synthesized audio. A (text, voice model) pair maps deterministically to a
// cache key; the first request for a key triggers exactly one provider call
// and every later request is served from the backing store.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"golang.org/x/sync/singleflight"

	"github.com/book-expert/speech-gateway/internal/core"
)

// ArtifactExtension is the fixed extension appended to every cache key to
// form the storage identifier. Deepgram speak returns MP3 audio.
const ArtifactExtension = ".mp3"

// keySeparator joins the model and text before hashing. The model identifier
// never contains ':', so the concatenation is unambiguous.
const keySeparator = ":"

// Log formats.
const (
	logFmtCacheHit   = "Cache hit for key %s"
	logFmtGenerated  = "Generated artifact %s (%d bytes)"
	logFmtNotifyFail = "Failed to publish audio-created event for key %s: %v"
)

// Key derives the storage identifier for a (text, model) pair:
// hex(sha256(model ":" text)) plus the artifact extension. Identical pairs
// always yield identical keys.
func Key(text, model string) string {
	digest := sha256.Sum256([]byte(model + keySeparator + text))

	return hex.EncodeToString(digest[:]) + ArtifactExtension
}

// Manager coordinates cache lookups and exactly-once generation per key.
type Manager struct {
	store    core.ArtifactStore
	synth    core.Synthesizer
	notifier core.Notifier
	log      *logger.Logger
	flight   singleflight.Group
	pool     chan struct{}
	timeout  time.Duration
}

// generationResult carries the outcome of a shared generation flight.
type generationResult struct {
	cached bool
}

// New creates a cache manager. The notifier may be nil when event publishing
// is disabled. workers bounds the number of concurrent provider calls across
// distinct keys.
func New(
	store core.ArtifactStore,
	synth core.Synthesizer,
	notifier core.Notifier,
	workers int,
	timeout time.Duration,
	log *logger.Logger,
) *Manager {
	return &Manager{
		store:    store,
		synth:    synth,
		notifier: notifier,
		log:      log,
		flight:   singleflight.Group{},
		pool:     make(chan struct{}, workers),
		timeout:  timeout,
	}
}

// Resolve maps (text, model) to its storage identifier, generating the
// artifact on a cache miss. The returned boolean reports whether the artifact
// already existed. Concurrent callers for the same key share a single
// provider call; callers for distinct keys proceed independently.
func (m *Manager) Resolve(ctx context.Context, text, model string) (string, bool, error) {
	key := Key(text, model)

	exists, err := m.store.Exists(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("failed to check cache entry '%s': %w", key, err)
	}

	if exists {
		m.log.Info(logFmtCacheHit, key)

		return key, true, nil
	}

	value, err, _ := m.flight.Do(key, func() (any, error) {
		return m.generate(text, model, key)
	})
	if err != nil {
		return "", false, err
	}

	result, ok := value.(generationResult)
	if !ok {
		return "", false, fmt.Errorf("unexpected flight result type %T for key '%s'", value, key)
	}

	return key, result.cached, nil
}

// generate performs the guarded check-then-generate sequence for one key.
// It runs on a detached context so that an abandoned requester does not
// abort the generation other waiters depend on.
func (m *Manager) generate(text, model, key string) (generationResult, error) {
	m.pool <- struct{}{}
	defer func() { <-m.pool }()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	// A lost race with another process sharing the store still counts as a
	// hit; the artifact is immutable so no further coordination is needed.
	exists, err := m.store.Exists(ctx, key)
	if err != nil {
		return generationResult{cached: false}, fmt.Errorf("failed to re-check cache entry '%s': %w", key, err)
	}

	if exists {
		return generationResult{cached: true}, nil
	}

	audio, err := m.synth.Synthesize(ctx, text, model)
	if err != nil {
		return generationResult{cached: false}, fmt.Errorf("failed to synthesize audio for key '%s': %w", key, err)
	}

	err = m.store.Save(ctx, key, audio)
	if err != nil {
		return generationResult{cached: false}, fmt.Errorf("failed to save artifact '%s': %w", key, err)
	}

	m.log.Info(logFmtGenerated, key, len(audio))
	m.notifyCreated(ctx, key)

	return generationResult{cached: false}, nil
}

// notifyCreated publishes the audio-created event. Publishing is best-effort:
// the artifact is already durable, so a notification failure is only logged.
func (m *Manager) notifyCreated(ctx context.Context, key string) {
	if m.notifier == nil {
		return
	}

	err := m.notifier.AudioCreated(ctx, key)
	if err != nil {
		m.log.Warn(logFmtNotifyFail, key, err)
	}
}
