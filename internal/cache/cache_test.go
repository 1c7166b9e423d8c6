// Package cache_test tests the content-addressed artifact cache.
package cache_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/speech-gateway/internal/cache"
)

var errMockSynthesize = errors.New("mock synthesize error")

// memoryStore is a concurrency-safe in-memory artifact store.
type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		mu:      sync.Mutex{},
		objects: make(map[string][]byte),
	}
}

func (m *memoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.objects[key]

	return ok, nil
}

func (m *memoryStore) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = data

	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("no object '%s'", key)
	}

	return data, nil
}

// mockSynthesizer counts invocations and optionally fails or blocks briefly.
type mockSynthesizer struct {
	mu         sync.Mutex
	calls      int
	shouldFail bool
	delay      time.Duration
}

func (m *mockSynthesizer) Synthesize(_ context.Context, text, model string) ([]byte, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	if m.shouldFail {
		return nil, errMockSynthesize
	}

	return []byte("audio for " + model + ":" + text), nil
}

func (m *mockSynthesizer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls
}

// mockNotifier records the keys it was notified about.
type mockNotifier struct {
	mu   sync.Mutex
	keys []string
}

func (m *mockNotifier) AudioCreated(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.keys = append(m.keys, key)

	return nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "cache-test.log")
	require.NoError(t, err)

	return log
}

func TestKey_Deterministic(t *testing.T) {
	t.Parallel()

	first := cache.Key("Hello world", "aura-2-thalia-en")
	second := cache.Key("Hello world", "aura-2-thalia-en")

	assert.Equal(t, first, second)

	digest := sha256.Sum256([]byte("aura-2-thalia-en:Hello world"))
	assert.Equal(t, hex.EncodeToString(digest[:])+".mp3", first)
}

func TestKey_DistinctPairsDiffer(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})

	// A corpus of near-duplicate inputs should produce unique keys,
	// including pairings where text and model swap content.
	inputs := [][2]string{
		{"Hello world", "aura-2-thalia-en"},
		{"Hello world", "aura-2-orion-en"},
		{"Hello world ", "aura-2-thalia-en"},
		{"hello world", "aura-2-thalia-en"},
		{"aura-2-thalia-en", "Hello world"},
	}

	for i := range 500 {
		inputs = append(inputs, [2]string{fmt.Sprintf("Hello world %d", i), "aura-2-thalia-en"})
	}

	for _, pair := range inputs {
		key := cache.Key(pair[0], pair[1])

		_, duplicate := seen[key]
		require.False(t, duplicate, "duplicate key for pair %q", pair)

		seen[key] = struct{}{}
	}
}

func TestResolve_MissThenHit(t *testing.T) {
	t.Parallel()

	artifactStore := newMemoryStore()
	synthesizer := &mockSynthesizer{}
	manager := cache.New(artifactStore, synthesizer, nil, 2, 5*time.Second, testLogger(t))

	ctx := context.Background()

	key, cached, err := manager.Resolve(ctx, "Hello world", "aura-2-thalia-en")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, cache.Key("Hello world", "aura-2-thalia-en"), key)
	assert.Equal(t, 1, synthesizer.callCount())

	data, err := artifactStore.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("audio for aura-2-thalia-en:Hello world"), data)

	againKey, cached, err := manager.Resolve(ctx, "Hello world", "aura-2-thalia-en")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, key, againKey)
	assert.Equal(t, 1, synthesizer.callCount(), "cache hit must not invoke the provider")
}

func TestResolve_ConcurrentSameKey_SingleProviderCall(t *testing.T) {
	t.Parallel()

	artifactStore := newMemoryStore()
	synthesizer := &mockSynthesizer{delay: 50 * time.Millisecond}
	manager := cache.New(artifactStore, synthesizer, nil, 4, 5*time.Second, testLogger(t))

	const requesters = 16

	var waitGroup sync.WaitGroup

	keys := make([]string, requesters)
	errs := make([]error, requesters)

	for i := range requesters {
		waitGroup.Add(1)

		go func(index int) {
			defer waitGroup.Done()

			key, _, err := manager.Resolve(context.Background(), "same text", "aura-2-thalia-en")
			keys[index] = key
			errs[index] = err
		}(i)
	}

	waitGroup.Wait()

	for i := range requesters {
		require.NoError(t, errs[i])
		assert.Equal(t, keys[0], keys[i])
	}

	assert.Equal(t, 1, synthesizer.callCount(), "concurrent requesters must share one generation")
}

func TestResolve_DistinctKeysProceedIndependently(t *testing.T) {
	t.Parallel()

	artifactStore := newMemoryStore()
	synthesizer := &mockSynthesizer{}
	manager := cache.New(artifactStore, synthesizer, nil, 4, 5*time.Second, testLogger(t))

	var waitGroup sync.WaitGroup

	const texts = 8

	for i := range texts {
		waitGroup.Add(1)

		go func(index int) {
			defer waitGroup.Done()

			_, _, err := manager.Resolve(context.Background(), fmt.Sprintf("text %d", index), "aura-2-thalia-en")
			assert.NoError(t, err)
		}(i)
	}

	waitGroup.Wait()

	assert.Equal(t, texts, synthesizer.callCount())
}

func TestResolve_ProviderFailure_LeavesNoArtifact(t *testing.T) {
	t.Parallel()

	artifactStore := newMemoryStore()
	synthesizer := &mockSynthesizer{shouldFail: true}
	manager := cache.New(artifactStore, synthesizer, nil, 2, 5*time.Second, testLogger(t))

	ctx := context.Background()

	_, _, err := manager.Resolve(ctx, "doomed", "aura-2-thalia-en")
	require.Error(t, err)
	require.ErrorIs(t, err, errMockSynthesize)

	exists, err := artifactStore.Exists(ctx, cache.Key("doomed", "aura-2-thalia-en"))
	require.NoError(t, err)
	assert.False(t, exists, "no artifact may remain after a failed generation")
}

func TestResolve_NotifierCalledOnFreshGenerationOnly(t *testing.T) {
	t.Parallel()

	artifactStore := newMemoryStore()
	synthesizer := &mockSynthesizer{}
	notifier := &mockNotifier{}
	manager := cache.New(artifactStore, synthesizer, notifier, 2, 5*time.Second, testLogger(t))

	ctx := context.Background()

	key, _, err := manager.Resolve(ctx, "notify me", "aura-2-thalia-en")
	require.NoError(t, err)

	_, cached, err := manager.Resolve(ctx, "notify me", "aura-2-thalia-en")
	require.NoError(t, err)
	require.True(t, cached)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()

	assert.Equal(t, []string{key}, notifier.keys)
}
