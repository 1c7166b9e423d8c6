package store_test

import (
	"context"
	"testing"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/speech-gateway/internal/store"
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

func TestNatsStore_SaveExistsGet(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := StartTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	natsStore, err := store.NewNatsStore(jetstreamContext, "test-artifacts")
	require.NoError(t, err)

	ctx := context.Background()
	key := "deadbeef.mp3"
	payload := []byte("mp3-bytes")

	exists, err := natsStore.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	err = natsStore.Save(ctx, key, payload)
	require.NoError(t, err)

	exists, err = natsStore.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := natsStore.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestNatsStore_GetMissingKey(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := StartTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	natsStore, err := store.NewNatsStore(jetstreamContext, "test-artifacts-missing")
	require.NoError(t, err)

	_, err = natsStore.Get(context.Background(), "missing.mp3")
	require.Error(t, err)
	require.ErrorIs(t, err, store.ErrKeyNotFound)
}
