package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/foreval/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), &goredis.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewClient_Disabled(t *testing.T) {
	client, err := New(context.Background(), config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Close())
}

func TestDocumentStore_Disabled(t *testing.T) {
	client, _ := New(context.Background(), config.RedisConfig{Enabled: false})
	store := NewDocumentStore(client, "test")

	err := store.Put(context.Background(), "k", []byte("v"))
	assert.True(t, errors.Is(err, ErrDisabled))

	_, _, err = store.Get(context.Background(), "k")
	assert.True(t, errors.Is(err, ErrDisabled))
}

func TestDocumentStore_PutGet(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewDocumentStore(client, "foreval")
	ctx := context.Background()

	_, found, err := store.Get(ctx, "latest")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Put(ctx, "latest", []byte(`{"a":1}`)))
	require.NoError(t, store.Put(ctx, "latest", []byte(`{"a":2}`)))

	data, found, err := store.Get(ctx, "latest")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"a":2}`, string(data))

	raw, err := mr.Get("foreval:doc:latest")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, raw)
	assert.Equal(t, "foreval:doc:latest", store.Key("latest"))
}
