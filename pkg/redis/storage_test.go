package redis

import (
	"context"
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient("https://kv.example.com", "token", 0)
	assert.Error(t, err)
}

func TestNewClient_PasswordOverride(t *testing.T) {
	client, err := NewClient("redis://:inurl@localhost:6379/2", "override", time.Second)
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, "override", client.Options().Password)
	assert.Equal(t, 2, client.Options().DB)
	assert.Equal(t, "localhost:6379", client.Options().Addr)
	assert.Equal(t, time.Second, client.Options().ReadTimeout)
}

// Requires a running redis server, e.g. REDIS_URL=redis://localhost:6379/15
func TestRemoteStorage(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	client, err := NewClient(url, "", 0)
	require.NoError(t, err)
	defer client.Close()

	logger := logrus.New()
	logger.Out = ioutil.Discard
	storage := NewRemoteStorage(client, logger)

	ctx := context.Background()
	key := "lolcounter_test"
	client.Del(key)
	defer client.Del(key)

	require.NoError(t, storage.Ping(ctx))

	exists, err := storage.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	v, err := storage.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, v)

	created, err := storage.SetNX(ctx, key, 170000)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = storage.SetNX(ctx, key, 1)
	require.NoError(t, err)
	assert.False(t, created)

	exists, err = storage.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	v, err = storage.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "170000", v)

	v, err = storage.Incr(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(170001), v)

	v, err = storage.IncrBy(ctx, key, 49)
	require.NoError(t, err)
	assert.Equal(t, int64(170050), v)

	require.NoError(t, storage.Set(ctx, key, 170000))
	v, err = storage.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "170000", v)
}
