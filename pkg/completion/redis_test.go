package completion

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// An unreachable Redis must degrade to "no completions" instead of failing callers.
func TestStoreOverUnreachableRedisDegradesToEmpty(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	backend, err := NewRedisBackend(client)
	require.NoError(t, err)
	store := NewStore(backend, testLogger{t})
	ctx := context.Background()

	store.MarkCompleted(ctx, "u1", "s1")
	assert.False(t, store.IsCompleted(ctx, "u1", "s1"))
	assert.Empty(t, store.ListCompleted(ctx, "u1"))
}

func TestNewRedisBackendRejectsNil(t *testing.T) {
	_, err := NewRedisBackend(nil)
	assert.Error(t, err)
}
