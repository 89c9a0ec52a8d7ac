package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"courtbook/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisClaimStore(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer client.Close()

	repo := NewRedisClaimStore(client)
	ctx := context.Background()

	t.Run("ClaimOnce", func(t *testing.T) {
		ok, err := repo.Claim(ctx, "reminder:abc", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.Claim(ctx, "reminder:abc", time.Hour)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.True(t, s.Exists(claimPrefix+"reminder:abc"))
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		ok, _ := repo.Claim(ctx, "reminder:ttl", time.Second)
		assert.True(t, ok)

		s.FastForward(time.Second + time.Millisecond)

		ok, err := repo.Claim(ctx, "reminder:ttl", time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Release", func(t *testing.T) {
		_, _ = repo.Claim(ctx, "reminder:rel", time.Hour)
		require.NoError(t, repo.Release(ctx, "reminder:rel"))
		assert.False(t, s.Exists(claimPrefix+"reminder:rel"))
	})

	t.Run("ConcurrentClaims", func(t *testing.T) {
		var granted atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ok, err := repo.Claim(ctx, "reminder:race", time.Hour); err == nil && ok {
					granted.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), granted.Load())
	})

	t.Run("NilClient", func(t *testing.T) {
		repo := NewRedisClaimStore(nil)
		_, err := repo.Claim(ctx, "x", time.Hour)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "redis client is nil")
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})

	t.Run("Close", func(t *testing.T) {
		assert.NoError(t, Close(client))
		assert.NoError(t, Close(nil))
	})
}
