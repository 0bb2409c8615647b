package cache

import (
	"context"
	"testing"
	"time"

	"go-bookstore-pos/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInMemory_JSONRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory()
	clock := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	require.NoError(t, SetJSON(ctx, c, "report:summary", map[string]int{"total": 3}, time.Minute))

	var got map[string]int
	require.NoError(t, GetJSON(ctx, c, "report:summary", &got))
	assert.Equal(t, 3, got["total"])

	clock = clock.Add(2 * time.Minute)
	assert.ErrorIs(t, GetJSON(ctx, c, "report:summary", &got), ErrCacheMiss)
}

func TestInMemory_DeleteByPattern(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory()
	require.NoError(t, c.Set(ctx, "report:performance", []byte("1"), time.Hour))
	require.NoError(t, c.Set(ctx, "report:summary:2024", []byte("2"), time.Hour))
	require.NoError(t, c.Set(ctx, "session:1", []byte("3"), time.Hour))

	require.NoError(t, c.DeleteByPattern(ctx, "report:*"))

	_, err := c.Get(ctx, "report:performance")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "report:summary:2024")
	assert.ErrorIs(t, err, ErrCacheMiss)
	v, err := c.Get(ctx, "session:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), v)
}

func TestInMemory_SetIfGeneration(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory()

	gen := c.Generation()
	ok, err := SetJSONIf(ctx, c, "report:performance", []int{1}, time.Minute, gen)
	require.NoError(t, err)
	assert.True(t, ok)

	// result computed before an invalidation must not land after it
	stale := c.Generation()
	require.NoError(t, c.DeleteByPattern(ctx, "report:*"))
	assert.NotEqual(t, stale, c.Generation())

	ok, err = SetJSONIf(ctx, c, "report:performance", []int{2}, time.Minute, stale)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = c.Get(ctx, "report:performance")
	assert.ErrorIs(t, err, ErrCacheMiss)

	ok, err = SetJSONIf(ctx, c, "report:performance", []int{3}, time.Minute, c.Generation())
	require.NoError(t, err)
	assert.True(t, ok)
	var got []int
	require.NoError(t, GetJSON(ctx, c, "report:performance", &got))
	assert.Equal(t, []int{3}, got)
}

func TestNew_FallsBackWithoutRedis(t *testing.T) {
	c := New(config.RedisConfig{Enabled: false}, zap.NewNop())
	assert.IsType(t, &InMemoryCache{}, c)

	// nothing listens on port 1
	c = New(config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: "1"}, zap.NewNop())
	assert.IsType(t, &InMemoryCache{}, c)
}
