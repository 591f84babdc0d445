package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Varun5711/shortlinks/internal/logger"
	"github.com/Varun5711/shortlinks/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewMultiTierCache(16, client, 3*time.Minute, logger.Discard()), mr, client
}

func set(t *testing.T, c *Cache, key, value string) {
	t.Helper()

	ctx := context.Background()
	v, err := c.Version(ctx, key)
	require.NoError(t, err)
	stored, err := c.SetIfCurrent(ctx, key, value, v)
	require.NoError(t, err)
	require.True(t, stored)
}

func TestCache_SetWritesBothTiers(t *testing.T) {
	c, mr, _ := newTestCache(t)

	set(t, c, "k", "v")

	val, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
	assert.Equal(t, 3*time.Minute, mr.TTL("k"))

	got, ok := c.l1Cache.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestCache_L2HitPopulatesL1(t *testing.T) {
	c, mr, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("k", "from-redis"))

	val, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "from-redis", val)

	_, inL1 := c.l1Cache.Get("k")
	assert.True(t, inL1)
}

func TestCache_MissIsNotAnError(t *testing.T) {
	c, _, _ := newTestCache(t)

	_, ok, err := c.Get(context.Background(), "absent")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_RedisDownReportsUnavailable(t *testing.T) {
	c, mr, _ := newTestCache(t)
	ctx := context.Background()

	v, err := c.Version(ctx, "k")
	require.NoError(t, err)
	mr.Close()

	_, ok, err := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrCacheUnavailable))

	_, err = c.Version(ctx, "k")
	assert.True(t, errors.Is(err, ErrCacheUnavailable))

	stored, err := c.SetIfCurrent(ctx, "k", "v", v)
	assert.False(t, stored)
	assert.True(t, errors.Is(err, ErrCacheUnavailable))
}

func TestCache_DeleteClearsBothTiers(t *testing.T) {
	c, mr, _ := newTestCache(t)
	ctx := context.Background()

	set(t, c, "a", "1")
	set(t, c, "b", "2")
	require.NoError(t, c.Delete(ctx, "a", "b"))

	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))
	_, ok, err := c.Get(ctx, "a")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_WithoutRedis(t *testing.T) {
	c := NewMultiTierCache(4, nil, time.Minute, logger.Discard())
	ctx := context.Background()

	set(t, c, "k", "v")
	val, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", val)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestCache_BackfillKeepsRedisDeadline(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	writer := NewMultiTierCache(16, client, 180*time.Second, logger.Discard())
	reader := NewMultiTierCache(16, client, 180*time.Second, logger.Discard())
	now := time.Now()
	reader.l1Cache.now = func() time.Time { return now }
	ctx := context.Background()

	set(t, writer, "k", "v1")

	advance := func(d time.Duration) {
		now = now.Add(d)
		mr.FastForward(d)
	}

	advance(170 * time.Second)
	val, ok, err := reader.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", val)

	advance(9 * time.Second)
	_, ok, _ = reader.Get(ctx, "k")
	assert.True(t, ok, "served from L1 inside the original TTL")

	advance(2 * time.Second)
	_, ok, err = reader.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok, "entry outlived the TTL of its first write")
}

func TestCache_BackfillWithoutRedisExpiryUsesTTL(t *testing.T) {
	c, mr, _ := newTestCache(t)
	now := time.Now()
	c.l1Cache.now = func() time.Time { return now }

	require.NoError(t, mr.Set("k", "v"))
	_, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	mr.Del("k")

	now = now.Add(3*time.Minute - time.Second)
	_, ok = c.l1Cache.Get("k")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok = c.l1Cache.Get("k")
	assert.False(t, ok)
}

func TestCache_FillAfterInvalidationIsDropped(t *testing.T) {
	c, mr, _ := newTestCache(t)
	ctx := context.Background()

	v, err := c.Version(ctx, "k")
	require.NoError(t, err)

	require.NoError(t, c.Delete(ctx, "k"))

	stored, err := c.SetIfCurrent(ctx, "k", "stale", v)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.False(t, mr.Exists("k"))
	_, ok := c.l1Cache.Get("k")
	assert.False(t, ok)

	v, err = c.Version(ctx, "k")
	require.NoError(t, err)
	stored, err = c.SetIfCurrent(ctx, "k", "fresh", v)
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestCache_FillAfterPeerInvalidationIsDropped(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	reader := NewMultiTierCache(16, client, time.Minute, logger.Discard())
	writer := NewMultiTierCache(16, client, time.Minute, logger.Discard())
	ctx := context.Background()

	v, err := reader.Version(ctx, "k")
	require.NoError(t, err)

	require.NoError(t, writer.Delete(ctx, "k"))

	stored, err := reader.SetIfCurrent(ctx, "k", "stale", v)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.False(t, mr.Exists("k"))
}

func TestCache_FillAfterInvalidationIsDroppedWithoutRedis(t *testing.T) {
	c := NewMultiTierCache(4, nil, time.Minute, logger.Discard())
	ctx := context.Background()

	v, err := c.Version(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, "k"))

	stored, err := c.SetIfCurrent(ctx, "k", "stale", v)
	require.NoError(t, err)
	assert.False(t, stored)
	_, ok, _ := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestCache_ListenInvalidationsEvictsPeerL1(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	writer := NewMultiTierCache(16, client, time.Minute, logger.Discard())
	peer := NewMultiTierCache(16, client, time.Minute, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go peer.ListenInvalidations(ctx)

	// Wait for the subscription to register before publishing.
	require.Eventually(t, func() bool {
		return len(mr.PubSubChannels(invalidationChannel)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	peer.l1Cache.Set("k", "stale")
	require.NoError(t, writer.Delete(context.Background(), "k"))

	assert.Eventually(t, func() bool {
		_, ok := peer.l1Cache.Get("k")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLinkCache_RoundTripAndInvalidate(t *testing.T) {
	c, _, _ := newTestCache(t)
	lc := NewLinkCache(c, logger.Discard())
	ctx := context.Background()

	link := &models.LinkRecord{ID: 7, ShortCode: "abcdefghij", OriginalURL: "https://example.com", UsageCount: 3}

	_, v, ok := lc.GetLink(ctx, "abcdefghij")
	require.False(t, ok)
	lc.SetLink(ctx, link, v)

	_, v, ok = lc.GetStats(ctx, "abcdefghij")
	require.False(t, ok)
	lc.SetStats(ctx, link, v)

	_, v, ok = lc.GetSearch(ctx, link.OriginalURL)
	require.False(t, ok)
	lc.SetSearch(ctx, link.OriginalURL, link.ShortCode, v)

	got, _, ok := lc.GetLink(ctx, "abcdefghij")
	require.True(t, ok)
	assert.Equal(t, link.OriginalURL, got.OriginalURL)

	stats, _, ok := lc.GetStats(ctx, "abcdefghij")
	require.True(t, ok)
	assert.Equal(t, int64(3), stats.UsageCount)

	code, _, ok := lc.GetSearch(ctx, "https://example.com")
	require.True(t, ok)
	assert.Equal(t, "abcdefghij", code)

	lc.Invalidate(ctx, "abcdefghij")
	lc.InvalidateSearch(ctx, "https://example.com")

	_, _, ok = lc.GetLink(ctx, "abcdefghij")
	assert.False(t, ok)
	_, _, ok = lc.GetStats(ctx, "abcdefghij")
	assert.False(t, ok)
	_, _, ok = lc.GetSearch(ctx, "https://example.com")
	assert.False(t, ok)
}

func TestLinkCache_SearchFillRacingInvalidateIsDropped(t *testing.T) {
	c, _, _ := newTestCache(t)
	lc := NewLinkCache(c, logger.Discard())
	ctx := context.Background()

	_, v, ok := lc.GetSearch(ctx, "https://example.com")
	require.False(t, ok)

	lc.InvalidateSearch(ctx, "https://example.com")
	lc.SetSearch(ctx, "https://example.com", "oldcode001", v)

	_, _, ok = lc.GetSearch(ctx, "https://example.com")
	assert.False(t, ok)
}

func TestLinkCache_RedisFailureIsAMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	lc := NewLinkCache(NewMultiTierCache(0, client, time.Minute, logger.Discard()), logger.Discard())
	mr.Close()

	ctx := context.Background()
	_, v, ok := lc.GetLink(ctx, "abcdefghij")
	assert.False(t, ok)
	lc.SetLink(ctx, &models.LinkRecord{ShortCode: "abcdefghij"}, v)
	_, _, ok = lc.GetLink(ctx, "abcdefghij")
	assert.False(t, ok)
	lc.Invalidate(ctx, "abcdefghij")
}

func TestLinkCache_CorruptEntryIsAMiss(t *testing.T) {
	c, mr, _ := newTestCache(t)
	lc := NewLinkCache(c, logger.Discard())

	require.NoError(t, mr.Set(CodeKey("abcdefghij"), "{not json"))

	_, _, ok := lc.GetLink(context.Background(), "abcdefghij")
	assert.False(t, ok)
}
