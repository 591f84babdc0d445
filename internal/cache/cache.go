package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Varun5711/shortlinks/internal/logger"
	"github.com/redis/go-redis/v9"
)

const (
	invalidationChannel = "cache:invalidate"
	versionPrefix       = "cache:version:"

	// versionTTL only has to outlive a store read in flight.
	versionTTL = 10 * time.Minute
)

var (
	ErrCacheUnavailable = errors.New("cache unavailable")

	errStale = errors.New("key invalidated during read")
)

// Version marks a point in a key's invalidation history. Take it before
// reading the store and hand it to SetIfCurrent with the result.
type Version struct {
	remote int64
	local  uint64
	valid  bool
}

// Cache is a two tier cache: an in-process LRU in front of Redis. Both
// tiers use the same TTL. l2 may be nil, in which case only L1 is used.
type Cache struct {
	l1Cache *LRUCache
	l2Cache *redis.Client
	ttl     time.Duration
	log     *logger.Logger

	// epoch counts invalidations seen by this process, local or from
	// peers. L1 writes are dropped when it moved during the read.
	mu    sync.Mutex
	epoch uint64
}

func NewMultiTierCache(l1Capacity int, redisClient *redis.Client, ttl time.Duration, log *logger.Logger) *Cache {
	return &Cache{
		l1Cache: NewLRUCache(l1Capacity, ttl),
		l2Cache: redisClient,
		ttl:     ttl,
		log:     log,
	}
}

func versionKey(key string) string { return versionPrefix + key }

// Get returns ok=false on a miss. A Redis failure is reported as an
// ErrCacheUnavailable error together with a miss. An L2 hit is copied into
// L1 for what is left of its Redis lifetime.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	if val, found := c.l1Cache.Get(key); found {
		return val, true, nil
	}

	if c.l2Cache == nil {
		return "", false, nil
	}

	epoch := c.currentEpoch()

	pipe := c.l2Cache.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	_, err := pipe.Exec(ctx)

	if errors.Is(getCmd.Err(), redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: get %s: %w", ErrCacheUnavailable, key, err)
	}

	val := getCmd.Val()
	c.backfill(key, val, ttlCmd.Val(), epoch)
	return val, true, nil
}

// backfill copies an L2 value into L1 unless an invalidation arrived since
// the Redis read. remaining is the PTTL reply: -1 means no expiry, -2 that
// the key is already gone.
func (c *Cache) backfill(key, val string, remaining time.Duration, epoch uint64) {
	var expiresAt time.Time
	switch {
	case remaining > 0:
		if c.ttl > 0 && remaining > c.ttl {
			remaining = c.ttl
		}
		expiresAt = c.l1Cache.now().Add(remaining)
	case remaining == -1:
		if c.ttl > 0 {
			expiresAt = c.l1Cache.now().Add(c.ttl)
		}
	default:
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch == epoch {
		c.l1Cache.SetWithExpiry(key, val, expiresAt)
	}
}

// Version snapshots the invalidation state of key.
func (c *Cache) Version(ctx context.Context, key string) (Version, error) {
	v := Version{local: c.currentEpoch(), valid: true}
	if c.l2Cache == nil {
		return v, nil
	}

	n, err := c.l2Cache.Get(ctx, versionKey(key)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Version{}, fmt.Errorf("%w: version %s: %w", ErrCacheUnavailable, key, err)
	}
	v.remote = n
	return v, nil
}

// SetIfCurrent stores value in both tiers unless key was invalidated after
// v was taken, on this instance or any other. It reports whether the value
// was stored.
func (c *Cache) SetIfCurrent(ctx context.Context, key string, value string, v Version) (bool, error) {
	if !v.valid {
		return false, nil
	}

	if c.l2Cache != nil {
		vk := versionKey(key)
		err := c.l2Cache.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Get(ctx, vk).Int64()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if n != v.remote {
				return errStale
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, value, c.ttl)
				return nil
			})
			return err
		}, vk)

		switch {
		case errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
			return false, nil
		case err != nil:
			return false, fmt.Errorf("%w: set %s: %w", ErrCacheUnavailable, key, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != v.local {
		return false, nil
	}
	c.l1Cache.Set(key, value)
	return true, nil
}

// Delete drops keys from both tiers, bumps their versions and tells other
// instances to drop them from their L1.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	c.evictLocal(keys...)

	if c.l2Cache == nil {
		return nil
	}

	pipe := c.l2Cache.Pipeline()
	pipe.Del(ctx, keys...)
	for _, key := range keys {
		pipe.Incr(ctx, versionKey(key))
		pipe.Expire(ctx, versionKey(key), versionTTL)
		pipe.Publish(ctx, invalidationChannel, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: delete: %w", ErrCacheUnavailable, err)
	}
	return nil
}

func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, found, err := c.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		c.l1Cache.Delete(key)
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (c *Cache) SetJSONIfCurrent(ctx context.Context, key string, value interface{}, v Version) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}

	return c.SetIfCurrent(ctx, key, string(data), v)
}

// ListenInvalidations evicts L1 entries that other instances deleted. It
// blocks until ctx is done.
func (c *Cache) ListenInvalidations(ctx context.Context) {
	if c.l2Cache == nil {
		return
	}

	sub := c.l2Cache.Subscribe(ctx, invalidationChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			c.evictLocal(msg.Payload)
		}
	}
}

func (c *Cache) evictLocal(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	for _, key := range keys {
		c.l1Cache.Delete(key)
	}
}

func (c *Cache) currentEpoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}
