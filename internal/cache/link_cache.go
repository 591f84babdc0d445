package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/Varun5711/shortlinks/internal/logger"
	"github.com/Varun5711/shortlinks/internal/models"
)

const (
	codePrefix   = "link:code:"
	statsPrefix  = "link:stats:"
	searchPrefix = "link:search:"
)

// LinkCache is the redirect cache used by the link service. It never
// returns an error: every cache failure is logged and reported as a miss
// so callers fall through to the store.
type LinkCache struct {
	cache *Cache
	log   *logger.Logger
}

func NewLinkCache(c *Cache, log *logger.Logger) *LinkCache {
	return &LinkCache{cache: c, log: log}
}

func CodeKey(code string) string  { return codePrefix + code }
func StatsKey(code string) string { return statsPrefix + code }

func SearchKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return searchPrefix + hex.EncodeToString(sum[:])
}

// GetLink returns the cached record for code. On a miss the returned
// Version must be passed to SetLink with whatever the store returned, so a
// fill that raced an invalidation is dropped.
func (c *LinkCache) GetLink(ctx context.Context, code string) (*models.LinkRecord, Version, bool) {
	var link models.LinkRecord
	if v, ok := c.getJSON(ctx, CodeKey(code), &link); !ok {
		return nil, v, false
	}
	return &link, Version{}, true
}

func (c *LinkCache) SetLink(ctx context.Context, link *models.LinkRecord, v Version) {
	c.setJSON(ctx, CodeKey(link.ShortCode), link, v)
}

func (c *LinkCache) GetStats(ctx context.Context, code string) (*models.LinkRecord, Version, bool) {
	var link models.LinkRecord
	if v, ok := c.getJSON(ctx, StatsKey(code), &link); !ok {
		return nil, v, false
	}
	return &link, Version{}, true
}

func (c *LinkCache) SetStats(ctx context.Context, link *models.LinkRecord, v Version) {
	c.setJSON(ctx, StatsKey(link.ShortCode), link, v)
}

func (c *LinkCache) GetSearch(ctx context.Context, url string) (string, Version, bool) {
	var code string
	if v, ok := c.getJSON(ctx, SearchKey(url), &code); !ok {
		return "", v, false
	}
	return code, Version{}, true
}

func (c *LinkCache) SetSearch(ctx context.Context, url, code string, v Version) {
	c.setJSON(ctx, SearchKey(url), code, v)
}

// Invalidate drops the redirect and stats entries of each code.
func (c *LinkCache) Invalidate(ctx context.Context, codes ...string) {
	keys := make([]string, 0, 2*len(codes))
	for _, code := range codes {
		keys = append(keys, CodeKey(code), StatsKey(code))
	}
	c.delete(ctx, keys...)
}

func (c *LinkCache) InvalidateSearch(ctx context.Context, url string) {
	c.delete(ctx, SearchKey(url))
}

// getJSON reports a hit, or on a miss the version to fill the key with.
// The version is taken before the caller reads the store.
func (c *LinkCache) getJSON(ctx context.Context, key string, dest interface{}) (Version, bool) {
	found, err := c.cache.GetJSON(ctx, key, dest)
	if err != nil {
		c.log.Debug("Cache read %s failed, falling through: %v", key, err)
	}
	if found {
		return Version{}, true
	}

	v, err := c.cache.Version(ctx, key)
	if err != nil {
		c.log.Debug("Cache version %s unavailable, fill skipped: %v", key, err)
	}
	return v, false
}

func (c *LinkCache) setJSON(ctx context.Context, key string, value interface{}, v Version) {
	if !v.valid {
		return
	}

	stored, err := c.cache.SetJSONIfCurrent(ctx, key, value, v)
	if err != nil {
		c.log.Debug("Cache write %s failed: %v", key, err)
		return
	}
	if !stored {
		c.log.Debug("Cache write %s dropped, key invalidated during read", key)
	}
}

func (c *LinkCache) delete(ctx context.Context, keys ...string) {
	if err := c.cache.Delete(ctx, keys...); err != nil {
		c.log.Debug("Cache invalidation failed: %v", err)
	}
}
