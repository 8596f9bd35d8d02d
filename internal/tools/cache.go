package tools

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultCacheMaxSize = 256
	defaultCacheTTL     = 10 * time.Minute
)

// CacheConfig configures the tool result cache
type CacheConfig struct {
	// MaxSize is the maximum number of entries; negative disables caching
	MaxSize int
	TTL     time.Duration
	// ExcludeTools lists tool names whose results are never cached
	ExcludeTools []string
}

// DefaultCacheConfig excludes document search, whose results depend on
// the session bound at construction rather than the call arguments.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxSize:      defaultCacheMaxSize,
		TTL:          defaultCacheTTL,
		ExcludeTools: []string{DocumentSearchName},
	}
}

type cacheEntry struct {
	content  string
	storedAt time.Time
}

// resultCache holds successful results keyed by tool name and canonical arguments
type resultCache struct {
	cache   *lru.Cache[string, cacheEntry]
	ttl     time.Duration
	exclude map[string]bool
	now     func() time.Time
}

func newResultCache(cfg CacheConfig) *resultCache {
	if cfg.MaxSize < 0 {
		return nil
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = defaultCacheMaxSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	cache, err := lru.New[string, cacheEntry](cfg.MaxSize)
	if err != nil {
		return nil
	}
	exclude := make(map[string]bool, len(cfg.ExcludeTools))
	for _, name := range cfg.ExcludeTools {
		exclude[strings.TrimSpace(name)] = true
	}
	return &resultCache{cache: cache, ttl: cfg.TTL, exclude: exclude, now: time.Now}
}

func (c *resultCache) get(tool, key string) (string, bool) {
	if c == nil || c.exclude[tool] {
		return "", false
	}
	entry, ok := c.cache.Get(key)
	if !ok {
		return "", false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		c.cache.Remove(key)
		return "", false
	}
	return entry.content, true
}

func (c *resultCache) put(tool, key, content string) {
	if c == nil || c.exclude[tool] {
		return
	}
	c.cache.Add(key, cacheEntry{content: content, storedAt: c.now()})
}

// cacheKey canonicalizes arguments so key order and whitespace don't matter.
// json.Marshal sorts map keys.
func cacheKey(tool string, args json.RawMessage) string {
	canonical := "{}"
	if len(args) > 0 {
		var v interface{}
		if err := json.Unmarshal(args, &v); err == nil {
			if data, err := json.Marshal(v); err == nil {
				canonical = string(data)
			}
		} else {
			canonical = string(args)
		}
	}
	return fmt.Sprintf("%s:%s", tool, canonical)
}
