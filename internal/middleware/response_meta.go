package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "response_meta"
	cacheHitKey     = "cache_hit"
	elapsedKey      = "processing_time_ms"

	// CacheHeader mirrors the cache_hit meta flag for clients and proxies
	// that never parse the body.
	CacheHeader = "X-Cache"
)

type responseMeta struct {
	start  time.Time
	values map[string]interface{}
}

// WithResponseMeta starts the per-request meta block rendered into the
// response envelope.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, &responseMeta{start: time.Now(), values: map[string]interface{}{}})
		c.Next()
	}
}

// SetCacheHit records whether the payload came from the catalog cache.
func SetCacheHit(c *gin.Context, hit bool) {
	metaFor(c).values[cacheHitKey] = hit
	if c == nil {
		return
	}
	if hit {
		c.Header(CacheHeader, "HIT")
	} else {
		c.Header(CacheHeader, "MISS")
	}
}

// SetMeta stores an arbitrary metadata entry for the current response.
func SetMeta(c *gin.Context, key string, value interface{}) {
	metaFor(c).values[key] = value
}

// ExtractMeta returns the meta block, stamping the time spent so far unless a
// handler already recorded its own.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	raw, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	meta, ok := raw.(*responseMeta)
	if !ok {
		return nil
	}
	if _, set := meta.values[elapsedKey]; !set {
		meta.values[elapsedKey] = time.Since(meta.start).Milliseconds()
	}
	return meta.values
}

func metaFor(c *gin.Context) *responseMeta {
	if c == nil {
		return &responseMeta{start: time.Now(), values: map[string]interface{}{}}
	}
	if raw, ok := c.Get(responseMetaKey); ok {
		if meta, ok := raw.(*responseMeta); ok {
			return meta
		}
	}
	meta := &responseMeta{start: time.Now(), values: map[string]interface{}{}}
	c.Set(responseMetaKey, meta)
	return meta
}
