package embedding

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"zara-assistant-be/pkg/metrics"
)

// Cache stores embeddings by key. Misses and backend errors both read as a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, v []float32)
}

// CacheKey derives a compact key from the model name and the exact text.
func CacheKey(model, text string) string {
	return "emb:" + model + ":" + strconv.FormatUint(xxhash.Sum64String(text), 16)
}

// TieredCache keeps a process-local L1 in front of an optional Redis L2 that
// is shared by every instance.
type TieredCache struct {
	local    *gocache.Cache
	rdb      *redis.Client
	redisTTL time.Duration
}

func NewTieredCache(rdb *redis.Client, localTTL, redisTTL time.Duration) *TieredCache {
	return &TieredCache{
		local:    gocache.New(localTTL, 10*time.Minute),
		rdb:      rdb,
		redisTTL: redisTTL,
	}
}

func (c *TieredCache) Get(ctx context.Context, key string) ([]float32, bool) {
	if v, ok := c.local.Get(key); ok {
		metrics.EmbeddingCacheTotal.WithLabelValues("l1", "hit").Inc()
		return v.([]float32), true
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("l1", "miss").Inc()

	if c.rdb == nil {
		return nil, false
	}

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		metrics.EmbeddingCacheTotal.WithLabelValues("l2", "miss").Inc()
		return nil, false
	}

	var v []float32
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("l2", "hit").Inc()
	c.local.SetDefault(key, v)
	return v, true
}

func (c *TieredCache) Set(ctx context.Context, key string, v []float32) {
	c.local.SetDefault(key, v)

	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	// Best effort; a failed write only costs a future recompute.
	_ = c.rdb.Set(ctx, key, raw, c.redisTTL).Err()
}
