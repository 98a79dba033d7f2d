package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/litmaphq/litmap/models"
)

// Cache stores search results in redis so repeated queries within the TTL do
// not hit the upstream APIs again. Cache failures degrade to a direct search.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: log.New(log.Writer(), "[CACHE] ", log.LstdFlags),
	}
}

// Wrap returns a Retriever that consults the cache before delegating.
func (c *Cache) Wrap(r Retriever) Retriever {
	return &cachedRetriever{cache: c, inner: r}
}

type cachedRetriever struct {
	cache *Cache
	inner Retriever
}

func (cr *cachedRetriever) Name() string { return cr.inner.Name() }

func (cr *cachedRetriever) Search(ctx context.Context, query string, maxResults int) ([]*models.Paper, error) {
	key := cacheKey(cr.inner.Name(), query, maxResults)

	if raw, err := cr.cache.client.Get(ctx, key).Bytes(); err == nil {
		var papers []*models.Paper
		if err := json.Unmarshal(raw, &papers); err == nil {
			cr.cache.logger.Printf("cache hit for %s %q (%d papers)", cr.inner.Name(), query, len(papers))
			return papers, nil
		}
	}

	papers, err := cr.inner.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(papers); err == nil {
		if err := cr.cache.client.Set(ctx, key, raw, cr.cache.ttl).Err(); err != nil {
			cr.cache.logger.Printf("cache write failed for %s: %v", cr.inner.Name(), err)
		}
	}
	return papers, nil
}

func cacheKey(source, query string, maxResults int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d", source, query, maxResults)))
	return "litmap:retrieval:" + source + ":" + hex.EncodeToString(sum[:16])
}
