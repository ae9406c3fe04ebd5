package translate

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/menulens/internal/errors"
)

// DefaultCacheTTL is used when NewCached gets a non-positive ttl
const DefaultCacheTTL = 24 * time.Hour

// Cached memoizes translations per (target, text). Only misses are sent to
// the wrapped translator, in a single batch.
type Cached struct {
	next  Translator
	cache *cache.Cache
}

// NewCached wraps next with a TTL memo.
func NewCached(next Translator, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{next: next, cache: cache.New(ttl, ttl*2)}
}

// Name reports the wrapped translator's name.
func (c *Cached) Name() string { return c.next.Name() }

// Len returns the number of memoized entries, expired ones included until
// the next cleanup.
func (c *Cached) Len() int { return c.cache.ItemCount() }

// Translate implements Translator.
func (c *Cached) Translate(ctx context.Context, texts []string, target string) ([]string, error) {
	out := make([]string, len(texts))
	var missing []string
	var missingAt []int
	for i, text := range texts {
		if v, ok := c.cache.Get(cacheKey(target, text)); ok {
			out[i] = v.(string)
			continue
		}
		missing = append(missing, text)
		missingAt = append(missingAt, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	translated, err := c.next.Translate(ctx, missing, target)
	if err != nil {
		return nil, err
	}
	if len(translated) != len(missing) {
		return nil, errors.ProviderUnavailable("translate", c.next.Name(),
			fmt.Errorf("got %d translations for %d texts", len(translated), len(missing)))
	}
	for j, i := range missingAt {
		out[i] = translated[j]
		c.cache.Set(cacheKey(target, missing[j]), translated[j], cache.DefaultExpiration)
	}
	return out, nil
}

func cacheKey(target, text string) string {
	return normalizeTarget(target) + "\x00" + text
}
