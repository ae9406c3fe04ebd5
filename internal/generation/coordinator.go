package generation

import (
	"context"

	"github.com/tphakala/menulens/internal/errors"
)

// Coordinator deduplicates concurrent requests for a key. Exactly one
// caller per record wins and must publish the outcome through the cache;
// every other caller waits on the same record.
type Coordinator struct {
	cache *Cache
}

// NewCoordinator creates a coordinator over cache.
func NewCoordinator(cache *Cache) *Coordinator {
	return &Coordinator{cache: cache}
}

// Join returns the record for key. winner is true for the one caller that
// created it and is therefore responsible for completing or failing it.
func (c *Coordinator) Join(key Key) (rec *Record, winner bool) {
	return c.cache.Begin(key)
}

// Wait blocks until rec is terminal or ctx is done. Giving up leaves the
// record and its other waiters untouched.
func (c *Coordinator) Wait(ctx context.Context, rec *Record) (Artifact, error) {
	select {
	case <-rec.Done():
		return rec.Outcome()
	default:
	}

	rec.waiters.Add(1)
	defer rec.waiters.Add(-1)

	select {
	case <-rec.Done():
		return rec.Outcome()
	case <-ctx.Done():
		return Artifact{}, errors.Timeout("generation", "wait for "+rec.Key().String(), ctx.Err())
	}
}
