package generation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/logger"
	"github.com/tphakala/menulens/internal/observability/metrics"
)

var (
	// ErrAlreadyTerminal is returned by Complete and Fail when the current
	// record for the key has already succeeded or failed.
	ErrAlreadyTerminal = errors.NewStd("generation record is already terminal")
	// ErrUnknownKey is returned by Complete and Fail for a key never begun.
	ErrUnknownKey = errors.NewStd("no generation record for key")
	// ErrCacheClosed fails records still pending at shutdown.
	ErrCacheClosed = errors.NewStd("generation cache closed")
)

const defaultPersistTimeout = 5 * time.Second

// Store persists succeeded artifacts across restarts.
type Store interface {
	SaveSucceeded(ctx context.Context, artifact Artifact) error
	LoadSucceeded(ctx context.Context) ([]Artifact, error)
}

// CacheOptions configures a Cache. All fields are optional.
type CacheOptions struct {
	Store          Store
	Metrics        *metrics.GenerationMetrics
	Logger         logger.Logger
	PersistTimeout time.Duration
}

// Cache maps keys to their current Record. It is the only place records
// are created or transitioned.
type Cache struct {
	mu      sync.Mutex
	records map[Key]*Record
	epochs  map[family]uint64
	closed  bool

	store          Store
	metrics        *metrics.GenerationMetrics
	log            logger.Logger
	persistTimeout time.Duration
	now            func() time.Time
}

// NewCache creates an empty cache.
func NewCache(opts CacheOptions) *Cache {
	c := &Cache{
		records:        make(map[Key]*Record),
		epochs:         make(map[family]uint64),
		store:          opts.Store,
		metrics:        opts.Metrics,
		log:            opts.Logger,
		persistTimeout: opts.PersistTimeout,
		now:            time.Now,
	}
	if c.log == nil {
		c.log = logger.Global().Module("generation")
	}
	if c.persistTimeout <= 0 {
		c.persistTimeout = defaultPersistTimeout
	}
	return c
}

// Get returns the current record for key.
func (c *Cache) Get(key Key) (*Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[key]
	return rec, ok
}

// Begin returns the current record for key, inserting a new Pending one
// when there is none or the current one failed. created is true for
// exactly one caller per inserted record.
func (c *Cache) Begin(key Key) (rec *Record, created bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		rec = newRecord(key, c.now())
		rec.finish(StateFailed, Artifact{}, ErrCacheClosed, c.now())
		return rec, false
	}
	if existing, ok := c.records[key]; ok && existing.State() != StateFailed {
		return existing, false
	}

	rec = newRecord(key, c.now())
	c.records[key] = rec
	c.metrics.SetCacheRecords(len(c.records))
	return rec, true
}

// Complete marks the current record for key as succeeded and writes it
// through to the store.
func (c *Cache) Complete(key Key, artifact Artifact) error {
	rec, err := c.current(key)
	if err != nil {
		return err
	}
	artifact.Key = key.String()
	artifact.Slug = key.Slug
	artifact.Style = key.Style
	artifact.Epoch = key.Epoch
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = c.now()
	}
	if !rec.finish(StateSucceeded, artifact, nil, c.now()) {
		return ErrAlreadyTerminal
	}
	c.persist(artifact)
	return nil
}

// Fail marks the current record for key as failed with cause.
func (c *Cache) Fail(key Key, cause error) error {
	if cause == nil {
		return fmt.Errorf("fail %s: nil cause", key)
	}
	rec, err := c.current(key)
	if err != nil {
		return err
	}
	if !rec.finish(StateFailed, Artifact{}, cause, c.now()) {
		return ErrAlreadyTerminal
	}
	return nil
}

func (c *Cache) current(key Key) (*Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[key]
	if !ok {
		return nil, ErrUnknownKey
	}
	return rec, nil
}

// CurrentEpoch returns the key requests for (slug, style) resolve to.
func (c *Cache) CurrentEpoch(slug, style string) Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := family{slug: slug, style: style}
	return Key{Slug: slug, Style: style, Epoch: c.epochs[f]}
}

// NextEpoch advances (slug, style) to a fresh epoch and returns its key.
// Records of earlier epochs are kept until Close.
func (c *Cache) NextEpoch(slug, style string) Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := family{slug: slug, style: style}
	c.epochs[f]++
	return Key{Slug: slug, Style: style, Epoch: c.epochs[f]}
}

// Len returns the number of records held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Warm loads succeeded artifacts from the store so a restart does not
// generate them again. Epoch counters resume at the highest loaded epoch.
func (c *Cache) Warm(ctx context.Context) (int, error) {
	if c.store == nil {
		return 0, nil
	}
	artifacts, err := c.store.LoadSucceeded(ctx)
	if err != nil {
		return 0, errors.New(err).
			Component("generation").
			Category(errors.CategoryDatabase).
			Context("operation", "load_succeeded").
			Build()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	loaded := 0
	for i := range artifacts {
		a := &artifacts[i]
		key := Key{Slug: a.Slug, Style: a.Style, Epoch: a.Epoch}
		if key.Validate() != nil {
			c.log.Warn("skipping stored artifact with invalid key", logger.String("key", a.Key))
			continue
		}
		if rec, ok := c.records[key]; ok && rec.State() != StateFailed {
			continue
		}
		a.Key = key.String()
		c.records[key] = newSucceededRecord(key, *a, c.now())
		if f := key.family(); key.Epoch > c.epochs[f] {
			c.epochs[f] = key.Epoch
		}
		loaded++
	}
	c.metrics.SetCacheRecords(len(c.records))
	c.log.Info("loaded generated images from store", logger.Int("count", loaded))
	return loaded, nil
}

// Close fails every pending record with ErrCacheClosed so waiters return.
// Begin keeps answering afterwards with failed records.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, rec := range c.records {
		rec.finish(StateFailed, Artifact{}, ErrCacheClosed, c.now())
	}
	return nil
}

func (c *Cache) persist(artifact Artifact) {
	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.persistTimeout)
	defer cancel()
	if err := c.store.SaveSucceeded(ctx, artifact); err != nil {
		c.metrics.RecordPersistenceError()
		c.log.Error("failed to persist generated image",
			logger.String("key", artifact.Key),
			logger.Error(err))
	}
}
