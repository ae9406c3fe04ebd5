package generation

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/menulens/internal/observability/metrics"
)

func newTestCache(store Store) *Cache {
	return NewCache(CacheOptions{Store: store, Logger: testLogger()})
}

func TestKeyString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "kung-pao-chicken:v1:e0", Key{Slug: "kung-pao-chicken", Style: "v1"}.String())
	assert.Equal(t, "x:watercolor:e3", Key{Slug: "x", Style: "watercolor", Epoch: 3}.String())
	require.Error(t, Key{Style: "v1"}.Validate())
	require.Error(t, Key{Slug: "x"}.Validate())
	require.Error(t, Key{Slug: "x", Style: "a:b"}.Validate())
	require.NoError(t, Key{Slug: "x", Style: "v1"}.Validate())
}

func TestKeyValidateRejectsPathSegments(t *testing.T) {
	t.Parallel()

	bad := []Key{
		{Slug: "..", Style: "v1"},
		{Slug: "a/b", Style: "v1"},
		{Slug: `a\b`, Style: "v1"},
		{Slug: "mapo tofu", Style: "v1"},
		{Slug: "mapo-tofu", Style: "../../escaped"},
		{Slug: "mapo-tofu", Style: ".hidden"},
		{Slug: "mapo-tofu", Style: "v1/x"},
		{Slug: strings.Repeat("a", maxKeyPartLen+1), Style: "v1"},
	}
	for _, k := range bad {
		assert.Error(t, k.Validate(), k.String())
	}
	for _, k := range []Key{
		{Slug: "宫保鸡丁套餐", Style: "v1"},
		{Slug: "moms-dan-dan-noodles", Style: "watercolor_v2.1"},
	} {
		assert.NoError(t, k.Validate(), k.String())
	}
}

func TestBeginSingleWinner(t *testing.T) {
	t.Parallel()

	c := newTestCache(nil)
	key := Key{Slug: "mapo-tofu", Style: "v1"}

	const callers = 100
	var winners atomic.Int32
	records := make([]*Record, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, created := c.Begin(key)
			if created {
				winners.Add(1)
			}
			records[i] = rec
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	for _, rec := range records {
		assert.Same(t, records[0], rec)
	}
	assert.Equal(t, StatePending, records[0].State())
	assert.Equal(t, 1, c.Len())
}

func TestTerminalTransitionsHappenOnce(t *testing.T) {
	t.Parallel()

	c := newTestCache(nil)
	key := Key{Slug: "mapo-tofu", Style: "v1"}
	rec, created := c.Begin(key)
	require.True(t, created)

	require.NoError(t, c.Complete(key, Artifact{URL: "mem://1"}))
	assert.ErrorIs(t, c.Complete(key, Artifact{URL: "mem://2"}), ErrAlreadyTerminal)
	assert.ErrorIs(t, c.Fail(key, fmt.Errorf("late failure")), ErrAlreadyTerminal)

	assert.Equal(t, StateSucceeded, rec.State())
	artifact, err := rec.Outcome()
	require.NoError(t, err)
	assert.Equal(t, "mem://1", artifact.URL)
	assert.Equal(t, "mapo-tofu:v1:e0", artifact.Key)
	assert.False(t, rec.CompletedAt().Before(rec.CreatedAt()))

	again, created := c.Begin(key)
	assert.False(t, created)
	assert.Same(t, rec, again)
}

func TestFailedRecordIsReplaced(t *testing.T) {
	t.Parallel()

	c := newTestCache(nil)
	key := Key{Slug: "mapo-tofu", Style: "v1"}
	first, _ := c.Begin(key)
	cause := fmt.Errorf("provider down")
	require.NoError(t, c.Fail(key, cause))
	assert.ErrorIs(t, c.Fail(key, cause), ErrAlreadyTerminal)

	_, err := first.Outcome()
	assert.ErrorIs(t, err, cause)

	second, created := c.Begin(key)
	require.True(t, created)
	assert.NotSame(t, first, second)
	assert.NotEqual(t, first.AttemptID(), second.AttemptID())
	assert.Equal(t, StatePending, second.State())
	assert.Equal(t, StateFailed, first.State())
}

func TestCompleteUnknownKey(t *testing.T) {
	t.Parallel()

	c := newTestCache(nil)
	assert.ErrorIs(t, c.Complete(Key{Slug: "a", Style: "v1"}, Artifact{}), ErrUnknownKey)
	assert.ErrorIs(t, c.Fail(Key{Slug: "a", Style: "v1"}, fmt.Errorf("x")), ErrUnknownKey)

	c.Begin(Key{Slug: "a", Style: "v1"})
	require.Error(t, c.Fail(Key{Slug: "a", Style: "v1"}, nil))
}

func TestEpochs(t *testing.T) {
	t.Parallel()

	c := newTestCache(nil)
	assert.Equal(t, uint64(0), c.CurrentEpoch("a", "v1").Epoch)
	assert.Equal(t, uint64(1), c.NextEpoch("a", "v1").Epoch)
	assert.Equal(t, uint64(2), c.NextEpoch("a", "v1").Epoch)
	assert.Equal(t, uint64(2), c.CurrentEpoch("a", "v1").Epoch)
	assert.Equal(t, uint64(0), c.CurrentEpoch("a", "v2").Epoch)
	assert.Equal(t, uint64(0), c.CurrentEpoch("b", "v1").Epoch)
}

func TestWaitersObserveTerminalState(t *testing.T) {
	t.Parallel()

	c := newTestCache(nil)
	coord := NewCoordinator(c)
	key := Key{Slug: "mapo-tofu", Style: "v1"}
	rec, winner := coord.Join(key)
	require.True(t, winner)

	const waiters = 20
	var wg sync.WaitGroup
	urls := make([]string, waiters)
	for i := range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			joined, w := coord.Join(key)
			assert.False(t, w)
			a, err := coord.Wait(t.Context(), joined)
			assert.NoError(t, err)
			urls[i] = a.URL
		}()
	}
	require.Eventually(t, func() bool { return rec.Waiters() == waiters }, 5*time.Second, time.Millisecond)
	require.NoError(t, c.Complete(key, Artifact{URL: "mem://done"}))
	wg.Wait()

	for _, u := range urls {
		assert.Equal(t, "mem://done", u)
	}
	assert.Equal(t, int64(0), rec.Waiters())
}

func TestWarmLoadsStoredArtifacts(t *testing.T) {
	t.Parallel()

	store := &memoryStore{artifacts: []Artifact{
		{Slug: "mapo-tofu", Style: "v1", Epoch: 0, URL: "/artifacts/mapo-tofu/v1-e0.png"},
		{Slug: "mapo-tofu", Style: "v1", Epoch: 2, URL: "/artifacts/mapo-tofu/v1-e2.png"},
		{Slug: "", Style: "v1", URL: "/broken"},
	}}
	c := newTestCache(store)

	n, err := c.Warm(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, uint64(2), c.CurrentEpoch("mapo-tofu", "v1").Epoch)

	rec, created := c.Begin(Key{Slug: "mapo-tofu", Style: "v1", Epoch: 2})
	assert.False(t, created)
	a, err := rec.Outcome()
	require.NoError(t, err)
	assert.Equal(t, "/artifacts/mapo-tofu/v1-e2.png", a.URL)
	assert.Equal(t, "mapo-tofu:v1:e2", a.Key)
}

func TestWarmStoreError(t *testing.T) {
	t.Parallel()

	c := newTestCache(&memoryStore{loadErr: fmt.Errorf("database is locked")})
	_, err := c.Warm(t.Context())
	require.Error(t, err)

	n, err := newTestCache(nil).Warm(t.Context())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCompleteWritesThrough(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	c := newTestCache(store)
	key := Key{Slug: "mapo-tofu", Style: "v1"}
	c.Begin(key)
	require.NoError(t, c.Complete(key, Artifact{URL: "mem://x"}))

	require.Len(t, store.artifacts, 1)
	assert.Equal(t, "mapo-tofu:v1:e0", store.artifacts[0].Key)
	assert.False(t, store.artifacts[0].CreatedAt.IsZero())
}

func TestPersistenceErrorIsCounted(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := metrics.NewGenerationMetrics(registry)
	require.NoError(t, err)
	c := NewCache(CacheOptions{Store: &memoryStore{saveErr: fmt.Errorf("disk full")}, Metrics: m, Logger: testLogger()})

	key := Key{Slug: "mapo-tofu", Style: "v1"}
	c.Begin(key)
	// memory stays authoritative
	require.NoError(t, c.Complete(key, Artifact{URL: "mem://x"}))

	expected := `
# HELP menulens_generation_persistence_errors_total Total number of failures writing succeeded records to the datastore
# TYPE menulens_generation_persistence_errors_total counter
menulens_generation_persistence_errors_total 1
# HELP menulens_generation_cache_records Number of records held by the generation cache
# TYPE menulens_generation_cache_records gauge
menulens_generation_cache_records 1
`
	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"menulens_generation_persistence_errors_total", "menulens_generation_cache_records"))
}

func TestCloseFailsPending(t *testing.T) {
	t.Parallel()

	c := newTestCache(nil)
	pending, _ := c.Begin(Key{Slug: "a", Style: "v1"})
	done, _ := c.Begin(Key{Slug: "b", Style: "v1"})
	require.NoError(t, c.Complete(Key{Slug: "b", Style: "v1"}, Artifact{URL: "mem://b"}))

	require.NoError(t, c.Close())
	_, err := pending.Outcome()
	assert.ErrorIs(t, err, ErrCacheClosed)
	assert.Equal(t, StateSucceeded, done.State())

	rec, created := c.Begin(Key{Slug: "c", Style: "v1"})
	assert.False(t, created)
	assert.True(t, rec.Terminal())
	require.NoError(t, c.Close())
}
