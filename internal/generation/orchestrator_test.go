package generation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/menu"
)

func outcomeCount(t *testing.T, env *testEnv, outcome string) float64 {
	t.Helper()
	return counterValue(t, env, "menulens_generation_requests_total", "outcome", outcome)
}

// counterValue reads a counter from the env registry, 0 when absent
func counterValue(t *testing.T, env *testEnv, name string, labelPairs ...string) float64 {
	t.Helper()
	families, err := env.registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metricLoop:
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for i := 0; i+1 < len(labelPairs); i += 2 {
				if labels[labelPairs[i]] != labelPairs[i+1] {
					continue metricLoop
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestConcurrentRequestsShareOneGeneration(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{gate: make(chan struct{})}
	env := newTestEnv(t, gen)

	const callers = 50
	var wg sync.WaitGroup
	results := make([]Artifact, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = env.orch.Request(t.Context(), "kung-pao-chicken", "v1", RequestOptions{})
		}()
	}

	key := Key{Slug: "kung-pao-chicken", Style: "v1"}
	require.Eventually(t, func() bool {
		rec, ok := env.cache.Get(key)
		return ok && rec.Waiters() == callers
	}, 5*time.Second, time.Millisecond)
	close(gen.gate)
	wg.Wait()

	assert.Equal(t, int64(1), gen.calls.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	assert.Equal(t, "mem://kung-pao-chicken:v1:e0", results[0].URL)
	assert.InDelta(t, 1, outcomeCount(t, env, "generated"), 0)
	assert.InDelta(t, callers-1, outcomeCount(t, env, "joined"), 0)
}

func TestSequentialRequestsHitCache(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{}
	env := newTestEnv(t, gen)

	first, err := env.orch.Request(t.Context(), "mapo-tofu", "", RequestOptions{})
	require.NoError(t, err)
	second, err := env.orch.Request(t.Context(), "mapo-tofu", "", RequestOptions{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), gen.calls.Load())
	assert.Equal(t, "v1", first.Style)
	assert.Equal(t, "scripted", first.Provider)
	assert.InDelta(t, 1, outcomeCount(t, env, "cache_hit"), 0)
}

func TestTransientFailureIsRetriedOnce(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{errs: []error{transientErr()}}
	env := newTestEnv(t, gen)

	artifact, err := env.orch.Request(t.Context(), "clam-tofu-soup", "v1", RequestOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, artifact.URL)
	assert.Equal(t, int64(2), gen.calls.Load())

	rec, ok := env.cache.Get(Key{Slug: "clam-tofu-soup", Style: "v1"})
	require.True(t, ok)
	assert.Equal(t, StateSucceeded, rec.State())
	assert.InDelta(t, 1, counterValue(t, env, "menulens_generation_retries_total"), 0)
}

func TestTransientFailureTwiceFails(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{errs: []error{transientErr(), transientErr()}}
	env := newTestEnv(t, gen)

	_, err := env.orch.Request(t.Context(), "clam-tofu-soup", "v1", RequestOptions{})
	require.Error(t, err)
	assert.Equal(t, int64(2), gen.calls.Load())
	assert.Equal(t, errors.KindGenerationFailed, errors.KindOf(err))
	assert.Equal(t, errors.ClassTransient, errors.ClassOf(err))
	assert.True(t, errors.Retryable(err))
}

func TestPermanentFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{errs: []error{permanentErr()}}
	env := newTestEnv(t, gen)
	key := Key{Slug: "peanut-tofu-soup", Style: "v1"}

	_, err := env.orch.Request(t.Context(), key.Slug, "v1", RequestOptions{})
	require.Error(t, err)
	assert.Equal(t, int64(1), gen.calls.Load())
	assert.Equal(t, errors.ClassPermanent, errors.ClassOf(err))
	assert.False(t, errors.Retryable(err))

	failed, ok := env.cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, StateFailed, failed.State())

	// a fresh request starts a new attempt instead of reviving the failed one
	_, err = env.orch.Request(t.Context(), key.Slug, "v1", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), gen.calls.Load())
	current, _ := env.cache.Get(key)
	assert.NotEqual(t, failed.AttemptID(), current.AttemptID())
	assert.Equal(t, StateFailed, failed.State())
}

func TestUnclassifiedErrorIsPermanent(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{errs: []error{errors.NewStd("bad prompt")}}
	env := newTestEnv(t, gen)

	_, err := env.orch.Request(t.Context(), "noodles", "v1", RequestOptions{})
	require.Error(t, err)
	assert.Equal(t, int64(1), gen.calls.Load())
	assert.Equal(t, errors.KindGenerationFailed, errors.KindOf(err))
}

func TestGeneratorTimeoutIsRetried(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{errs: []error{fmt.Errorf("gemini call: %w", context.DeadlineExceeded)}}
	env := newTestEnv(t, gen)

	_, err := env.orch.Request(t.Context(), "mapo-tofu", "v1", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), gen.calls.Load())
	assert.InDelta(t, 1, counterValue(t, env, "menulens_generation_retries_total"), 0)
}

func TestWaiterTimeoutLeavesGenerationRunning(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{gate: make(chan struct{})}
	env := newTestEnv(t, gen)
	key := Key{Slug: "fish-flavored-pork", Style: "v1"}

	winnerDone := make(chan error, 1)
	go func() {
		_, err := env.orch.Request(t.Context(), key.Slug, "v1", RequestOptions{})
		winnerDone <- err
	}()
	require.Eventually(t, func() bool { return gen.calls.Load() == 1 }, 5*time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err := env.orch.Request(ctx, key.Slug, "v1", RequestOptions{})
	require.Error(t, err)
	assert.Equal(t, errors.KindTimeout, errors.KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	rec, _ := env.cache.Get(key)
	assert.Equal(t, StatePending, rec.State())

	close(gen.gate)
	require.NoError(t, <-winnerDone)
	assert.Equal(t, StateSucceeded, rec.State())
	assert.Equal(t, int64(1), gen.calls.Load())
}

func TestWinnerCancellationDoesNotAbortGeneration(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{gate: make(chan struct{})}
	env := newTestEnv(t, gen)
	key := Key{Slug: "kung-pao-chicken", Style: "v1"}

	ctx, cancel := context.WithCancel(t.Context())
	winnerDone := make(chan error, 1)
	go func() {
		_, err := env.orch.Request(ctx, key.Slug, "v1", RequestOptions{})
		winnerDone <- err
	}()
	require.Eventually(t, func() bool { return gen.calls.Load() == 1 }, 5*time.Second, time.Millisecond)

	cancel()
	err := <-winnerDone
	require.Error(t, err)
	assert.Equal(t, errors.KindTimeout, errors.KindOf(err))

	close(gen.gate)
	rec, _ := env.cache.Get(key)
	select {
	case <-rec.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("generation did not finish")
	}
	assert.Equal(t, StateSucceeded, rec.State())

	_, err = env.orch.Request(t.Context(), key.Slug, "v1", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen.calls.Load())
}

func TestForceMintsNewEpoch(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{}
	env := newTestEnv(t, gen)

	first, err := env.orch.Request(t.Context(), "mapo-tofu", "v1", RequestOptions{})
	require.NoError(t, err)
	forced, err := env.orch.Request(t.Context(), "mapo-tofu", "v1", RequestOptions{Force: true})
	require.NoError(t, err)
	again, err := env.orch.Request(t.Context(), "mapo-tofu", "v1", RequestOptions{})
	require.NoError(t, err)

	assert.Equal(t, uint64(0), first.Epoch)
	assert.Equal(t, uint64(1), forced.Epoch)
	assert.NotEqual(t, first.URL, forced.URL)
	assert.Equal(t, forced, again)
	assert.Equal(t, int64(2), gen.calls.Load())
}

func TestStyleVersionIsPartOfKey(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{}
	env := newTestEnv(t, gen)

	a, err := env.orch.Request(t.Context(), "mapo-tofu", "v1", RequestOptions{})
	require.NoError(t, err)
	b, err := env.orch.Request(t.Context(), "mapo-tofu", "v2", RequestOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, a.Key, b.Key)
	assert.Equal(t, int64(2), gen.calls.Load())
}

func TestRateLimitedRequest(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{}
	env := newTestEnv(t, gen, withLimiter(1, PolicyFailFast))

	_, err := env.orch.Request(t.Context(), "dish-one", "v1", RequestOptions{})
	require.NoError(t, err)

	_, err = env.orch.Request(t.Context(), "dish-two", "v1", RequestOptions{})
	require.Error(t, err)
	assert.Equal(t, errors.KindRateLimited, errors.KindOf(err))
	assert.Positive(t, errors.RetryAfterOf(err))
	assert.Equal(t, int64(1), gen.calls.Load())
	assert.InDelta(t, 1, outcomeCount(t, env, "rate_limited"), 0)

	// cached keys are still served without a permit
	_, err = env.orch.Request(t.Context(), "dish-one", "v1", RequestOptions{})
	require.NoError(t, err)
}

func TestInvalidKey(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &scriptedGenerator{})
	_, err := env.orch.Request(t.Context(), "", "v1", RequestOptions{})
	require.Error(t, err)
	assert.Equal(t, errors.KindInvalidRequest, errors.KindOf(err))

	_, err = env.orch.Request(t.Context(), "dish", "v:1", RequestOptions{})
	require.Error(t, err)
	assert.Equal(t, errors.KindInvalidRequest, errors.KindOf(err))

	_, err = env.orch.Request(t.Context(), "dish", "../../escaped", RequestOptions{})
	require.Error(t, err)
	assert.Equal(t, errors.KindInvalidRequest, errors.KindOf(err))
	assert.Equal(t, int64(0), env.gen.calls.Load())
}

func TestPromptUsesRememberedNames(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{}
	env := newTestEnv(t, gen)
	translated := "Kung Pao Chicken Set"
	env.orch.Remember(&menu.Menu{Dishes: []menu.Dish{{
		OriginalName:   "宫保鸡丁套餐",
		TranslatedName: &translated,
		Slug:           "宫保鸡丁套餐",
	}}})

	artifact, err := env.orch.Request(t.Context(), "宫保鸡丁套餐", "v1", RequestOptions{})
	require.NoError(t, err)
	assert.Contains(t, artifact.Prompt, "宫保鸡丁套餐")
	assert.Contains(t, artifact.Prompt, "Kung Pao Chicken Set")
}

func TestWarmMenu(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{failOn: map[string]error{"bad-dish": permanentErr()}}
	env := newTestEnv(t, gen)

	m := &menu.Menu{Dishes: []menu.Dish{
		{OriginalName: "Mapo Tofu", Slug: "mapo-tofu"},
		{OriginalName: "Bad Dish", Slug: "bad-dish"},
		{OriginalName: "Dan Dan Noodles", Slug: "dan-dan-noodles"},
	}}
	results := env.orch.WarmMenu(t.Context(), m, "")
	require.Len(t, results, 3)

	assert.Equal(t, "mapo-tofu", results[0].Slug)
	require.NoError(t, results[0].Err)
	assert.NotEmpty(t, results[0].Artifact.URL)
	require.Error(t, results[1].Err)
	assert.Equal(t, errors.KindGenerationFailed, errors.KindOf(results[1].Err))
	require.NoError(t, results[2].Err)
	assert.Equal(t, int64(3), gen.calls.Load())

	// warming again is served from cache except for the failed dish
	env.orch.WarmMenu(t.Context(), m, "")
	assert.Equal(t, int64(4), gen.calls.Load())
}

func TestCloseFailsPendingRequests(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{gate: make(chan struct{})}
	env := newTestEnv(t, gen)

	done := make(chan error, 1)
	go func() {
		_, err := env.orch.Request(t.Context(), "slow-dish", "v1", RequestOptions{})
		done <- err
	}()
	require.Eventually(t, func() bool { return gen.calls.Load() == 1 }, 5*time.Second, time.Millisecond)

	require.NoError(t, env.orch.Close())
	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("request not released by Close")
	}

	_, err := env.orch.Request(t.Context(), "other-dish", "v1", RequestOptions{})
	require.ErrorIs(t, err, ErrCacheClosed)
	require.NoError(t, env.orch.Close())
}
