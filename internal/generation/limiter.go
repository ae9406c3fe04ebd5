package generation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/logger"
	"github.com/tphakala/menulens/internal/observability/metrics"
)

// Policy decides what Acquire does when the budget is spent.
type Policy string

const (
	// PolicyBlock waits up to MaxWait for a permit.
	PolicyBlock Policy = "block"
	// PolicyFailFast returns RateLimited immediately.
	PolicyFailFast Policy = "failfast"
)

// LimiterConfig configures a Limiter.
type LimiterConfig struct {
	Budget  int           // generation starts per window
	Window  time.Duration // rolling window length
	Policy  Policy
	MaxWait time.Duration // upper bound of a blocking Acquire

	// MaxConcurrent caps permits held at once, 0 means no cap
	MaxConcurrent int
}

// Limiter is the process-wide generation budget: at most Budget permits are
// granted in any rolling Window, and optionally at most MaxConcurrent are
// held at once.
type Limiter struct {
	mu     sync.Mutex
	grants []time.Time // grant times inside the current window, ascending

	budget  int
	window  time.Duration
	policy  Policy
	maxWait time.Duration
	slots   *semaphore.Weighted

	metrics   *metrics.GenerationMetrics
	log       logger.Logger
	warnLimit rate.Sometimes
	now       func() time.Time
}

// NewLimiter creates a limiter. Non-positive budget or window default to 10
// per minute.
func NewLimiter(cfg LimiterConfig, m *metrics.GenerationMetrics, log logger.Logger) *Limiter {
	l := &Limiter{
		budget:    cfg.Budget,
		window:    cfg.Window,
		policy:    cfg.Policy,
		maxWait:   cfg.MaxWait,
		metrics:   m,
		log:       log,
		warnLimit: rate.Sometimes{Interval: 10 * time.Second},
		now:       time.Now,
	}
	if l.budget <= 0 {
		l.budget = 10
	}
	if l.window <= 0 {
		l.window = time.Minute
	}
	if l.policy == "" {
		l.policy = PolicyBlock
	}
	if l.maxWait <= 0 {
		l.maxWait = 30 * time.Second
	}
	if cfg.MaxConcurrent > 0 {
		l.slots = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	if l.log == nil {
		l.log = logger.Global().Module("generation")
	}
	return l
}

// Permit is one granted generation start.
type Permit struct {
	limiter  *Limiter
	released atomic.Bool
}

// Release frees the concurrency slot held by the permit. The window budget
// is not refunded. Release is idempotent and safe on a nil permit.
func (p *Permit) Release() {
	if p == nil || !p.released.CompareAndSwap(false, true) {
		return
	}
	if p.limiter.slots != nil {
		p.limiter.slots.Release(1)
	}
}

// Acquire returns a permit, or RateLimited when the budget stays exhausted
// under the configured policy. A cancelled ctx yields a Timeout error.
func (l *Limiter) Acquire(ctx context.Context) (*Permit, error) {
	start := l.now()
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.acquireSlot(ctx, waitCtx); err != nil {
		l.reject(start)
		return nil, err
	}

	for {
		wait := l.tryGrant(l.now())
		if wait == 0 {
			l.metrics.RecordPermit(true, l.now().Sub(start).Seconds())
			return &Permit{limiter: l}, nil
		}

		waited := l.now().Sub(start)
		if l.policy == PolicyFailFast || waited+wait > l.maxWait {
			l.releaseSlot()
			l.reject(start)
			return nil, errors.RateLimited(wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			l.releaseSlot()
			l.reject(start)
			return nil, errors.Timeout("generation", "wait for rate limit permit", ctx.Err())
		}
	}
}

func (l *Limiter) acquireSlot(ctx, waitCtx context.Context) error {
	if l.slots == nil {
		return nil
	}
	if l.policy == PolicyFailFast {
		if !l.slots.TryAcquire(1) {
			return errors.RateLimited(l.window / time.Duration(l.budget))
		}
		return nil
	}
	if err := l.slots.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return errors.Timeout("generation", "wait for generation slot", ctx.Err())
		}
		return errors.RateLimited(l.window / time.Duration(l.budget))
	}
	return nil
}

func (l *Limiter) releaseSlot() {
	if l.slots != nil {
		l.slots.Release(1)
	}
}

// tryGrant records a grant at now and returns 0, or returns how long until
// the oldest grant leaves the window.
func (l *Limiter) tryGrant(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	keep := 0
	for keep < len(l.grants) && !l.grants[keep].After(cutoff) {
		keep++
	}
	l.grants = l.grants[keep:]

	if len(l.grants) < l.budget {
		l.grants = append(l.grants, now)
		return 0
	}
	wait := l.grants[0].Add(l.window).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait
}

func (l *Limiter) reject(start time.Time) {
	l.metrics.RecordPermit(false, l.now().Sub(start).Seconds())
	l.warnLimit.Do(func() {
		l.log.Warn("generation budget exhausted",
			logger.Int("budget", l.budget),
			logger.Duration("window", l.window),
			logger.String("policy", string(l.policy)))
	})
}

// Granted returns how many permits were granted in the current window.
func (l *Limiter) Granted() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.window)
	n := 0
	for _, g := range l.grants {
		if g.After(cutoff) {
			n++
		}
	}
	return n
}
