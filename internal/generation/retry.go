package generation

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/tphakala/menulens/internal/errors"
)

// RetryPolicy controls retries of transient generation failures.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryPolicy retries once after 500ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     1,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2,
	}
}

// Backoff returns the delay before retry number attempt, counting from 1.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 || p.InitialBackoff <= 0 {
		return 0
	}
	mult := max(p.Multiplier, 1)
	d := float64(p.InitialBackoff)
	for range attempt - 1 {
		d *= mult
		if p.MaxBackoff > 0 && d >= float64(p.MaxBackoff) {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && time.Duration(d) > p.MaxBackoff {
		return p.MaxBackoff
	}
	return time.Duration(d)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// classify reports the class of a generator error. Unclassified errors are
// transient when they are timeouts and permanent otherwise.
func classify(err error) errors.Class {
	if class, ok := errors.LookupClass(err); ok {
		return class
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.ClassTransient
	}
	return errors.ClassPermanent
}

// asGenerationFailed wraps err as GenerationFailed unless it already is one
// or is a rate limit rejection.
func asGenerationFailed(err error) error {
	switch errors.KindOf(err) {
	case errors.KindGenerationFailed, errors.KindRateLimited:
		return err
	}
	return errors.GenerationFailed(classify(err), err)
}
