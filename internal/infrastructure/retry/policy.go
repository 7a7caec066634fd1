package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/bnema/transq/internal/infrastructure/logger"
)

// Policy describes an exponential backoff. Attempt n waits Min*Factor^(n-1),
// capped at Max, optionally scaled into [50%, 100%] by Jitter.
type Policy struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	Jitter bool
}

func NewPolicy(min, max time.Duration, factor float64) *Policy {
	return &Policy{
		Min:    min,
		Max:    max,
		Factor: factor,
		Jitter: true,
	}
}

// Default is used for remote publishing: 2s doubling up to ten minutes.
func Default() *Policy {
	return NewPolicy(2*time.Second, 10*time.Minute, 2.0)
}

func (p *Policy) Duration(attempt int) time.Duration {
	if attempt <= 0 {
		return p.Min
	}

	duration := float64(p.Min) * math.Pow(p.Factor, float64(attempt-1))
	if duration > float64(p.Max) || math.IsInf(duration, 1) {
		duration = float64(p.Max)
	}

	if p.Jitter {
		duration = duration * (0.5 + rand.Float64()*0.5)
	}

	return time.Duration(duration)
}

// Do runs op until it succeeds or ctx is done. It never gives up on its own;
// the returned error is always ctx.Err() when op has not succeeded.
func (p *Policy) Do(ctx context.Context, name string, op func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info.Printf("%s succeeded after %d attempts", name, attempt)
			}
			return nil
		}

		wait := p.Duration(attempt)
		logger.Warn.Printf("%s failed (attempt %d): %v; retrying in %s", name, attempt, err, wait.Round(time.Millisecond))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
