package retry

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// curve is a per-kind backoff envelope: delay(n) = min(cap, base·2^n) plus
// up to 20% positive jitter.
type curve struct {
	base time.Duration
	cap  time.Duration
}

var curves = map[Kind]curve{
	KindOverloaded: {base: 10 * time.Second, cap: 120 * time.Second},
	KindRateLimit:  {base: 10 * time.Second, cap: 60 * time.Second},
	KindTimeout:    {base: 2 * time.Second, cap: 30 * time.Second},
	KindOther:      {base: 1 * time.Second, cap: 10 * time.Second},
}

const jitterFraction = 0.2

// Delay computes the backoff before attempt n (0-based) of the given kind.
func Delay(kind Kind, attempt int) time.Duration {
	c, ok := curves[kind]
	if !ok {
		c = curves[KindOther]
	}
	d := float64(c.base) * math.Pow(2, float64(attempt))
	if d > float64(c.cap) {
		d = float64(c.cap)
	}
	d += rand.Float64() * jitterFraction * d
	return time.Duration(d)
}

// policy adapts the per-kind curves to the backoff driver. The kind of the
// most recent error picks the curve, so a call that first times out and
// then hits overload waits on the overload schedule.
type policy struct {
	attempt  int
	lastKind Kind
	delay    func(Kind, int) time.Duration
}

func (p *policy) NextBackOff() time.Duration {
	d := p.delay(p.lastKind, p.attempt)
	p.attempt++
	return d
}

func (p *policy) Reset() { p.attempt = 0 }

// Retrier runs operations under the classified retry policy.
type Retrier struct {
	maxAttempts int
	logger      *slog.Logger
	delay       func(Kind, int) time.Duration // overridden in tests
}

// NewRetrier caps each operation at maxAttempts total tries (the first
// attempt included).
func NewRetrier(maxAttempts int, logger *slog.Logger) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retrier{maxAttempts: maxAttempts, logger: logger, delay: Delay}
}

// Do runs op, retrying retryable failures with kind-specific backoff.
// Skippable and fatal errors return immediately; so does exhausting the
// attempt budget, returning the last error. The operation's name only
// feeds logging.
func (r *Retrier) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	p := &policy{lastKind: KindOther, delay: r.delay}
	attempt := 0

	wrapped := func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		attempt++
		kind, class := Classify(err)
		p.lastKind = kind

		if class != ClassRetryable || attempt >= r.maxAttempts {
			return backoff.Permanent(err)
		}
		r.logger.Warn("operation failed, retrying",
			"operation", name,
			"attempt", attempt,
			"max_attempts", r.maxAttempts,
			"kind", string(kind),
			"error", err)
		return err
	}

	err := backoff.Retry(wrapped, backoff.WithContext(p, ctx))
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Unwrap()
		}
		return err
	}
	return nil
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, r *Retrier, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, name, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
