package resilience

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter is a token bucket that slows down after upstream 429s and
// recovers gradually on success.
type Limiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	base    rate.Limit
	current rate.Limit
}

// NewLimiter creates a limiter allowing perSecond calls with the given burst.
// A non-positive perSecond disables limiting.
func NewLimiter(perSecond float64, burst int) *Limiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(limit, burst), base: limit, current: limit}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Limit returns the current rate.
func (l *Limiter) Limit() rate.Limit {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Throttled halves the rate, down to a quarter of the base rate.
func (l *Limiter) Throttled() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.base == rate.Inf {
		return
	}
	l.set(max(l.current/2, l.base/4))
}

// Succeeded raises the rate by a fifth, up to the base rate.
func (l *Limiter) Succeeded() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.base == rate.Inf || l.current == l.base {
		return
	}
	l.set(min(l.current*1.2, l.base))
}

func (l *Limiter) set(r rate.Limit) {
	l.current = r
	l.limiter.SetLimit(r)
}

// PolicyConfig is the per-source tuning taken from configuration.
type PolicyConfig struct {
	Timeout          time.Duration
	RatePerSecond    float64
	Burst            int
	MaxAttempts      int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	FailureThreshold int
	Cooldown         time.Duration
}

// Policy bundles the guards applied to every call to one upstream source.
type Policy struct {
	Source  string
	Timeout time.Duration
	Retry   RetryConfig
	Limiter *Limiter
	Breaker *Breaker
}

// NewPolicy builds a policy for source. onStateChange may be nil.
func NewPolicy(source string, cfg PolicyConfig, onStateChange func(source string, from, to BreakerState)) *Policy {
	retry := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialBackoff > 0 {
		retry.InitialBackoff = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		retry.MaxBackoff = cfg.MaxBackoff
	}
	retry.OnRetry = RetryLogger(source, "fetch")

	bc := DefaultBreakerConfig()
	if cfg.FailureThreshold > 0 {
		bc.FailureThreshold = cfg.FailureThreshold
	}
	if cfg.Cooldown > 0 {
		bc.Cooldown = cfg.Cooldown
	}
	bc.OnStateChange = func(from, to BreakerState) {
		zap.L().Warn("resilience: breaker state change",
			zap.String("source", source),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
		if onStateChange != nil {
			onStateChange(source, from, to)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Policy{
		Source:  source,
		Timeout: timeout,
		Retry:   retry,
		Limiter: NewLimiter(cfg.RatePerSecond, cfg.Burst),
		Breaker: NewBreaker(bc),
	}
}

// Call runs fn under p: the breaker wraps the retry loop, and every attempt
// waits for the limiter and gets its own timeout.
func Call[T any](ctx context.Context, p *Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	return Guard(ctx, p.Breaker, func(ctx context.Context) (T, error) {
		return DoVal(ctx, p.Retry, func(ctx context.Context) (T, error) {
			var zero T
			if err := p.Limiter.Wait(ctx); err != nil {
				return zero, eris.Wrapf(err, "%s: rate limit wait", p.Source)
			}
			attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
			defer cancel()

			val, err := fn(attemptCtx)
			var te *TransientError
			switch {
			case err == nil:
				p.Limiter.Succeeded()
			case eris.As(err, &te) && te.StatusCode == http.StatusTooManyRequests:
				p.Limiter.Throttled()
			}
			return val, err
		})
	})
}
