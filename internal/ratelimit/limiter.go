// Package ratelimit enforces per-source request budgets for the
// collection pipeline. Each source gets a sliding-window budget plus an
// exponential backoff that kicks in when the source signals throttling.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/model"
)

// ErrRateExceeded is returned by Acquire when a request slot would not
// free up within the source's configured maximum wait. Callers are
// expected to skip the source for the current run rather than abort.
var ErrRateExceeded = eris.New("ratelimit: max wait exceeded")

// SourceLimit configures the budget for one source.
type SourceLimit struct {
	// Requests per rolling Window.
	Requests int
	Window   time.Duration

	// MaxWait bounds how long Acquire may block before giving up.
	MaxWait time.Duration
}

// Config holds all per-source limits plus the shared backoff shape.
type Config struct {
	Limits      map[model.SourceID]SourceLimit
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// budget is the mutable per-source state. Owned exclusively by the
// Limiter; all access happens under the Limiter mutex.
type budget struct {
	stamps               []time.Time
	backoffUntil         time.Time
	consecutiveThrottles int
}

// Limiter serializes request admission per source. The window check and
// the increment happen inside one critical section, so two concurrent
// callers can never both pass on the same free slot.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	budgets map[model.SourceID]*budget

	// injectable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Limiter from config.
func New(cfg Config) *Limiter {
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 2 * time.Minute
	}
	return &Limiter{
		cfg:     cfg,
		budgets: make(map[model.SourceID]*budget),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// WithClock overrides the clock and sleep functions. Test hook.
func (l *Limiter) WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) *Limiter {
	l.now = now
	l.sleep = sleep
	return l
}

// Acquire blocks until a request slot for the source is available, then
// claims it. It returns ErrRateExceeded if the slot would not free within
// the source's MaxWait, or the context error on cancellation. A nil
// return means the caller holds a slot and may issue exactly one request.
func (l *Limiter) Acquire(ctx context.Context, id model.SourceID) error {
	limit, ok := l.limitFor(id)
	if !ok {
		// Unconfigured sources are not limited.
		return nil
	}

	deadline := l.now().Add(limit.MaxWait)

	for {
		l.mu.Lock()
		b := l.budgetFor(id)
		now := l.now()

		wait := l.nextFree(b, limit, now)
		if wait <= 0 {
			b.stamps = append(b.stamps, now)
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		if now.Add(wait).After(deadline) {
			zap.L().Debug("rate slot unavailable within max wait",
				zap.String("source", string(id)),
				zap.Duration("wait", wait),
			)
			return ErrRateExceeded
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// ReportThrottle records an explicit throttling signal from the source
// and extends its backoff window exponentially.
func (l *Limiter) ReportThrottle(id model.SourceID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.budgetFor(id)
	b.consecutiveThrottles++

	delay := l.cfg.BackoffBase << (b.consecutiveThrottles - 1)
	if delay > l.cfg.BackoffCap || delay <= 0 {
		delay = l.cfg.BackoffCap
	}
	b.backoffUntil = l.now().Add(delay)

	zap.L().Warn("source throttled, backing off",
		zap.String("source", string(id)),
		zap.Int("consecutive", b.consecutiveThrottles),
		zap.Duration("delay", delay),
	)
}

// ReportSuccess resets the throttle streak after one successful call.
func (l *Limiter) ReportSuccess(id model.SourceID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.budgetFor(id).consecutiveThrottles = 0
}

// InWindow returns how many request slots the source has consumed within
// its current window. Observability only.
func (l *Limiter) InWindow(id model.SourceID) int {
	limit, ok := l.limitFor(id)
	if !ok {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.budgetFor(id)
	l.prune(b, limit, l.now())
	return len(b.stamps)
}

// nextFree returns how long until a slot frees up, or <= 0 if one is free
// now. Must be called with the mutex held.
func (l *Limiter) nextFree(b *budget, limit SourceLimit, now time.Time) time.Duration {
	if b.backoffUntil.After(now) {
		return b.backoffUntil.Sub(now)
	}

	l.prune(b, limit, now)
	if len(b.stamps) < limit.Requests {
		return 0
	}
	// Oldest stamp leaving the window frees the next slot.
	return b.stamps[0].Add(limit.Window).Sub(now)
}

func (l *Limiter) prune(b *budget, limit SourceLimit, now time.Time) {
	cutoff := now.Add(-limit.Window)
	i := 0
	for i < len(b.stamps) && !b.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		b.stamps = b.stamps[i:]
	}
}

func (l *Limiter) budgetFor(id model.SourceID) *budget {
	b, ok := l.budgets[id]
	if !ok {
		b = &budget{}
		l.budgets[id] = b
	}
	return b
}

func (l *Limiter) limitFor(id model.SourceID) (SourceLimit, bool) {
	limit, ok := l.cfg.Limits[id]
	if !ok || limit.Requests <= 0 || limit.Window <= 0 {
		return SourceLimit{}, false
	}
	if limit.MaxWait <= 0 {
		limit.MaxWait = 30 * time.Second
	}
	return limit, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
