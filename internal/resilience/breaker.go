package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/model"
)

// BreakerState is the circuit state for one source.
type BreakerState int

const (
	// BreakerClosed passes calls through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the reset timeout elapses.
	BreakerOpen
	// BreakerHalfOpen allows a probe call to test recovery.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrBreakerOpen is returned when the source's circuit is open.
var ErrBreakerOpen = eris.New("resilience: circuit open")

// BreakerConfig shapes each per-source breaker.
type BreakerConfig struct {
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int
	// ResetTimeout is how long the circuit stays open before a probe.
	ResetTimeout time.Duration
}

// Breaker is a circuit breaker for a single source.
type Breaker struct {
	cfg    BreakerConfig
	source model.SourceID

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time

	now func() time.Time
}

// NewBreaker creates a breaker for the given source.
func NewBreaker(source model.SourceID, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Breaker{cfg: cfg, source: source, now: time.Now}
}

// Allow reports whether a call may proceed. When the open period has
// elapsed it admits one probe and moves to half-open.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return ErrBreakerOpen
		}
		b.state = BreakerHalfOpen
	}
	return nil
}

// Record feeds a call outcome back into the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state != BreakerClosed {
			zap.L().Info("source circuit closed", zap.String("source", string(b.source)))
		}
		b.state = BreakerClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.cfg.FailureThreshold {
		if b.state != BreakerOpen {
			zap.L().Warn("source circuit opened",
				zap.String("source", string(b.source)),
				zap.Int("consecutive_failures", b.failures),
			)
		}
		b.state = BreakerOpen
		b.openedAt = b.now()
	}
}

// State returns the current state, accounting for reset-timeout expiry.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		return BreakerHalfOpen
	}
	return b.state
}

// SourceBreakers holds one breaker per source.
type SourceBreakers struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	breakers map[model.SourceID]*Breaker
}

// NewSourceBreakers creates the per-source breaker registry.
func NewSourceBreakers(cfg BreakerConfig) *SourceBreakers {
	return &SourceBreakers{cfg: cfg, breakers: make(map[model.SourceID]*Breaker)}
}

// For returns the breaker for a source, creating it on first use.
func (sb *SourceBreakers) For(source model.SourceID) *Breaker {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	b, ok := sb.breakers[source]
	if !ok {
		b = NewBreaker(source, sb.cfg)
		sb.breakers[source] = b
	}
	return b
}

// States snapshots every breaker's state.
func (sb *SourceBreakers) States() map[model.SourceID]BreakerState {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	out := make(map[model.SourceID]BreakerState, len(sb.breakers))
	for id, b := range sb.breakers {
		out[id] = b.State()
	}
	return out
}
