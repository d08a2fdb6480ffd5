// Package circuitbreaker implements a per-dependency circuit breaker over a
// count-based sliding window of call outcomes. It short-circuits requests to
// a known-bad dependency, turning failover from a multi-second timeout into
// a synchronous, constant-time decision.
package circuitbreaker

import (
	"sync"
	"time"
)

// State is the circuit breaker's current mode.
type State int

const (
	// StateClosed allows all requests through.
	StateClosed State = iota
	// StateOpen rejects all requests until the wait duration elapses.
	StateOpen
	// StateHalfOpen permits a capped number of trial requests.
	StateHalfOpen
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Outcome is the three-valued result of a call recorded against a breaker.
// IGNORED outcomes neither count as success nor fill the sliding window —
// they exist for business-logical "not found" results that must not trip
// the breaker.
type Outcome int

const (
	Success Outcome = iota
	Failure
	Ignored
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Ignored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker tuning parameters. Field names mirror the
// configuration surface this service exposes per-dependency.
type Config struct {
	SlidingWindowSize                     int           // call-count ring size
	MinimumNumberOfCalls                  int           // calls required before CLOSED can trip
	FailureRateThreshold                  float64       // percentage, e.g. 10 for 10%
	WaitDurationInOpenState               time.Duration // OPEN -> HALF_OPEN transition time
	PermittedNumberOfCallsInHalfOpenState int           // trial calls allowed while HALF_OPEN
	SlowCallDurationThreshold             time.Duration // calls slower than this count toward slowCallRate
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		SlidingWindowSize:                     100,
		MinimumNumberOfCalls:                  10,
		FailureRateThreshold:                  10,
		WaitDurationInOpenState:               10 * time.Second,
		PermittedNumberOfCallsInHalfOpenState: 3,
		SlowCallDurationThreshold:             5 * time.Second,
	}
}

// slot is one recorded call in a ring. Only Success/Failure outcomes ever
// occupy a slot; Ignored outcomes are never recorded into a ring.
type slot struct {
	outcome  Outcome
	duration time.Duration
	recorded bool
}

// ring is a fixed-capacity, count-indexed circular buffer of call outcomes.
// Unlike a time-bucketed window, a slot never expires on its own — it is
// only ever overwritten by a newer call, which is what "count-based" means.
type ring struct {
	slots  []slot
	head   int
	filled int
}

func newRing(size int) *ring {
	if size <= 0 {
		size = 1
	}
	return &ring{slots: make([]slot, size)}
}

func (r *ring) record(o Outcome, d time.Duration) {
	r.slots[r.head] = slot{outcome: o, duration: d, recorded: true}
	r.head = (r.head + 1) % len(r.slots)
	if r.filled < len(r.slots) {
		r.filled++
	}
}

func (r *ring) reset() {
	for i := range r.slots {
		r.slots[i] = slot{}
	}
	r.head, r.filled = 0, 0
}

// counts returns bufferedCalls, failedCalls, successfulCalls and slowCalls
// over the currently filled portion of the ring.
func (r *ring) counts(slowThreshold time.Duration) (buffered, failed, success, slow int) {
	for i := range r.filled {
		s := r.slots[i]
		if !s.recorded {
			continue
		}
		buffered++
		switch s.outcome {
		case Failure:
			failed++
		case Success:
			success++
		}
		if slowThreshold > 0 && s.duration >= slowThreshold {
			slow++
		}
	}
	return
}

// Metrics is a point-in-time snapshot of a breaker's window, reported at
// GET /circuitbreakers.
type Metrics struct {
	State             string  `json:"state"`
	BufferedCalls     int     `json:"bufferedCalls"`
	FailedCalls       int     `json:"failedCalls"`
	SuccessfulCalls   int     `json:"successfulCalls"`
	NotPermittedCalls int64   `json:"notPermittedCalls"`
	FailureRate       float64 `json:"failureRate"`
	SlowCallRate      float64 `json:"slowCallRate"`
}

// Breaker is a per-dependency circuit breaker state machine.
type Breaker struct {
	mu  sync.Mutex
	cfg Config

	state           State
	window          *ring // CLOSED-state window
	probe           *ring // HALF_OPEN trial window, reset each time HALF_OPEN is entered
	halfOpenGranted int

	openedAt time.Time
	lastUsed time.Time

	notPermittedCalls int64
}

// NewBreaker creates a breaker with the given config.
func NewBreaker(cfg Config) *Breaker {
	if cfg.SlidingWindowSize <= 0 {
		cfg.SlidingWindowSize = DefaultConfig().SlidingWindowSize
	}
	if cfg.PermittedNumberOfCallsInHalfOpenState <= 0 {
		cfg.PermittedNumberOfCallsInHalfOpenState = DefaultConfig().PermittedNumberOfCallsInHalfOpenState
	}
	return &Breaker{
		cfg:      cfg,
		state:    StateClosed,
		window:   newRing(cfg.SlidingWindowSize),
		probe:    newRing(cfg.PermittedNumberOfCallsInHalfOpenState),
		lastUsed: time.Now(),
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// TryAcquirePermission is a synchronous, constant-time decision: the breaker
// never itself fails, and a denied permission means the caller must route to
// a fallback.
func (b *Breaker) TryAcquirePermission() bool {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastUsed = now

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if now.Sub(b.openedAt) >= b.cfg.WaitDurationInOpenState {
			b.state = StateHalfOpen
			b.probe.reset()
			b.halfOpenGranted = 0
			return b.grantHalfOpenPermitLocked()
		}
		b.notPermittedCalls++
		return false
	case StateHalfOpen:
		if b.grantHalfOpenPermitLocked() {
			return true
		}
		b.notPermittedCalls++
		return false
	default:
		return false
	}
}

func (b *Breaker) grantHalfOpenPermitLocked() bool {
	if b.halfOpenGranted >= b.cfg.PermittedNumberOfCallsInHalfOpenState {
		return false
	}
	b.halfOpenGranted++
	return true
}

// Record records the outcome of a call permitted by TryAcquirePermission.
// IGNORED outcomes update lastUsed but never touch a window and never
// trigger a transition.
func (b *Breaker) Record(outcome Outcome, duration time.Duration) {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastUsed = now

	if outcome == Ignored {
		return
	}

	switch b.state {
	case StateClosed:
		b.window.record(outcome, duration)
		buffered, failed, _, _ := b.window.counts(0)
		if buffered >= b.cfg.MinimumNumberOfCalls && failureRate(failed, buffered) >= b.cfg.FailureRateThreshold {
			b.state = StateOpen
			b.openedAt = now
		}
	case StateHalfOpen:
		b.probe.record(outcome, duration)
		buffered, failed, _, _ := b.probe.counts(0)
		if buffered >= b.cfg.PermittedNumberOfCallsInHalfOpenState {
			if failureRate(failed, buffered) < b.cfg.FailureRateThreshold {
				b.state = StateClosed
				b.window.reset()
			} else {
				b.state = StateOpen
				b.openedAt = now
			}
		}
	default:
		// StateOpen: a stray record from a call dispatched just before the
		// breaker tripped. Nothing to do — the window it would have joined
		// no longer applies.
	}
}

func failureRate(failed, buffered int) float64 {
	if buffered == 0 {
		return 0
	}
	return 100 * float64(failed) / float64(buffered)
}

// Metrics returns a snapshot of the breaker's active window for reporting.
func (b *Breaker) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	w := b.window
	if b.state == StateHalfOpen {
		w = b.probe
	}
	buffered, failed, success, slow := w.counts(b.cfg.SlowCallDurationThreshold)
	return Metrics{
		State:             b.state.String(),
		BufferedCalls:     buffered,
		FailedCalls:       failed,
		SuccessfulCalls:   success,
		NotPermittedCalls: b.notPermittedCalls,
		FailureRate:       failureRate(failed, buffered),
		SlowCallRate:      failureRate(slow, buffered),
	}
}

// LastUsed returns the time of last activity, for stale eviction.
func (b *Breaker) LastUsed() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastUsed
}
