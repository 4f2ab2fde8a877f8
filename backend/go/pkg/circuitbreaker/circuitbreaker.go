package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the state of the circuit breaker.
type State int

const (
	// Closed lets every request through.
	Closed State = iota
	// Open rejects requests until the timeout has elapsed.
	Open
	// HalfOpen lets trial requests through to probe recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned while the breaker rejects requests.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker guards calls to a flaky dependency.
type CircuitBreaker interface {
	// Execute runs req unless the circuit is open.
	Execute(req func() (interface{}, error)) (interface{}, error)
	// State returns the current state.
	State() State
	// Name identifies the guarded dependency in logs and metrics.
	Name() string
}

// StateChangeFunc is notified after every transition.
type StateChangeFunc func(name string, from, to State)

// Option customises a breaker.
type Option func(*breaker)

// WithName labels the breaker.
func WithName(name string) Option {
	return func(b *breaker) { b.name = name }
}

// WithOnStateChange registers a transition hook. It is called without the
// breaker lock held.
func WithOnStateChange(fn StateChangeFunc) Option {
	return func(b *breaker) { b.onStateChange = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *breaker) { b.now = now }
}

type breaker struct {
	name                 string
	failureThreshold     uint32
	successThreshold     uint32
	timeout              time.Duration
	consecutiveSuccesses uint32
	consecutiveFailures  uint32
	openedAt             time.Time
	state                State
	onStateChange        StateChangeFunc
	now                  func() time.Time
	mutex                sync.Mutex
}

// New creates a breaker that opens after failureThreshold consecutive failures,
// stays open for timeout and closes again after successThreshold consecutive
// successes in the half-open state.
func New(failureThreshold, successThreshold uint32, timeout time.Duration, opts ...Option) CircuitBreaker {
	b := &breaker{
		failureThreshold: max(failureThreshold, 1),
		successThreshold: max(successThreshold, 1),
		timeout:          timeout,
		state:            Closed,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *breaker) Name() string { return b.name }

func (b *breaker) State() State {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.state
}

func (b *breaker) Execute(req func() (interface{}, error)) (interface{}, error) {
	b.mutex.Lock()
	from := b.state
	if b.state == Open && b.now().Sub(b.openedAt) > b.timeout {
		b.state = HalfOpen
		b.consecutiveSuccesses = 0
	}
	state := b.state
	b.mutex.Unlock()
	b.notify(from, state)

	if state == Open {
		return nil, ErrCircuitOpen
	}

	res, err := req()
	if err != nil {
		b.onFailure()
		return nil, err
	}
	b.onSuccess()
	return res, nil
}

func (b *breaker) onSuccess() {
	b.mutex.Lock()
	from := b.state
	switch b.state {
	case HalfOpen:
		b.consecutiveSuccesses++
		if b.consecutiveSuccesses >= b.successThreshold {
			b.state = Closed
			b.consecutiveFailures = 0
			b.consecutiveSuccesses = 0
		}
	case Closed:
		b.consecutiveFailures = 0
	}
	to := b.state
	b.mutex.Unlock()
	b.notify(from, to)
}

func (b *breaker) onFailure() {
	b.mutex.Lock()
	from := b.state
	switch b.state {
	case HalfOpen:
		b.trip()
	case Closed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.failureThreshold {
			b.trip()
		}
	}
	to := b.state
	b.mutex.Unlock()
	b.notify(from, to)
}

// trip opens the circuit. Caller holds the lock.
func (b *breaker) trip() {
	b.state = Open
	b.openedAt = b.now()
	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
}

func (b *breaker) notify(from, to State) {
	if from != to && b.onStateChange != nil {
		b.onStateChange(b.name, from, to)
	}
}
