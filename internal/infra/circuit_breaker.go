package infra

import (
	"errors"
	"sync"
	"time"
)

// CircuitBreaker guards the till's calls to the caja server so a dead server
// fails fast instead of stalling every keystroke for the HTTP timeout.
//
// Closed counts consecutive failures; at FailureThreshold it opens. Open
// rejects calls until OpenTimeout has passed since the last failure, then
// turns half-open and lets a single probe through at a time. SuccessThreshold
// good probes close it again; one bad probe reopens it.
type CircuitBreaker struct {
	mu       sync.Mutex
	state    CBState
	fallos   int
	exitos   int
	probando bool
	abierto  time.Time
	cfg      CircuitBreakerConfig
}

type CBState int

const (
	CBClosed CBState = iota
	CBOpen
	CBHalfOpen
)

func (s CBState) String() string {
	switch s {
	case CBClosed:
		return "closed"
	case CBOpen:
		return "open"
	case CBHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling fn while the breaker is open or
// a half-open probe is already in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitBreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
	// IsFailure decides whether an error counts. nil counts every error, so
	// callers talking to a server that answers 409/422 must set it.
	IsFailure func(error) bool
	// OnStateChange is called outside the lock after every transition.
	OnStateChange func(from, to CBState)
	Now           func() time.Time
}

// DefaultCBConfig is tuned for the till: five straight transport failures
// open it for 30s.
func DefaultCBConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
	}
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCBConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(error) bool { return true }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{cfg: cfg}
}

func (cb *CircuitBreaker) State() CBState {
	cb.mu.Lock()
	s, cambio := cb.refrescar()
	cb.mu.Unlock()
	cb.notificar(cambio)
	return s
}

// Execute runs fn unless the breaker rejects the call. fn's error is always
// returned as is; IsFailure only decides whether it counts.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	s, cambio := cb.refrescar()
	switch {
	case s == CBOpen, s == CBHalfOpen && cb.probando:
		cb.mu.Unlock()
		cb.notificar(cambio)
		return ErrCircuitOpen
	case s == CBHalfOpen:
		cb.probando = true
	}
	cb.mu.Unlock()
	cb.notificar(cambio)

	err := fn()

	cb.mu.Lock()
	cb.probando = false
	if err != nil && cb.cfg.IsFailure(err) {
		cambio = cb.fallo()
	} else {
		cambio = cb.exito()
	}
	cb.mu.Unlock()
	cb.notificar(cambio)
	return err
}

type transicion struct{ de, a CBState }

// refrescar moves open to half-open once the timeout has elapsed. Caller
// holds the lock.
func (cb *CircuitBreaker) refrescar() (CBState, *transicion) {
	if cb.state == CBOpen && cb.cfg.Now().Sub(cb.abierto) >= cb.cfg.OpenTimeout {
		return cb.state, cb.pasar(CBHalfOpen)
	}
	return cb.state, nil
}

func (cb *CircuitBreaker) fallo() *transicion {
	switch cb.state {
	case CBClosed:
		cb.fallos++
		if cb.fallos >= cb.cfg.FailureThreshold {
			return cb.pasar(CBOpen)
		}
	case CBHalfOpen:
		return cb.pasar(CBOpen)
	}
	return nil
}

func (cb *CircuitBreaker) exito() *transicion {
	switch cb.state {
	case CBClosed:
		cb.fallos = 0
	case CBHalfOpen:
		cb.exitos++
		if cb.exitos >= cb.cfg.SuccessThreshold {
			return cb.pasar(CBClosed)
		}
	}
	return nil
}

func (cb *CircuitBreaker) pasar(a CBState) *transicion {
	t := &transicion{de: cb.state, a: a}
	cb.state = a
	cb.fallos, cb.exitos = 0, 0
	if a == CBOpen {
		cb.abierto = cb.cfg.Now()
	}
	return t
}

func (cb *CircuitBreaker) notificar(t *transicion) {
	if t != nil && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(t.de, t.a)
	}
}
