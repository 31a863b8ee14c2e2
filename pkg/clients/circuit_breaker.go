// Package clients implements small resilience helpers for outbound API
// calls: a circuit breaker guarding BigQuery's REST job/metadata API
// and a token-bucket rate limiter guarding S3 upload starts.
package clients

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// CircuitBreakerConfig configures a CircuitBreaker's failure/success
// thresholds and how long it stays open before admitting a probe.
type CircuitBreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
}

type circuitState int32

const (
	stateClosed circuitState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker implements the closed/open/half-open pattern:
// consecutive failures open the circuit, a timeout admits one probe
// into half-open, and consecutive successes there close it again.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	logger *zap.Logger

	state                int32
	consecutiveFailures  int32
	consecutiveSuccesses int32
	halfOpenProbing      int32

	mu            sync.Mutex
	nextRetryTime time.Time
}

// NewCircuitBreaker builds a circuit breaker in the closed state.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{config: config, logger: zap.NewNop()}
}

// Execute runs fn if the circuit allows it, recording the outcome.
// It returns an error immediately, without calling fn, if the circuit
// is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return fmt.Errorf("circuit breaker is open")
	}
	if err := fn(); err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) allow() bool {
	switch circuitState(atomic.LoadInt32(&cb.state)) {
	case stateClosed:
		return true
	case stateHalfOpen:
		return atomic.CompareAndSwapInt32(&cb.halfOpenProbing, 0, 1)
	case stateOpen:
		cb.mu.Lock()
		ready := time.Now().After(cb.nextRetryTime)
		cb.mu.Unlock()
		if !ready {
			return false
		}
		if atomic.CompareAndSwapInt32(&cb.state, int32(stateOpen), int32(stateHalfOpen)) {
			atomic.StoreInt32(&cb.consecutiveSuccesses, 0)
			cb.logger.Info("circuit breaker half-open")
		}
		return atomic.CompareAndSwapInt32(&cb.halfOpenProbing, 0, 1)
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	switch circuitState(atomic.LoadInt32(&cb.state)) {
	case stateClosed:
		atomic.StoreInt32(&cb.consecutiveFailures, 0)
	case stateHalfOpen:
		atomic.StoreInt32(&cb.halfOpenProbing, 0)
		if atomic.AddInt32(&cb.consecutiveSuccesses, 1) >= int32(cb.config.SuccessThreshold) {
			atomic.StoreInt32(&cb.state, int32(stateClosed))
			atomic.StoreInt32(&cb.consecutiveFailures, 0)
			cb.logger.Info("circuit breaker closed")
		}
	}
}

func (cb *CircuitBreaker) recordFailure() {
	switch circuitState(atomic.LoadInt32(&cb.state)) {
	case stateClosed:
		if atomic.AddInt32(&cb.consecutiveFailures, 1) >= int32(cb.config.FailureThreshold) {
			cb.trip()
		}
	case stateHalfOpen:
		atomic.StoreInt32(&cb.halfOpenProbing, 0)
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	atomic.StoreInt32(&cb.state, int32(stateOpen))
	cb.nextRetryTime = time.Now().Add(cb.config.Timeout)
	atomic.StoreInt32(&cb.consecutiveSuccesses, 0)

	cb.logger.Warn("circuit breaker opened",
		zap.Time("retry_after", cb.nextRetryTime),
		zap.Int32("consecutive_failures", atomic.LoadInt32(&cb.consecutiveFailures)))
}
