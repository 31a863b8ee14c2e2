package clients_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dbcrossbar/dbcrossbar/pkg/clients"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAfterFailureThreshold(t *testing.T) {
	cb := clients.NewCircuitBreaker(clients.CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Hour,
	})
	boom := errors.New("boom")

	require.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	require.ErrorIs(t, cb.Execute(func() error { return boom }), boom)

	err := cb.Execute(func() error { return nil })
	require.Error(t, err)
	assert.Equal(t, "circuit breaker is open", err.Error())
}

func TestCircuitBreakerClosesAfterHalfOpenSuccesses(t *testing.T) {
	cb := clients.NewCircuitBreaker(clients.CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          time.Millisecond,
	})
	require.Error(t, cb.Execute(func() error { return errors.New("boom") }))

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, cb.Execute(func() error { return nil }))
	require.NoError(t, cb.Execute(func() error { return nil }))
}
