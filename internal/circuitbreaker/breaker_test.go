package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func testConfig(maxFailures int, timeout time.Duration) Config {
	return Config{Name: "test", MaxFailures: maxFailures, Timeout: timeout, MaxRequests: 2, Logger: zerolog.Nop()}
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := New(testConfig(3, time.Minute))
	failing := errors.New("boom")

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return failing }), failing)
	}
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreaker_OpenStateRejectsWithoutCallingFn(t *testing.T) {
	cb := New(testConfig(1, time.Minute))
	_ = cb.Execute(func() error { return errors.New("boom") })
	as := assert.New(t)
	as.Equal(StateOpen, cb.GetState())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	as.Error(err)
	as.False(called, "an open breaker must not invoke the wrapped function")
}

func TestCircuitBreaker_HalfOpenClosesAfterEnoughSuccesses(t *testing.T) {
	cb := New(testConfig(1, 10*time.Millisecond))
	_ = cb.Execute(func() error { return errors.New("boom") })
	assert.Equal(t, StateOpen, cb.GetState())

	time.Sleep(20 * time.Millisecond)

	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.GetState())

	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState(), "MaxRequests consecutive successes in half-open must close the breaker")
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New(testConfig(1, 10*time.Millisecond))
	_ = cb.Execute(func() error { return errors.New("boom") })
	time.Sleep(20 * time.Millisecond)

	err := cb.Execute(func() error { return errors.New("still broken") })
	assert.Error(t, err)
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreaker_ClosedStateResetsFailureCountOnSuccess(t *testing.T) {
	cb := New(testConfig(2, time.Minute))
	_ = cb.Execute(func() error { return errors.New("boom") })
	assert.NoError(t, cb.Execute(func() error { return nil }))

	_ = cb.Execute(func() error { return errors.New("boom") })
	assert.Equal(t, StateClosed, cb.GetState(), "a success must reset the consecutive-failure count")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
