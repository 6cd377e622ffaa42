package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func newTestBreaker(clock *time.Time, changes *[]State) *CircuitBreaker {
	cb := New(Settings{
		Name:        "test",
		Timeout:     10 * time.Second,
		ReadyToTrip: ConsecutiveFailures(2),
		OnStateChange: func(_ string, _ State, to State) {
			*changes = append(*changes, to)
		},
	})
	cb.now = func() time.Time { return *clock }
	return cb
}

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	clock := time.Now()
	var changes []State
	cb := newTestBreaker(&clock, &changes)

	assert.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateClosed, cb.State())

	assert.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called, "open breaker must not call through")
	assert.Equal(t, []State{StateOpen}, changes)
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	clock := time.Now()
	var changes []State
	cb := newTestBreaker(&clock, &changes)

	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error { return errBoom })
	}
	require.Equal(t, StateOpen, cb.State())

	clock = clock.Add(11 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, changes)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := time.Now()
	var changes []State
	cb := newTestBreaker(&clock, &changes)

	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error { return errBoom })
	}
	clock = clock.Add(11 * time.Second)
	require.Equal(t, StateHalfOpen, cb.State())

	assert.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_IsSuccessfulOverride(t *testing.T) {
	notFound := errors.New("not found")
	cb := New(Settings{
		Name:         "lookup",
		ReadyToTrip:  ConsecutiveFailures(1),
		IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, notFound) },
	})

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return notFound }), notFound)
	}
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(5), cb.Counts().TotalSuccesses)
}
