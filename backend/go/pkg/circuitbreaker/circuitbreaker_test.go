package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fail() (interface{}, error) { return nil, errBoom }
func ok() (interface{}, error)   { return "ok", nil }

func TestBreakerLifecycle(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var transitions []string
	cb := New(2, 2, 10*time.Second,
		WithName("rowstore"),
		WithClock(func() time.Time { return now }),
		WithOnStateChange(func(name string, from, to State) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		}),
	)

	_, err := cb.Execute(fail)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, Closed, cb.State())
	_, err = cb.Execute(fail)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, Open, cb.State())

	_, err = cb.Execute(ok)
	assert.ErrorIs(t, err, ErrCircuitOpen)

	now = now.Add(11 * time.Second)
	res, err := cb.Execute(ok)
	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, HalfOpen, cb.State())

	_, err = cb.Execute(ok)
	require.NoError(t, err)
	assert.Equal(t, Closed, cb.State())

	assert.Equal(t, []string{
		"rowstore:closed->open",
		"rowstore:open->half-open",
		"rowstore:half-open->closed",
	}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := New(1, 1, time.Second, WithClock(func() time.Time { return now }))

	_, _ = cb.Execute(fail)
	require.Equal(t, Open, cb.State())

	now = now.Add(2 * time.Second)
	_, err := cb.Execute(fail)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, Open, cb.State())
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := New(2, 1, time.Minute)
	_, _ = cb.Execute(fail)
	_, _ = cb.Execute(ok)
	_, _ = cb.Execute(fail)
	assert.Equal(t, Closed, cb.State())
}
