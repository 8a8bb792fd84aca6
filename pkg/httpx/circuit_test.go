package httpx_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/marzkit/marzkit/pkg/httpx"
)

func TestCircuitBreaker_StateTransitions(t *testing.T) {
	t.Parallel()

	t.Run("closed to open at threshold", func(t *testing.T) {
		t.Parallel()

		cb := httpx.NewCircuitBreaker(2, 100*time.Millisecond, 0)

		assert.Equal(t, httpx.CircuitClosed, cb.State())
		assert.True(t, cb.Allow())

		cb.RecordFailure()
		assert.Equal(t, httpx.CircuitClosed, cb.State())
		assert.True(t, cb.Allow())

		cb.RecordFailure()
		assert.Equal(t, httpx.CircuitOpen, cb.State())
		assert.False(t, cb.Allow())
	})

	t.Run("open to half-open after cool-down", func(t *testing.T) {
		t.Parallel()

		cb := httpx.NewCircuitBreaker(1, 50*time.Millisecond, 0)

		cb.RecordFailure()
		assert.False(t, cb.Allow())

		time.Sleep(60 * time.Millisecond)

		assert.True(t, cb.Allow())
		assert.Equal(t, httpx.CircuitHalfOpen, cb.State())
	})

	t.Run("half-open success closes", func(t *testing.T) {
		t.Parallel()

		cb := httpx.NewCircuitBreaker(1, 50*time.Millisecond, 0)

		cb.RecordFailure()
		time.Sleep(60 * time.Millisecond)

		assert.True(t, cb.Allow())
		cb.RecordSuccess()
		assert.Equal(t, httpx.CircuitClosed, cb.State())
		assert.True(t, cb.Allow())
	})

	t.Run("half-open failure reopens", func(t *testing.T) {
		t.Parallel()

		cb := httpx.NewCircuitBreaker(1, 50*time.Millisecond, 0)

		cb.RecordFailure()
		time.Sleep(60 * time.Millisecond)

		assert.True(t, cb.Allow())
		cb.RecordFailure()
		assert.Equal(t, httpx.CircuitOpen, cb.State())
		assert.False(t, cb.Allow())
	})
}

func TestCircuitBreaker_SingleProbe(t *testing.T) {
	t.Parallel()

	cb := httpx.NewCircuitBreaker(1, 50*time.Millisecond, 0)

	cb.RecordFailure()
	time.Sleep(60 * time.Millisecond)

	// Exactly one probe is admitted while it is in flight.
	assert.True(t, cb.Allow())
	assert.False(t, cb.Allow())
	assert.False(t, cb.Allow())

	// Releasing the slot without an outcome admits the next probe.
	cb.Release()
	assert.True(t, cb.Allow())
	assert.False(t, cb.Allow())

	cb.RecordSuccess()
	assert.Equal(t, httpx.CircuitClosed, cb.State())
}

func TestCircuitBreaker_FailureWindow(t *testing.T) {
	t.Parallel()

	cb := httpx.NewCircuitBreaker(3, time.Second, 50*time.Millisecond)

	// Two failures, then let the window go stale.
	cb.RecordFailure()
	cb.RecordFailure()
	time.Sleep(70 * time.Millisecond)

	// The stale count is discarded, so two more failures do not trip.
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, httpx.CircuitClosed, cb.State())

	// A third within the window does.
	cb.RecordFailure()
	assert.Equal(t, httpx.CircuitOpen, cb.State())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	t.Parallel()

	cb := httpx.NewCircuitBreaker(1, time.Minute, 0)

	cb.RecordFailure()
	assert.False(t, cb.Allow())

	cb.Reset()
	assert.Equal(t, httpx.CircuitClosed, cb.State())
	assert.True(t, cb.Allow())
	assert.Equal(t, 0, cb.Stats().Failures)
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	cb := httpx.NewCircuitBreaker(10, 100*time.Millisecond, 0)

	const goroutines = 50
	const operations = 100

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				switch j % 4 {
				case 0:
					cb.Allow()
				case 1:
					cb.RecordSuccess()
				case 2:
					cb.RecordFailure()
				case 3:
					cb.State()
				}
			}
		}()
	}

	wg.Wait()

	// Must land in a defined state without data races.
	state := cb.State()
	assert.Contains(t, []httpx.CircuitState{
		httpx.CircuitClosed, httpx.CircuitOpen, httpx.CircuitHalfOpen,
	}, state)
}

func TestCircuitStats(t *testing.T) {
	t.Parallel()

	cb := httpx.NewCircuitBreaker(5, time.Minute, 0)

	cb.RecordFailure()
	cb.RecordFailure()

	stats := cb.Stats()
	assert.Equal(t, "closed", stats.State)
	assert.Equal(t, 2, stats.Failures)
	assert.False(t, stats.LastFailureTime.IsZero())
}
