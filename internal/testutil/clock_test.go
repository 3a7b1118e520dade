package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicClock_StartsAtEpoch(t *testing.T) {
	clock := NewDeterministicClock(time.Time{})
	assert.Equal(t, Epoch, clock.Now())
}

func TestDeterministicClock_Advance(t *testing.T) {
	start := time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)
	clock := NewDeterministicClock(start)

	assert.Equal(t, start.Add(time.Minute), clock.Advance(time.Minute))
	assert.Equal(t, start.Add(time.Minute), clock.Now(), "Now does not advance")

	// Negative durations are ignored
	clock.Advance(-time.Hour)
	assert.Equal(t, start.Add(time.Minute), clock.Now())
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClock(time.Time{})
	clock.Advance(3 * time.Hour)

	clock.Reset()
	assert.Equal(t, Epoch, clock.Now())
}

func TestDeterministicClock_ConcurrentAdvance(t *testing.T) {
	clock := NewDeterministicClock(time.Time{})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Advance(time.Second)
		}()
	}
	wg.Wait()

	assert.Equal(t, Epoch.Add(100*time.Second), clock.Now())
}

func TestFixedIDGenerator(t *testing.T) {
	assert.Equal(t, "test-request-id", NewFixedIDGenerator("").Generate())

	gen := NewFixedIDGenerator("req-1")
	assert.Equal(t, "req-1", gen.Generate())
	assert.Equal(t, "req-1", gen.Generate())
}
