package chathub_test

import (
	"sputnikchat/backend/internal/chathub"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_CompletesInArrivalOrder(t *testing.T) {
	got := make(chan []int, 1)
	c := chathub.NewCollector(3, time.Second, func(batch []int) { got <- batch })

	c.Tell(3)
	c.Tell(1)
	c.Tell(2)

	select {
	case batch := <-got:
		assert.Equal(t, []int{3, 1, 2}, batch)
	case <-time.After(waitFor):
		t.Fatal("collector did not complete")
	}
	assert.Eventually(t, func() bool {
		select {
		case <-c.Done():
			return true
		default:
			return false
		}
	}, waitFor, tick)
}

func TestCollector_TimeoutNeverCallsCompletion(t *testing.T) {
	var called atomic.Bool
	c := chathub.NewCollector(3, 50*time.Millisecond, func([]string) { called.Store(true) })

	c.Tell("a")
	c.Tell("b")

	select {
	case <-c.Done():
	case <-time.After(waitFor):
		t.Fatal("collector did not stop after its timeout")
	}
	assert.False(t, called.Load())

	// A late reply is dropped.
	c.Tell("c")
	time.Sleep(20 * time.Millisecond)
	assert.False(t, called.Load())
}

func TestCollector_ZeroExpectedCompletesImmediately(t *testing.T) {
	got := make(chan []int, 1)
	c := chathub.NewCollector(0, time.Second, func(batch []int) { got <- batch })

	select {
	case batch := <-got:
		assert.Empty(t, batch)
	case <-time.After(waitFor):
		t.Fatal("collector did not complete")
	}
	<-c.Done()
}

func TestCollector_IgnoresForeignMessages(t *testing.T) {
	got := make(chan []int, 1)
	c := chathub.NewCollector(1, time.Second, func(batch []int) { got <- batch })

	c.Tell("not an int")
	c.Tell(7)

	select {
	case batch := <-got:
		require.Len(t, batch, 1)
		assert.Equal(t, 7, batch[0])
	case <-time.After(waitFor):
		t.Fatal("collector did not complete")
	}
}
