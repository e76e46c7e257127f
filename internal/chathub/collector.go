package chathub

import (
	"log"
	"time"
)

type collectorTimeout struct{}

// Collector gathers exactly expected replies of type T, then hands them to
// onComplete in arrival order and stops. When the timeout fires first the
// collector stops without calling onComplete. onComplete runs on the
// collector goroutine, so it should only Tell the owning unit.
type Collector[T any] struct {
	*process

	expected   int
	replies    []T
	onComplete func([]T)
	timer      *time.Timer
}

// NewCollector starts a collector.
func NewCollector[T any](expected int, timeout time.Duration, onComplete func([]T)) *Collector[T] {
	c := &Collector[T]{
		process:    newProcess("collector"),
		expected:   expected,
		replies:    make([]T, 0, expected),
		onComplete: onComplete,
	}
	c.timer = time.AfterFunc(timeout, func() { c.Tell(collectorTimeout{}) })
	go c.run(c.preStart, c.receive, func() { c.timer.Stop() })
	return c
}

func (c *Collector[T]) preStart() {
	if c.expected > 0 {
		return
	}
	c.onComplete(nil)
	c.Stop()
}

func (c *Collector[T]) receive(msg any) bool {
	if _, ok := msg.(collectorTimeout); ok {
		log.Printf("WARNING: collector timed out with %d of %d replies", len(c.replies), c.expected)
		return false
	}

	reply, ok := msg.(T)
	if !ok {
		log.Printf("WARNING: collector dropped unexpected message %T", msg)
		return true
	}
	c.replies = append(c.replies, reply)
	if len(c.replies) < c.expected {
		return true
	}

	c.onComplete(c.replies)
	return false
}
