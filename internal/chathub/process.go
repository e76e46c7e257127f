package chathub

import (
	"log"
	"sync"
)

// Ref is the address of a running unit. Tell never blocks; messages sent to a
// stopped unit are dropped. Done is closed once the unit has stopped.
type Ref interface {
	Tell(msg any)
	Done() <-chan struct{}
}

type stopMsg struct{}

// process is a goroutine draining an unbounded FIFO mailbox. Messages from
// one sender are handled in the order they were told.
type process struct {
	name string

	mu      sync.Mutex
	queue   []any
	stopped bool

	notify chan struct{}
	done   chan struct{}
}

func newProcess(name string) *process {
	return &process{
		name:   name,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (p *process) Tell(msg any) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, msg)
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *process) Done() <-chan struct{} {
	return p.done
}

// Stop asks the unit to stop after the messages already queued.
func (p *process) Stop() {
	p.Tell(stopMsg{})
}

func (p *process) next() (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil, false
	}
	msg := p.queue[0]
	p.queue[0] = nil // let the GC take it
	p.queue = p.queue[1:]
	return msg, true
}

// run is the unit loop. preStart runs before the first message, receive
// handles one message and returns false to stop the unit, postStop runs after
// the mailbox is closed. Any hook may be nil except receive.
func (p *process) run(preStart func(), receive func(msg any) bool, postStop func()) {
	defer func() {
		p.mu.Lock()
		p.stopped = true
		p.queue = nil
		p.mu.Unlock()

		if postStop != nil {
			postStop()
		}
		close(p.done)
	}()

	if preStart != nil {
		preStart()
	}

	for range p.notify {
		for {
			msg, ok := p.next()
			if !ok {
				break
			}
			if _, stop := msg.(stopMsg); stop {
				return
			}
			if !p.dispatch(receive, msg) {
				return
			}
		}
	}
}

// dispatch handles one message. A panicking handler loses only the message
// being handled; the unit keeps its state and goes on with the next one.
func (p *process) dispatch(receive func(msg any) bool, msg any) (keepRunning bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: %s recovered from panic while handling %T: %v", p.name, msg, r)
			keepRunning = true
		}
	}()
	return receive(msg)
}
