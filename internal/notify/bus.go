// Package notify fans scheduler events out to uninvolved observers such as
// the CLI printer, the TUI and the metrics collector.
package notify

import "sync"

// Handler receives events in emission order.
type Handler func(Event)

// Bus is an ordered, asynchronous event fan-out.
//
// Emit never blocks on handlers: events are queued and delivered by a single
// dispatcher goroutine, so a handler may call back into the component that
// emitted the event.
type Bus struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Event
	handlers map[int]Handler
	order    []int
	nextID   int
	busy     bool
	closed   bool
	done     chan struct{}
}

// NewBus creates a Bus and starts its dispatcher.
func NewBus() *Bus {
	b := &Bus{
		handlers: make(map[int]Handler),
		done:     make(chan struct{}),
	}
	b.cond = sync.NewCond(&b.mu)
	go b.dispatch()
	return b
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.order = append(b.order, id)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Emit queues ev for delivery. Events emitted after Close are dropped.
func (b *Bus) Emit(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.queue = append(b.queue, ev)
	b.cond.Broadcast()
}

// Flush blocks until every queued event has been delivered. It must not be
// called from a handler.
func (b *Bus) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for (len(b.queue) > 0 || b.busy) && !b.isStopped() {
		b.cond.Wait()
	}
}

// Close delivers the remaining events and stops the dispatcher.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return
	}
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()

	<-b.done
}

func (b *Bus) isStopped() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

func (b *Bus) dispatch() {
	defer close(b.done)

	b.mu.Lock()
	for {
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.queue) == 0 && b.closed {
			b.cond.Broadcast()
			b.mu.Unlock()
			return
		}

		ev := b.queue[0]
		b.queue = b.queue[1:]
		handlers := make([]Handler, 0, len(b.order))
		for _, id := range b.order {
			handlers = append(handlers, b.handlers[id])
		}
		b.busy = true
		b.mu.Unlock()

		for _, h := range handlers {
			h(ev)
		}

		b.mu.Lock()
		b.busy = false
		b.cond.Broadcast()
	}
}
