package web

import (
	"sync"
	"sync/atomic"

	"tsipmon/internal/monitor"
)

// EventFeed fans session events out to websocket clients. Slow clients lose
// events rather than stall the decode loop. New subscribers get the most
// recent event immediately.
type EventFeed struct {
	mu       sync.RWMutex
	subs     map[int]chan monitor.Event
	nextID   int
	last     monitor.Event
	haveLast bool
	closed   bool

	dropped atomic.Uint64
}

func NewEventFeed() *EventFeed {
	return &EventFeed{subs: make(map[int]chan monitor.Event)}
}

func (f *EventFeed) Name() string { return "websocket feed" }

// Subscribe registers a listener. The channel is closed by Unsubscribe or
// Close.
func (f *EventFeed) Subscribe(buffer int) (int, <-chan monitor.Event) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan monitor.Event, buffer)
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return -1, ch
	}
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	// ch is empty and buffered, so this cannot block; sending under the lock
	// keeps a concurrent Publish from filling it first.
	if f.haveLast {
		ch <- f.last
	}
	f.mu.Unlock()
	return id, ch
}

func (f *EventFeed) Unsubscribe(id int) {
	f.mu.Lock()
	ch, ok := f.subs[id]
	if ok {
		delete(f.subs, id)
		close(ch)
	}
	f.mu.Unlock()
}

// Publish never blocks and never fails.
func (f *EventFeed) Publish(ev monitor.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	for _, ch := range f.subs {
		select {
		case ch <- ev:
		default:
			f.dropped.Add(1)
		}
	}
	f.last = ev
	f.haveLast = true
	return nil
}

func (f *EventFeed) Clients() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

func (f *EventFeed) Dropped() uint64 { return f.dropped.Load() }

// Close ends every subscription; later subscribers get a closed channel.
func (f *EventFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}
