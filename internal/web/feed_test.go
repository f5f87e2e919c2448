package web

import (
	"sync"
	"testing"
	"time"

	"tsipmon/internal/monitor"
)

func TestEventFeed_LastEventReplayedToNewSubscriber(t *testing.T) {
	f := NewEventFeed()
	_ = f.Publish(monitor.Event{Index: 1})
	_ = f.Publish(monitor.Event{Index: 2})

	id, ch := f.Subscribe(4)
	defer f.Unsubscribe(id)
	ev := <-ch
	if ev.Index != 2 {
		t.Fatalf("index=%d want 2", ev.Index)
	}
	if f.Clients() != 1 {
		t.Fatalf("clients=%d want 1", f.Clients())
	}
}

func TestEventFeed_SlowClientDrops(t *testing.T) {
	f := NewEventFeed()
	id, ch := f.Subscribe(1)
	for i := 0; i < 3; i++ {
		if err := f.Publish(monitor.Event{Index: uint64(i)}); err != nil {
			t.Fatalf("Publish() error: %v", err)
		}
	}
	if f.Dropped() != 2 {
		t.Fatalf("dropped=%d want 2", f.Dropped())
	}
	if ev := <-ch; ev.Index != 0 {
		t.Fatalf("index=%d want 0", ev.Index)
	}
	f.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after Unsubscribe")
	}
	f.Unsubscribe(id)
}

func TestEventFeed_Close(t *testing.T) {
	f := NewEventFeed()
	_, ch := f.Subscribe(1)
	f.Close()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	if f.Clients() != 0 {
		t.Fatalf("clients=%d want 0", f.Clients())
	}
	_, late := f.Subscribe(1)
	if _, ok := <-late; ok {
		t.Fatalf("expected closed channel for late subscriber")
	}
	if err := f.Publish(monitor.Event{}); err != nil {
		t.Fatalf("Publish() after Close error: %v", err)
	}
	f.Close()
}

func TestEventFeed_SubscribeDuringPublishDoesNotBlock(t *testing.T) {
	f := NewEventFeed()
	_ = f.Publish(monitor.Event{Index: 0})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := uint64(1); ; i++ {
				select {
				case <-stop:
					return
				default:
					_ = f.Publish(monitor.Event{Index: i})
				}
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			id, ch := f.Subscribe(1)
			<-ch
			f.Unsubscribe(id)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Subscribe blocked while events were being published")
	}
	close(stop)
	wg.Wait()
}
