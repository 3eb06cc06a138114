package bus

import (
	"testing"

	"github.com/livecue/chatfeed/comment"
)

func TestPublishFanOut(t *testing.T) {
	b := New()
	a := make(chan Event, 4)
	c := make(chan Event, 4)
	if err := b.Subscribe("a", a); err != nil {
		t.Fatalf("subscribe a: %v", err)
	}
	if err := b.Subscribe("c", c); err != nil {
		t.Fatalf("subscribe c: %v", err)
	}

	b.Publish(Event{Kind: SourceComment, Source: "twitch-main", Comment: &comment.Comment{ID: "1", Message: "hi"}})

	for _, ch := range []chan Event{a, c} {
		select {
		case ev := <-ch:
			if ev.Kind != SourceComment || ev.Source != "twitch-main" {
				t.Errorf("unexpected event %+v", ev)
			}
			if ev.At.IsZero() {
				t.Error("expected At to be stamped")
			}
		default:
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestDuplicateSubscriberRejected(t *testing.T) {
	b := New()
	ch := make(chan Event, 1)
	if err := b.Subscribe("x", ch); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := b.Subscribe("x", ch); err != ErrSubscriberExists {
		t.Errorf("expected ErrSubscriberExists, got %v", err)
	}
}

func TestDropOnFullChannel(t *testing.T) {
	b := New()
	slow := make(chan Event, 1)
	if err := b.Subscribe("slow", slow); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	b.Publish(Event{Kind: FeedCleared})
	b.Publish(Event{Kind: FeedCleared}) // buffer full; must not block

	st := b.Stats()
	if st.TotalPublished != 2 {
		t.Errorf("TotalPublished = %d, want 2", st.TotalPublished)
	}
	if st.Subscribers["slow"].Sent != 1 || st.Subscribers["slow"].Dropped != 1 {
		t.Errorf("subscriber stats = %+v, want 1 sent / 1 dropped", st.Subscribers["slow"])
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	ch := make(chan Event, 1)
	if err := b.Subscribe("x", ch); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := b.Unsubscribe("x"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := b.Unsubscribe("x"); err != ErrSubscriberNotFound {
		t.Errorf("expected ErrSubscriberNotFound, got %v", err)
	}
	b.Publish(Event{Kind: FeedCleared})
	select {
	case ev := <-ch:
		t.Errorf("received event after unsubscribe: %+v", ev)
	default:
	}
}

func TestClosedBus(t *testing.T) {
	b := New()
	ch := make(chan Event, 1)
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := b.Subscribe("x", ch); err != ErrBusClosed {
		t.Errorf("expected ErrBusClosed on subscribe, got %v", err)
	}
	b.Publish(Event{Kind: FeedCleared}) // must not panic
	if err := b.Close(); err != ErrBusClosed {
		t.Errorf("expected ErrBusClosed on double close, got %v", err)
	}
}
