// Package bus provides non-blocking event distribution to multiple subscribers.
//
// Events published to the bus are fanned out to every registered subscriber
// channel. If a subscriber's channel is full the event is dropped for that
// subscriber rather than queued, so a slow consumer (an SSE client, a logger)
// can never stall ingestion.
package bus

import (
	"errors"
	"sync"
	"time"

	"github.com/livecue/chatfeed/comment"
)

// Kind identifies an event type on the bus.
type Kind string

const (
	SourceComment Kind = "source:comment"
	SourceError   Kind = "source:error"
	SourceDebug   Kind = "source:debug"

	CommentBlocked     Kind = "comment:blocked"
	CommentApproved    Kind = "comment:approved"
	CommentHighlighted Kind = "comment:highlighted"
	CommentPinned      Kind = "comment:pinned"
	FeedCleared        Kind = "feed:cleared"
	VMixPush           Kind = "vmix:push"
)

// Event is the single message type carried on the bus. Only the fields
// relevant to Kind are populated.
type Event struct {
	Kind   Kind
	Source string // adapter name for source:* events
	At     time.Time

	Comment  *comment.Comment  // source:comment, comment:blocked
	Enriched *comment.Enriched // comment:approved / highlighted / pinned
	Reason   string            // comment:blocked diagnostic
	Count    int               // vmix:push payload size
	Err      error             // source:error
	Debug    string            // source:debug free text
}

var (
	// ErrSubscriberExists is returned when Subscribe is called with a duplicate id.
	ErrSubscriberExists = errors.New("subscriber id already exists")

	// ErrSubscriberNotFound is returned when Unsubscribe is called with an unknown id.
	ErrSubscriberNotFound = errors.New("subscriber id not found")

	// ErrBusClosed is returned when operations are attempted on a closed bus.
	ErrBusClosed = errors.New("bus is closed")
)

// Stats contains global and per-subscriber delivery counts.
type Stats struct {
	TotalPublished uint64
	TotalSent      uint64
	TotalDropped   uint64
	Subscribers    map[string]SubscriberStats
}

// SubscriberStats tracks delivery counts for a single subscriber.
type SubscriberStats struct {
	Sent    uint64
	Dropped uint64
}

type subscriber struct {
	ch      chan<- Event
	sent    uint64
	dropped uint64
}

// Bus distributes events to subscribers with a drop policy. All methods are
// safe for concurrent use.
type Bus struct {
	mu        sync.RWMutex
	subs      map[string]*subscriber
	closed    bool
	published uint64
}

// New returns an empty open bus.
func New() *Bus {
	return &Bus{subs: make(map[string]*subscriber)}
}

// Subscribe registers a channel to receive events.
func (b *Bus) Subscribe(id string, ch chan<- Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	if _, ok := b.subs[id]; ok {
		return ErrSubscriberExists
	}
	b.subs[id] = &subscriber{ch: ch}
	return nil
}

// Unsubscribe removes a subscriber by id.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	if _, ok := b.subs[id]; !ok {
		return ErrSubscriberNotFound
	}
	delete(b.subs, id)
	return nil
}

// Publish sends the event to all subscribers without blocking. Events are
// dropped for subscribers whose channels are full. Publishing to a closed bus
// is a no-op.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.published++
	for _, s := range b.subs {
		select {
		case s.ch <- ev:
			s.sent++
		default:
			s.dropped++
		}
	}
}

// Stats returns a snapshot of delivery counts.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st := Stats{
		TotalPublished: b.published,
		Subscribers:    make(map[string]SubscriberStats, len(b.subs)),
	}
	for id, s := range b.subs {
		st.Subscribers[id] = SubscriberStats{Sent: s.sent, Dropped: s.dropped}
		st.TotalSent += s.sent
		st.TotalDropped += s.dropped
	}
	return st
}

// Close stops the bus. Subsequent Subscribe/Unsubscribe return ErrBusClosed
// and Publish becomes a no-op. Subscriber channels are not closed; their
// owners close them.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	b.closed = true
	b.subs = make(map[string]*subscriber)
	return nil
}
