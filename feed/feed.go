// Package feed owns the bounded, ordered comment buffer, its statistics, and
// push scheduling to the vMix sink. The Manager is the only holder of mutable
// shared state in the service: adapters feed it concurrently, the HTTP layer
// reads snapshots from it.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/livecue/chatfeed/bus"
	"github.com/livecue/chatfeed/comment"
	"github.com/livecue/chatfeed/moderation"
	"github.com/livecue/chatfeed/telemetry"
)

// Moderator classifies one comment. Satisfied by *moderation.Pipeline.
type Moderator interface {
	Moderate(ctx context.Context, c comment.Comment) moderation.Result
}

// Sink is the external display target. Satisfied by *vmixapi.Client.
type Sink interface {
	Ping(ctx context.Context) (bool, error)
	SetFields(ctx context.Context, input string, fields map[string]string) error
	TriggerTransition(ctx context.Context, input, name string) error
}

// Options configures a Manager.
type Options struct {
	MaxFeedSize int
	MaxPinned   int

	PushEnabled bool
	PushEvery   time.Duration
	PushMax     int // comments serialized per push
	SinkInput   string
	Transition  string
}

// Stats is a snapshot of session counters.
type Stats struct {
	Total        int            `json:"total"`
	Approved     int            `json:"approved"`
	Blocked      int            `json:"blocked"`
	PerPlatform  map[string]int `json:"perPlatform"`
	FeedSize     int            `json:"feedSize"`
	ApprovalRate int            `json:"approvalRate"` // percent, 0 when Total is 0
}

// Manager consumes the unified comment stream, moderates each item, mutates
// the bounded buffer, and pushes best-effort updates to the sink.
//
// Buffer ordering: pinned entries first (most recently pinned first), then
// unpinned entries newest-first. Pinned entries count toward MaxFeedSize but
// are never evicted by capacity trimming; MaxPinned bounds how many can be
// protected at once.
type Manager struct {
	opts Options
	mod  Moderator
	sink Sink
	bus  *bus.Bus
	log  *slog.Logger

	mu          sync.Mutex
	buf         []*comment.Enriched
	total       int
	approved    int
	blocked     int
	perPlatform map[string]int
}

// NewManager wires a Manager. sink may be nil when pushing is disabled.
func NewManager(opts Options, mod Moderator, sink Sink, b *bus.Bus, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxFeedSize <= 0 {
		opts.MaxFeedSize = 100
	}
	if opts.MaxPinned <= 0 || opts.MaxPinned > opts.MaxFeedSize {
		opts.MaxPinned = min(3, opts.MaxFeedSize)
	}
	if opts.PushEvery <= 0 {
		opts.PushEvery = 10 * time.Second
	}
	if opts.PushMax <= 0 {
		opts.PushMax = 5
	}
	return &Manager{
		opts:        opts,
		mod:         mod,
		sink:        sink,
		bus:         b,
		log:         log,
		perPlatform: make(map[string]int),
	}
}

// AddComment ingests one normalized comment. It never returns an error: a
// blocked item only bumps counters and emits an event, a sink failure only
// costs the visual push. Safe for concurrent use; the moderation round trip
// runs outside the buffer lock so slow classifier calls don't serialize
// ingestion.
func (m *Manager) AddComment(ctx context.Context, c comment.Comment) {
	normalize(&c)
	if telemetry.CommentsIngested != nil {
		telemetry.CommentsIngested.Inc()
	}

	var res moderation.Result
	telemetry.TimeFunc(telemetry.ModerationDuration, func() {
		res = m.mod.Moderate(ctx, c)
	})

	m.mu.Lock()
	m.total++
	m.perPlatform[c.Platform]++

	if !res.Allow {
		m.blocked++
		m.mu.Unlock()
		if telemetry.CommentsBlocked != nil {
			telemetry.CommentsBlocked.Inc()
		}
		m.log.Debug("comment blocked", slog.String("platform", c.Platform), slog.String("author", c.Author), slog.String("reason", res.Reason))
		m.publish(bus.Event{Kind: bus.CommentBlocked, Comment: &c, Reason: res.Reason})
		return
	}

	e := &comment.Enriched{
		Comment:     c,
		Highlighted: res.Highlight,
		ApprovedAt:  time.Now().UTC(),
	}
	m.insertLocked(e)
	m.trimLocked()
	m.approved++
	snapshot := *e
	size := len(m.buf)
	m.mu.Unlock()

	if telemetry.CommentsApproved != nil {
		telemetry.CommentsApproved.Inc()
	}
	telemetry.SetFeedSize(size)

	m.publish(bus.Event{Kind: bus.CommentApproved, Enriched: &snapshot})
	if snapshot.Highlighted {
		m.publish(bus.Event{Kind: bus.CommentHighlighted, Enriched: &snapshot})
		go m.pushOnce(context.WithoutCancel(ctx))
	}
}

// Highlight marks a buffered comment and triggers an immediate sink push.
// No-op when the id is not currently buffered.
func (m *Manager) Highlight(ctx context.Context, id string) bool {
	m.mu.Lock()
	e := m.findLocked(id)
	if e == nil {
		m.mu.Unlock()
		return false
	}
	e.Highlighted = true
	snapshot := *e
	m.mu.Unlock()

	m.publish(bus.Event{Kind: bus.CommentHighlighted, Enriched: &snapshot})
	// The push outlives the caller (an HTTP handler's context is cancelled
	// the moment it returns), so detach cancellation but keep values.
	go m.pushOnce(context.WithoutCancel(ctx))
	return true
}

// Pin moves a buffered comment to the head and protects it from capacity
// eviction. At most MaxPinned comments can be pinned; beyond that Pin is a
// logged no-op. Returns false when the id is not buffered or the cap is hit.
func (m *Manager) Pin(id string) bool {
	m.mu.Lock()
	idx := -1
	pinned := 0
	for i, e := range m.buf {
		if e.Pinned {
			pinned++
		}
		if e.ID == id {
			idx = i
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return false
	}
	e := m.buf[idx]
	if !e.Pinned && pinned >= m.opts.MaxPinned {
		m.mu.Unlock()
		m.log.Warn("pin limit reached", slog.String("id", id), slog.Int("max_pinned", m.opts.MaxPinned))
		return false
	}
	m.buf = append(m.buf[:idx], m.buf[idx+1:]...)
	e.Pinned = true
	m.buf = append([]*comment.Enriched{e}, m.buf...)
	snapshot := *e
	m.mu.Unlock()

	m.publish(bus.Event{Kind: bus.CommentPinned, Enriched: &snapshot})
	return true
}

// Unpin removes eviction protection and reorders the entry among the
// unpinned by approval recency.
func (m *Manager) Unpin(id string) bool {
	m.mu.Lock()
	idx := -1
	for i, e := range m.buf {
		if e.ID == id && e.Pinned {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return false
	}
	e := m.buf[idx]
	e.Pinned = false
	m.buf = append(m.buf[:idx], m.buf[idx+1:]...)
	reinsert := m.pinnedCountLocked()
	for ; reinsert < len(m.buf); reinsert++ {
		if !m.buf[reinsert].ApprovedAt.After(e.ApprovedAt) {
			break
		}
	}
	m.buf = append(m.buf[:reinsert], append([]*comment.Enriched{e}, m.buf[reinsert:]...)...)
	m.trimLocked()
	m.mu.Unlock()
	return true
}

// Clear empties the buffer, resets all statistics, and invalidates the
// moderation cache when the pipeline supports it.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.buf = nil
	m.total = 0
	m.approved = 0
	m.blocked = 0
	m.perPlatform = make(map[string]int)
	m.mu.Unlock()

	if cc, ok := m.mod.(interface{ ClearCache() }); ok {
		cc.ClearCache()
	}
	telemetry.SetFeedSize(0)
	m.publish(bus.Event{Kind: bus.FeedCleared})
}

// Feed returns up to limit buffered comments, pinned-then-newest first, as
// value copies that never alias manager state.
func (m *Manager) Feed(limit int) []comment.Enriched {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.buf) {
		limit = len(m.buf)
	}
	out := make([]comment.Enriched, 0, limit)
	for _, e := range m.buf[:limit] {
		out = append(out, *e)
	}
	return out
}

// Stats returns a snapshot of the session counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	per := make(map[string]int, len(m.perPlatform))
	for k, v := range m.perPlatform {
		per[k] = v
	}
	rate := 0
	if m.total > 0 {
		rate = int(math.Round(float64(m.approved) / float64(m.total) * 100))
	}
	return Stats{
		Total:        m.total,
		Approved:     m.approved,
		Blocked:      m.blocked,
		PerPlatform:  per,
		FeedSize:     len(m.buf),
		ApprovalRate: rate,
	}
}

// RunPusher probes the sink once and then pushes the head of the feed on a
// fixed interval until ctx is cancelled. Push failures are logged and
// retried implicitly on the next tick. Blocks; run it in a goroutine.
func (m *Manager) RunPusher(ctx context.Context) {
	if m.sink == nil {
		return
	}
	if ok, err := m.sink.Ping(ctx); err != nil || !ok {
		m.log.Warn("sink unreachable at startup; feed continues without pushes", slog.Any("err", err))
	} else {
		m.log.Info("sink reachable")
	}
	if !m.opts.PushEnabled {
		m.log.Info("periodic push disabled")
		return
	}

	ticker := time.NewTicker(m.opts.PushEvery)
	defer ticker.Stop()
	m.log.Info("push loop started", slog.Duration("interval", m.opts.PushEvery))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pushOnce(ctx)
		}
	}
}

// pushOnce serializes the head of the feed into sink title fields and fires
// the configured transition. Best-effort: errors are counted and logged.
func (m *Manager) pushOnce(ctx context.Context) {
	if m.sink == nil {
		return
	}
	head := m.Feed(m.opts.PushMax)

	fields := make(map[string]string, m.opts.PushMax*2)
	for i := 0; i < m.opts.PushMax; i++ {
		author, text := "", ""
		if i < len(head) {
			author = head[i].Author
			text = head[i].Message
		}
		fields[fmt.Sprintf("Author%d.Text", i+1)] = author
		fields[fmt.Sprintf("Message%d.Text", i+1)] = text
	}

	if err := m.sink.SetFields(ctx, m.opts.SinkInput, fields); err != nil {
		if telemetry.VMixPushFailures != nil {
			telemetry.VMixPushFailures.Inc()
		}
		m.log.Warn("sink push failed", slog.Any("err", err))
		return
	}
	if err := m.sink.TriggerTransition(ctx, m.opts.SinkInput, m.opts.Transition); err != nil {
		if telemetry.VMixPushFailures != nil {
			telemetry.VMixPushFailures.Inc()
		}
		m.log.Warn("sink transition failed", slog.Any("err", err))
		return
	}
	if telemetry.VMixPushes != nil {
		telemetry.VMixPushes.Inc()
	}
	m.publish(bus.Event{Kind: bus.VMixPush, Count: len(head)})
}

func (m *Manager) publish(ev bus.Event) {
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}

func (m *Manager) findLocked(id string) *comment.Enriched {
	for _, e := range m.buf {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (m *Manager) pinnedCountLocked() int {
	n := 0
	for _, e := range m.buf {
		if e.Pinned {
			n++
		}
	}
	return n
}

// insertLocked places a new entry at the head of the unpinned region, below
// any pinned entries.
func (m *Manager) insertLocked(e *comment.Enriched) {
	idx := 0
	for idx < len(m.buf) && m.buf[idx].Pinned {
		idx++
	}
	m.buf = append(m.buf[:idx], append([]*comment.Enriched{e}, m.buf[idx:]...)...)
}

// trimLocked evicts oldest unpinned entries until the buffer fits
// MaxFeedSize. Pinned entries are skipped; MaxPinned guarantees at least one
// evictable entry exists whenever the buffer is over capacity.
func (m *Manager) trimLocked() {
	for len(m.buf) > m.opts.MaxFeedSize {
		evicted := false
		for i := len(m.buf) - 1; i >= 0; i-- {
			if !m.buf[i].Pinned {
				m.buf = append(m.buf[:i], m.buf[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			return
		}
	}
}

// normalize fills the fields the pipeline requires so no inbound item is
// unaddressable: a missing id gets a generated one, a missing platform tag
// becomes "unknown", a zero timestamp becomes now. Empty messages are left
// for the rule stage to reject.
func normalize(c *comment.Comment) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Platform == "" {
		c.Platform = "unknown"
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}
}
