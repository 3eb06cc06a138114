// Package server exposes the HTTP API handlers.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/livecue/chatfeed/bus"
	"github.com/livecue/chatfeed/feed"
	"github.com/livecue/chatfeed/sources"
)

// Handlers holds dependencies for all HTTP handlers. ctx is the process
// lifetime context; adapters started over HTTP must outlive the request.
type Handlers struct {
	ctx        context.Context
	manager    *feed.Manager
	supervisor *sources.Supervisor
	bus        *bus.Bus
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(ctx context.Context, m *feed.Manager, sup *sources.Supervisor, b *bus.Bus) *Handlers {
	return &Handlers{ctx: ctx, manager: m, supervisor: sup, bus: b}
}

// parseIntQuery extracts an int parameter from query string with a default value.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HandleHealthz responds to liveness probe requests.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleFeed returns the current feed newest-first as JSON. An optional
// limit query parameter bounds the result.
func (h *Handlers) HandleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := parseIntQuery(r, "limit", 0)
	entries := h.manager.Feed(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(entries),
		"comments": entries,
	})
}

// HandleFeedXML returns the feed as an XML document for overlay consumers.
func (h *Handlers) HandleFeedXML(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := parseIntQuery(r, "limit", 0)
	out, err := h.manager.XML(limit)
	if err != nil {
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// HandleStats returns moderation counters and delivery stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"feed": h.manager.Stats(),
		"bus":  h.bus.Stats(),
	})
}

// HandleHighlight marks one feed entry highlighted and triggers a push.
func (h *Handlers) HandleHighlight(w http.ResponseWriter, r *http.Request) {
	h.feedEntryAction(w, r, func(id string) bool {
		return h.manager.Highlight(r.Context(), id)
	})
}

// HandlePin moves one feed entry into the pinned block at the head.
func (h *Handlers) HandlePin(w http.ResponseWriter, r *http.Request) {
	h.feedEntryAction(w, r, h.manager.Pin)
}

// HandleUnpin releases a pinned entry back into timestamp order.
func (h *Handlers) HandleUnpin(w http.ResponseWriter, r *http.Request) {
	h.feedEntryAction(w, r, h.manager.Unpin)
}

func (h *Handlers) feedEntryAction(w http.ResponseWriter, r *http.Request, fn func(id string) bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	if !fn(id) {
		http.Error(w, "comment not found or limit reached", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "id": id})
}

// HandleClear empties the feed and resets statistics.
func (h *Handlers) HandleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.manager.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// HandleSources lists registered sources with their running state.
func (h *Handlers) HandleSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": h.supervisor.Status()})
}

// HandleSourceStart starts one registered source by name.
func (h *Handlers) HandleSourceStart(w http.ResponseWriter, r *http.Request) {
	name, ok := h.sourceName(w, r)
	if !ok {
		return
	}
	h.supervisor.Start(h.ctx, name)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sources": h.supervisor.Status()})
}

// HandleSourceStop stops one registered source by name.
func (h *Handlers) HandleSourceStop(w http.ResponseWriter, r *http.Request) {
	name, ok := h.sourceName(w, r)
	if !ok {
		return
	}
	h.supervisor.Stop(name)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sources": h.supervisor.Status()})
}

func (h *Handlers) sourceName(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return "", false
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return "", false
	}
	for _, n := range h.supervisor.List() {
		if n == name {
			return name, true
		}
	}
	http.Error(w, "unknown source", http.StatusNotFound)
	return "", false
}
