// Package sources registers chat source adapters and supervises them. Each
// adapter converts one platform's stream into normalized comment events; the
// supervisor forwards everything onto a single bus and keeps one adapter's
// failure from touching the others.
package sources

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/livecue/chatfeed/comment"
)

// Kind tags an adapter variant. The set is closed: only kinds registered via
// RegisterKind can be constructed, anything else fails registration.
type Kind string

const (
	KindTwitch  Kind = "twitch"
	KindYouTube Kind = "youtube"
	KindReplay  Kind = "replay"
)

// Config carries everything any adapter variant may need; each factory reads
// only its own fields.
type Config struct {
	Kind Kind

	// Twitch IRC
	Channel     string
	BotUsername string
	OAuthToken  string

	// YouTube live chat
	VideoID           string
	APIKey            string
	PollInterval      time.Duration
	OAuthClientID     string
	OAuthClientSecret string
	OAuthRefreshToken string

	// Replay
	Script   []comment.Comment
	Interval time.Duration
}

// Emitter receives an adapter's events. The supervisor hands each adapter an
// emitter that tags events with the registered name and forwards them to the
// bus; a detached emitter silently drops everything.
type Emitter interface {
	EmitComment(c comment.Comment)
	EmitError(err error)
	EmitDebug(msg string)
}

// Adapter is the capability contract every source implements. Start is
// non-blocking and idempotent; the adapter's goroutines exit when ctx is
// cancelled or Stop is called. Both may return errors, which the supervisor
// isolates.
type Adapter interface {
	Start(ctx context.Context, emit Emitter) error
	Stop() error
}

// Factory builds an adapter for a validated Config.
type Factory func(cfg Config) Adapter

var (
	factoriesMu sync.RWMutex
	factories   = make(map[Kind]Factory)
)

// RegisterKind adds a kind to the closed registry. Adapter implementations
// call this from init.
func RegisterKind(k Kind, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[k] = f
}

// Kinds returns the registered kinds, sorted.
func Kinds() []Kind {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	out := make([]Kind, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func factoryFor(k Kind) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[k]
	return f, ok
}

// ConfigurationError reports a registration with an unknown adapter kind.
type ConfigurationError struct {
	Name string
	Kind Kind
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("source %q: unknown adapter kind %q", e.Name, e.Kind)
}
