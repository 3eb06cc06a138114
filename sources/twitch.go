package sources

import (
	"context"
	"errors"
	"fmt"
	"sync"

	twitch "github.com/gempir/go-twitch-irc/v4"
)

func init() {
	RegisterKind(KindTwitch, func(cfg Config) Adapter {
		return &twitchAdapter{cfg: cfg}
	})
}

// twitchAdapter joins one channel over Twitch IRC and emits every chat
// message as a normalized comment.
type twitchAdapter struct {
	cfg Config

	mu     sync.Mutex
	client *twitch.Client
	cancel context.CancelFunc
}

func (a *twitchAdapter) Start(ctx context.Context, emit Emitter) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil {
		return nil
	}
	if a.cfg.Channel == "" || a.cfg.BotUsername == "" || a.cfg.OAuthToken == "" {
		return fmt.Errorf("twitch adapter requires channel, bot username, and oauth token")
	}

	client := twitch.NewClient(a.cfg.BotUsername, a.cfg.OAuthToken)
	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		emit.EmitComment(normalizeTwitchMessage(msg))
	})
	client.OnConnect(func() {
		emit.EmitDebug("connected to twitch irc")
	})
	client.Join(a.cfg.Channel)

	runCtx, cancel := context.WithCancel(ctx)
	a.client = client
	a.cancel = cancel

	go func() {
		<-runCtx.Done()
		client.Disconnect()
	}()
	go func() {
		if err := client.Connect(); err != nil && !errors.Is(err, twitch.ErrClientDisconnected) {
			emit.EmitError(fmt.Errorf("twitch irc connect: %w", err))
		}
		emit.EmitDebug("twitch irc loop exited")
	}()
	return nil
}

func (a *twitchAdapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == nil {
		return nil
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.client = nil
	return nil
}
