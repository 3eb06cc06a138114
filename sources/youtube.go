package sources

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/livecue/chatfeed/comment"
)

func init() {
	RegisterKind(KindYouTube, func(cfg Config) Adapter {
		return &youtubeAdapter{cfg: cfg}
	})
}

// youtubeAdapter polls the YouTube Live Chat REST API for one live video.
// The server-suggested polling interval is respected when it is longer than
// the configured one.
type youtubeAdapter struct {
	cfg Config

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

func (a *youtubeAdapter) Start(ctx context.Context, emit Emitter) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil
	}
	if a.cfg.VideoID == "" {
		return fmt.Errorf("youtube adapter requires a video id")
	}
	if a.cfg.APIKey == "" && a.cfg.OAuthRefreshToken == "" {
		return fmt.Errorf("youtube adapter requires an api key or oauth refresh token")
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.running = true
	go a.run(runCtx, emit)
	return nil
}

func (a *youtubeAdapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.running = false
	return nil
}

func (a *youtubeAdapter) service(ctx context.Context) (*yt.Service, error) {
	if a.cfg.OAuthRefreshToken != "" {
		oc := &oauth2.Config{
			ClientID:     a.cfg.OAuthClientID,
			ClientSecret: a.cfg.OAuthClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{yt.YoutubeReadonlyScope},
		}
		ts := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: a.cfg.OAuthRefreshToken})
		return yt.NewService(ctx, option.WithTokenSource(ts))
	}
	return yt.NewService(ctx, option.WithAPIKey(a.cfg.APIKey))
}

func (a *youtubeAdapter) run(ctx context.Context, emit Emitter) {
	svc, err := a.service(ctx)
	if err != nil {
		emit.EmitError(fmt.Errorf("youtube service: %w", err))
		return
	}

	chatID, err := a.resolveChatID(ctx, svc)
	if err != nil {
		emit.EmitError(err)
		return
	}
	emit.EmitDebug("youtube live chat resolved: " + chatID)

	pollEvery := a.cfg.PollInterval
	if pollEvery <= 0 {
		pollEvery = 5 * time.Second
	}

	pageToken := ""
	first := true
	for {
		if ctx.Err() != nil {
			emit.EmitDebug("youtube poll loop exited")
			return
		}
		resp, err := svc.LiveChatMessages.List(chatID, []string{"snippet", "authorDetails"}).
			PageToken(pageToken).Context(ctx).Do()
		if err != nil {
			if ctx.Err() == nil {
				emit.EmitError(fmt.Errorf("youtube live chat poll: %w", err))
			}
		} else {
			// The first page replays chat history; skip it so a mid-stream
			// start doesn't flood the feed with stale messages.
			if !first {
				for _, item := range resp.Items {
					emit.EmitComment(normalizeYouTubeMessage(item))
				}
			}
			first = false
			pageToken = resp.NextPageToken
			if suggested := time.Duration(resp.PollingIntervalMillis) * time.Millisecond; suggested > pollEvery {
				pollEvery = suggested
			}
		}

		select {
		case <-ctx.Done():
			emit.EmitDebug("youtube poll loop exited")
			return
		case <-time.After(pollEvery):
		}
	}
}

func (a *youtubeAdapter) resolveChatID(ctx context.Context, svc *yt.Service) (string, error) {
	resp, err := svc.Videos.List([]string{"liveStreamingDetails"}).Id(a.cfg.VideoID).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("youtube video lookup: %w", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].LiveStreamingDetails == nil {
		return "", fmt.Errorf("youtube video %q is not a live stream", a.cfg.VideoID)
	}
	chatID := resp.Items[0].LiveStreamingDetails.ActiveLiveChatId
	if chatID == "" {
		return "", fmt.Errorf("youtube video %q has no active live chat", a.cfg.VideoID)
	}
	return chatID, nil
}

func normalizeYouTubeMessage(item *yt.LiveChatMessage) comment.Comment {
	c := comment.Comment{
		ID:       item.Id,
		Platform: "youtube",
	}
	if item.Snippet != nil {
		c.Message = item.Snippet.DisplayMessage
		if ts, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
			c.Timestamp = ts.UTC()
		}
	}
	if item.AuthorDetails != nil {
		c.Author = item.AuthorDetails.DisplayName
		c.AuthorID = item.AuthorDetails.ChannelId
		c.Avatar = item.AuthorDetails.ProfileImageUrl
	}
	if raw, err := item.MarshalJSON(); err == nil {
		c.Raw = string(raw)
	}
	return c
}
