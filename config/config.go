// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// Missing source credentials disable the corresponding adapter rather than failing startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// HTTP
	HTTPAddr string

	// Feed
	MaxFeedSize int
	MaxPinned   int

	// Moderation
	ModerationUseAI      bool
	ModerationStrict     bool
	ModerationFailClosed bool
	ModerationCacheSize  int
	ModerationBatchLimit int

	// Classifier (OpenAI-compatible endpoint)
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	OpenAITimeout time.Duration

	// vMix sink
	VMixURL         string
	VMixInput       string
	VMixTransition  string
	VMixPushEnabled bool
	VMixPushEvery   time.Duration
	VMixMaxComments int

	// Twitch
	TwitchChannel     string
	TwitchBotUsername string
	TwitchOAuthToken  string

	// YouTube
	YTAPIKey       string
	YTVideoID      string
	YTPollInterval time.Duration
	YTClientID     string
	YTClientSecret string
	YTRefreshToken string
}

// Load reads environment variables and applies defaults. It doesn't fail if source
// creds are missing; use ValidateTwitchReady / ValidateYouTubeReady when you require
// a given adapter. The AI classifier stays optional either way.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	var err error
	if cfg.MaxFeedSize, err = intEnv("MAX_FEED_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.MaxFeedSize <= 0 {
		return nil, fmt.Errorf("MAX_FEED_SIZE must be positive")
	}
	if cfg.MaxPinned, err = intEnv("MAX_PINNED", 3); err != nil {
		return nil, err
	}
	if cfg.MaxPinned > cfg.MaxFeedSize {
		cfg.MaxPinned = cfg.MaxFeedSize
	}

	cfg.ModerationUseAI = os.Getenv("MODERATION_USE_AI") == "1"
	cfg.ModerationStrict = os.Getenv("MODERATION_STRICT") == "1"
	cfg.ModerationFailClosed = os.Getenv("MODERATION_FAIL_CLOSED") == "1"
	if cfg.ModerationCacheSize, err = intEnv("MODERATION_CACHE_SIZE", 10000); err != nil {
		return nil, err
	}
	if cfg.ModerationBatchLimit, err = intEnv("MODERATION_BATCH_LIMIT", 8); err != nil {
		return nil, err
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")
	if cfg.OpenAIBaseURL == "" {
		cfg.OpenAIBaseURL = "https://api.openai.com/v1"
	}
	cfg.OpenAIModel = os.Getenv("OPENAI_MODEL")
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}
	cfg.OpenAITimeout = durationEnv("OPENAI_TIMEOUT", 10*time.Second)

	cfg.VMixURL = os.Getenv("VMIX_URL")
	if cfg.VMixURL == "" {
		cfg.VMixURL = "http://127.0.0.1:8088"
	}
	cfg.VMixInput = os.Getenv("VMIX_INPUT")
	if cfg.VMixInput == "" {
		cfg.VMixInput = "CommentOverlay"
	}
	cfg.VMixTransition = os.Getenv("VMIX_TRANSITION")
	if cfg.VMixTransition == "" {
		cfg.VMixTransition = "Fade"
	}
	cfg.VMixPushEnabled = os.Getenv("VMIX_PUSH_ENABLED") != "0"
	cfg.VMixPushEvery = durationEnv("VMIX_PUSH_INTERVAL", 10*time.Second)
	if cfg.VMixMaxComments, err = intEnv("VMIX_MAX_COMMENTS", 5); err != nil {
		return nil, err
	}
	if cfg.VMixMaxComments <= 0 {
		cfg.VMixMaxComments = 5
	}

	cfg.TwitchChannel = os.Getenv("TWITCH_CHANNEL")
	cfg.TwitchBotUsername = os.Getenv("TWITCH_BOT_USERNAME")
	cfg.TwitchOAuthToken = os.Getenv("TWITCH_OAUTH_TOKEN")

	cfg.YTAPIKey = os.Getenv("YT_API_KEY")
	cfg.YTVideoID = os.Getenv("YT_VIDEO_ID")
	cfg.YTPollInterval = durationEnv("YT_POLL_INTERVAL", 5*time.Second)
	cfg.YTClientID = os.Getenv("YT_CLIENT_ID")
	cfg.YTClientSecret = os.Getenv("YT_CLIENT_SECRET")
	cfg.YTRefreshToken = os.Getenv("YT_REFRESH_TOKEN")

	return cfg, nil
}

// ValidateTwitchReady checks required fields for the Twitch chat adapter.
func (c *Config) ValidateTwitchReady() error {
	if c.TwitchChannel == "" || c.TwitchBotUsername == "" || c.TwitchOAuthToken == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_CHANNEL, TWITCH_BOT_USERNAME, TWITCH_OAUTH_TOKEN")
	}
	return nil
}

// ValidateYouTubeReady checks required fields for the YouTube live chat adapter.
// Either an API key or an oauth client plus refresh token must be present.
func (c *Config) ValidateYouTubeReady() error {
	if c.YTVideoID == "" {
		return fmt.Errorf("missing youtube env: require YT_VIDEO_ID")
	}
	if c.YTAPIKey == "" && (c.YTClientID == "" || c.YTClientSecret == "" || c.YTRefreshToken == "") {
		return fmt.Errorf("missing youtube env: require YT_API_KEY or YT_CLIENT_ID/YT_CLIENT_SECRET/YT_REFRESH_TOKEN")
	}
	return nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
