// Command chatfeed is the main entrypoint for the live comment feed service.
// It:
//   - Loads configuration and initializes structured logging.
//   - Builds the moderation pipeline (rule stage plus optional AI classifier).
//   - Registers chat source adapters (Twitch IRC, YouTube live chat) and
//     supervises them.
//   - Maintains the bounded comment feed and pushes it to vMix on an interval.
//   - Exposes an HTTP server with feed queries, feed controls, source
//     lifecycle, /healthz, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/livecue/chatfeed/bus"
	"github.com/livecue/chatfeed/config"
	"github.com/livecue/chatfeed/feed"
	"github.com/livecue/chatfeed/moderation"
	"github.com/livecue/chatfeed/openaiapi"
	"github.com/livecue/chatfeed/server"
	"github.com/livecue/chatfeed/sources"
	"github.com/livecue/chatfeed/telemetry"
	"github.com/livecue/chatfeed/vmixapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("chatfeed", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional AI classifier; the pipeline probes it once and falls back to
	// the rule stage when it is missing or unreachable.
	var classifier moderation.Classifier
	if cfg.ModerationUseAI && cfg.OpenAIAPIKey != "" {
		classifier = &openaiapi.Client{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.OpenAITimeout,
		}
	}
	pipeline := moderation.New(ctx, classifier, moderation.Options{
		UseClassifier: cfg.ModerationUseAI,
		Strict:        cfg.ModerationStrict,
		FailClosed:    cfg.ModerationFailClosed,
		CacheSize:     cfg.ModerationCacheSize,
		BatchLimit:    cfg.ModerationBatchLimit,
	}, nil)

	sink := &vmixapi.Client{BaseURL: cfg.VMixURL}

	eventBus := bus.New()
	manager := feed.NewManager(feed.Options{
		MaxFeedSize: cfg.MaxFeedSize,
		MaxPinned:   cfg.MaxPinned,
		PushEnabled: cfg.VMixPushEnabled,
		PushEvery:   cfg.VMixPushEvery,
		PushMax:     cfg.VMixMaxComments,
		SinkInput:   cfg.VMixInput,
		Transition:  cfg.VMixTransition,
	}, pipeline, sink, eventBus, nil)

	// Drain the unified source stream into the feed. The channel is sized so
	// a moderation stall costs dropped events, never a stalled adapter.
	stream := make(chan bus.Event, 1024)
	if err := eventBus.Subscribe("feed-drain", stream); err != nil {
		slog.Error("bus subscribe failed", slog.Any("err", err))
		os.Exit(1)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-stream:
				if ev.Kind == bus.SourceComment && ev.Comment != nil {
					manager.AddComment(ctx, *ev.Comment)
				}
			}
		}
	}()

	// Source adapters: register whichever have credentials configured.
	supervisor := sources.NewSupervisor(eventBus, nil)
	if err := cfg.ValidateTwitchReady(); err == nil {
		if err := supervisor.Register(ctx, "twitch", sources.Config{
			Kind:        sources.KindTwitch,
			Channel:     cfg.TwitchChannel,
			BotUsername: cfg.TwitchBotUsername,
			OAuthToken:  cfg.TwitchOAuthToken,
		}, false); err != nil {
			slog.Error("twitch source registration failed", slog.Any("err", err))
		}
	} else {
		slog.Info("twitch source disabled", slog.Any("reason", err))
	}
	if err := cfg.ValidateYouTubeReady(); err == nil {
		if err := supervisor.Register(ctx, "youtube", sources.Config{
			Kind:              sources.KindYouTube,
			VideoID:           cfg.YTVideoID,
			APIKey:            cfg.YTAPIKey,
			PollInterval:      cfg.YTPollInterval,
			OAuthClientID:     cfg.YTClientID,
			OAuthClientSecret: cfg.YTClientSecret,
			OAuthRefreshToken: cfg.YTRefreshToken,
		}, false); err != nil {
			slog.Error("youtube source registration failed", slog.Any("err", err))
		}
	} else {
		slog.Info("youtube source disabled", slog.Any("reason", err))
	}
	supervisor.StartAll(ctx)

	// Periodic vMix push loop (probes the sink once at startup)
	go manager.RunPusher(ctx)

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			// Use an http.Server with timeouts to satisfy G114 and avoid DoS risks
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (feed queries, feed controls, source lifecycle, metrics)
	handlers := server.NewHandlers(ctx, manager, supervisor, eventBus)
	go func() {
		if err := server.Start(ctx, handlers, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
	supervisor.StopAll()
	if err := eventBus.Close(); err != nil {
		slog.Warn("bus close", slog.Any("err", err))
	}
}
