// Command streampulse is the main entrypoint for the streampulse API.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations when DB_DSN is set,
//     or runs in degraded mode on the built-in fallback content when it is not.
//   - Starts the live-status refresh job and, with a backend, the comment
//     NOTIFY listener.
//   - Exposes the HTTP API with /healthz, /readyz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/streampulse/advisory"
	"github.com/onnwee/streampulse/comments"
	"github.com/onnwee/streampulse/config"
	"github.com/onnwee/streampulse/crypto"
	"github.com/onnwee/streampulse/db"
	"github.com/onnwee/streampulse/feed"
	"github.com/onnwee/streampulse/localstore"
	"github.com/onnwee/streampulse/server"
	"github.com/onnwee/streampulse/telemetry"
	"github.com/onnwee/streampulse/twitchapi"
	"github.com/onnwee/streampulse/user"
	"github.com/onnwee/streampulse/youtubeapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

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
	slog.Info("logger initialized", slog.String("level", lvl.String()))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("streampulse", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local storage for the user record and cached comment threads. An optional
	// AES key seals the files at rest.
	var sealer crypto.Sealer
	if key := os.Getenv("LOCAL_ENCRYPTION_KEY"); key != "" {
		s, err := crypto.NewAESSealer(key)
		if err != nil {
			slog.Error("invalid LOCAL_ENCRYPTION_KEY", slog.Any("err", err))
			os.Exit(1)
		}
		sealer = s
	}
	local, err := localstore.Open(cfg.DataDir, sealer)
	if err != nil {
		slog.Error("failed to open local storage", slog.Any("err", err))
		os.Exit(1)
	}
	users := user.Open(local)

	// Content backend. Absent DB_DSN means degraded mode: fallback content,
	// local-only persistence, everything still interactive.
	var gateway feed.Gateway
	var commentBackend comments.Backend
	var store *db.Store
	if cfg.DBConfigured() {
		database, err := db.Connect(cfg.DBDsn)
		if err != nil {
			slog.Error("failed to open db", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = database.PingContext(pingCtx)
		cancel()
		if err != nil {
			slog.Error("database unreachable", slog.Any("err", err))
			os.Exit(1)
		}

		// Versioned migrations first, embedded SQL as the fallback for
		// deployments without a schema_migrations table.
		slog.Info("running database migrations", slog.String("component", "db_migrate"))
		if err := db.RunMigrations(database); err != nil {
			slog.Warn("versioned migrations failed, attempting fallback to embedded SQL",
				slog.Any("err", err),
				slog.String("component", "db_migrate"))
			if err := db.Migrate(ctx, database); err != nil {
				slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
				os.Exit(1)
			}
		}

		store = db.NewStore(database, cfg.DBDsn)
		gateway = store
		commentBackend = store
	} else {
		slog.Info("no DB_DSN configured, running in degraded mode on fallback content")
	}

	commentsSvc := comments.NewService(commentBackend, local, users)
	if store != nil {
		store.StartCommentListener(ctx, commentsSvc.Dispatch)
	}

	// Live-status sources. Each is optional; a missing credential just disables
	// that platform's enrichment.
	var sources []feed.LiveSource
	if cfg.TwitchConfigured() {
		sources = append(sources, &twitchapi.HelixClient{
			TokenSource: twitchapi.NewAppTokenSource(cfg.TwitchClientID, cfg.TwitchClientSecret, "", nil),
			ClientID:    cfg.TwitchClientID,
		})
	}
	if cfg.YTAPIKey != "" {
		yt, err := youtubeapi.New(ctx, cfg.YTAPIKey)
		if err != nil {
			slog.Warn("youtube client init failed, continuing without it", slog.Any("err", err))
		} else {
			sources = append(sources, yt)
		}
	}

	f := feed.New(gateway, users, feed.Rewards{
		Vote:       cfg.RewardVote,
		Sighting:   cfg.RewardSighting,
		Submission: cfg.RewardSubmission,
	}, sources...)
	f.Load(ctx)
	f.StartRefreshJob(ctx, cfg.LiveRefreshInterval)

	deps := server.Deps{
		Feed:     f,
		Comments: commentsSvc,
		Users:    users,
		Advisor:  &advisory.Client{APIKey: cfg.GeminiAPIKey},
	}
	if store != nil {
		deps.DB = store.DB
	}

	slog.Info("starting http server", slog.String("addr", cfg.HTTPAddr))
	if err := server.Start(ctx, deps, cfg.HTTPAddr); err != nil {
		os.Exit(1)
	}
}
