package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/vona/internal/auth"
	"github.com/gosuda/vona/internal/bidi"
	"github.com/gosuda/vona/internal/bidi/backends"
	"github.com/gosuda/vona/internal/config"
	"github.com/gosuda/vona/internal/memory"
	"github.com/gosuda/vona/internal/server"
	"github.com/gosuda/vona/internal/session"
	"github.com/gosuda/vona/internal/tools"
	"github.com/gosuda/vona/web"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	logLevel := os.Getenv("VONA_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("VONA_LOG_FORMAT")
	if logFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Connect the memory store when the feature is enabled.
	var memStore *memory.Store
	if cfg.Memory.Enabled {
		var sealer *memory.Sealer
		if cfg.Memory.SealingKey != "" {
			sealer, err = memory.NewSealer(cfg.Memory.SealingKey)
			if err != nil {
				return err
			}
		}
		memStore, err = memory.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, sealer)
		if err != nil {
			return err
		}
		defer memStore.Close()
		log.Info().Str("addr", cfg.Redis.Addr).Msg("session memory enabled")
	}

	var sessions *session.Manager
	if memStore != nil {
		sessions = session.NewManager(memStore)
	} else {
		sessions = session.NewManager(nil)
	}

	// Create the auth service when OAuth is configured.
	var authSvc *auth.Service
	if cfg.AuthEnabled() {
		provider := auth.NewGoogleProvider(cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, cfg.OAuth.RedirectURL)
		authSvc = auth.NewService(provider, cfg.JWT.Secret, cfg.JWT.AccessTTL)
		log.Info().Msg("authentication enabled")
	}

	// Create the model registry and select the configured backend.
	registry := bidi.NewRegistry()
	registry.Register("loopback", backends.NewLoopback)
	registry.Register("realtime", backends.NewRealtime)

	model, err := registry.Create(cfg.Model.Backend, bidi.BackendOptions{
		URL:    cfg.Model.URL,
		APIKey: cfg.Model.APIKey,
	})
	if err != nil {
		return err
	}
	log.Info().Str("backend", cfg.Model.Backend).Str("model_id", cfg.Model.ModelID).Msg("speech model configured")

	// Assemble the tool registry.
	toolReg := tools.NewRegistry()
	toolReg.Register(tools.NewCalculator())
	if cfg.Weather.APIKey != "" {
		toolReg.Register(tools.NewWeather(cfg.Weather.APIKey))
	}

	var source tools.RowSource = tools.NewStaticSource()
	if cfg.Database.Host != "" {
		pool, poolErr := pgxpool.New(ctx, cfg.Database.DSN())
		if poolErr != nil {
			return fmt.Errorf("database pool: %w", poolErr)
		}
		defer pool.Close()
		source = tools.NewPostgresSource(pool, []string{"users", "products"})
		log.Info().Str("host", cfg.Database.Host).Msg("database tool backed by PostgreSQL")
	}
	toolReg.Register(tools.NewDatabase(source))
	log.Info().Strs("tools", toolReg.Names()).Msg("tools registered")

	// Prepare embedded console assets.
	webAssets, err := fs.Sub(web.Assets, "static")
	if err != nil {
		return fmt.Errorf("web assets: %w", err)
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Create HTTP server with all routes wired.
	srv := server.New(cfg, memStore, sessions, authSvc, model, toolReg, webAssets)

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}
