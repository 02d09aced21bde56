package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/vona/internal/api/ws"
	"github.com/gosuda/vona/internal/auth"
	"github.com/gosuda/vona/internal/bidi"
	"github.com/gosuda/vona/internal/config"
	"github.com/gosuda/vona/internal/memory"
	"github.com/gosuda/vona/internal/server/middleware"
	"github.com/gosuda/vona/internal/session"
	"github.com/gosuda/vona/internal/tools"
)

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	cfg        *config.Config
}

// New creates a Server with all routes wired.
// memStore is nil when the memory feature is disabled; authSvc is nil when
// authentication is disabled. webAssets may be nil; when provided, the voice
// console SPA is served on all unmatched routes.
func New(cfg *config.Config, memStore *memory.Store, sessions *session.Manager, authSvc *auth.Service, model bidi.Model, toolReg *tools.Registry, webAssets fs.FS) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	s := &Server{
		router: router,
		cfg:    cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	modelCfg := bidi.ModelConfig{
		ModelID:          cfg.Model.ModelID,
		Voice:            cfg.Model.Voice,
		SystemPrompt:     cfg.Model.SystemPrompt,
		InputSampleRate:  cfg.Audio.InputSampleRate,
		OutputSampleRate: cfg.Audio.OutputSampleRate,
	}

	var publisher ws.Publisher
	if memStore != nil {
		publisher = memStore
	}
	voiceHandler := ws.NewHandler(authSvc, sessions, model, toolReg, modelCfg, publisher)

	// Mount API routes on /api/v1 with two sub-groups:
	// 1. Unauthenticated group for login endpoints (IP rate limited).
	// 2. Authenticated group for everything else.
	router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))

			loginConfig := huma.DefaultConfig("Vona Auth API", "1.0.0")
			loginConfig.Servers = []*huma.Server{{URL: "/api/v1"}}
			loginAPI := humachi.New(r, loginConfig)
			registerLoginRoutes(loginAPI, authSvc)
		})

		r.Group(func(r chi.Router) {
			var verifier middleware.TokenVerifier
			if authSvc != nil {
				verifier = authSvc
			}
			r.Use(middleware.Auth(verifier))

			apiConfig := huma.DefaultConfig("Vona API", "1.0.0")
			apiConfig.Servers = []*huma.Server{{URL: "/api/v1"}}
			api := humachi.New(r, apiConfig)
			registerAPIRoutes(api, sessions, memStore)
		})
	})

	// WebSocket routes. Voice authenticates inside the handler so that a
	// missing token yields an explicit close reason instead of a failed
	// handshake.
	router.Get("/ws", voiceHandler.ServeVoice)
	if memStore != nil {
		observer := ws.NewObserver(memStore)
		router.Get("/ws/observe/{sessionID}", observer.ServeObserve)
	} else {
		router.Get("/ws/observe/{sessionID}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotImplemented)
		})
	}

	// Health and liveness (unauthenticated).
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","service":"vona","version":"1.0.0"}`))
	})

	// Serve the embedded voice console on all unmatched routes.
	// This must be the last route registered so API/WS routes take priority.
	if webAssets != nil {
		router.NotFound(consoleHandler(webAssets).ServeHTTP)
		log.Info().Msg("embedded voice console enabled")
	}

	return s
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
