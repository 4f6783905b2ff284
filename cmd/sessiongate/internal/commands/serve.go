package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gateway "github.com/KuolDimDeng/Dott-Project-sub054"
	"github.com/KuolDimDeng/Dott-Project-sub054/metrics/export/prometheus"
	"github.com/KuolDimDeng/Dott-Project-sub054/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

type ServeCmd struct {
	Listen   string `help:"HTTP listen address" default:"127.0.0.1:8080" env:"SESSIONGATE_LISTEN"`
	Cert     string `help:"path to TLS cert file" default:"" env:"SESSIONGATE_TLS_CERT"`
	Key      string `help:"path to TLS key file" default:"" env:"SESSIONGATE_TLS_KEY"`
	DevLogin bool   `help:"expose POST /auth/session which signs in any subject (development only)" default:"false" env:"SESSIONGATE_DEV_LOGIN"`

	Engine EngineFlags `embed:""`
}

func (s *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	logger := setupLogger(globals.Dev)
	logger.Info().Str("version", globals.Version).Str("listen", s.Listen).Msg("starting sessiongate")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, cleanup, err := buildEngine(ctx, &s.Engine, globals.Dev, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := configureHTTPServer(s.Listen, newRouter(engine, logger, s.DevLogin && globals.Dev))

	errc := make(chan error, 1)
	go func() {
		if s.Cert != "" && s.Key != "" {
			errc <- srv.ListenAndServeTLS(s.Cert, s.Key)
			return
		}
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRouter(engine *gateway.Engine, logger zerolog.Logger, devLogin bool) http.Handler {
	h := &handlers{engine: engine}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		// Query strings may carry a bootstrap token and are never logged.
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))

	r.Get("/healthz", h.healthz)
	r.Handle("/metrics", prometheus.Handler(engine))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Gate(engine, middleware.Options{}))

		r.Get("/auth/signin", h.signin)
		r.Get("/auth/whoami", h.whoami)
		r.Post("/auth/logout", h.logout)
		if devLogin {
			r.Post("/auth/session", h.devLogin)
		}

		r.Get("/onboarding/*", h.onboardingStep)
		r.Post("/onboarding/*", h.advance)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireTenant)
			r.Get("/dashboard", h.dashboard)
			r.Get("/{tenantID}/dashboard", h.dashboard)
			r.Get("/api/session", h.whoami)
		})
	})

	return r
}
