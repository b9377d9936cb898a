// Package server exposes the engine over an HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xtding233/gacha-engine/internal/engine"
	"github.com/xtding233/gacha-engine/internal/host"
	"github.com/xtding233/gacha-engine/internal/metrics"
)

// Server serves the admin and session API.
type Server struct {
	httpServer *http.Server
	eng        *engine.Engine
	host       *host.Memory
	metrics    *metrics.Metrics
	log        *zap.Logger
}

// New builds the server. h may be nil when players are managed elsewhere.
func New(addr string, eng *engine.Engine, h *host.Memory, m *metrics.Metrics, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{eng: eng, host: h, metrics: m, log: log}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.recoverer)
	r.Use(s.metrics.Middleware)
	r.Use(s.logging)

	r.Get("/healthz", handleHealthz)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/banners", func(r chi.Router) {
			r.Get("/", s.handleListBanners)
			r.Get("/at", s.handleBannerAt)
			r.Route("/{banner}", func(r chi.Router) {
				r.Get("/", s.handleGetBanner)
				r.Get("/rates", s.handleDropRates)
				r.Post("/locations", s.handleAddLocation)
				r.Delete("/locations", s.handleRemoveLocation)
				r.Post("/give-all", s.handleGiveAll)
				r.Post("/simulate", s.handleSimulate)
			})
		})

		r.Route("/players/{player}", func(r chi.Router) {
			r.Post("/join", s.handleJoin)
			r.Post("/leave", s.handleLeave)
			r.Get("/inventory", s.handleInventory)

			r.Get("/balances", s.handleBalances)
			r.Get("/balances/{banner}", s.handleGetBalance)
			r.Put("/balances/{banner}", s.balanceHandler(s.eng.SetBalance))
			r.Post("/balances/{banner}/give", s.balanceHandler(s.eng.GiveBalance))
			r.Post("/balances/{banner}/take", s.balanceHandler(s.eng.TakeBalance))

			r.Post("/interact", s.handleInteract)
			r.Post("/open", s.handleOpen)
			r.Get("/session", s.handleSession)
			r.Post("/session/reveal/{slot}", s.handleReveal)
			r.Post("/session/complete", s.handleComplete)
			r.Post("/session/abandon", s.handleAbandon)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/reload", s.handleReload)
			r.Post("/save", s.handleSaveBanners)
			r.Post("/flush", s.handleFlush)
		})
	})
	return r
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/healthz") || strings.HasPrefix(r.URL.Path, "/metrics") {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.log.Info("request completed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rw.statusCode),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.log.Error("handler panicked", zap.Any("panic", rec), zap.String("path", r.URL.Path), zap.Stack("stack"))
				respondError(w, http.StatusInternalServerError, ErrMsgInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.log.Info("server starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
