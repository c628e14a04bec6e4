// Package server exposes the analysis engine over a JSON HTTP API backed by
// the persisted upload slots.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/dataset"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/metrics"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/processes"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/store"
)

// Options tune the server.
type Options struct {
	Quality          metrics.QualityWeights
	Distribution     metrics.Distribution
	ProcessColumns   processes.Columns
	Phase            string
	SlotTTL          time.Duration
	AllowedOrigins   []string
	UploadsPerMinute int
	MaxUploadBytes   int64
	SweepInterval    time.Duration
}

// Server serves the HTTP API.
type Server struct {
	store     store.Store
	loader    *dataset.Loader
	processes *processes.Loader
	opts      Options
	uploads   *rate.Limiter
}

// New creates a Server.
func New(st store.Store, loader *dataset.Loader, procs *processes.Loader, opts Options) *Server {
	if opts.UploadsPerMinute <= 0 {
		opts.UploadsPerMinute = 10
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 200 << 20
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{
		store:     st,
		loader:    loader,
		processes: procs,
		opts:      opts,
		uploads:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.UploadsPerMinute)), opts.UploadsPerMinute),
	}
}

// Routes returns the root handler.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/health", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/slots", func(r chi.Router) {
			r.Get("/", s.listSlots)
			r.Delete("/", s.clearSlots)
			r.With(s.limitUploads).Put("/{name}", s.putSlot)
			r.Delete("/{name}", s.deleteSlot)
		})
		r.Get("/cache", s.cacheStats)
		r.Delete("/cache", s.clearCache)
		r.Get("/overview", s.withData(s.overview))
		r.Get("/quality", s.withData(s.quality))
		r.Get("/pareto", s.withData(s.pareto))
		r.Get("/trend", s.withData(s.trend))
		r.Get("/seasonality", s.withData(s.seasonality))
		r.Get("/correlation", s.withData(s.correlation))
		r.Get("/insights", s.withData(s.insights))
		r.Get("/municipalities/{state}/{name}", s.withData(s.municipality))
		r.Get("/municipalities/{state}/{name}/charts/{chart}", s.withData(s.municipalityChart))
	})
	return r
}

// ListenAndServe serves on port until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.sweepLoop(ctx, s.opts.SweepInterval)
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

func (s *Server) limitUploads(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.uploads.Allow() {
			respondError(w, r, http.StatusTooManyRequests, eris.New("upload rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
