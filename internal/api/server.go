// Package api exposes query execution and cache management over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/acs-cli/internal/census"
	"github.com/sells-group/acs-cli/internal/geometry"
	"github.com/sells-group/acs-cli/internal/shapecache"
)

// Server routes query and cache requests to the underlying client and
// archive cache. One census client and one cache back every request.
type Server struct {
	client    census.Client
	cache     *shapecache.Cache
	engine    *geometry.Engine
	chunkSize int
	logger    *zap.Logger
	router    chi.Router
}

// Option configures the server.
type Option func(*Server)

// WithChunkSize sets the variable chunk limit applied to queries.
func WithChunkSize(n int) Option {
	return func(s *Server) {
		s.chunkSize = n
	}
}

// NewServer creates the HTTP API over a census client and archive cache.
func NewServer(client census.Client, cache *shapecache.Cache, opts ...Option) *Server {
	s := &Server{
		client: client,
		cache:  cache,
		engine: geometry.NewEngine(cache),
		logger: zap.L().With(zap.String("component", "api")),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/queries", s.handleQuery)
		r.Get("/cache", s.handleCacheStatus)
		r.Delete("/cache", s.handleCacheClear)
	})
	s.router = r
	return s
}

// Handler returns the routing tree, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests before returning.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("api: shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			s.logger.Warn("api: shutdown", zap.Error(err))
		}
	}()

	s.logger.Info("api: listening", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "api: listen")
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}
