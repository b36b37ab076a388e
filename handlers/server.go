package handlers

import (
	"context"
	"net/http"

	"github.com/nijaru/yt-summary/config"
	"github.com/nijaru/yt-summary/middleware"
	"github.com/sirupsen/logrus"
)

type Server struct {
	handler *Handler
	config  *config.Config
	logger  *logrus.Logger
	limiter *middleware.RateLimiter
	server  *http.Server
}

type ServerOption func(*Server)

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRateLimiter limits the /summarize routes.
func WithRateLimiter(rl *middleware.RateLimiter) ServerOption {
	return func(s *Server) {
		s.limiter = rl
	}
}

func NewServer(cfg *config.Config, h *Handler, opts ...ServerOption) *Server {
	s := &Server{
		handler: h,
		config:  cfg,
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      s.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Routes returns the mux wrapped in the middleware chain.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	summarizePost := http.Handler(http.HandlerFunc(s.handler.SummarizePost))
	summarizeGet := http.Handler(http.HandlerFunc(s.handler.SummarizeGet))
	if s.limiter != nil {
		summarizePost = s.limiter.Middleware(summarizePost)
		summarizeGet = s.limiter.Middleware(summarizeGet)
	}

	mux.Handle("POST /summarize", summarizePost)
	mux.Handle("GET /summarize", summarizeGet)
	mux.HandleFunc("GET /health", s.handler.Health)
	mux.HandleFunc("GET /stats", s.handler.Stats)
	mux.HandleFunc("GET /{$}", s.handler.Root)

	return middleware.Chain(mux,
		middleware.RequestID(s.logger),
		middleware.Logging,
		middleware.Recovery,
	)
}

func (s *Server) Start() error {
	s.logger.WithField("port", s.config.ServerPort).Info("Starting server")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	return s.server.Shutdown(ctx)
}
