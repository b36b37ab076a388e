package middleware

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type contextKey string

const (
	TraceKey  contextKey = "trace"
	LoggerKey contextKey = "logger"
)

const RequestIDHeader = "X-Request-ID"

type TraceInfo struct {
	RequestID string
	StartTime time.Time
	UserAgent string
	RemoteIP  string
}

// Chain wraps handler so the first middleware is the outermost.
func Chain(handler http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] != nil {
			handler = middlewares[i](handler)
		}
	}
	return handler
}

// RequestID stores trace info and a request-scoped logger in the context.
// An incoming X-Request-ID header is reused.
func RequestID(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			trace := &TraceInfo{
				RequestID: r.Header.Get(RequestIDHeader),
				StartTime: time.Now(),
				UserAgent: r.UserAgent(),
				RemoteIP:  r.RemoteAddr,
			}
			if trace.RequestID == "" {
				trace.RequestID = uuid.New().String()
			}
			w.Header().Set(RequestIDHeader, trace.RequestID)

			entry := logger.WithFields(logrus.Fields{
				"request_id": trace.RequestID,
				"method":     r.Method,
				"path":       r.URL.Path,
			})

			ctx := context.WithValue(r.Context(), TraceKey, trace)
			ctx = WithLogger(ctx, entry)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Logging logs each request and its final status.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := GetLogger(r.Context()).WithFields(logrus.Fields{
			"remote_ip":  r.RemoteAddr,
			"user_agent": r.UserAgent(),
		})
		logger.Debug("Request started")

		lrw := newLoggingResponseWriter(w)
		next.ServeHTTP(lrw, r)

		logger = logger.WithFields(logrus.Fields{
			"status":   lrw.statusCode,
			"duration": time.Since(start).String(),
			"size":     lrw.size,
		})
		switch {
		case lrw.statusCode >= 500:
			logger.Error("Request completed with server error")
		case lrw.statusCode >= 400:
			logger.Warn("Request completed with client error")
		default:
			logger.Info("Request completed")
		}
	})
}

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				GetLogger(r.Context()).WithFields(logrus.Fields{
					"panic": rec,
					"stack": string(debug.Stack()),
				}).Error("Panic recovered")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error": "Internal server error"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// RateLimiter is a process-wide token bucket for inbound requests.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows requests per interval, with bursts of the same size.
func NewRateLimiter(requests int, interval time.Duration) *RateLimiter {
	if requests <= 0 || interval <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Every(interval/time.Duration(requests)), requests),
	}
}

func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow() {
			GetLogger(r.Context()).Warn("Rate limit exceeded")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": "Rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetTraceInfo(ctx context.Context) *TraceInfo {
	if trace, ok := ctx.Value(TraceKey).(*TraceInfo); ok {
		return trace
	}
	return nil
}

func GetLogger(ctx context.Context) *logrus.Entry {
	if logger, ok := LoggerFromContext(ctx); ok {
		return logger
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// LoggerFromContext returns the request-scoped logger stored by RequestID.
func LoggerFromContext(ctx context.Context) (*logrus.Entry, bool) {
	logger, ok := ctx.Value(LoggerKey).(*logrus.Entry)
	return logger, ok && logger != nil
}

// WithLogger stores logger as the request-scoped logger of ctx.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func newLoggingResponseWriter(w http.ResponseWriter) *loggingResponseWriter {
	return &loggingResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	if lrw.wroteHeader {
		return
	}
	lrw.statusCode = code
	lrw.wroteHeader = true
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if !lrw.wroteHeader {
		lrw.WriteHeader(http.StatusOK)
	}
	size, err := lrw.ResponseWriter.Write(b)
	lrw.size += int64(size)
	return size, err
}

func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
