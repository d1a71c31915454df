// Package trace tags every request with an ID and logs its start and end.
package trace

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	applog "rtadmin/internal/log"
)

type contextKey struct{}

const (
	// HeaderRequestID is echoed back so htmx errors can be correlated with logs.
	HeaderRequestID = "X-Request-ID"

	idPrefix = "req_"
)

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests    int64
	ServerErrors     int64
	LastResponseTime int64 // microseconds
}

// Middleware handles request tracing and logging
type Middleware struct {
	clientIP func(*http.Request) string
	logger   *applog.StructuredLogger
	base     *applog.Logger

	total    atomic.Int64
	errors   atomic.Int64
	lastTime atomic.Int64
}

// NewMiddleware creates a new trace middleware. clientIP may be nil.
func NewMiddleware(logger *applog.Logger, clientIP func(*http.Request) string) *Middleware {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentTrace)
	return &Middleware{
		clientIP: clientIP,
		logger:   applog.NewStructuredLogger(logger),
		base:     logger,
	}
}

// Middleware returns HTTP middleware for request tracing. The request
// context carries the request ID and a logger tagged with it.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ip := ""
		if m.clientIP != nil {
			ip = m.clientIP(r)
		}

		requestID := requestIDFrom(r)
		ctx := context.WithValue(r.Context(), contextKey{}, requestID)
		ctx = applog.WithLogger(ctx, m.base.With(applog.FieldRequestID, requestID))
		r = r.WithContext(ctx)
		w.Header().Set(HeaderRequestID, requestID)

		m.logger.LogHTTPStart(ctx, r, ip)
		m.total.Add(1)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		m.lastTime.Store(duration.Microseconds())
		if rw.statusCode >= 500 {
			m.errors.Add(1)
		}
		m.logger.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), ip)
	})
}

// requestIDFrom keeps an inbound ID issued by this middleware, for example
// one forwarded by a proxy in front of the console, and mints one otherwise.
func requestIDFrom(r *http.Request) string {
	if in := r.Header.Get(HeaderRequestID); strings.HasPrefix(in, idPrefix) {
		if _, err := uuid.Parse(strings.TrimPrefix(in, idPrefix)); err == nil {
			return in
		}
	}
	return GenerateRequestID()
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

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	return idPrefix + uuid.NewString()
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:    m.total.Load(),
		ServerErrors:     m.errors.Load(),
		LastResponseTime: m.lastTime.Load(),
	}
}
