// Package http is the admin console: server-rendered pages with htmx
// partials over the services package.
package http

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	applog "rtadmin/internal/log"
	"rtadmin/internal/middleware/ratelimit"
	"rtadmin/internal/middleware/security"
	"rtadmin/internal/middleware/trace"
	"rtadmin/internal/services"
	appweb "rtadmin/web"
)

// Pinger reports whether the backend answers; used by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures NewServer.
type Options struct {
	API Pinger
	// StorageURL is where KTP photos are served from.
	StorageURL string
	// StorageHandler, when set, is mounted at /storage/.
	StorageHandler     http.Handler
	RateLimitPerMinute int
	Logger             *applog.Logger
}

type Server struct {
	http.Server
	svc    *services.Services
	api    Pinger
	views  *renderer
	logger *applog.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// appMetrics tracks console outcomes for /metrics.
type appMetrics struct {
	uptime             time.Time
	mutations          int64
	validationFailures int64
	backendErrors      int64
}

// NewServer configures routes, middleware and templates.
func NewServer(addr string, svc *services.Services, opts Options) (*Server, error) {
	if svc == nil {
		return nil, errors.New("services are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	views, err := newRenderer(appweb.TemplatesFS, opts.StorageURL)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	limits := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limits.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		svc:              svc,
		api:              opts.API,
		views:            views,
		logger:           logger.WithComponent(applog.ComponentHTTP),
		rateLimiter:      ratelimit.NewLimiter(limits),
		securityDetector: security.NewDetector(),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ClientIP)

	mux := http.NewServeMux()
	if err := s.routes(mux, opts.StorageHandler); err != nil {
		return nil, err
	}

	headers := security.DefaultHeadersConfig()
	headers.CSP = security.BuildCSP(opts.StorageURL)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.securityDetector.ClientIP, s.onRateLimit)(handler)
	handler = s.securityDetector.Middleware(logger)(handler)
	handler = security.NewHeadersMiddleware(headers).Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux, storage http.Handler) error {
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))
	if storage != nil {
		mux.Handle("GET /storage/", storage)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /{$}", s.handleDashboard)

	mux.HandleFunc("GET /residents", s.handleResidents)
	mux.HandleFunc("GET /residents/new", s.handleNewResident)
	mux.HandleFunc("POST /residents", s.handleCreateResident)
	mux.HandleFunc("GET /residents/{id}/edit", s.handleEditResident)
	mux.HandleFunc("POST /residents/{id}", s.handleUpdateResident)
	mux.HandleFunc("DELETE /residents/{id}", s.handleDeleteResident)

	mux.HandleFunc("GET /houses", s.handleHouses)
	mux.HandleFunc("GET /houses/new", s.handleNewHouse)
	mux.HandleFunc("POST /houses", s.handleCreateHouse)
	mux.HandleFunc("GET /houses/{id}", s.handleHouseDetail)
	mux.HandleFunc("GET /houses/{id}/edit", s.handleEditHouse)
	mux.HandleFunc("POST /houses/{id}", s.handleUpdateHouse)
	mux.HandleFunc("DELETE /houses/{id}", s.handleDeleteHouse)
	mux.HandleFunc("POST /houses/{id}/occupants", s.handleAddOccupant)

	mux.HandleFunc("GET /inhabitant-histories/{id}/edit", s.handleEditHistory)
	mux.HandleFunc("POST /inhabitant-histories/{id}/edit", s.handleUpdateHistory)
	mux.HandleFunc("DELETE /inhabitant-histories/{id}", s.handleDeleteHistory)

	mux.HandleFunc("GET /payments", s.handlePayments)
	mux.HandleFunc("GET /payments/new", s.handleNewPayment)
	mux.HandleFunc("POST /payments", s.handleCreatePayment)
	mux.HandleFunc("POST /payments/draft", s.handlePaymentDraft)
	mux.HandleFunc("GET /payments/{id}/edit", s.handleEditPayment)
	mux.HandleFunc("POST /payments/{id}", s.handleUpdatePayment)
	mux.HandleFunc("DELETE /payments/{id}", s.handleDeletePayment)

	mux.HandleFunc("GET /expenses", s.handleExpenses)
	mux.HandleFunc("GET /expenses/new", s.handleNewExpense)
	mux.HandleFunc("POST /expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /expenses/{id}/edit", s.handleEditExpense)
	mux.HandleFunc("POST /expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /expenses/{id}", s.handleDeleteExpense)
	return nil
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldComponent, applog.ComponentRateLimit,
		applog.FieldClientIP, s.securityDetector.ClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Terlalu banyak permintaan. Coba lagi nanti.").
		TriggerErrorNotification("Terlalu banyak permintaan. Coba lagi nanti.").
		Write(w)
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) countMutation() {
	atomic.AddInt64(&s.appMetrics.mutations, 1)
}
