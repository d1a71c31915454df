package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"rtadmin/internal/core"
	applog "rtadmin/internal/log"
	"rtadmin/internal/services"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady checks that templates are loaded and the REST backend answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.views == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.api == nil:
		checks["backend"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	default:
		if err := s.api.Ping(ctx); err != nil {
			checks["backend"] = "failed: " + err.Error()
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics reports request, security and console counters as JSON.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()

	writeJSON(w, http.StatusOK, map[string]any{
		"http_requests_total":       traceMetrics.TotalRequests,
		"http_server_errors_total":  traceMetrics.ServerErrors,
		"last_response_time_us":     traceMetrics.LastResponseTime,
		"rate_limit_hits_total":     rateLimitMetrics.TotalHits,
		"active_rate_limit_clients": rateLimitMetrics.ClientCount,
		"suspicious_requests_total": securityMetrics.SuspiciousRequests,
		"mutations_total":           atomic.LoadInt64(&s.appMetrics.mutations),
		"validation_failures_total": atomic.LoadInt64(&s.appMetrics.validationFailures),
		"backend_errors_total":      atomic.LoadInt64(&s.appMetrics.backendErrors),
		"uptime_seconds":            int64(time.Since(s.appMetrics.uptime).Seconds()),
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	v := view{Title: "Dashboard", Nav: "dashboard"}
	overview, err := s.svc.Dashboard.Overview(r.Context())
	if err != nil {
		s.logBackendError(r, "Dashboard load failed", applog.ComponentDashboard, applog.OpRead, err)
		v.Alert = "Gagal memuat data dashboard"
		v.Data = services.Overview{}
		s.views.page(w, r, http.StatusBadGateway, "dashboard", v)
		return
	}
	v.Data = overview
	s.views.page(w, r, http.StatusOK, "dashboard", v)
}

// isHTMX reports whether the request came from htmx and expects a partial.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// pathID reads {id}; invalid values yield 0, which the backend answers with 404.
func pathID(r *http.Request) int64 {
	id, err := core.ParseID(r.PathValue("id"))
	if err != nil || id < 0 {
		return 0
	}
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// logBackendError logs a remote failure at Error level.
func (s *Server) logBackendError(r *http.Request, msg, component, op string, err error) {
	atomic.AddInt64(&s.appMetrics.backendErrors, 1)
	applog.FromContext(r.Context()).ErrorContext(r.Context(), msg,
		applog.NewFields().
			WithComponent(component).
			WithOperation(op).
			WithError(err).
			ToSlice()...)
}

// formErrors separates field errors from other failures; anything that is
// not a validation failure is logged as a backend error.
func (s *Server) formErrors(r *http.Request, component string, err error) (core.FieldErrors, bool) {
	fields := services.FieldErrorsOf(err)
	if len(fields) == 0 {
		s.logBackendError(r, "Save failed", component, applog.OpUpdate, err)
		return nil, false
	}
	atomic.AddInt64(&s.appMetrics.validationFailures, 1)
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Form rejected",
		applog.FieldComponent, component,
		applog.FieldOperation, applog.OpValidate,
		applog.FieldFields, fields.Fields())
	return fields, true
}

// deleteRow answers an htmx row delete. Success returns 200 with an empty
// body so the row is swapped out; failure keeps the page with HX-Reswap: none
// and an error notification.
func (s *Server) deleteRow(w http.ResponseWriter, r *http.Request, component string, del func(ctx context.Context) error, okMsg, failMsg string) {
	if err := del(r.Context()); err != nil {
		s.logBackendError(r, "Delete failed", component, applog.OpDelete, err)
		status := http.StatusBadGateway
		if errors.Is(err, services.ErrNotFound) {
			status = http.StatusNotFound
		}
		NewHTMXResponse().
			Status(status).
			Reswap("none").
			TriggerErrorNotification(failMsg).
			Write(w)
		return
	}
	s.countMutation()
	NewHTMXResponse().
		TriggerChanged(component).
		TriggerSuccessNotification(okMsg).
		Write(w)
}
