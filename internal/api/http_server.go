package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/domain"
	"slotbook/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ReadinessCheck is one dependency probed by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Dependencies are the collaborators served over HTTP.
type Dependencies struct {
	Bookings  BookingAPI
	Schedule  ScheduleAPI
	Readiness []ReadinessCheck
	// Location anchors dates and local start times in requests.
	Location *time.Location
}

// HTTPServer exposes the JSON API.
type HTTPServer struct {
	cfg    *config.APIConfig
	deps   Dependencies
	server *http.Server
	auth   *HTTPAuth
	log    zerolog.Logger
}

func NewHTTPServer(cfg *config.APIConfig, deps Dependencies, logger *zerolog.Logger) *HTTPServer {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	srv := &HTTPServer{cfg: cfg, deps: deps, auth: NewHTTPAuth(cfg), log: zerolog.Nop()}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	mux := http.NewServeMux()
	srv.route(mux, "GET /api/v1/slots", srv.handleSlots)
	srv.route(mux, "POST /api/v1/bookings", srv.handleCreateBooking)
	srv.route(mux, "GET /api/v1/bookings", srv.handleListBookings)
	srv.route(mux, "GET /api/v1/bookings/export", srv.handleExportBookings)
	srv.route(mux, "POST /api/v1/bookings/cancel", srv.handleCancelBooking)
	srv.route(mux, "GET /api/v1/bookings/{id}", srv.handleGetBooking)
	srv.route(mux, "GET /api/v1/availability", srv.handleGetAvailability)
	srv.route(mux, "PUT /api/v1/availability", srv.handlePutAvailability)
	srv.route(mux, "GET /api/v1/services", srv.handleListServices)
	srv.route(mux, "POST /api/v1/services", srv.handleSaveService)
	srv.route(mux, "GET /healthz", srv.handleHealthz)
	srv.route(mux, "GET /readyz", srv.handleReadyz)

	handler := requestIDMiddleware(srv.log, srv.loggingMiddleware(srv.auth.Wrap(mux)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           otelhttp.NewHandler(handler, "slotbook.http"),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(pattern)
		h(w, r)
	})
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP endpoints.
type HTTPAuth struct {
	cfg     *config.APIConfig
	keys    *keyring
	limiter *rateLimiter
}

func NewHTTPAuth(cfg *config.APIConfig) *HTTPAuth {
	return &HTTPAuth{cfg: cfg, keys: newKeyring(cfg.Auth), limiter: newRateLimiter(cfg.RateLimit)}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled || !a.cfg.HTTP.Enabled || isProbe(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.Auth.Enabled {
			err := a.keys.authorize(r.Header.Get(a.keys.apiKeyHeader), r.Header.Get(a.keys.extraHeader), requiredPermissionHTTP(r))
			if errors.Is(err, errPermissionDenied) {
				writeError(w, http.StatusForbidden, "forbidden", err.Error())
				return
			}
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}
		}

		if !a.limiter.allow(a.clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", errRateLimited.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isProbe(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

func requiredPermissionHTTP(r *http.Request) string {
	path := r.URL.Path
	switch {
	case path == "/api/v1/slots":
		return permReadSlots
	case strings.HasPrefix(path, "/api/v1/bookings"):
		if r.Method == http.MethodPost {
			return permWriteBookings
		}
		return permReadBookings
	case path == "/api/v1/availability" || path == "/api/v1/services":
		if r.Method == http.MethodGet {
			return permReadSlots
		}
		return permAdminSchedule
	default:
		return ""
	}
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.keys.apiKeyHeader)); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware propagates or assigns X-Request-ID and stores a request-scoped logger in the context.
func requestIDMiddleware(base zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		reqLogger := base.With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(reqLogger.WithContext(r.Context())))
	})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		zerolog.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, envelope{Error: &errorBody{Code: code, Message: message}})
}

// notAvailableMessage replaces configuration details on customer-facing calls.
const notAvailableMessage = "booking is not available for this service"

// writeCustomerError hides owner configuration faults from customers; the detail goes to the log.
func writeCustomerError(w http.ResponseWriter, r *http.Request, err error) {
	if domain.Code(err) == domain.CodeConfiguration {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("availability misconfigured")
		writeError(w, httpStatus(domain.CodeConfiguration), domain.CodeConfiguration, notAvailableMessage)
		return
	}
	writeDomainError(w, r, err)
}

// writeDomainError maps the error taxonomy onto HTTP statuses. Internal errors are logged, not echoed.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.Code(err)
	statusCode := httpStatus(code)
	message := err.Error()
	if code == domain.CodeInternal {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		message = "internal error"
	}
	writeError(w, statusCode, code, message)
}

func httpStatus(code string) int {
	switch code {
	case domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeCollision:
		return http.StatusConflict
	case domain.CodeConfiguration:
		return http.StatusUnprocessableEntity
	case domain.CodeTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
