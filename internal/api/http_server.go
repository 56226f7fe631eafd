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

	"roombooking/internal/config"
	"roombooking/internal/domain"
	"roombooking/internal/metrics"
	"roombooking/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Services are the engine operations exposed over HTTP.
type Services struct {
	Bookings  *service.BookingService
	Rules     *service.RuleService
	Recurring *service.RecurringProcessor
	Reports   *service.ReportService
	Audit     *service.AuditService
}

// HTTPServer is a thin JSON adapter over the booking engine.
type HTTPServer struct {
	cfg         config.APIConfig
	svc         Services
	keys        *keyring
	limiter     *rateLimiter
	actorHeader string
	server      *http.Server
	logger      zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	actorHeader := strings.TrimSpace(cfg.Auth.HeaderActor)
	if actorHeader == "" {
		actorHeader = actorHeaderDefault
	}
	srv := &HTTPServer{
		cfg:         cfg,
		svc:         svc,
		keys:        newKeyring(cfg.Auth),
		limiter:     newRateLimiter(cfg.RateLimit),
		actorHeader: actorHeader,
		logger:      logger.With().Str("component", "http").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	srv.handle(mux, "POST /api/v1/bookings", permWrite, srv.handleCreateBooking)
	srv.handle(mux, "GET /api/v1/bookings", permRead, srv.handleListBookings)
	srv.handle(mux, "GET /api/v1/bookings/{id}", permRead, srv.handleGetBooking)
	srv.handle(mux, "POST /api/v1/bookings/{id}/decision", permAdmin, srv.handleDecide)
	srv.handle(mux, "POST /api/v1/bookings/{id}/approve", permAdmin, srv.handleApprove)
	srv.handle(mux, "POST /api/v1/bookings/{id}/reject", permAdmin, srv.handleReject)
	srv.handle(mux, "POST /api/v1/bookings/{id}/cancel", permWrite, srv.handleCancel)
	srv.handle(mux, "GET /api/v1/users/{id}/bookings", permRead, srv.handleUserBookings)

	srv.handle(mux, "POST /api/v1/rules", permWrite, srv.handleCreateRule)
	srv.handle(mux, "GET /api/v1/rules/{id}", permRead, srv.handleGetRule)
	srv.handle(mux, "DELETE /api/v1/rules/{id}", permWrite, srv.handleDeactivateRule)
	srv.handle(mux, "GET /api/v1/users/{id}/rules", permRead, srv.handleUserRules)
	srv.handle(mux, "POST /api/v1/recurring/run", permAdmin, srv.handleRunRecurring)

	srv.handle(mux, "GET /api/v1/reports/summary", permRead, srv.handleSummary)
	srv.handle(mux, "GET /api/v1/reports/export", permAdmin, srv.handleExport)
	srv.handle(mux, "GET /api/v1/audit", permAdmin, srv.handleAudit)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.requestLogging(mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

// Handler exposes the full middleware chain, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
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

func (s *HTTPServer) handle(mux *http.ServeMux, pattern, perm string, h http.HandlerFunc) {
	mux.Handle(pattern, s.guard(pattern, perm, h))
}

// guard authenticates the API key, checks the route permission and the
// per-client rate limit, then records the outcome.
func (s *HTTPServer) guard(endpoint, perm string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() { metrics.IncHTTP(endpoint, rec.status) }()

		if s.keys.enabled {
			client, err := s.keys.authenticate(strings.TrimSpace(r.Header.Get(s.keys.header)))
			if err != nil {
				writeError(rec, http.StatusUnauthorized, err.Error())
				return
			}
			if err := authorize(client, perm); err != nil {
				writeError(rec, http.StatusForbidden, err.Error())
				return
			}
		}

		if !s.limiter.allow(s.clientKey(r)) {
			writeError(rec, http.StatusTooManyRequests, errRateLimited.Error())
			return
		}

		next(rec, r)
	})
}

func (s *HTTPServer) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(s.keys.header)); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

type ctxKey int

const requestIDKey ctxKey = iota

const requestIDHeader = "X-Request-ID"

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *HTTPServer) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, requestID))

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// writeDomainError maps the engine's error kinds onto HTTP status codes.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("request_id", requestIDFrom(r.Context())).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
