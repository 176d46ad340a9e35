package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"bibliotech/internal/config"
	"bibliotech/internal/database"
	"bibliotech/internal/metrics"
	"bibliotech/internal/service"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodyBytes = 1 << 20

// Services are the use cases exposed over HTTP.
type Services struct {
	Auth         *service.AuthService
	Reservations *service.ReservationService
	Loans        *service.LoanService
	Reviews      *service.ReviewService
	Catalog      *service.CatalogService
	Reports      *service.ReportService
}

// HTTPServer is the JSON API.
type HTTPServer struct {
	cfg     *config.Config
	svc     Services
	ready   Pinger
	limiter *rateLimiter
	server  *http.Server
	log     zerolog.Logger
}

func NewHTTPServer(cfg *config.Config, svc Services, ready Pinger, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:     cfg,
		svc:     svc,
		ready:   ready,
		limiter: newRateLimiter(cfg.API.RateLimit),
		log:     zerolog.Nop(),
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	mux := http.NewServeMux()
	srv.routes(mux)

	handler := srv.requestID(srv.logging(srv.recoverer(srv.rateLimit(mux))))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("POST /api/auth/registrar", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/auth/google", s.handleGoogleStart)
	mux.HandleFunc("GET /api/auth/google/callback", s.handleGoogleCallback)
	mux.Handle("POST /api/auth/logout", s.authed(s.handleLogout))
	mux.Handle("GET /api/auth/me", s.authed(s.handleMe))
	mux.Handle("POST /api/sessoes/heartbeat", s.authed(s.handleHeartbeat))

	mux.Handle("POST /api/reservas", s.authed(s.handleCreateReservation))
	mux.Handle("PUT /api/reservas/{id}/cancelar", s.authed(s.handleCancelReservation))
	mux.Handle("GET /api/reservas/minhas", s.authed(s.handleMyReservations))

	mux.HandleFunc("GET /api/livros", s.handleListBooks)
	mux.HandleFunc("GET /api/livros/{id}", s.handleGetBook)
	mux.HandleFunc("GET /api/livros/{id}/avaliacoes", s.handleListReviews)
	mux.Handle("POST /api/livros/{id}/avaliacoes", s.authed(s.handleCreateReview))
	mux.Handle("DELETE /api/avaliacoes/{id}", s.authed(s.handleDeleteReview))
	mux.HandleFunc("GET /api/autores", s.handleListAuthors)
	mux.HandleFunc("GET /api/categorias", s.handleListCategories)

	mux.Handle("GET /api/emprestimos/meus", s.authed(s.handleMyLoans))

	mux.Handle("PUT /api/admin/reservas/{id}/concluir", s.admin(s.handleCompleteReservation))
	mux.Handle("POST /api/admin/reservas/expirar", s.admin(s.handleSweep))
	mux.Handle("POST /api/admin/livros/{id}/promover", s.admin(s.handlePromoteNext))
	mux.Handle("POST /api/admin/livros", s.admin(s.handleCreateBook))
	mux.Handle("PUT /api/admin/livros/{id}", s.admin(s.handleUpdateBook))
	mux.Handle("PUT /api/admin/livros/{id}/estoque", s.admin(s.handleSetStock))
	mux.Handle("POST /api/admin/autores", s.admin(s.handleCreateAuthor))
	mux.Handle("POST /api/admin/categorias", s.admin(s.handleCreateCategory))
	mux.Handle("POST /api/admin/emprestimos", s.admin(s.handleCreateLoan))
	mux.Handle("PUT /api/admin/emprestimos/{id}/devolver", s.admin(s.handleReturnLoan))
	mux.Handle("GET /api/admin/emprestimos/atrasados", s.admin(s.handleOverdueLoans))
	mux.Handle("GET /api/admin/dashboard", s.admin(s.handleDashboard))
	mux.Handle("GET /api/admin/relatorios/reservas.xlsx", s.admin(s.handleReservationsReport))
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
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

type ctxKey int

const requestIDKey ctxKey = 0

func (s *HTTPServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *HTTPServer) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTP(route, recorder.status, dur)

		s.log.Info().
			Str("request_id", requestIDFrom(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

func (s *HTTPServer) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				s.log.Error().
					Interface("panic", p).
					Str("request_id", requestIDFrom(r.Context())).
					Msg("http handler panicked")
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(r) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// fail maps err to a status code. Unexpected errors are logged and answered
// with a static message.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.log.Error().
			Err(err).
			Str("request_id", requestIDFrom(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrConflict),
		errors.Is(err, database.ErrInvalidTransition),
		errors.Is(err, database.ErrNotAvailable),
		errors.Is(err, database.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrGoogleDisabled):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func readJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", service.ErrValidation)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: %w", r.PathValue("id"), service.ErrValidation)
	}
	return id, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
