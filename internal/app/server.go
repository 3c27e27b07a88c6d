package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"hygienix/backend/internal/auth"
	"hygienix/backend/internal/model"
	"hygienix/backend/internal/notify"
	"hygienix/backend/internal/repository"
	"hygienix/backend/internal/service"
)

// Version is stamped at build time.
var Version = "dev"

type contextKey string

const (
	userContextKey      contextKey = "authUser"
	requestIDContextKey contextKey = "requestID"

	maxBodyBytes = 1 << 20
)

type Server struct {
	cfg           Config
	log           *slog.Logger
	db            *sql.DB
	tokens        *auth.TokenManager
	dispatcher    *notify.Dispatcher
	bus           io.Closer
	authService   *service.AuthService
	orders        *service.OrderService
	contacts      *service.ContactService
	notifications *service.NotificationService
	mux           *http.ServeMux
	handler       http.Handler
	http          *http.Server
}

// NewServer opens the store, wires the notification channels and registers
// the routes. Call ListenAndServe to start serving and Shutdown to stop.
func NewServer(ctx context.Context, cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	channels := []notify.Channel{
		notify.NewWhatsAppChannel(notify.WhatsAppConfig{
			AccountSID:  cfg.TwilioAccountSID,
			AuthToken:   cfg.TwilioAuthToken,
			From:        cfg.TwilioWhatsAppNumber,
			CountryCode: cfg.DefaultCountryCode,
		}, logger),
		notify.NewEmailChannel(notify.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.EmailUser,
			Password: cfg.EmailPass,
			From:     cfg.EmailFrom,
		}, logger),
	}

	var bus io.Closer
	if cfg.RabbitURL != "" {
		eventBus, err := notify.DialEventBus(cfg.RabbitURL, cfg.NotifyExchange)
		if err != nil {
			// the bus is one more best-effort channel; run without it
			logger.Warn("event bus unavailable, continuing without it", "error", err)
		} else {
			channels = append(channels, eventBus)
			bus = eventBus
		}
	}

	dispatcher := notify.NewDispatcher(notify.Config{
		Workers:   cfg.NotifyWorkers,
		QueueSize: cfg.NotifyQueueSize,
		Timeout:   cfg.NotifyTimeout,
	}, logger, channels...)

	s := newServer(cfg, logger, db, dispatcher)
	s.dispatcher = dispatcher
	s.bus = bus

	if cfg.AdminInitEnabled {
		if err := s.authService.InitFirstAdmin(ctx, service.AdminInitInput{
			Email:    cfg.AdminInitEmail,
			Phone:    cfg.AdminInitPhone,
			Password: cfg.AdminInitPassword,
		}); errors.Is(err, service.ErrInvalidCredentials) {
			logger.Warn("admin init skipped: account exists with a different password", "email", cfg.AdminInitEmail)
		} else if err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

func newServer(cfg Config, logger *slog.Logger, db *sql.DB, notifier service.Notifier) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	audit := repository.NewSQLNotificationRepository(db)
	authService := NewAuthService(cfg, db, notifier, logger)

	s := &Server{
		cfg:         cfg,
		log:         logger,
		db:          db,
		tokens:      auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL),
		authService: authService,
		orders: service.NewOrderService(repository.NewSQLOrderRepository(db), audit, notifier, service.Operator{
			Phone: cfg.AdminWhatsAppNumber,
			Email: cfg.AdminEmail,
		}, logger),
		contacts:      service.NewContactService(repository.NewSQLContactRepository(db), audit, logger),
		notifications: service.NewNotificationService(audit),
		mux:           http.NewServeMux(),
	}
	s.registerRoutes()
	s.handler = s.withRequestLog(s.withCORS(s.mux))
	s.http = &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) ListenAndServe() error {
	if s.dispatcher != nil {
		s.dispatcher.Start()
	}
	s.log.Info("backend listening", "addr", s.http.Addr, "db_driver", s.cfg.DBDriver, "version", Version)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, drains queued notifications and closes
// the store.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.Close()
	return err
}

func (s *Server) Close() error {
	if s.dispatcher != nil {
		s.dispatcher.Close()
	}
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			s.log.Warn("failed to close event bus", "error", err)
		}
	}
	return s.db.Close()
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleRoot)

	s.mux.HandleFunc("POST /api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("POST /api/auth/register", s.handleSignup)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/auth/customer/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/auth/send-otp", s.handleSendOTP)
	s.mux.HandleFunc("POST /api/auth/login-otp", s.handleLoginOTP)
	s.mux.HandleFunc("POST /api/auth/forgot", s.handleForgotPassword)
	s.mux.HandleFunc("POST /api/auth/reset", s.handleResetPassword)

	s.mux.Handle("POST /api/orders", s.withOptionalAuth(http.HandlerFunc(s.handleCreateOrder)))
	s.mux.Handle("POST /api/bookings", s.withOptionalAuth(http.HandlerFunc(s.handleCreateBooking)))
	s.mux.Handle("GET /api/orders/my", s.withAuth(http.HandlerFunc(s.handleMyOrders)))
	s.mux.Handle("GET /api/orders/admin", s.withAuth(s.withRole(model.UserRoleAdmin, http.HandlerFunc(s.handleAllOrders))))
	s.mux.Handle("PATCH /api/orders/{id}/status", s.withAuth(s.withRole(model.UserRoleAdmin, http.HandlerFunc(s.handleSetOrderStatus))))
	s.mux.Handle("PUT /api/orders/{id}/status", s.withAuth(s.withRole(model.UserRoleAdmin, http.HandlerFunc(s.handleSetOrderStatus))))

	s.mux.HandleFunc("POST /api/contacts", s.handleCreateContact)
	s.mux.Handle("GET /api/contacts", s.withAuth(s.withRole(model.UserRoleAdmin, http.HandlerFunc(s.handleListContacts))))

	s.mux.Handle("GET /api/notifications", s.withAuth(s.withRole(model.UserRoleAdmin, http.HandlerFunc(s.handleListNotifications))))
	s.mux.Handle("POST /api/notifications/{id}/read", s.withAuth(s.withRole(model.UserRoleAdmin, http.HandlerFunc(s.handleMarkNotificationRead))))
	s.mux.Handle("PUT /api/notifications/{id}/read", s.withAuth(s.withRole(model.UserRoleAdmin, http.HandlerFunc(s.handleMarkNotificationRead))))

	s.mux.HandleFunc("POST /api/admin/init", s.handleAdminInit)
	s.mux.Handle("POST /api/admin/users/promote", s.withAuth(s.withRole(model.UserRoleAdmin, http.HandlerFunc(s.handlePromoteUser))))
}

// withAuth rejects requests without a valid bearer token.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeErr(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		identity, err := s.tokens.Verify(token)
		if err != nil {
			writeErr(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withOptionalAuth attaches the caller's identity when a valid token is sent.
// A missing or invalid token lets the request through as anonymous.
func (s *Server) withOptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r.Header.Get("Authorization"))
		if token != "" {
			if identity, err := s.tokens.Verify(token); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), userContextKey, identity))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRole(requiredRole model.UserRole, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := identityFromContext(r.Context())
		if err := auth.RequireRole(identity, requiredRole); err != nil {
			writeErr(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withCORS answers browser preflights and tags responses for allowed origins.
func (s *Server) withCORS(next http.Handler) http.Handler {
	origins := s.cfg.CORSOrigins
	if len(origins) == 0 && s.cfg.FrontendURL != "" {
		origins = []string{strings.TrimRight(s.cfg.FrontendURL, "/")}
	}
	opts := cors.Options{
		AllowedOrigins:       origins,
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:       []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:       []string{"X-Request-ID"},
		AllowCredentials:     true,
		OptionsSuccessStatus: http.StatusNoContent,
	}
	for _, origin := range origins {
		if origin == "*" {
			// a literal "*" is refused by browsers on credentialed requests
			opts.AllowedOrigins = nil
			opts.AllowOriginFunc = func(string) bool { return true }
			break
		}
	}
	return cors.New(opts).Handler(next)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDContextKey, requestID)))

		s.log.Info("request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func identityFromContext(ctx context.Context) (auth.Identity, bool) {
	identity, ok := ctx.Value(userContextKey).(auth.Identity)
	return identity, ok
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// writeServiceErr maps service and auth errors onto status codes. Anything
// unrecognised is logged and answered with fallback as a 500.
func (s *Server) writeServiceErr(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var validation *service.ValidationError
	switch {
	case errors.As(err, &validation):
		writeErr(w, http.StatusBadRequest, validation.Message)
	case errors.Is(err, service.ErrValidation):
		writeErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidToken):
		writeErr(w, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeErr(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, service.ErrInvalidOTP):
		writeErr(w, http.StatusUnauthorized, "invalid or expired otp")
	case errors.Is(err, service.ErrInvalidResetToken):
		writeErr(w, http.StatusBadRequest, "invalid or expired reset token")
	case errors.Is(err, auth.ErrForbidden):
		writeErr(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrInvalidTransition):
		writeErr(w, statusFor(err), err.Error())
	default:
		s.log.Error(fallback, "error", err, "request_id", requestIDFromContext(r.Context()))
		writeErr(w, http.StatusInternalServerError, fallback)
	}
}

func statusFor(err error) int {
	if errors.Is(err, service.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusConflict
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

type responseError struct {
	Error string `json:"error"`
}

func writeErr(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, responseError{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to write json response", "error", err)
	}
}
