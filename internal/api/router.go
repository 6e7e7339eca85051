package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"accounts/internal/auth"
	"accounts/internal/blob"
	"accounts/internal/config"
	"accounts/internal/constants"
	"accounts/internal/store"
)

const (
	jsonBodyLimit   = 1 << 20
	requestIDHeader = "X-Request-ID"
)

// Dependencies are the services the HTTP surface is built from.
type Dependencies struct {
	Store  store.Store
	Hasher *auth.PasswordHasher
	Tokens *auth.TokenService
	Resets *auth.ResetService
	Blobs  *blob.Service
}

type Server struct {
	router *chi.Mux
	config *config.Config
}

func NewServer(cfg *config.Config, deps Dependencies) (*Server, error) {
	resolver, err := NewClientIPResolver(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("initializing client ip resolver: %w", err)
	}

	authLimiter := RateLimitMiddleware(cfg.RateLimit.AuthRequestsPerMinute, time.Minute)
	photos := NewPhotoUploader(deps.Blobs, cfg.Server.BaseURL)

	authHandler := NewAuthHandler(deps.Store.Accounts(), deps.Hasher, deps.Tokens, deps.Resets, photos)
	userHandler := NewUserHandler(deps.Store.Accounts(), deps.Store.ResetTokens(), photos)
	adminHandler := NewAdminHandler(deps.Store.Accounts(), photos)
	mediaHandler := NewMediaHandler(deps.Blobs)
	healthHandler := NewHealthHandler(deps.Store)

	authMiddleware := NewAuthMiddleware(deps.Tokens)

	r := chi.NewRouter()
	r.Use(resolver.Middleware)
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.Server.CORSOrigins))
	r.Use(securityHeadersMiddleware)

	r.Get("/health", healthHandler.Check)
	r.Get("/media/*", mediaHandler.GetPhoto)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter)
			r.With(maxBodySizeMiddleware(photos.RequestLimit())).Post("/register", authHandler.Register)

			r.Group(func(r chi.Router) {
				r.Use(maxBodySizeMiddleware(jsonBodyLimit))
				r.Post("/login", authHandler.Login)
				r.Post("/request-password-reset", authHandler.RequestPasswordReset)
				r.Post("/reset-password/{token}", authHandler.ResetPassword)
			})
		})

		r.Route("/user", func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Get("/", userHandler.GetMe)
			r.With(maxBodySizeMiddleware(photos.RequestLimit())).Patch("/update/{id}", userHandler.Update)
			r.Delete("/delete/{id}", userHandler.Delete)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Use(authMiddleware.RequireAdmin)
			r.Use(maxBodySizeMiddleware(jsonBodyLimit))
			r.Get("/", adminHandler.List)
			r.Delete("/delete-all", adminHandler.DeleteAll)
			r.Get("/{id}", adminHandler.Get)
			r.Patch("/{id}/active", adminHandler.SetActive)
			r.Patch("/{id}/admin", adminHandler.SetAdmin)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		notFound(w, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, constants.ErrCodeMethodNotAllowed, "Method not allowed")
	})

	return &Server{
		router: r,
		config: cfg,
	}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// corsMiddleware allows the configured origins. An empty list allows any
// origin; bearer tokens are never sent implicitly, so no credentials mode
// is enabled.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	})
}

func maxBodySizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; img-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// slogRequestLogger tags every request with an id, echoed in the
// X-Request-ID response header, and logs it once the handler returns.
func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set(requestIDHeader, requestID)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"remote", ClientAddress(r),
			"request_id", requestID,
		)
	})
}
