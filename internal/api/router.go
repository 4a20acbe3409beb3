package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/devroom-sh/devroom/internal/api/middleware"
	"github.com/devroom-sh/devroom/internal/genai"
	"github.com/devroom-sh/devroom/internal/handlers"
	"github.com/devroom-sh/devroom/internal/session"
	"github.com/devroom-sh/devroom/internal/store"
	"github.com/devroom-sh/devroom/internal/token"
)

// Deps holds the dependencies the router wires together.
type Deps struct {
	Logger      zerolog.Logger
	Store       store.DataStore
	Redis       *store.RedisStore // may be nil in development
	Tokens      *token.Manager
	Generator   genai.Generator
	Session     *session.Service
	Sync        *session.Synchronizer
	FrontendURL string
}

// NewRouter creates and configures the HTTP router.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(4 * 1024 * 1024)) // file trees can be large

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(d.Logger))
	r.Use(chimw.Recoverer)

	// Rate limiting (requires Redis)
	if d.Redis != nil {
		limiter := middleware.NewRateLimiter(d.Redis.Client(), d.Logger)
		r.Use(limiter.Middleware)
	}

	allowedOrigins := []string{"*"}
	if d.FrontendURL != "" {
		allowedOrigins = []string{d.FrontendURL}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(d.Store, d.Redis, d.Tokens, d.Generator, d.Sync)
	auth := middleware.NewAuthMiddleware(d.Tokens)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Post("/users/register", h.Register)
	r.Post("/users/login", h.Login)

	// Websocket handshake. Auth happens inside the handler so a bad
	// token produces a machine-readable rejection instead of a plain 401.
	r.Get("/session", d.Session.HandleWS)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Get("/users/profile", h.Profile)
		r.Get("/users/all", h.AllUsers)
		r.Get("/users/logout", h.Logout)

		r.Post("/projects/create", h.CreateProject)
		r.Get("/projects/all", h.AllProjects)
		r.Put("/projects/add-user", h.AddUsers)
		r.Get("/projects/get-project/{projectId}", h.GetProject)
		r.Put("/projects/update-file-tree", h.UpdateFileTree)
		r.Put("/projects/{projectId}", h.RenameProject)
		r.Delete("/projects/{projectId}", h.DeleteProject)

		r.Get("/ai/get-result", h.GetResult)
	})

	return r
}
