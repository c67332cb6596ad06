package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/artifact-chat/internal/middleware"
	"github.com/capitalize-ai/artifact-chat/pkg/logger"
)

// Routes bundles the handlers and HTTP policy served by NewRouter.
type Routes struct {
	Health        *HealthHandler
	Conversations *ConversationHandler
	Messages      *MessageHandler
	Uploads       *UploadHandler

	Logger            *logger.Logger
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter builds the HTTP surface.
func NewRouter(rt Routes) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(rt.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.AllowedOrigins))

	r.Get("/health", rt.Health.Health)
	r.Get("/ready", rt.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if rt.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(rt.RateLimitRequests, rt.RateLimitWindow))
		}

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", rt.Conversations.List)
			r.Post("/", rt.Conversations.Create)
			r.Get("/{id}", rt.Conversations.Get)
			r.Put("/{id}", rt.Conversations.Update)
		})

		r.Post("/chat/message", rt.Messages.Send)

		r.Post("/uploads", rt.Uploads.Upload)
		r.Get("/uploads/{filename}", rt.Uploads.Get)
	})

	return r
}
