package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edudesk/campus-chat/internal/middleware"
)

// routes builds the HTTP router: ambient middleware, the auth endpoints, the
// messaging API and the realtime handshake.
func (s *Server) routes(limiter *middleware.LimiterStore) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Metrics)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", s.handleHealth)

	// Uploaded files are served straight from disk; the store only keeps
	// their metadata.
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.uploadDir))))

	r.Route("/v1", func(r chi.Router) {
		// Credential endpoints are the brute-forceable surface.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(limiter))
			r.Post("/auth/register", s.handleRegister)
			r.Post("/auth/login", s.handleLogin)
		})

		// The realtime handshake authenticates inside the handler because
		// browsers can only pass the token as a query parameter.
		r.Get("/ws", s.handleWS)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/conversations", s.handleListConversations)
			r.Get("/conversations/{conversationID}/messages", s.handleGetThread)
			r.Post("/messages", s.handleSendMessage)
			r.Post("/messages/{messageID}/seen", s.handleMarkSeen)
			r.Post("/messages/upload", s.handleUpload)
		})
	})

	return r
}
