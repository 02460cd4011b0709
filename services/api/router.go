package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// Routes constructs the chi router containing all API endpoints.
func (a *API) Routes() (http.Handler, error) {
	if a == nil {
		return nil, errors.New("nil api")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", userHeader},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", a.handleReady)
	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics)
	}
	if a.realtime != nil {
		r.Handle("/socket.io/*", a.realtime)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(httprate.Limit(a.config.RateLimitPerMinute, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP, keyByUser)))
		r.Use(requireUser)

		r.Route("/events/{eventID}", func(r chi.Router) {
			r.Get("/profiles", a.handleCandidates)
			r.Post("/like", a.handleLike)
			r.Post("/pass", a.handlePass)
			r.Get("/matches", a.handleEventMatches)
		})
		r.Get("/matches", a.handleMatches)

		r.Route("/matching", func(r chi.Router) {
			r.Get("/conversations", a.handleConversations)
			r.Route("/events/{eventID}", func(r chi.Router) {
				r.Get("/conversations", a.handleEventConversations)
				r.Get("/stats", a.handleStats)
				r.Get("/matches/{matchID}/messages", a.handleListMessages)
				r.Post("/matches/{matchID}/messages", a.handleSendMessage)
			})
			r.Get("/matches/{matchID}/messages", a.handleListMessages)
			r.Post("/matches/{matchID}/messages", a.handleSendMessage)
			r.Put("/messages/{messageID}/read", a.handleMarkRead)
			r.Put("/messages/{messageID}/like", a.handleToggleLike)
		})
	})

	return r, nil
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.ready != nil {
		ctx, cancel := withTimeout(r.Context())
		defer cancel()
		if err := a.ready(ctx); err != nil {
			a.log.Warn().Err(err).Msg("readiness check failed")
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
