// Package server exposes the HTTP surface: externally triggered cron
// endpoints, user submissions, and the availability reads.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/budget-gamer-hq/offer-harvester/internal/ingest"
	"github.com/budget-gamer-hq/offer-harvester/internal/logger"
)

// Server handles the HTTP API on top of the ingest service.
type Server struct {
	svc    *ingest.Service
	secret string
	log    logger.Logger
}

// New builds the HTTP server. secret guards the cron endpoints.
func New(svc *ingest.Service, secret string, log logger.Logger) *Server {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Server{svc: svc, secret: secret, log: log}
}

// Router assembles the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api", func(r chi.Router) {
		r.Route("/cron", func(r chi.Router) {
			r.Use(s.requireCronSecret)
			r.Get("/daily", s.handleCronDaily)
			r.Get("/thursday", s.handleCronThursday)
		})

		r.Post("/submissions", s.handleSubmission)

		r.Get("/free-games", s.handleFreeGames)
		r.Get("/subscription-games", s.handleSubscriptionGames)
		r.Get("/articles", s.handleArticles)
	})

	return r
}

// requireCronSecret enforces the bearer secret on scheduler endpoints.
func (s *Server) requireCronSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.secret)) != 1 {
			s.log.WarnObj("cron request rejected", "server_auth", map[string]any{
				"path": r.URL.Path,
			})
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
