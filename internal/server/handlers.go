package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/budget-gamer-hq/offer-harvester/internal/ingest"
	"github.com/budget-gamer-hq/offer-harvester/internal/preview"
	"github.com/budget-gamer-hq/offer-harvester/pkg/adapters"
	"github.com/budget-gamer-hq/offer-harvester/pkg/links"
)

type submissionRequest struct {
	Link string `json:"link"`
	Type string `json:"type"`
}

const (
	submissionTypeGame    = "game"
	submissionTypeArticle = "article"
)

func (s *Server) handleSubmission(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Link = strings.TrimSpace(req.Link)
	if req.Link == "" {
		writeError(w, http.StatusBadRequest, "link is required")
		return
	}

	switch strings.ToLower(strings.TrimSpace(req.Type)) {
	case submissionTypeGame:
		s.submitGame(w, r, req.Link)
	case submissionTypeArticle:
		s.submitArticle(w, r, req.Link)
	default:
		writeError(w, http.StatusBadRequest, `type must be "game" or "article"`)
	}
}

func (s *Server) submitGame(w http.ResponseWriter, r *http.Request, link string) {
	offer, err := s.svc.SubmitGameLink(r.Context(), link)
	if err != nil {
		switch {
		case errors.Is(err, links.ErrUnsupportedLink):
			writeError(w, http.StatusBadRequest, "unsupported game link type")
		case errors.Is(err, ingest.ErrEpicLinksNotSupported):
			writeError(w, http.StatusBadRequest, "Epic Games links are not supported yet")
		case errors.Is(err, adapters.ErrNotEligible):
			writeError(w, http.StatusBadRequest, "game is not currently free")
		case errors.Is(err, ingest.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "game already exists")
		default:
			s.log.ErrorObj("game submission failed", "server_submission", map[string]any{
				"link":  link,
				"error": err.Error(),
			})
			writeError(w, http.StatusInternalServerError, "failed to process game link")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"provider": offer.ProviderID,
		"name":     offer.Name,
	})
}

func (s *Server) submitArticle(w http.ResponseWriter, r *http.Request, link string) {
	article, err := s.svc.SubmitArticle(r.Context(), link)
	if err != nil {
		switch {
		case errors.Is(err, preview.ErrDomainNotAllowed):
			writeError(w, http.StatusBadRequest, "URL domain not allowed")
		case errors.Is(err, ingest.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "article already exists")
		default:
			s.log.ErrorObj("article submission failed", "server_submission", map[string]any{
				"link":  link,
				"error": err.Error(),
			})
			writeError(w, http.StatusInternalServerError, "failed to process article link")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"article": article,
	})
}

func (s *Server) handleFreeGames(w http.ResponseWriter, r *http.Request) {
	offers, err := s.svc.FreeGames(r.Context())
	if err != nil {
		s.log.ErrorObj("free games query failed", "server_query", map[string]any{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, offers)
}

func (s *Server) handleSubscriptionGames(w http.ResponseWriter, r *http.Request) {
	offers, err := s.svc.SubscriptionGames(r.Context())
	if err != nil {
		s.log.ErrorObj("subscription games query failed", "server_query", map[string]any{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, offers)
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := s.svc.Articles(r.Context())
	if err != nil {
		s.log.ErrorObj("articles query failed", "server_query", map[string]any{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, articles)
}
