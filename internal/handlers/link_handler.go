package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Varun5711/shortlinks/internal/alias"
	"github.com/Varun5711/shortlinks/internal/logger"
	"github.com/Varun5711/shortlinks/internal/middleware"
	"github.com/Varun5711/shortlinks/internal/models"
	"github.com/Varun5711/shortlinks/internal/service"
	"github.com/Varun5711/shortlinks/internal/sweeper"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

// LinkService is what the HTTP layer needs from *service.LinkService.
type LinkService interface {
	Shorten(ctx context.Context, req models.ShortenRequest) (service.ShortenResult, error)
	Redirect(ctx context.Context, code string, meta models.ClickMeta) (string, error)
	Delete(ctx context.Context, code string, principal *models.Principal) error
	ChangeAlias(ctx context.Context, code string, principal *models.Principal) (service.ChangeAliasResult, error)
	Stats(ctx context.Context, code string) (service.StatsResult, error)
	SearchByURL(ctx context.Context, originalURL string) (service.SearchResult, error)
	Ping(ctx context.Context) error
}

// SweepTrigger queues an on-demand expiry sweep.
type SweepTrigger interface {
	Trigger() error
}

type LinkHandler struct {
	links   LinkService
	sweeper SweepTrigger
	log     *logger.Logger
}

// NewLinkHandler accepts a nil sweeper when sweeping is disabled.
func NewLinkHandler(links LinkService, sweeper SweepTrigger, log *logger.Logger) *LinkHandler {
	return &LinkHandler{
		links:   links,
		sweeper: sweeper,
		log:     log,
	}
}

func (h *LinkHandler) Shorten(w http.ResponseWriter, r *http.Request) {
	var req models.ShortenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	res, err := h.links.Shorten(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidURL),
			errors.Is(err, service.ErrInvalidExpiry),
			errors.Is(err, alias.ErrInvalidAlias):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			h.log.Error("Shorten %s failed: %v", req.OriginalURL, err)
			respondJSON(w, http.StatusInternalServerError, models.SoftFailure{
				Status: models.StatusError,
				Data:   err.Error(),
			})
		}
		return
	}

	if !res.Created {
		respondJSON(w, http.StatusOK, models.ShortenResponse{
			Status: models.StatusError,
			Data:   alias.ErrAliasConflict.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, models.ShortenResponse{
		Status:    models.StatusSuccess,
		ShortCode: res.ShortCode,
		ShortURL:  res.ShortURL,
		QRCode:    res.QRCode,
	})
}

func (h *LinkHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	target, err := h.links.Redirect(r.Context(), code, models.ClickMeta{
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Referer:   r.Referer(),
	})
	if err != nil {
		h.serviceError(w, "redirect "+code, err)
		return
	}

	// Browsers cache 301s indefinitely; no-store keeps every visit
	// reaching us so the usage count stays exact.
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, target, http.StatusMovedPermanently)
}

func (h *LinkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	if err := h.links.Delete(r.Context(), code, middleware.GetPrincipal(r.Context())); err != nil {
		h.serviceError(w, "delete "+code, err)
		return
	}

	respondJSON(w, http.StatusOK, models.StatusResponse{Status: models.StatusSuccess})
}

func (h *LinkHandler) ChangeAlias(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	res, err := h.links.ChangeAlias(r.Context(), code, middleware.GetPrincipal(r.Context()))
	if err != nil {
		h.serviceError(w, "change alias "+code, err)
		return
	}

	if !res.Found {
		respondJSON(w, http.StatusOK, noShortLink(code))
		return
	}

	respondJSON(w, http.StatusOK, models.ChangeAliasResponse{
		Status:    models.StatusSuccess,
		ShortCode: res.ShortCode,
	})
}

func (h *LinkHandler) Stats(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	res, err := h.links.Stats(r.Context(), code)
	if err != nil {
		h.serviceError(w, "stats "+code, err)
		return
	}

	if !res.Found {
		respondJSON(w, http.StatusOK, noShortLink(code))
		return
	}

	respondJSON(w, http.StatusOK, models.StatsResponse{
		OriginalURL: res.OriginalURL,
		CreatedAt:   res.CreatedAt,
		UsageCount:  res.UsageCount,
		LastUsedAt:  res.LastUsedAt,
	})
}

func (h *LinkHandler) Search(w http.ResponseWriter, r *http.Request) {
	originalURL := r.URL.Query().Get("original_url")
	if originalURL == "" {
		respondError(w, http.StatusBadRequest, "original_url is required")
		return
	}

	res, err := h.links.SearchByURL(r.Context(), originalURL)
	if err != nil {
		h.serviceError(w, "search", err)
		return
	}

	if !res.Found {
		respondJSON(w, http.StatusOK, models.SoftFailure{
			Status: models.StatusFailed,
			Data:   fmt.Sprintf("no long link %s in database", originalURL),
		})
		return
	}

	respondJSON(w, http.StatusOK, models.SearchResponse{ShortCode: res.ShortCode})
}

// TriggerSweep queues an expiry sweep; the sweep itself runs in the
// background.
func (h *LinkHandler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	if h.sweeper == nil {
		respondJSON(w, http.StatusServiceUnavailable, models.SweepResponse{
			Status:  http.StatusServiceUnavailable,
			Details: "expiry sweeper is disabled",
		})
		return
	}

	if err := h.sweeper.Trigger(); err != nil {
		status := http.StatusServiceUnavailable
		if !errors.Is(err, sweeper.ErrQueueFull) {
			h.log.Error("Failed to queue sweep: %v", err)
		}
		respondJSON(w, status, models.SweepResponse{Status: status, Details: err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, models.SweepResponse{Status: http.StatusOK, Details: "All ok"})
}

func (h *LinkHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.links.Ping(r.Context()); err != nil {
		h.log.Warn("Health check failed: %v", err)
		respondJSON(w, http.StatusServiceUnavailable, models.StatusResponse{Status: "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, models.StatusResponse{Status: "ok"})
}

func (h *LinkHandler) serviceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		respondError(w, http.StatusNotFound, "short link not found")
	case errors.Is(err, service.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, err.Error())
	default:
		h.log.Error("Failed to %s: %v", op, err)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func noShortLink(code string) models.SoftFailure {
	return models.SoftFailure{
		Status: models.StatusFailed,
		Data:   fmt.Sprintf("no short link %s in database", code),
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}
