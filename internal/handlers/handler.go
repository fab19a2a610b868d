// Package handlers exposes the session over a local JSON API so dashboards
// and scripts on the device can trigger downloads and read progress.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/form/v4"

	"github.com/zeticontents/zetisync/internal/catalog"
	"github.com/zeticontents/zetisync/internal/domain"
	"github.com/zeticontents/zetisync/internal/logger"
)

// Orchestrator is the slice of the session the API needs.
type Orchestrator interface {
	Download(ctx context.Context, contentName string) (*domain.VariantDescriptor, error)
	Retry(ctx context.Context, contentName string, failedVariantID int) (*domain.VariantDescriptor, error)
	ProgressView() []domain.ProgressRecord
	ProgressAll() []domain.ProgressRecord
	ClearProgress()
	History() ([]domain.HistoryEntry, bool)
	Contents(ctx context.Context) ([]domain.ContentItem, error)
	Upload(ctx context.Context, up catalog.UploadRequest) (*catalog.UploadResult, error)
	ChannelState() string
}

type Handler struct {
	Session Orchestrator
	Logger  *logger.Logger
	decoder *form.Decoder
}

func NewHandler(s Orchestrator, log *logger.Logger) *Handler {
	return &Handler{
		Session: s,
		Logger:  log.WithComponent("api"),
		decoder: form.NewDecoder(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/progress", h.Progress)
		r.Get("/progress/all", h.ProgressAll)
		r.Post("/progress/clear", h.ProgressClear)
		r.Get("/history", h.History)
		r.Get("/contents", h.Contents)
		r.Post("/contents", h.Upload)
		r.Post("/downloads/{content}", h.Download)
		r.Post("/downloads/{content}/retry", h.Retry)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var negErr *domain.NegotiationError
	var regErr *domain.RegistrationError
	switch {
	case errors.As(err, &negErr):
		// The catalog rejected the request (no compatible variant, unknown
		// content); surface it as an upstream failure, not a local one.
		status = http.StatusBadGateway
	case errors.As(err, &regErr):
		status = http.StatusBadGateway
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
