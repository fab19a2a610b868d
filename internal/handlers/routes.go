package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zeticontents/zetisync/internal/catalog"
	"github.com/zeticontents/zetisync/internal/domain"
)

type historyResponse struct {
	Entries []domain.HistoryEntry `json:"entries"`
	Stale   bool                  `json:"stale"`
}

type retryQuery struct {
	FailedID int `form:"failed_id"`
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"channel": h.Session.ChannelState(),
	})
}

// Progress returns the deduplicated rows a dashboard renders: one row per
// (client, content), the most recently updated request winning.
func (h *Handler) Progress(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Session.ProgressView())
}

// ProgressAll returns every tracked request id, including superseded ones.
func (h *Handler) ProgressAll(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Session.ProgressAll())
}

func (h *Handler) ProgressClear(w http.ResponseWriter, _ *http.Request) {
	h.Session.ClearProgress()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) History(w http.ResponseWriter, _ *http.Request) {
	entries, stale := h.Session.History()
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	h.writeJSON(w, http.StatusOK, historyResponse{Entries: entries, Stale: stale})
}

func (h *Handler) Contents(w http.ResponseWriter, r *http.Request) {
	items, err := h.Session.Contents(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, items)
}

type uploadForm struct {
	Name       string `form:"name"`
	Version    string `form:"version"`
	Type       string `form:"type"`
	Chipset    string `form:"chipset"`
	MinMemory  int    `form:"min_memory"`
	Resolution string `form:"resolution"`
}

// Upload forwards a multipart content upload to the catalog.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart body: " + err.Error()})
		return
	}

	var f uploadForm
	if err := h.decoder.Decode(&f, r.MultipartForm.Value); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form: " + err.Error()})
		return
	}
	if f.Name == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name required"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file required"})
		return
	}
	defer file.Close()

	result, err := h.Session.Upload(r.Context(), catalog.UploadRequest{
		Name:       f.Name,
		Version:    f.Version,
		Type:       f.Type,
		Chipset:    f.Chipset,
		MinMemory:  f.MinMemory,
		Resolution: f.Resolution,
		FileName:   header.Filename,
		File:       file,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	content := chi.URLParam(r, "content")
	if content == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content name required"})
		return
	}

	variant, err := h.Session.Download(r.Context(), content)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, variant)
}

func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	content := chi.URLParam(r, "content")
	if content == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content name required"})
		return
	}

	var q retryQuery
	if err := h.decoder.Decode(&q, r.URL.Query()); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid query: " + err.Error()})
		return
	}
	if q.FailedID <= 0 {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed_id required"})
		return
	}

	variant, err := h.Session.Retry(r.Context(), content, q.FailedID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, variant)
}
