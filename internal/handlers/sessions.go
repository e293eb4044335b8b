package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lehigh-university-libraries/coverlens/internal/export"
)

func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.coordinator.Snapshot())
}

func (h *Handler) HandleLoadMore(w http.ResponseWriter, r *http.Request) {
	h.writeState(w, h.coordinator.LoadMore(detach(r)))
}

func (h *Handler) HandleSimilar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.writeState(w, h.coordinator.FindSimilar(detach(r), id))
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	h.coordinator.ClearSearch()
	h.writeState(w, nil)
}

type filtersRequest struct {
	Threshold *int    `json:"threshold" validate:"omitempty,min=0,max=100"`
	Category  *string `json:"category" validate:"omitempty,min=1"`
}

// HandleFilters updates either facet; omitted fields are left as they are.
// A request with one bad value changes nothing.
func (h *Handler) HandleFilters(w http.ResponseWriter, r *http.Request) {
	var request filtersRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeState(w, h.coordinator.Reject("Invalid JSON: "+err.Error()))
		return
	}
	if err := h.validate.Struct(request); err != nil {
		h.writeState(w, h.coordinator.Reject("threshold must be between 0 and 100 and category must not be empty"))
		return
	}

	h.writeState(w, h.coordinator.SetFilters(request.Threshold, request.Category))
}

func (h *Handler) HandleDetails(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry := h.coordinator.RequestDetails(detach(r), id)
	h.writeJSON(w, http.StatusOK, entry)
}

// HandleExport downloads the currently visible books
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	snap := h.coordinator.Snapshot()
	meta := export.Meta{
		Mode:             snap.Mode.String(),
		ThresholdPercent: snap.ThresholdPercent,
		Category:         snap.Category,
		TotalCount:       snap.TotalCount,
		ExportedAt:       time.Now().UTC(),
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, meta, snap.Books); err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="coverlens-`+snap.Mode.String()+"."+string(format)+`"`)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("Unable to write export", "err", err)
	}
}
