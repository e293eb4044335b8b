package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
)

// HandleCover streams a cover image fetched through the backend image proxy
func (h *Handler) HandleCover(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("url")
	if ref == "" {
		h.writeError(w, "url is required", http.StatusBadRequest)
		return
	}

	img, err := h.images.Resolve(r.Context(), ref)
	if err != nil {
		slog.Warn("Failed to resolve cover", "url", ref, "error", err)
		h.writeError(w, "Failed to fetch image", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := w.Write(img.Data); err != nil {
		slog.Error("Unable to write cover", "err", err)
	}
}
