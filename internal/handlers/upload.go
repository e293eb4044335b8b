package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/coverlens/internal/browser"
	"github.com/lehigh-university-libraries/coverlens/internal/images"
)

type searchURLRequest struct {
	ImageURL string `json:"imageUrl" validate:"omitempty,url"`
}

// HandleSearch starts a visual search from an uploaded image (multipart
// field "image") or from a JSON body {"imageUrl": "..."}
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		h.handleURLSearch(w, r)
		return
	}

	h.handleFileSearch(w, r)
}

func (h *Handler) handleURLSearch(w http.ResponseWriter, r *http.Request) {
	var request searchURLRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeState(w, h.coordinator.Reject("Invalid JSON: "+err.Error()))
		return
	}
	if err := h.validate.Struct(request); err != nil {
		h.writeState(w, h.coordinator.Reject("imageUrl must be a valid URL"))
		return
	}

	err := h.coordinator.Search(detach(r), browser.SearchInput{URL: request.ImageURL})
	h.writeState(w, err)
}

// handleFileSearch reports every upload problem through the coordinator, so
// the error slot and the response agree
func (h *Handler) handleFileSearch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1024*1024)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.writeState(w, h.coordinator.Reject("Failed to read upload: "+err.Error()))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		h.writeState(w, h.coordinator.Search(detach(r), browser.SearchInput{}))
		return
	}
	defer file.Close()

	upload, err := images.ReadUpload(file, header.Filename, h.maxUploadBytes)
	if errors.Is(err, images.ErrEmptyImage) {
		// an empty part is the same as no image at all
		h.writeState(w, h.coordinator.Search(detach(r), browser.SearchInput{}))
		return
	}
	if err != nil {
		h.writeState(w, h.coordinator.Reject("Image rejected: "+err.Error()))
		return
	}

	slog.Debug("Searching by uploaded image", "image", upload)
	err = h.coordinator.Search(detach(r), browser.SearchInput{Image: upload.Data, Filename: upload.Filename})
	h.writeState(w, err)
}

// detach keeps request values but not cancellation, so a client hanging up
// mid-search does not surface as a connection error in the shared view.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}
