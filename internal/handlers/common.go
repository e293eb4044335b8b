package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/lehigh-university-libraries/coverlens/internal/browser"
	"github.com/lehigh-university-libraries/coverlens/internal/images"
)

type Handler struct {
	coordinator    *browser.Coordinator
	images         *images.Fetcher
	validate       *validator.Validate
	maxUploadBytes int64
	staticDir      string
}

type Option func(*Handler)

// WithMaxUploadBytes caps multipart search uploads
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// WithStaticDir serves a front end bundle from dir at /
func WithStaticDir(dir string) Option {
	return func(h *Handler) { h.staticDir = dir }
}

func New(coordinator *browser.Coordinator, fetcher *images.Fetcher, opts ...Option) *Handler {
	h := &Handler{
		coordinator:    coordinator,
		images:         fetcher,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		maxUploadBytes: images.DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type errorResponse struct {
	Error string `json:"error"`
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message, "status", code)
	} else {
		slog.Debug(message, "status", code)
	}
	h.writeJSON(w, code, errorResponse{Error: message})
}

// writeState answers an action with the snapshot that resulted from it.
// The status reflects the action's outcome; the body always carries the
// full view state including the error slot.
func (h *Handler) writeState(w http.ResponseWriter, err error) {
	h.writeJSON(w, statusFor(err), h.coordinator.Snapshot())
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case browser.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, browser.ErrLoadInFlight), errors.Is(err, browser.ErrStaleResponse):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
