package browser

import (
	"errors"

	"github.com/lehigh-university-libraries/coverlens/internal/catalog"
)

var (
	// ErrStaleResponse is returned to the caller of a search that was
	// superseded by a newer search or a clear. It never reaches the user.
	ErrStaleResponse = errors.New("search response superseded by a newer request")

	// ErrLoadInFlight is returned when a page load is triggered while another
	// one is outstanding. No request is issued.
	ErrLoadInFlight = errors.New("a page load is already in progress")
)

// Generic user-facing messages.
const (
	MsgConnection      = "Could not connect to the server."
	MsgSearchFailed    = "Search failed."
	MsgSimilarFailed   = "Find similar failed."
	MsgDetailsFallback = "Could not load details."
)

// ValidationError is a precondition violation detected before any request is
// sent
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationError(msg string) error {
	return &ValidationError{Message: msg}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsSuppressed reports errors that must not touch the user-visible error slot
func IsSuppressed(err error) bool {
	return errors.Is(err, ErrStaleResponse) || errors.Is(err, ErrLoadInFlight)
}

// UserMessage converts err into the single string shown to the user.
// Server messages are surfaced verbatim; transport failures get the generic
// connection message; anything else falls back to fallback.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	if se, ok := catalog.AsServerError(err); ok {
		if se.Message != "" {
			return se.Message
		}
		return fallback
	}
	if catalog.IsTransport(err) {
		return MsgConnection
	}
	return fallback
}
