package browser

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/lehigh-university-libraries/coverlens/internal/models"
	"github.com/lehigh-university-libraries/coverlens/internal/storage"
)

// DetailSource looks up extended book details
type DetailSource interface {
	GetBookDetails(ctx context.Context, id string) (models.BookDetails, error)
}

type DetailStatus int

const (
	DetailsNotRequested DetailStatus = iota
	DetailsPending
	DetailsLoaded
	DetailsFailed
)

func (s DetailStatus) String() string {
	switch s {
	case DetailsPending:
		return "pending"
	case DetailsLoaded:
		return "loaded"
	case DetailsFailed:
		return "failed"
	default:
		return "not_requested"
	}
}

// DetailEntry is the cached detail state of one book
type DetailEntry struct {
	Status  DetailStatus       `json:"-"`
	State   string             `json:"status"`
	Details models.BookDetails `json:"details"`
}

// DetailCache lazily fetches book details, one fetch per id at a time.
// It is independent of the browse/search state machine.
type DetailCache struct {
	source  DetailSource
	entries *storage.Store[DetailEntry]
	group   singleflight.Group
	logger  *slog.Logger
}

func NewDetailCache(source DetailSource, logger *slog.Logger) *DetailCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &DetailCache{
		source:  source,
		entries: storage.New[DetailEntry](),
		logger:  logger,
	}
}

// Get returns the cached entry without fetching
func (d *DetailCache) Get(id string) DetailEntry {
	entry, ok := d.entries.Get(id)
	if !ok {
		return newDetailEntry(DetailsNotRequested, models.BookDetails{})
	}
	return entry
}

// Request returns the details for id, fetching them unless already loaded.
// Failed lookups are retried on the next request.
func (d *DetailCache) Request(ctx context.Context, id string) DetailEntry {
	if entry := d.Get(id); entry.Status == DetailsLoaded {
		return entry
	}

	v, _, _ := d.group.Do(id, func() (any, error) {
		// A fetch that finished between Get and Do already holds the answer
		current := d.entries.Update(id, func(entry DetailEntry, exists bool) DetailEntry {
			if exists && entry.Status == DetailsLoaded {
				return entry
			}
			return newDetailEntry(DetailsPending, models.BookDetails{})
		})
		if current.Status == DetailsLoaded {
			return current, nil
		}

		details, err := d.source.GetBookDetails(ctx, id)
		if err != nil {
			d.logger.Warn("Failed to fetch book details", "id", id, "error", err)
			entry := newDetailEntry(DetailsFailed, models.BookDetails{Description: MsgDetailsFallback})
			d.entries.Set(id, entry)
			return entry, nil
		}

		if details.PublishDate == "" {
			details.PublishDate = "N/A"
		}
		entry := newDetailEntry(DetailsLoaded, details)
		d.entries.Set(id, entry)
		d.logger.Debug("Fetched book details", "id", id)
		return entry, nil
	})

	return v.(DetailEntry)
}

func newDetailEntry(status DetailStatus, details models.BookDetails) DetailEntry {
	return DetailEntry{Status: status, State: status.String(), Details: details}
}
