package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lehigh-university-libraries/coverlens/internal/models"
)

// DefaultPageSize matches the page size the web front end requests
const DefaultPageSize = 24

// PageSource is the paginated collection store
type PageSource interface {
	GetCollectionPage(ctx context.Context, page, limit int) (models.CollectionPage, error)
}

// CollectionState is a copy of the loader's state
type CollectionState struct {
	Items      []models.Book
	PageIndex  int
	PageSize   int
	TotalCount int
	HasMore    bool
	Loading    bool
}

// CollectionLoader accumulates the book collection page by page. At most one
// page fetch is in flight at a time.
type CollectionLoader struct {
	source   PageSource
	pageSize int
	logger   *slog.Logger
	onChange func()
	onStart  func()

	mu         sync.Mutex
	items      []models.Book
	pageIndex  int
	totalCount int
	totalKnown bool
	loading    bool
}

// NewCollectionLoader creates a loader fetching pageSize books per page.
// Non-positive sizes fall back to DefaultPageSize.
func NewCollectionLoader(source PageSource, pageSize int, logger *slog.Logger) *CollectionLoader {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CollectionLoader{
		source:   source,
		pageSize: pageSize,
		logger:   logger,
	}
}

// LoadNext loads the page after the last successfully loaded one. It is a
// no-op once the collection is exhausted.
func (l *CollectionLoader) LoadNext(ctx context.Context) error {
	l.mu.Lock()
	if l.loading {
		l.mu.Unlock()
		return ErrLoadInFlight
	}
	if l.totalKnown && !l.hasMoreLocked() {
		pageIndex := l.pageIndex
		l.mu.Unlock()
		l.logger.Debug("Collection exhausted, nothing to load", "page_index", pageIndex)
		return nil
	}
	page := l.pageIndex + 1
	l.loading = true
	l.mu.Unlock()
	l.started()

	return l.fetch(ctx, page)
}

// LoadPage fetches one page. Page 1 replaces the accumulated items, later
// pages are appended. On failure nothing changes, so the same page can be
// retried.
func (l *CollectionLoader) LoadPage(ctx context.Context, page int) error {
	if page < 1 {
		return validationError(fmt.Sprintf("page number must be at least 1, got %d", page))
	}

	l.mu.Lock()
	if l.loading {
		l.mu.Unlock()
		return ErrLoadInFlight
	}
	l.loading = true
	l.mu.Unlock()
	l.started()

	return l.fetch(ctx, page)
}

// fetch runs with the loading flag already claimed by the caller
func (l *CollectionLoader) fetch(ctx context.Context, page int) error {
	l.logger.Debug("Loading collection page", "page", page, "page_size", l.pageSize)
	result, err := l.source.GetCollectionPage(ctx, page, l.pageSize)
	defer l.changed()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = false

	if err != nil {
		l.logger.Warn("Failed to load collection page", "page", page, "error", err)
		return fmt.Errorf("failed to load collection page %d: %w", page, err)
	}

	if page == 1 {
		l.items = append([]models.Book(nil), result.Books...)
	} else {
		l.items = append(l.items, result.Books...)
	}
	l.pageIndex = page

	// The total is read once and then trusted; only a reset re-reads it.
	if !l.totalKnown || page == 1 {
		l.totalCount = result.Total
		l.totalKnown = true
	}

	l.logger.Info("Loaded collection page", "page", page, "books", len(result.Books), "items", len(l.items), "total", l.totalCount)
	return nil
}

// State returns a snapshot of the loader
func (l *CollectionLoader) State() CollectionState {
	l.mu.Lock()
	defer l.mu.Unlock()

	return CollectionState{
		Items:      append([]models.Book(nil), l.items...),
		PageIndex:  l.pageIndex,
		PageSize:   l.pageSize,
		TotalCount: l.totalCount,
		HasMore:    !l.totalKnown || l.hasMoreLocked(),
		Loading:    l.loading,
	}
}

// OnChange registers fn to be called, without the lock held, after every
// state change
func (l *CollectionLoader) OnChange(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = fn
}

// OnStart registers fn to be called once a page fetch has claimed the loading
// flag and before the fetch begins. Suppressed calls never reach it.
func (l *CollectionLoader) OnStart(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onStart = fn
}

func (l *CollectionLoader) started() {
	l.mu.Lock()
	fn := l.onStart
	l.mu.Unlock()
	if fn != nil {
		fn()
	}
	l.changed()
}

func (l *CollectionLoader) changed() {
	l.mu.Lock()
	fn := l.onChange
	l.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (l *CollectionLoader) hasMoreLocked() bool {
	return l.pageIndex*l.pageSize < l.totalCount
}
