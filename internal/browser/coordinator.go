// Package browser holds the presentation state of the book browser: the
// paginated collection view, the similarity search session with its facets,
// and the coordinator that decides which of the two is visible.
//
// All exported methods are safe for concurrent use. Actions that talk to the
// backend block until the backend answers; callers that want to keep a UI
// responsive run them on their own goroutine and render Snapshot values
// delivered to an Observer.
package browser

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/lehigh-university-libraries/coverlens/internal/models"
)

// Mode is the view currently shown to the user
type Mode int

const (
	ModeCollection Mode = iota
	ModeSearch
)

func (m Mode) String() string {
	if m == ModeSearch {
		return "search"
	}
	return "collection"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Backend is everything the coordinator needs from the server
type Backend interface {
	PageSource
	Searcher
	DetailSource
}

// Observer is notified whenever the visible state changes
type Observer interface {
	StateChanged(Snapshot)
	// ScrollToTop asks the UI to bring the results into view. It fires when
	// a find-similar action starts.
	ScrollToTop()
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnChange      func(Snapshot)
	OnScrollToTop func()
}

func (o ObserverFuncs) StateChanged(s Snapshot) {
	if o.OnChange != nil {
		o.OnChange(s)
	}
}

func (o ObserverFuncs) ScrollToTop() {
	if o.OnScrollToTop != nil {
		o.OnScrollToTop()
	}
}

// Snapshot is the complete state a presentation layer needs to render
type Snapshot struct {
	Mode  Mode          `json:"mode"`
	Books []models.Book `json:"books"`

	Loading           bool   `json:"loading"` // for the visible mode
	CollectionLoading bool   `json:"collection_loading"`
	SearchLoading     bool   `json:"search_loading"`
	Error             string `json:"error,omitempty"`

	HasMore     bool `json:"has_more"`
	CanLoadMore bool `json:"can_load_more"`
	PageIndex   int  `json:"page_index"`
	PageSize    int  `json:"page_size"`
	TotalCount  int  `json:"total_count"`

	SessionActive    bool     `json:"session_active"`
	ResultCount      int      `json:"result_count"`
	ThresholdPercent int      `json:"threshold"`
	Category         string   `json:"category"`
	Categories       []string `json:"categories"`
	ShowFilters      bool     `json:"show_filters"`
	ShowCategories   bool     `json:"show_categories"`
}

// Coordinator is the top-level state machine. It owns the collection loader,
// the search controller and the detail cache, and keeps the single
// user-visible error slot.
type Coordinator struct {
	collection *CollectionLoader
	search     *SearchController
	details    *DetailCache
	observer   Observer
	logger     *slog.Logger
	pageSize   int

	errMu  sync.Mutex
	errMsg string
}

type Option func(*Coordinator)

func WithPageSize(n int) Option {
	return func(c *Coordinator) { c.pageSize = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

// New creates a coordinator in collection mode. Call Start to load the first
// page.
func New(backend Backend, opts ...Option) *Coordinator {
	c := &Coordinator{
		pageSize: DefaultPageSize,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.collection = NewCollectionLoader(backend, c.pageSize, c.logger.With("component", "collection"))
	c.search = NewSearchController(backend, c.logger.With("component", "search"))
	c.details = NewDetailCache(backend, c.logger.With("component", "details"))

	c.collection.OnChange(c.notify)
	c.collection.OnStart(func() { c.setError("") })
	c.search.OnChange(c.notify)
	return c
}

// Start loads the first collection page
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.collection.LoadPage(ctx, 1); err != nil {
		c.fail(err, MsgConnection)
		return err
	}
	return nil
}

// LoadMore appends the next collection page. It is suppressed while another
// page load is outstanding, and a suppressed call leaves the error slot alone.
func (c *Coordinator) LoadMore(ctx context.Context) error {
	err := c.collection.LoadNext(ctx)
	if errors.Is(err, ErrLoadInFlight) {
		c.logger.Debug("Load more suppressed, page load in progress")
		return err
	}
	if err != nil {
		c.fail(err, MsgConnection)
		return err
	}
	return nil
}

// Search starts a new similarity search from an uploaded image or a URL,
// replacing any previous session
func (c *Coordinator) Search(ctx context.Context, input SearchInput) error {
	return c.act(MsgSearchFailed, func() error {
		return c.search.Search(ctx, input)
	})
}

// FindSimilar starts a new search seeded with an existing book. A missing id
// is rejected before the view is asked to scroll.
func (c *Coordinator) FindSimilar(ctx context.Context, bookID string) error {
	if err := validateBookID(bookID); err != nil {
		c.fail(err, "")
		return err
	}
	if c.observer != nil {
		c.observer.ScrollToTop()
	}
	return c.act(MsgSimilarFailed, func() error {
		return c.search.SearchByID(ctx, bookID)
	})
}

// ClearSearch discards the search session and returns to the collection
// view. The collection is left as it was.
func (c *Coordinator) ClearSearch() {
	c.setError("")
	c.search.Clear()
	c.logger.Debug("Search cleared")
}

// SetThreshold changes the minimum similarity facet (0-100)
func (c *Coordinator) SetThreshold(percent int) error {
	return c.SetFilters(&percent, nil)
}

// SetCategory changes the category facet
func (c *Coordinator) SetCategory(category string) error {
	return c.SetFilters(nil, &category)
}

// SetFilters changes either facet or both at once. When either value is
// rejected neither is applied.
func (c *Coordinator) SetFilters(percent *int, category *string) error {
	if err := c.search.SetFilters(percent, category); err != nil {
		c.fail(err, "")
		return err
	}
	return nil
}

// Reject records input that never reached an action, such as an unreadable
// upload, in the error slot and returns it as a validation error
func (c *Coordinator) Reject(message string) error {
	err := validationError(message)
	c.fail(err, "")
	return err
}

// RequestDetails fetches (or returns cached) details for one book
func (c *Coordinator) RequestDetails(ctx context.Context, bookID string) DetailEntry {
	return c.details.Request(ctx, bookID)
}

// Snapshot derives the full presentation state
func (c *Coordinator) Snapshot() Snapshot {
	col := c.collection.State()
	ses := c.search.State()

	c.errMu.Lock()
	errMsg := c.errMsg
	c.errMu.Unlock()

	s := Snapshot{
		Mode:              deriveMode(ses),
		CollectionLoading: col.Loading,
		SearchLoading:     ses.Loading,
		Error:             errMsg,
		HasMore:           col.HasMore,
		PageIndex:         col.PageIndex,
		PageSize:          col.PageSize,
		TotalCount:        col.TotalCount,
		SessionActive:     ses.Active,
		ResultCount:       len(ses.RawResults),
		ThresholdPercent:  ses.ThresholdPercent,
		Category:          ses.Category,
		Categories:        ses.Categories,
	}

	switch s.Mode {
	case ModeSearch:
		s.Books = ses.FilteredResults
		s.Loading = ses.Loading
		s.ShowFilters = !ses.Loading
		s.ShowCategories = s.ShowFilters && len(ses.Categories) > 1
	default:
		s.Books = col.Items
		s.Loading = col.Loading
		s.CanLoadMore = col.HasMore && !col.Loading
	}
	if s.Books == nil {
		s.Books = []models.Book{}
	}

	return s
}

func deriveMode(ses SearchState) Mode {
	if ses.Loading || ses.Active {
		return ModeSearch
	}
	return ModeCollection
}

// act clears the error slot, runs fn and records its failure
func (c *Coordinator) act(fallback string, fn func() error) error {
	c.setError("")
	err := fn()
	if err != nil {
		c.fail(err, fallback)
	}
	return err
}

func (c *Coordinator) fail(err error, fallback string) {
	if IsSuppressed(err) {
		return
	}
	msg := UserMessage(err, fallback)
	if msg == "" {
		msg = err.Error()
	}
	c.setError(msg)
	c.notify()
}

func (c *Coordinator) setError(msg string) {
	c.errMu.Lock()
	c.errMsg = msg
	c.errMu.Unlock()
}

func (c *Coordinator) notify() {
	if c.observer == nil {
		return
	}
	c.observer.StateChanged(c.Snapshot())
}
