package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/lehigh-university-libraries/coverlens/internal/models"
)

// Searcher is the similarity search service
type Searcher interface {
	SearchByImage(ctx context.Context, image []byte, filename string) ([]models.Book, error)
	SearchByURL(ctx context.Context, imageURL string) ([]models.Book, error)
	SearchByID(ctx context.Context, id string) ([]models.Book, error)
}

// SearchInput is what the user submits from the search panel: either an
// uploaded image or an image URL
type SearchInput struct {
	Image    []byte
	Filename string
	URL      string
}

// SearchState is a copy of the current search session
type SearchState struct {
	Loading          bool
	Active           bool // a search completed successfully, possibly with zero matches
	RawResults       []models.Book
	FilteredResults  []models.Book
	Categories       []string
	ThresholdPercent int
	Category         string
}

// SearchController issues similarity queries and holds the latest session.
// Every search takes a new token; a response is applied only if its token is
// still the latest one.
type SearchController struct {
	searcher Searcher
	logger   *slog.Logger
	onChange func()

	mu         sync.Mutex
	token      uint64
	loading    bool
	active     bool
	raw        []models.Book
	filtered   []models.Book
	categories []string
	threshold  int
	category   string
}

func NewSearchController(searcher Searcher, logger *slog.Logger) *SearchController {
	if logger == nil {
		logger = slog.Default()
	}
	c := &SearchController{
		searcher: searcher,
		logger:   logger,
	}
	c.resetLocked()
	return c
}

// Search validates input and dispatches to SearchByUpload or SearchByURL.
// Exactly one of an image or a URL must be supplied.
func (c *SearchController) Search(ctx context.Context, input SearchInput) error {
	hasImage := len(input.Image) > 0
	hasURL := strings.TrimSpace(input.URL) != ""

	switch {
	case hasImage && hasURL:
		return validationError("Provide either an image or a URL, not both.")
	case hasImage:
		return c.SearchByUpload(ctx, input.Image, input.Filename)
	case hasURL:
		return c.SearchByURL(ctx, input.URL)
	default:
		return validationError("Provide image or URL.")
	}
}

// SearchByUpload ranks the collection against uploaded image bytes
func (c *SearchController) SearchByUpload(ctx context.Context, image []byte, filename string) error {
	if len(image) == 0 {
		return validationError("Provide image or URL.")
	}
	return c.run(ctx, "upload", func(ctx context.Context) ([]models.Book, error) {
		return c.searcher.SearchByImage(ctx, image, filename)
	})
}

// SearchByURL ranks the collection against the image at imageURL
func (c *SearchController) SearchByURL(ctx context.Context, imageURL string) error {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return validationError("Provide image or URL.")
	}
	return c.run(ctx, "url", func(ctx context.Context) ([]models.Book, error) {
		return c.searcher.SearchByURL(ctx, imageURL)
	})
}

// SearchByID ranks the collection against an existing book
func (c *SearchController) SearchByID(ctx context.Context, id string) error {
	if err := validateBookID(id); err != nil {
		return err
	}
	return c.run(ctx, "id", func(ctx context.Context) ([]models.Book, error) {
		return c.searcher.SearchByID(ctx, id)
	})
}

func validateBookID(id string) error {
	if strings.TrimSpace(id) == "" {
		return validationError("Book ID missing.")
	}
	return nil
}

func (c *SearchController) run(ctx context.Context, kind string, query func(context.Context) ([]models.Book, error)) error {
	token := c.begin()
	c.changed()
	c.logger.Debug("Search started", "kind", kind, "token", token)

	books, err := query(ctx)
	err = c.finish(token, kind, books, err)
	if !errors.Is(err, ErrStaleResponse) {
		c.changed()
	}
	return err
}

// begin starts a fresh, empty session in the loading state
func (c *SearchController) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token++
	c.resetLocked()
	c.loading = true
	return c.token
}

func (c *SearchController) finish(token uint64, kind string, books []models.Book, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.token {
		c.logger.Debug("Discarding stale search response", "kind", kind, "token", token, "latest", c.token)
		return ErrStaleResponse
	}

	c.loading = false
	if err != nil {
		c.logger.Warn("Search failed", "kind", kind, "error", err)
		return fmt.Errorf("%s search failed: %w", kind, err)
	}

	c.raw = append([]models.Book(nil), books...)
	c.active = true
	c.categories = Categories(c.raw)
	c.refilterLocked()

	c.logger.Info("Search complete", "kind", kind, "results", len(c.raw), "categories", len(c.categories)-1)
	return nil
}

// Clear discards the session and resets both facets. A search still in
// flight is superseded.
func (c *SearchController) Clear() {
	defer c.changed()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.token++
	c.resetLocked()
}

// SetThreshold sets the minimum similarity percentage
func (c *SearchController) SetThreshold(percent int) error {
	return c.SetFilters(&percent, nil)
}

// SetCategory selects one of the available categories
func (c *SearchController) SetCategory(category string) error {
	return c.SetFilters(nil, &category)
}

// SetFilters changes the threshold, the category or both. Nil leaves a facet
// as it is. Both values are validated before either is applied.
func (c *SearchController) SetFilters(percent *int, category *string) error {
	if percent != nil && (*percent < 0 || *percent > 100) {
		return validationError(fmt.Sprintf("Similarity threshold must be between 0 and 100, got %d.", *percent))
	}

	c.mu.Lock()
	if category != nil && !slices.Contains(c.categories, *category) {
		c.mu.Unlock()
		return validationError(fmt.Sprintf("Unknown category %q.", *category))
	}

	changed := false
	if percent != nil && c.threshold != *percent {
		c.threshold = *percent
		changed = true
	}
	if category != nil && c.category != *category {
		c.category = *category
		changed = true
	}
	if changed {
		c.refilterLocked()
	}
	c.mu.Unlock()

	if changed {
		c.changed()
	}
	return nil
}

// State returns a copy of the session
func (c *SearchController) State() SearchState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return SearchState{
		Loading:          c.loading,
		Active:           c.active,
		RawResults:       append([]models.Book(nil), c.raw...),
		FilteredResults:  append([]models.Book(nil), c.filtered...),
		Categories:       append([]string(nil), c.categories...),
		ThresholdPercent: c.threshold,
		Category:         c.category,
	}
}

// OnChange registers fn to be called, without the lock held, after every
// state change
func (c *SearchController) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

func (c *SearchController) changed() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *SearchController) resetLocked() {
	c.loading = false
	c.active = false
	c.raw = nil
	c.threshold = 0
	c.category = AllCategories
	c.categories = Categories(nil)
	c.refilterLocked()
}

func (c *SearchController) refilterLocked() {
	c.filtered = Filter(c.raw, c.threshold, c.category)
}
