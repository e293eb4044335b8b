package browser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lehigh-university-libraries/coverlens/internal/catalog"
	"github.com/lehigh-university-libraries/coverlens/internal/models"
)

func sim(v float64) *float64 { return &v }

func makeBooks(n int) []models.Book {
	books := make([]models.Book, n)
	for i := range books {
		books[i] = models.Book{
			ID:     fmt.Sprintf("OL%dW", i+1),
			Title:  fmt.Sprintf("Book %d", i+1),
			Author: "Author",
		}
	}
	return books
}

// fakeBackend serves a fixed collection and canned search results
type fakeBackend struct {
	mu          sync.Mutex
	collection  []models.Book
	pageErr     error
	pageCalls   []int
	results     []models.Book
	searchErr   error
	searchCalls []string
	details     map[string]models.BookDetails
	detailErr   error
	detailCalls atomic.Int32
}

func (f *fakeBackend) GetCollectionPage(_ context.Context, page, limit int) (models.CollectionPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls = append(f.pageCalls, page)
	if f.pageErr != nil {
		return models.CollectionPage{}, f.pageErr
	}

	start := (page - 1) * limit
	end := start + limit
	if start > len(f.collection) {
		start = len(f.collection)
	}
	if end > len(f.collection) {
		end = len(f.collection)
	}
	return models.CollectionPage{
		Books: append([]models.Book(nil), f.collection[start:end]...),
		Total: len(f.collection),
	}, nil
}

func (f *fakeBackend) record(call string) ([]models.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls = append(f.searchCalls, call)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return append([]models.Book(nil), f.results...), nil
}

func (f *fakeBackend) SearchByImage(_ context.Context, image []byte, _ string) ([]models.Book, error) {
	return f.record("image:" + string(image))
}

func (f *fakeBackend) SearchByURL(_ context.Context, imageURL string) ([]models.Book, error) {
	return f.record("url:" + imageURL)
}

func (f *fakeBackend) SearchByID(_ context.Context, id string) ([]models.Book, error) {
	return f.record("id:" + id)
}

func (f *fakeBackend) GetBookDetails(_ context.Context, id string) (models.BookDetails, error) {
	f.detailCalls.Add(1)
	if f.detailErr != nil {
		return models.BookDetails{}, f.detailErr
	}
	return f.details[id], nil
}

func (f *fakeBackend) searchCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searchCalls)
}

type reply struct {
	books []models.Book
	err   error
}

// gatedBackend blocks every call until the test releases it, so tests can
// control the order in which responses arrive
type gatedBackend struct {
	fakeBackend
	started chan string
	gates   sync.Map // call key -> chan reply
}

func newGatedBackend() *gatedBackend {
	return &gatedBackend{started: make(chan string, 16)}
}

func (g *gatedBackend) gate(key string) chan reply {
	ch, _ := g.gates.LoadOrStore(key, make(chan reply, 1))
	return ch.(chan reply)
}

func (g *gatedBackend) wait(ctx context.Context, key string) ([]models.Book, error) {
	ch := g.gate(key)
	g.started <- key
	select {
	case r := <-ch:
		return r.books, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedBackend) release(key string, books []models.Book, err error) {
	g.gate(key) <- reply{books: books, err: err}
}

func (g *gatedBackend) SearchByURL(ctx context.Context, imageURL string) ([]models.Book, error) {
	return g.wait(ctx, "url:"+imageURL)
}

func (g *gatedBackend) SearchByID(ctx context.Context, id string) ([]models.Book, error) {
	return g.wait(ctx, "id:"+id)
}

func (g *gatedBackend) GetCollectionPage(ctx context.Context, page, limit int) (models.CollectionPage, error) {
	books, err := g.wait(ctx, fmt.Sprintf("page:%d", page))
	if err != nil {
		return models.CollectionPage{}, err
	}
	return models.CollectionPage{Books: books, Total: 100}, nil
}

var (
	errTransport = &catalog.TransportError{Op: "fetch", Err: fmt.Errorf("connection refused")}
	errNotFound  = &catalog.ServerError{Op: "search by id", StatusCode: 404, Message: "Book not found."}
)
