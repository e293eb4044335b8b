package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/coverlens/internal/models"
)

// Client talks to the book search backend: the paginated collection store,
// the detail lookup, the similarity search service and the image proxy.
type Client struct {
	BaseURL    string
	httpClient *http.Client
}

// NewClient creates a new backend client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetCollectionPage fetches one page of the book collection
func (c *Client) GetCollectionPage(ctx context.Context, page, limit int) (models.CollectionPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	pageURL := fmt.Sprintf("%s/api/books?%s", c.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return models.CollectionPage{}, fmt.Errorf("failed to create collection request: %w", err)
	}

	var result models.CollectionPage
	if err := c.do(req, "fetch collection page", &result); err != nil {
		return models.CollectionPage{}, err
	}

	slog.Debug("Fetched collection page", "page", page, "limit", limit, "books", len(result.Books), "total", result.Total)
	return result, nil
}

// GetBookDetails fetches the extended details for a single book
func (c *Client) GetBookDetails(ctx context.Context, id string) (models.BookDetails, error) {
	detailsURL := fmt.Sprintf("%s/api/book-details/%s", c.BaseURL, url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, detailsURL, nil)
	if err != nil {
		return models.BookDetails{}, fmt.Errorf("failed to create details request: %w", err)
	}

	var details models.BookDetails
	if err := c.do(req, "fetch book details", &details); err != nil {
		return models.BookDetails{}, err
	}
	return details, nil
}

// SearchByImage uploads image bytes and returns the ranked matches
func (c *Client) SearchByImage(ctx context.Context, image []byte, filename string) ([]models.Book, error) {
	if filename == "" {
		filename = "upload.jpg"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/search", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var books []models.Book
	if err := c.do(req, "search by image", &books); err != nil {
		return nil, err
	}

	slog.Debug("Image search complete", "filename", filename, "bytes", len(image), "results", len(books))
	return books, nil
}

// SearchByURL asks the backend to fetch the image at imageURL and rank the
// collection against it
func (c *Client) SearchByURL(ctx context.Context, imageURL string) ([]models.Book, error) {
	payload := map[string]string{"imageUrl": imageURL}

	var books []models.Book
	if err := c.postJSON(ctx, "/api/search", "search by url", payload, &books); err != nil {
		return nil, err
	}

	slog.Debug("URL search complete", "url", imageURL, "results", len(books))
	return books, nil
}

// SearchByID ranks the collection against an existing book. Whether the query
// book itself is part of the result is up to the backend.
func (c *Client) SearchByID(ctx context.Context, id string) ([]models.Book, error) {
	payload := map[string]string{"id": id}

	var books []models.Book
	if err := c.postJSON(ctx, "/api/search-by-id", "search by id", payload, &books); err != nil {
		return nil, err
	}

	slog.Debug("Similar-book search complete", "id", id, "results", len(books))
	return books, nil
}

// ImageProxyURL rewrites a remote cover reference into its image proxy URL
func (c *Client) ImageProxyURL(ref string) string {
	return fmt.Sprintf("%s/api/image-proxy?url=%s", c.BaseURL, url.QueryEscape(ref))
}

func (c *Client) postJSON(ctx context.Context, path, op string, payload, out any) error {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, op, out)
}

// do sends req and decodes a successful JSON body into out. Non-2xx replies
// become a ServerError carrying the backend's "error" message when present.
func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &payload)
		return &ServerError{Op: op, StatusCode: resp.StatusCode, Message: payload.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
