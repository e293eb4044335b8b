package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMaxUploadBytes caps uploaded search images at 10MB
const DefaultMaxUploadBytes = 10 * 1024 * 1024

// ErrEmptyImage is returned by ReadUpload for a zero-byte image
var ErrEmptyImage = errors.New("image is empty")

// ProxyRewriter turns a remote cover reference into an image proxy URL
type ProxyRewriter interface {
	ImageProxyURL(ref string) string
}

// Fetcher resolves cover images through the backend image proxy
type Fetcher struct {
	HTTPClient *http.Client
	proxy      ProxyRewriter
	limiter    *rate.Limiter
}

// NewFetcher creates a new image fetcher allowing requestsPerSecond proxy
// requests with the given burst. A non-positive rate disables limiting.
func NewFetcher(proxy ProxyRewriter, requestsPerSecond float64, burst int) *Fetcher {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		proxy:   proxy,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Image is a resolved cover image
type Image struct {
	Data        []byte
	ContentType string
}

// Resolve fetches the bytes behind ref through the image proxy
func (f *Fetcher) Resolve(ctx context.Context, ref string) (*Image, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, fmt.Errorf("empty image reference")
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	proxyURL := f.proxy.ImageProxyURL(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, proxyURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image proxy returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	slog.Debug("Resolved cover image", "ref", ref, "bytes", len(data), "content_type", contentType)
	return &Image{Data: data, ContentType: contentType}, nil
}

// DownloadCover resolves ref and writes it to outputPath
func (f *Fetcher) DownloadCover(ctx context.Context, ref, outputPath string) error {
	img, err := f.Resolve(ctx, ref)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, img.Data, 0644); err != nil {
		return fmt.Errorf("failed to write cover file: %w", err)
	}

	slog.Info("Downloaded cover image", "ref", ref, "path", outputPath, "bytes", len(img.Data))
	return nil
}

// Upload is an image prepared for a similarity search
type Upload struct {
	Data     []byte
	Filename string
	Format   string // gif, jpeg or png
	Width    int
	Height   int
}

// LogValue reports the decoded image header instead of the bytes
func (u *Upload) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("filename", u.Filename),
		slog.String("format", u.Format),
		slog.Int("width", u.Width),
		slog.Int("height", u.Height),
		slog.Int("bytes", len(u.Data)),
	)
}

// ReadUpload reads an image from r, refusing anything larger than maxBytes
// or not decodable as an image
func ReadUpload(r io.Reader, filename string, maxBytes int64) (*Upload, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}

	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("image too large (max %d bytes)", maxBytes)
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("not a supported image: %w", err)
	}

	return &Upload{
		Data:     data,
		Filename: filepath.Base(filename),
		Format:   format,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}

// ReadUploadFile opens path and reads it with ReadUpload
func ReadUploadFile(path string, maxBytes int64) (*Upload, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	return ReadUpload(file, path, maxBytes)
}
