package images

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testProxy struct{ base string }

func (p testProxy) ImageProxyURL(ref string) string {
	return p.base + "/api/image-proxy?url=" + url.QueryEscape(ref)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestResolveGoesThroughProxy(t *testing.T) {
	cover := pngBytes(t, 4, 6)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/image-proxy", r.URL.Path)
		assert.Equal(t, "https://covers.example/1-L.jpg", r.URL.Query().Get("url"))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(cover)
	}))
	defer srv.Close()

	f := NewFetcher(testProxy{base: srv.URL}, 0, 1)
	img, err := f.Resolve(context.Background(), "https://covers.example/1-L.jpg")
	require.NoError(t, err)
	assert.Equal(t, cover, img.Data)
	assert.Equal(t, "image/png", img.ContentType)
}

func TestResolveErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Failed to fetch image", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(testProxy{base: srv.URL}, 0, 1)

	_, err := f.Resolve(context.Background(), "https://covers.example/missing.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")

	_, err = f.Resolve(context.Background(), " ")
	require.Error(t, err)
}

func TestResolveHonoursContextWhileRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	f := NewFetcher(testProxy{base: srv.URL}, 0.001, 1)
	_, err := f.Resolve(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Resolve(ctx, "b")
	require.Error(t, err)
}

func TestDownloadCover(t *testing.T) {
	cover := pngBytes(t, 2, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(cover)
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "covers", "1.png")
	f := NewFetcher(testProxy{base: srv.URL}, 0, 1)
	require.NoError(t, f.DownloadCover(context.Background(), "https://covers.example/1.png", out))

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, cover, written)
}

func TestReadUpload(t *testing.T) {
	data := pngBytes(t, 30, 40)

	up, err := ReadUpload(bytes.NewReader(data), "/tmp/photos/cover.png", 0)
	require.NoError(t, err)
	assert.Equal(t, "cover.png", up.Filename)
	assert.Equal(t, "png", up.Format)
	assert.Equal(t, 30, up.Width)
	assert.Equal(t, 40, up.Height)

	_, err = ReadUpload(bytes.NewReader(data), "cover.png", int64(len(data)-1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")

	_, err = ReadUpload(strings.NewReader("definitely not an image"), "notes.txt", 0)
	require.Error(t, err)

	_, err = ReadUpload(strings.NewReader(""), "empty.png", 0)
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestUploadLogValue(t *testing.T) {
	up, err := ReadUpload(bytes.NewReader(pngBytes(t, 30, 40)), "cover.png", 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("upload", "image", up)

	out := buf.String()
	assert.Contains(t, out, "image.format=png")
	assert.Contains(t, out, "image.width=30")
	assert.Contains(t, out, "image.height=40")
	assert.NotContains(t, out, "IHDR", "raw bytes stay out of the log")
}

func TestReadUploadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t, 3, 3), 0644))

	up, err := ReadUploadFile(path, 0)
	require.NoError(t, err)
	assert.Equal(t, "cover.png", up.Filename)

	_, err = ReadUploadFile(filepath.Join(t.TempDir(), "missing.png"), 0)
	require.Error(t, err)
}
