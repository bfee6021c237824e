package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listDir(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}

func TestFetchSuccess(t *testing.T) {
	payload := strings.Repeat("x", 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	dir := t.TempDir()
	var fractions []float64
	f := New(1<<20, time.Minute)
	staged, err := f.Fetch(context.Background(), srv.URL+"/clip.mp4", dir, "", func(p float64) {
		fractions = append(fractions, p)
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(staged.Name, "clip_"))
	assert.True(t, strings.HasSuffix(staged.Name, ".mp4"))
	assert.Equal(t, int64(len(payload)), staged.Size)
	assert.Equal(t, "video/mp4", staged.MimeHint)

	data, err := os.ReadFile(staged.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))

	require.NotEmpty(t, fractions, "a completed fetch reports at least the final fraction")
	assert.Equal(t, 1.0, fractions[len(fractions)-1])
	for i := 1; i < len(fractions); i++ {
		assert.GreaterOrEqual(t, fractions[i], fractions[i-1], "progress must not decrease")
	}
}

func TestFetchDeclaredTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", strconv.FormatInt(3<<30, 10))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := New(2<<30, time.Minute)
	_, err := f.Fetch(context.Background(), srv.URL+"/huge.mp4", dir, "", nil)
	require.ErrorIs(t, err, ErrTooLarge)
	assert.Empty(t, listDir(t, dir), "rejection must happen before any file is created")
}

func TestFetchChunkedTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Flush to force chunked encoding so no content-length is declared.
		w.(http.Flusher).Flush()
		_, _ = w.Write(make([]byte, 4096))
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := New(1024, time.Minute)
	_, err := f.Fetch(context.Background(), srv.URL+"/stream.mp4", dir, "", nil)
	require.ErrorIs(t, err, ErrTooLarge)
	assert.Empty(t, listDir(t, dir), "no partial file may survive a ceiling breach")
}

func TestFetchStreamErrorCleansUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write([]byte("short"))
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			_ = conn.Close()
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := New(1<<20, time.Minute)
	_, err := f.Fetch(context.Background(), srv.URL+"/clip.mp4", dir, "", nil)
	require.Error(t, err)
	assert.Empty(t, listDir(t, dir), "no partial file may survive a stream error")
}

func TestFetchBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := New(1<<20, time.Minute)
	_, err := f.Fetch(context.Background(), srv.URL+"/gone.mp4", dir, "", nil)
	require.Error(t, err)
	assert.Empty(t, listDir(t, dir))
}

func TestFetchCustomName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := New(1<<20, time.Minute)
	staged, err := f.Fetch(context.Background(), srv.URL+"/video.mp4", dir, "report", nil)
	require.NoError(t, err)
	assert.Equal(t, "report.mp4", staged.Name)
}
