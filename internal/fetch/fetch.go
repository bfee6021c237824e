// Package fetch streams a remote resource into the staging directory with a
// hard size ceiling and a wall-clock timeout. No partial file survives a
// failed fetch.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/wapuda/tgcourier/internal/stage"
)

// ErrTooLarge is returned when the resource exceeds the configured ceiling,
// either by declared content-length or by the running byte counter.
var ErrTooLarge = errors.New("file exceeds maximum size")

const progressEvery = 500 * time.Millisecond

type Fetcher struct {
	client   *http.Client
	maxBytes int64
	timeout  time.Duration
}

func New(maxBytes int64, timeout time.Duration) *Fetcher {
	return &Fetcher{
		client:   &http.Client{},
		maxBytes: maxBytes,
		timeout:  timeout,
	}
}

// Fetch downloads rawURL into destDir under the name chosen by the filename
// policy. On any failure the partially written file is removed before the
// error is returned.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, destDir, customName string, onProgress ProgressFunc) (*stage.File, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: unexpected status %s", resp.Status)
	}
	if resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("fetch %q (%d bytes): %w", rawURL, resp.ContentLength, ErrTooLarge)
	}

	name := stage.ResolveName(rawURL, customName)
	dest := filepath.Join(destDir, name)
	out, err := os.Create(dest)
	if err != nil {
		return nil, fmt.Errorf("fetch: create %s: %w", dest, err)
	}

	pr := &progressReader{
		r:     resp.Body,
		total: resp.ContentLength,
		fn:    onProgress,
		every: progressEvery,
	}
	// maxBytes+1 so an over-limit chunked body is detectable.
	n, err := io.Copy(out, io.LimitReader(pr, f.maxBytes+1))
	closeErr := out.Close()
	switch {
	case err != nil:
		_ = os.Remove(dest)
		return nil, fmt.Errorf("fetch: stream %q: %w", rawURL, err)
	case n > f.maxBytes:
		_ = os.Remove(dest)
		return nil, fmt.Errorf("fetch %q: %w", rawURL, ErrTooLarge)
	case closeErr != nil:
		_ = os.Remove(dest)
		return nil, fmt.Errorf("fetch: close %s: %w", dest, closeErr)
	}

	if onProgress != nil && resp.ContentLength > 0 {
		onProgress(1)
	}
	return &stage.File{
		Path:     dest,
		Name:     name,
		Size:     n,
		MimeHint: resp.Header.Get("Content-Type"),
	}, nil
}
