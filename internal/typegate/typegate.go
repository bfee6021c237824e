// Package typegate decides whether a remote resource is an accepted media
// type before any bytes are downloaded.
package typegate

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

var videoExts = map[string]struct{}{
	".mp4":  {},
	".mov":  {},
	".mkv":  {},
	".avi":  {},
	".webm": {},
	".m4v":  {},
}

var documentExts = map[string]struct{}{
	".pdf": {},
	".zip": {},
}

var allowedMimePrefixes = []string{
	"video/",
	"application/pdf",
	"application/zip",
}

// VideoName reports whether a filename carries one of the recognized video
// container extensions.
func VideoName(name string) bool {
	_, ok := videoExts[strings.ToLower(path.Ext(name))]
	return ok
}

// Gate checks URLs against the extension allow-list, falling back to a HEAD
// probe of the declared Content-Type for ambiguous names.
type Gate struct {
	client *http.Client
}

func New(probeTimeout time.Duration) *Gate {
	if probeTimeout <= 0 {
		probeTimeout = 10 * time.Second
	}
	return &Gate{client: &http.Client{Timeout: probeTimeout}}
}

// Allow reports whether the resource behind rawURL may be fetched.
// Any probe failure resolves to reject.
func (g *Gate) Allow(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}

	ext := strings.ToLower(path.Ext(u.Path))
	if _, ok := videoExts[ext]; ok {
		return true
	}
	if _, ok := documentExts[ext]; ok {
		return true
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	ct := resp.Header.Get("Content-Type")
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.ToLower(strings.TrimSpace(ct))
	for _, prefix := range allowedMimePrefixes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}
