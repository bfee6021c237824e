// Package stage owns the local staging of remote files: the filename
// policy and the staged-file record handed from the fetcher to the sender.
package stage

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

// DefaultExt is appended to extensionless names. Traffic is video-biased,
// so an unadorned name is assumed to be an mp4 container.
const DefaultExt = ".mp4"

// File is a staged local copy of a remote resource. It is owned by the
// request that fetched it and must not outlive it: the sender deletes it
// on every exit path.
type File struct {
	Path     string
	Name     string
	Size     int64
	MimeHint string
}

// ResolveName derives the local filename for a remote URL.
//
// The URL's base path segment is percent-decoded, stripped of any path
// separators and given DefaultExt when it carries no extension. A custom
// name is used exactly as given (plus the detected extension when it lacks
// one) so that rename commands are reproducible. Without a custom name a
// millisecond timestamp is appended so repeated fetches of the same URL
// never collide.
func ResolveName(rawURL, customName string) string {
	base := "file"
	if u, err := url.Parse(rawURL); err == nil {
		if b := path.Base(u.Path); b != "" && b != "." && b != "/" {
			if dec, err := url.PathUnescape(b); err == nil {
				b = dec
			}
			base = b
		}
	}
	base = sanitize(base)
	if base == "" {
		base = "file"
	}

	ext := path.Ext(base)
	if ext == "" {
		ext = DefaultExt
		base += ext
	}
	stem := strings.TrimSuffix(base, ext)

	if customName != "" {
		custom := sanitize(customName)
		if custom == "" {
			custom = stem
		}
		if path.Ext(custom) != "" {
			return custom
		}
		return custom + ext
	}

	return fmt.Sprintf("%s_%d%s", stem, time.Now().UnixMilli(), ext)
}

// sanitize strips anything that could escape the staging directory.
func sanitize(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// EnsureDir creates the staging directory at startup.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
