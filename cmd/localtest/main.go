package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/wapuda/tgcourier/internal/fetch"
	"github.com/wapuda/tgcourier/internal/probe"
	"github.com/wapuda/tgcourier/internal/typegate"
)

// Runs the local half of the pipeline (gate, fetch, inspect) against a URL
// without touching Telegram. Handy for checking a host's ffprobe setup.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/localtest <url> [custom-name]")
		return
	}
	rawURL := os.Args[1]
	custom := ""
	if len(os.Args) > 2 {
		custom = os.Args[2]
	}

	ctx := context.Background()
	if !typegate.New(10 * time.Second).Allow(ctx, rawURL) {
		fmt.Println("rejected: unsupported file type")
		return
	}

	f := fetch.New(2<<30, 5*time.Minute)
	staged, err := f.Fetch(ctx, rawURL, os.TempDir(), custom, func(frac float64) {
		fmt.Printf("\rdownloading: %3.0f%%", frac*100)
	})
	if err != nil {
		fmt.Println("\nfetch failed:", err)
		return
	}
	defer os.Remove(staged.Path)
	fmt.Printf("\nstaged: %s (%d bytes)\n", staged.Path, staged.Size)

	ins := probe.New()
	fmt.Println("ffprobe available:", ins.Available())
	meta := ins.Inspect(ctx, staged.Path)
	fmt.Printf("duration=%.2fs size=%dx%d\n", meta.Duration, meta.Width, meta.Height)
}
