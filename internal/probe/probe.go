// Package probe wraps ffprobe/ffmpeg as an optional collaborator. Every
// failure, including the tools being absent from the host, degrades to
// zero-valued metadata instead of aborting the pipeline.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog"

	logx "github.com/wapuda/tgcourier/internal/logs"
)

// Metadata is what the sender attaches to a video upload. All fields are 0
// when unknown.
type Metadata struct {
	Duration float64
	Width    int
	Height   int
}

func (m Metadata) Zero() bool {
	return m.Duration == 0 && m.Width == 0 && m.Height == 0
}

// Inspector resolves tool availability once at startup.
type Inspector struct {
	ffprobe string
	ffmpeg  string
}

func New() *Inspector {
	i := &Inspector{}
	if p, err := exec.LookPath("ffprobe"); err == nil {
		i.ffprobe = p
	}
	if p, err := exec.LookPath("ffmpeg"); err == nil {
		i.ffmpeg = p
	}
	return i
}

// Available reports whether ffprobe was found on the host.
func (i *Inspector) Available() bool { return i.ffprobe != "" }

// Inspect extracts duration/width/height from a local video file.
// It never fails: any error yields the zero Metadata.
func (i *Inspector) Inspect(ctx context.Context, path string) Metadata {
	if i.ffprobe == "" {
		return Metadata{}
	}
	cmd := exec.CommandContext(ctx, i.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,duration",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		l := logx.FromCtx(ctx)
		l.Warn().Err(err).Str("stderr", stderr.String()).Msg("ffprobe failed")
		return Metadata{}
	}
	m, err := parseProbeOutput(out.Bytes())
	if err != nil {
		l := logx.FromCtx(ctx)
		l.Warn().Err(err).Msg("ffprobe output unparseable")
		return Metadata{}
	}
	return m
}

func parseProbeOutput(raw []byte) (Metadata, error) {
	var data struct {
		Streams []struct {
			Width    int    `json:"width"`
			Height   int    `json:"height"`
			Duration string `json:"duration"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return Metadata{}, fmt.Errorf("parse ffprobe json: %w", err)
	}

	var m Metadata
	if len(data.Streams) > 0 {
		m.Width = data.Streams[0].Width
		m.Height = data.Streams[0].Height
		if d, err := strconv.ParseFloat(data.Streams[0].Duration, 64); err == nil {
			m.Duration = d
		}
	}
	if m.Duration == 0 {
		if d, err := strconv.ParseFloat(data.Format.Duration, 64); err == nil {
			m.Duration = d
		}
	}
	return m, nil
}

// Normalize re-encodes path in place (h264/aac, faststart) and reports
// whether it succeeded. Used when a video probes empty, so the container is
// likely off; failure keeps the original file untouched.
func (i *Inspector) Normalize(ctx context.Context, path string) bool {
	if i.ffmpeg == "" {
		return false
	}
	tmp := path + ".norm.mp4"
	cmd := exec.CommandContext(ctx, i.ffmpeg,
		"-y",
		"-i", path,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-movflags", "+faststart",
		tmp,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	runErr := cmd.Run()
	logx.NewLineWriter(map[string]string{"tool": "ffmpeg"}, zerolog.DebugLevel).Pipe(&stderr)
	if runErr != nil {
		l := logx.FromCtx(ctx)
		l.Warn().Err(runErr).Msg("ffmpeg normalize failed; sending original")
		_ = os.Remove(tmp)
		return false
	}
	if err := os.Rename(tmp, path); err != nil {
		l := logx.FromCtx(ctx)
		l.Warn().Err(err).Msg("normalize rename failed; sending original")
		_ = os.Remove(tmp)
		return false
	}
	return true
}
