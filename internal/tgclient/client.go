// Package tgclient wraps the MTProto client shared by all in-flight
// requests. Connection is lazy and single-flight: concurrent callers await
// one connect attempt instead of racing.
package tgclient

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/amarnathcjd/gogram/telegram"
	"golang.org/x/sync/singleflight"

	"github.com/wapuda/tgcourier/internal/fetch"
	logx "github.com/wapuda/tgcourier/internal/logs"
	"github.com/wapuda/tgcourier/internal/probe"
	"github.com/wapuda/tgcourier/internal/stage"
)

// progress edits/callbacks are throttled to this many seconds by gogram.
const progressIntervalSec = 3

type Config struct {
	AppID       int32
	AppHash     string
	BotToken    string
	PhoneNumber string
	SessionFile string

	// MaxFileBytes caps message-media staging, matching the limit the URL
	// fetcher enforces. Zero disables the check.
	MaxFileBytes int64
}

// Upload describes one file transmission.
type Upload struct {
	Path       string
	Name       string
	Caption    string
	ThreadID   int32
	MimeType   string
	Video      *probe.Metadata // nil for plain documents
	OnProgress fetch.ProgressFunc
}

type Client struct {
	cfg       Config
	sf        singleflight.Group
	tg        atomic.Pointer[telegram.Client]
	connected atomic.Bool
}

func New(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// Ensure connects and authenticates the shared client if that has not
// happened yet. Safe for concurrent use; the session credential file is
// written by gogram on (re)connect, never per request.
func (c *Client) Ensure(ctx context.Context) (*telegram.Client, error) {
	if c.connected.Load() {
		return c.tg.Load(), nil
	}
	v, err, _ := c.sf.Do("connect", func() (any, error) {
		if c.connected.Load() {
			return c.tg.Load(), nil
		}
		tg, err := telegram.NewClient(telegram.ClientConfig{
			AppID:   c.cfg.AppID,
			AppHash: c.cfg.AppHash,
			Session: c.cfg.SessionFile,
		})
		if err != nil {
			return nil, fmt.Errorf("tgclient: create client: %w", err)
		}
		if _, err := tg.Conn(); err != nil {
			return nil, fmt.Errorf("tgclient: connect: %w", err)
		}
		if c.cfg.BotToken != "" {
			if err := tg.LoginBot(c.cfg.BotToken); err != nil {
				return nil, fmt.Errorf("tgclient: bot login: %w", err)
			}
		} else {
			// Interactive phone/code/2FA flow; the restored session file
			// makes this a no-op on later starts.
			if _, err := tg.Login(c.cfg.PhoneNumber); err != nil {
				return nil, fmt.Errorf("tgclient: login: %w", err)
			}
		}
		c.tg.Store(tg)
		c.connected.Store(true)
		l := logx.FromCtx(ctx)
		l.Info().Msg("telegram client connected")
		return tg, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*telegram.Client), nil
}

// ResolveChat confirms the destination chat exists and is reachable.
func (c *Client) ResolveChat(ctx context.Context, chat any) error {
	tg, err := c.Ensure(ctx)
	if err != nil {
		return err
	}
	if _, err := tg.ResolvePeer(chat); err != nil {
		return fmt.Errorf("tgclient: resolve chat %v: %w", chat, err)
	}
	return nil
}

// SendText posts a plain message and returns its id.
func (c *Client) SendText(ctx context.Context, chat any, text string, threadID int32) (int32, error) {
	tg, err := c.Ensure(ctx)
	if err != nil {
		return 0, err
	}
	opts := &telegram.SendOptions{}
	if threadID != 0 {
		opts.ReplyID = threadID
	}
	msg, err := tg.SendMessage(chat, text, opts)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// DeleteMessage removes a single message from a chat.
func (c *Client) DeleteMessage(ctx context.Context, chat any, id int32) error {
	tg, err := c.Ensure(ctx)
	if err != nil {
		return err
	}
	_, err = tg.DeleteMessages(chat, []int32{id})
	return err
}

// SendFile transmits a staged file as a chat attachment. Video uploads get
// streaming-capable attributes.
func (c *Client) SendFile(ctx context.Context, chat any, up Upload) (int32, error) {
	tg, err := c.Ensure(ctx)
	if err != nil {
		return 0, err
	}

	opts := &telegram.MediaOptions{
		FileName: up.Name,
		Caption:  up.Caption,
	}
	if up.ThreadID != 0 {
		opts.ReplyID = up.ThreadID
	}
	if up.OnProgress != nil {
		opts.ProgressManager = newProgressManager(up.OnProgress)
	}
	if up.Video != nil {
		opts.MimeType = up.MimeType
		opts.Attributes = []telegram.DocumentAttribute{
			&telegram.DocumentAttributeVideo{
				SupportsStreaming: true,
				Duration:          up.Video.Duration,
				W:                 int32(up.Video.Width),
				H:                 int32(up.Video.Height),
			},
		}
	}

	msg, err := tg.SendMedia(chat, up.Path, opts)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// DownloadMessageMedia stages the media of a previously received message,
// for requests that reference a message instead of a URL.
func (c *Client) DownloadMessageMedia(ctx context.Context, chat any, messageID int32, destDir, customName string, onProgress fetch.ProgressFunc) (*stage.File, error) {
	tg, err := c.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	msgs, err := tg.GetMessages(chat, &telegram.SearchOption{IDs: []int32{messageID}})
	if err != nil {
		return nil, fmt.Errorf("tgclient: get message %d: %w", messageID, err)
	}
	if len(msgs) == 0 || !msgs[0].IsMedia() {
		return nil, fmt.Errorf("tgclient: message %d has no media", messageID)
	}
	m := msgs[0]
	if !mediaSizeOK(m.File.Size, c.cfg.MaxFileBytes) {
		return nil, fmt.Errorf("tgclient: message %d media is %d bytes: %w", messageID, m.File.Size, fetch.ErrTooLarge)
	}

	name := stage.ResolveName(m.File.Name, customName)
	dest := filepath.Join(destDir, name)
	err = stageDownload(dest, func(dest string) error {
		opts := &telegram.DownloadOptions{FileName: dest}
		if onProgress != nil {
			opts.ProgressManager = newProgressManager(onProgress)
		}
		_, err := m.Download(opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("tgclient: download message media: %w", err)
	}
	mimeHint := ""
	if doc := m.Document(); doc != nil {
		mimeHint = doc.MimeType
	}
	return &stage.File{
		Path:     dest,
		Name:     name,
		Size:     m.File.Size,
		MimeHint: mimeHint,
	}, nil
}

// stageDownload runs download and removes whatever partial file it left
// behind when it fails, so an aborted staging never leaks into destDir.
func stageDownload(dest string, download func(dest string) error) error {
	if err := download(dest); err != nil {
		if rmErr := os.Remove(dest); rmErr != nil && !os.IsNotExist(rmErr) {
			l := logx.FromCtx(context.Background())
			l.Warn().Err(rmErr).Str("path", dest).Msg("partial download not removed")
		}
		return err
	}
	return nil
}

func mediaSizeOK(size, max int64) bool {
	return max <= 0 || size <= max
}

func newProgressManager(fn fetch.ProgressFunc) *telegram.ProgressManager {
	return telegram.NewProgressManager(progressIntervalSec, func(total, current int64) {
		if total > 0 {
			fn(float64(current) / float64(total))
		}
	})
}

// SessionPath returns the absolute location of the credential file, for
// startup logging.
func (c *Client) SessionPath() string {
	p, err := filepath.Abs(c.cfg.SessionFile)
	if err != nil {
		return c.cfg.SessionFile
	}
	return p
}
