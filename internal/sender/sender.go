// Package sender transmits a staged file to its destination chat. Whatever
// happens, the staged file is deleted exactly once before Send returns.
package sender

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/wapuda/tgcourier/internal/fetch"
	logx "github.com/wapuda/tgcourier/internal/logs"
	"github.com/wapuda/tgcourier/internal/probe"
	"github.com/wapuda/tgcourier/internal/stage"
	"github.com/wapuda/tgcourier/internal/tgclient"
	"github.com/wapuda/tgcourier/internal/typegate"
)

// SendError wraps the platform failure behind a stable kind the orchestrator
// can map to a response.
type SendError struct {
	cause error
}

func (e *SendError) Error() string { return "send failed: " + e.cause.Error() }
func (e *SendError) Unwrap() error { return e.cause }

// IsSendError reports whether err is a transmission failure (as opposed to
// a chat-resolution failure).
func IsSendError(err error) bool {
	var se *SendError
	return errors.As(err, &se)
}

// Platform is the slice of the messaging client the sender needs.
type Platform interface {
	ResolveChat(ctx context.Context, chat any) error
	SendText(ctx context.Context, chat any, text string, threadID int32) (int32, error)
	DeleteMessage(ctx context.Context, chat any, id int32) error
	SendFile(ctx context.Context, chat any, up tgclient.Upload) (int32, error)
}

// Request is one send invocation.
type Request struct {
	Chat       any
	ThreadID   int32
	Caption    string
	File       *stage.File
	Video      *probe.Metadata // non-nil marks the file as a streamable video
	OnProgress fetch.ProgressFunc
}

type Sender struct {
	platform Platform
}

func New(p Platform) *Sender {
	return &Sender{platform: p}
}

// Send resolves the chat, posts a transient status notice, transmits the
// file and retracts the notice. The local file is removed on success and on
// every failure path. Status-message failures are cosmetic and only logged.
func (s *Sender) Send(ctx context.Context, req Request) (msgID int32, err error) {
	log := logx.FromCtx(ctx)
	defer func() {
		if rmErr := os.Remove(req.File.Path); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warn().Err(rmErr).Str("path", req.File.Path).Msg("staged file cleanup failed")
		}
	}()

	if err := s.platform.ResolveChat(ctx, req.Chat); err != nil {
		return 0, err
	}

	statusID, err := s.platform.SendText(ctx, req.Chat, fmt.Sprintf("Uploading: %s...", req.File.Name), req.ThreadID)
	if err != nil {
		log.Warn().Err(err).Msg("status message failed; continuing without it")
		statusID = 0
	}

	up := tgclient.Upload{
		Path:       req.File.Path,
		Name:       req.File.Name,
		Caption:    req.Caption,
		ThreadID:   req.ThreadID,
		OnProgress: req.OnProgress,
	}
	if req.Video != nil {
		up.Video = req.Video
		up.MimeType = "video/mp4"
	}

	msgID, err = s.platform.SendFile(ctx, req.Chat, up)
	if err != nil {
		return 0, &SendError{cause: err}
	}

	if statusID != 0 {
		if err := s.platform.DeleteMessage(ctx, req.Chat, statusID); err != nil {
			log.Warn().Err(err).Int32("status_id", statusID).Msg("status message retraction failed")
		}
	}
	return msgID, nil
}

// VideoMetaFor decides whether a staged file should be sent with video
// attributes, returning the (possibly zero-valued) metadata when it should.
func VideoMetaFor(name string, meta probe.Metadata) *probe.Metadata {
	if !typegate.VideoName(name) {
		return nil
	}
	m := meta
	return &m
}
