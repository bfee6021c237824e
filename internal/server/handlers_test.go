package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wapuda/tgcourier/internal/config"
	"github.com/wapuda/tgcourier/internal/fetch"
	"github.com/wapuda/tgcourier/internal/probe"
	"github.com/wapuda/tgcourier/internal/sender"
	"github.com/wapuda/tgcourier/internal/stage"
	"github.com/wapuda/tgcourier/internal/typegate"
)

type fakeTransmitter struct {
	err  error
	last *sender.Request
}

func (f *fakeTransmitter) Send(_ context.Context, req sender.Request) (int32, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.last = &req
	_ = os.Remove(req.File.Path)
	return 42, nil
}

type fakeSource struct {
	err   error
	chats []any
}

func (f *fakeSource) DownloadMessageMedia(_ context.Context, chat any, _ int32, destDir, customName string, _ fetch.ProgressFunc) (*stage.File, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.chats = append(f.chats, chat)
	name := stage.ResolveName("message.mp4", customName)
	path := filepath.Join(destDir, name)
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		return nil, err
	}
	return &stage.File{Path: path, Name: name, Size: 5}, nil
}

type testEnv struct {
	srv  *Server
	send *fakeTransmitter
	src  *fakeSource
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Config{
		UploadDir:    t.TempDir(),
		MaxFileBytes: 1 << 20,
		FetchTimeout: time.Minute,
	}
	send := &fakeTransmitter{}
	src := &fakeSource{}
	srv := New(cfg, typegate.New(time.Second), fetch.New(cfg.MaxFileBytes, cfg.FetchTimeout), &probe.Inspector{}, send, src, nil)
	return &testEnv{srv: srv, send: send, src: src}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestUploadValidation(t *testing.T) {
	var fetches atomic.Int64
	fileSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		_, _ = w.Write([]byte("data"))
	}))
	defer fileSrv.Close()

	env := newTestEnv(t)

	t.Run("missing chatId", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/upload", map[string]any{"fileUrl": fileSrv.URL + "/clip.mp4"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode[map[string]string](t, rec)
		assert.Contains(t, body["error"], "chat ID")
		assert.Zero(t, fetches.Load(), "no fetch may happen for an invalid request")
	})

	t.Run("missing source", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/upload", map[string]any{"chatId": "123"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, fetches.Load())
	})

	t.Run("unsupported file type", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/upload", map[string]any{
			"chatId":  "123",
			"fileUrl": "https://nonexistent.invalid/payload.exe",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode[map[string]string](t, rec)
		assert.Equal(t, "unsupported file type", body["error"])
		assert.Zero(t, fetches.Load(), "zero bytes may be fetched for a rejected type")
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("{nope"))
		rec := httptest.NewRecorder()
		env.srv.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUploadSuccess(t *testing.T) {
	fileSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("video-bytes"))
	}))
	defer fileSrv.Close()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/upload", map[string]any{
		"chatId":  123,
		"fileUrl": fileSrv.URL + "/clip.mp4",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[uploadResponse](t, rec)
	assert.True(t, body.Success)
	assert.True(t, strings.HasPrefix(body.FileName, "clip_"))
	assert.True(t, strings.HasSuffix(body.FileName, ".mp4"))
	assert.True(t, body.IsVideo)
	assert.Equal(t, body.FileName, body.Caption, "caption defaults to the filename")

	require.NotNil(t, env.send.last)
	assert.Equal(t, int64(123), env.send.last.Chat)
	require.NotNil(t, env.send.last.Video, "mp4 uploads carry video metadata")
	assert.True(t, env.send.last.Video.Zero(), "inspector unavailable yields zero-valued defaults")
}

func TestUploadFromMessageRef(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/upload", map[string]any{
		"chatId":       "target",
		"sourceChatId": "origin",
		"messageId":    55,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []any{"origin"}, env.src.chats)

	body := decode[uploadResponse](t, rec)
	assert.True(t, body.Success)
	assert.True(t, body.IsVideo)
}

func TestUploadFetchFailure(t *testing.T) {
	fileSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer fileSrv.Close()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/upload", map[string]any{
		"chatId":  "123",
		"fileUrl": fileSrv.URL + "/gone.mp4",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])
}

func TestUploadSendFailure(t *testing.T) {
	fileSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("video-bytes"))
	}))
	defer fileSrv.Close()

	env := newTestEnv(t)
	env.send.err = errors.New("send failed: flood wait")
	rec := env.do(t, http.MethodPost, "/upload", map[string]any{
		"chatId":  "123",
		"fileUrl": fileSrv.URL + "/clip.mp4",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, false, body["success"])
}

func TestCommandRename(t *testing.T) {
	fileSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("video-bytes"))
	}))
	defer fileSrv.Close()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/command", map[string]any{
		"chatId":  "123",
		"command": "/rename report " + fileSrv.URL + "/video.mp4",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[uploadResponse](t, rec)
	assert.Equal(t, "report.mp4", body.FileName, "rename output must be exact, no timestamp")
}

func TestCommandUnknown(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/command", map[string]any{
		"chatId":  "123",
		"command": "/explode",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	env.srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["toolAvailable"])
}

func TestChatRefDecoding(t *testing.T) {
	var req uploadRequest
	require.NoError(t, json.Unmarshal([]byte(`{"chatId": "-100123", "fileUrl": "x"}`), &req))
	assert.Equal(t, int64(-100123), req.ChatID.Value())

	require.NoError(t, json.Unmarshal([]byte(`{"chatId": "@channel"}`), &req))
	assert.Equal(t, "@channel", req.ChatID.Value())

	require.NoError(t, json.Unmarshal([]byte(`{"chatId": 777}`), &req))
	assert.Equal(t, int64(777), req.ChatID.Value())
}
