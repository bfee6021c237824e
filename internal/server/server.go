// Package server is the pipeline orchestrator: it turns HTTP requests into
// type-gate -> fetch -> inspect -> send sequences and maps the outcome to a
// response.
package server

import (
	"context"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wapuda/tgcourier/internal/config"
	"github.com/wapuda/tgcourier/internal/fetch"
	logx "github.com/wapuda/tgcourier/internal/logs"
	"github.com/wapuda/tgcourier/internal/probe"
	"github.com/wapuda/tgcourier/internal/sender"
	"github.com/wapuda/tgcourier/internal/stage"
	"github.com/wapuda/tgcourier/internal/typegate"
)

// transmitter is the slice of the sender the orchestrator drives.
type transmitter interface {
	Send(ctx context.Context, req sender.Request) (int32, error)
}

// messageSource stages the media of an already-received chat message, for
// requests that reference a message instead of a URL.
type messageSource interface {
	DownloadMessageMedia(ctx context.Context, chat any, messageID int32, destDir, customName string, onProgress fetch.ProgressFunc) (*stage.File, error)
}

type Server struct {
	cfg       config.Config
	gate      *typegate.Gate
	fetcher   *fetch.Fetcher
	inspector *probe.Inspector
	send      transmitter
	source    messageSource
	rdb       *redis.Client
}

func New(cfg config.Config, gate *typegate.Gate, fetcher *fetch.Fetcher, inspector *probe.Inspector, send transmitter, source messageSource, rdb *redis.Client) *Server {
	return &Server{
		cfg:       cfg,
		gate:      gate,
		fetcher:   fetcher,
		inspector: inspector,
		send:      send,
		source:    source,
		rdb:       rdb,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestID)
	r.Use(s.rateLimit)

	r.Post("/upload", s.handleUpload)
	r.Post("/command", s.handleCommand)
	r.Get("/health", s.handleHealth)
	return r
}

// requestID tags each request with a ULID and logs completion.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := newULID()
		ctx := logx.WithRequestID(r.Context(), id)
		w.Header().Set("X-Request-Id", id)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		l := logx.FromCtx(ctx)
		l.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	})
}

func newULID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
