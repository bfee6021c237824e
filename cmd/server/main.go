package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/wapuda/tgcourier/internal/config"
	"github.com/wapuda/tgcourier/internal/fetch"
	logx "github.com/wapuda/tgcourier/internal/logs"
	"github.com/wapuda/tgcourier/internal/probe"
	"github.com/wapuda/tgcourier/internal/sender"
	"github.com/wapuda/tgcourier/internal/server"
	"github.com/wapuda/tgcourier/internal/stage"
	"github.com/wapuda/tgcourier/internal/tgclient"
	"github.com/wapuda/tgcourier/internal/typegate"
)

func main() {
	_ = godotenv.Load()
	c := config.Load()

	logx.Setup(logx.FromEnv("server"))
	log.Info().Msg("server starting")

	if err := c.ValidateServer(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := stage.EnsureDir(c.UploadDir); err != nil {
		log.Fatal().Err(err).Str("dir", c.UploadDir).Msg("upload dir unavailable")
	}

	tg := tgclient.New(tgclient.Config{
		AppID:        c.APIID,
		AppHash:      c.APIHash,
		BotToken:     c.BotToken,
		PhoneNumber:  c.PhoneNumber,
		SessionFile:  c.SessionFile,
		MaxFileBytes: c.MaxFileBytes,
	})
	log.Info().Str("session", tg.SessionPath()).Msg("session credential location")

	inspector := probe.New()
	log.Info().Bool("tool_available", inspector.Available()).Msg("media inspector probed")

	var rdb *redis.Client
	if c.RateMax > 0 {
		rdb = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
	}

	srv := server.New(
		c,
		typegate.New(10*time.Second),
		fetch.New(c.MaxFileBytes, c.FetchTimeout),
		inspector,
		sender.New(tg),
		tg,
		rdb,
	)

	addr := fmt.Sprintf(":%d", c.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("addr", addr).Msg("listening")
	if err := httpSrv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
