package main

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/wapuda/tgcourier/internal/config"
	logx "github.com/wapuda/tgcourier/internal/logs"
	"github.com/wapuda/tgcourier/internal/relay"
)

func main() {
	_ = godotenv.Load()
	c := config.Load()

	logx.Setup(logx.FromEnv("relay"))
	log.Info().Msg("relay starting")

	if err := c.ValidateRelay(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	bot, err := tgbotapi.NewBotAPI(c.BotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("bot init failed")
	}
	bot.Debug = false
	log.Info().Str("username", bot.Self.UserName).Msg("bot authorized")

	relay.New(bot, c.ServerURL).Run()
}
