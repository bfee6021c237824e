// Package relay turns inbound chat messages into pipeline requests: URLs
// are forwarded to the courier server, and the originating message is
// deleted once the server confirms the upload.
package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// statusPrefixes are texts this system itself emits into chats. They must
// never be answered with an "Invalid URL" notice or the relay feeds back on
// its own output.
var statusPrefixes = []string{
	"Uploading:",
	"Downloading:",
	"Invalid URL",
	"File uploaded",
}

type uploadResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type Relay struct {
	bot      *tgbotapi.BotAPI
	endpoint string
	client   *http.Client
}

func New(bot *tgbotapi.BotAPI, serverURL string) *Relay {
	return &Relay{
		bot:      bot,
		endpoint: serverURL + "/upload",
		// Long enough for the server to finish a full fetch+send.
		client: &http.Client{Timeout: 15 * time.Minute},
	}
}

// Run consumes updates until the channel closes.
func (r *Relay) Run() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := r.bot.GetUpdatesChan(u)

	for upd := range updates {
		if upd.Message == nil || upd.Message.Text == "" {
			continue
		}
		go r.HandleMessage(upd.Message)
	}
}

// HandleMessage relays one inbound text message.
func (r *Relay) HandleMessage(m *tgbotapi.Message) {
	text := strings.TrimSpace(m.Text)
	if IsOwnStatus(text) {
		return
	}

	rawURL, ok := ExtractURL(text)
	if !ok {
		reply := tgbotapi.NewMessage(m.Chat.ID, "Invalid URL")
		reply.ReplyToMessageID = m.MessageID
		if _, err := r.bot.Send(reply); err != nil {
			log.Warn().Err(err).Msg("invalid-url notice failed")
		}
		return
	}

	log.Info().
		Int64("chat_id", m.Chat.ID).
		Int("message_id", m.MessageID).
		Msg("relaying url")

	if err := r.forward(rawURL, m); err != nil {
		log.Error().Err(err).Str("url", rawURL).Msg("relay failed")
		_, _ = r.bot.Send(tgbotapi.NewMessage(m.Chat.ID, "Upload failed: "+err.Error()))
		return
	}

	// Confirmed success: retire the originating message.
	if _, err := r.bot.Request(tgbotapi.NewDeleteMessage(m.Chat.ID, m.MessageID)); err != nil {
		log.Warn().Err(err).Int("message_id", m.MessageID).Msg("source message deletion failed")
	}
}

func (r *Relay) forward(rawURL string, m *tgbotapi.Message) error {
	// A message posted in a reply thread keeps the upload in that thread.
	threadID := 0
	if m.ReplyToMessage != nil {
		threadID = m.ReplyToMessage.MessageID
	}
	body, _ := json.Marshal(map[string]any{
		"fileUrl":   rawURL,
		"chatId":    m.Chat.ID,
		"threadId":  threadID,
		"messageId": m.MessageID,
	})
	resp, err := r.client.Post(r.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result uploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode server response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !result.Success {
		if result.Error != "" {
			return fmt.Errorf("server: %s", result.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}

// ExtractURL returns the first well-formed http(s) URL in text.
func ExtractURL(text string) (string, bool) {
	for _, f := range strings.Fields(text) {
		if !strings.HasPrefix(f, "http://") && !strings.HasPrefix(f, "https://") {
			continue
		}
		if u, err := url.ParseRequestURI(f); err == nil && u.Host != "" {
			return f, true
		}
	}
	return "", false
}

// IsOwnStatus reports whether text is one of the pipeline's own transient
// status messages.
func IsOwnStatus(text string) bool {
	for _, p := range statusPrefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}
