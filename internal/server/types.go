package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
)

// chatRef accepts the chat id as either a JSON string or number, the way
// the Bot API and callers mix them.
type chatRef struct {
	str   string
	num   int64
	isNum bool
	set   bool
}

func (c *chatRef) UnmarshalJSON(b []byte) error {
	*c = chatRef{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		c.set = true
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			c.num, c.isNum = n, true
		} else {
			c.str = s
		}
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	c.set = true
	c.num, c.isNum = n, true
	return nil
}

// Value yields what the Telegram client expects: an int64 id or a username.
func (c chatRef) Value() any {
	if c.isNum {
		return c.num
	}
	return c.str
}

type uploadRequest struct {
	FileURL      string  `json:"fileUrl"`
	ChatID       chatRef `json:"chatId"`
	ThreadID     int     `json:"threadId"`
	CustomName   string  `json:"customName"`
	Caption      string  `json:"caption"`
	MessageID    int     `json:"messageId"`
	SourceChatID chatRef `json:"sourceChatId"`
}

type commandRequest struct {
	Command string  `json:"command"`
	ChatID  chatRef `json:"chatId"`
}

type uploadResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	FileName string `json:"fileName"`
	Caption  string `json:"caption,omitempty"`
	IsVideo  bool   `json:"isVideo,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("response encode failed")
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	if status >= http.StatusInternalServerError {
		respondJSON(w, status, map[string]any{"success": false, "error": msg})
		return
	}
	respondJSON(w, status, map[string]string{"error": msg})
}
