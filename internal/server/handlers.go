package server

import (
	"encoding/json"
	"net/http"
	"strings"

	logx "github.com/wapuda/tgcourier/internal/logs"
	"github.com/wapuda/tgcourier/internal/probe"
	"github.com/wapuda/tgcourier/internal/sender"
	"github.com/wapuda/tgcourier/internal/stage"
	"github.com/wapuda/tgcourier/internal/typegate"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.runPipeline(w, r, req)
}

// handleCommand supports chat-style directives over HTTP. Currently only
// "/rename <name> <url>", which runs the upload pipeline with a forced
// output name.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	fields := strings.Fields(req.Command)
	if len(fields) != 3 || fields[0] != "/rename" {
		respondError(w, http.StatusBadRequest, "unknown command")
		return
	}
	s.runPipeline(w, r, uploadRequest{
		FileURL:    fields[2],
		CustomName: fields[1],
		ChatID:     req.ChatID,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"toolAvailable": s.inspector.Available(),
	})
}

// runPipeline validates the request and walks it through
// type gate -> fetch -> inspect -> send, writing the outcome.
func (s *Server) runPipeline(w http.ResponseWriter, r *http.Request, req uploadRequest) {
	if !req.ChatID.set {
		respondError(w, http.StatusBadRequest, "chat ID is required")
		return
	}
	if req.FileURL == "" && req.MessageID == 0 {
		respondError(w, http.StatusBadRequest, "file URL or message ID is required")
		return
	}

	ctx := logx.WithChatID(r.Context(), req.ChatID.Value())
	log := logx.FromCtx(ctx)

	var (
		staged *stage.File
		err    error
	)
	if req.FileURL != "" {
		if !s.gate.Allow(ctx, req.FileURL) {
			respondError(w, http.StatusBadRequest, "unsupported file type")
			return
		}
		staged, err = s.fetcher.Fetch(ctx, req.FileURL, s.cfg.UploadDir, req.CustomName, func(f float64) {
			log.Debug().Int("percent", int(f*100)).Msg("downloading")
		})
	} else {
		src := req.SourceChatID
		if !src.set {
			src = req.ChatID
		}
		staged, err = s.source.DownloadMessageMedia(ctx, src.Value(), int32(req.MessageID), s.cfg.UploadDir, req.CustomName, func(f float64) {
			log.Debug().Int("percent", int(f*100)).Msg("downloading")
		})
	}
	if err != nil {
		log.Error().Err(err).Msg("fetch failed")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	isVideo := typegate.VideoName(staged.Name)
	var meta probe.Metadata
	if isVideo {
		meta = s.inspector.Inspect(ctx, staged.Path)
		if meta.Zero() && s.inspector.Normalize(ctx, staged.Path) {
			meta = s.inspector.Inspect(ctx, staged.Path)
		}
	}

	caption := req.Caption
	if caption == "" {
		caption = staged.Name
	}

	_, err = s.send.Send(ctx, sender.Request{
		Chat:     req.ChatID.Value(),
		ThreadID: int32(req.ThreadID),
		Caption:  caption,
		File:     staged,
		Video:    sender.VideoMetaFor(staged.Name, meta),
		OnProgress: func(f float64) {
			log.Debug().Int("percent", int(f*100)).Msg("uploading")
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("send failed")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, uploadResponse{
		Success:  true,
		Message:  "File uploaded successfully",
		FileName: staged.Name,
		Caption:  caption,
		IsVideo:  isVideo,
	})
}
