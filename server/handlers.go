package server

import (
	"encoding/json"
	"net/http"

	"GuildFM/core/auth"
	"GuildFM/core/playback"
	"GuildFM/logger"
	"GuildFM/model"
	"GuildFM/repository"
)

// Playback is the control surface the API drives.
type Playback interface {
	Enqueue(guildID string, tracks ...model.Track) int
	Play(guildID string)
	Skip(guildID string) bool
	Stop(guildID string)
	Snapshot(guildID string) model.QueueSnapshot
	Guilds() []model.QueueSnapshot
}

// APIHandler 处理所有API请求
type APIHandler struct {
	playback  Playback
	events    *playback.Bus
	history   repository.PlaybackRepository // nil 表示未启用播放历史
	issuer    *auth.Issuer
	adminHash string
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(pb Playback, events *playback.Bus, history repository.PlaybackRepository, issuer *auth.Issuer, adminHash string) *APIHandler {
	return &APIHandler{
		playback:  pb,
		events:    events,
		history:   history,
		issuer:    issuer,
		adminHash: adminHash,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("write response failed", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
