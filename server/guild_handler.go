package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"GuildFM/core/source"
	"GuildFM/logger"
	"GuildFM/model"

	"github.com/gorilla/mux"
)

// EnqueueRequest is the body of POST /api/guilds/{guildId}/queue.
type EnqueueRequest struct {
	Query       string `json:"query"`
	RequestedBy string `json:"requestedBy"`
	Play        bool   `json:"play"`
}

// ListGuildsHandler returns a snapshot of every active guild.
func (h *APIHandler) ListGuildsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.playback.Guilds())
}

// GetQueueHandler returns the guild's queue snapshot.
func (h *APIHandler) GetQueueHandler(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guildId"]
	writeJSON(w, http.StatusOK, h.playback.Snapshot(guildID))
}

// EnqueueHandler appends a track to the guild's queue.
func (h *APIHandler) EnqueueHandler(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guildId"]

	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.RequestedBy == "" {
		req.RequestedBy = UsernameFromContext(r.Context())
	}

	track := source.TrackFromQuery(req.Query, req.RequestedBy)
	n := h.playback.Enqueue(guildID, track)
	if req.Play {
		go h.playback.Play(guildID)
	}

	writeJSON(w, http.StatusCreated, struct {
		Position int         `json:"position"`
		Track    model.Track `json:"track"`
	}{n, track})
}

// PlayHandler starts playback if the guild is connected and idle.
func (h *APIHandler) PlayHandler(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guildId"]
	go h.playback.Play(guildID)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// SkipHandler skips the current track.
func (h *APIHandler) SkipHandler(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guildId"]
	if !h.playback.Skip(guildID) {
		writeError(w, http.StatusConflict, "nothing is playing")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"skipped": true})
}

// StopHandler clears the queue and disconnects the guild.
func (h *APIHandler) StopHandler(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guildId"]
	h.playback.Stop(guildID)
	logger.Info("stopped via API", logger.GuildID(guildID), logger.String("by", UsernameFromContext(r.Context())))
	w.WriteHeader(http.StatusNoContent)
}

// HistoryHandler lists the guild's recent playback records.
func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "playback history is disabled")
		return
	}
	guildID := mux.Vars(r)["guildId"]

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	records, err := h.history.ListByGuild(r.Context(), guildID, limit)
	if err != nil {
		logger.Error("list history failed", logger.GuildID(guildID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if records == nil {
		records = []*model.PlaybackRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}
