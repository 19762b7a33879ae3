package model

import (
	"fmt"
	"strings"
)

// Track is a queued music request. It is treated as an immutable value once enqueued.
type Track struct {
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	DurationMs   int64  `json:"durationMs"`
	SourceURI    string `json:"sourceUri"`   // 原始链接或搜索关键词
	RequestedBy  string `json:"requestedBy"` // 点歌人显示名
	ThumbnailURI string `json:"thumbnailUri,omitempty"`
}

// Query returns the free-text search query used to resolve the track.
func (t Track) Query() string {
	return strings.TrimSpace(t.Artist + " " + t.Title)
}

// DisplayName 返回 "歌手 - 标题" 形式的展示名
func (t Track) DisplayName() string {
	switch {
	case t.Artist == "" && t.Title == "":
		return t.SourceURI
	case t.Artist == "":
		return t.Title
	default:
		return fmt.Sprintf("%s - %s", t.Artist, t.Title)
	}
}

// QueueSnapshot is a point-in-time copy of a guild's playback queue.
type QueueSnapshot struct {
	GuildID      string  `json:"guildId"`
	CurrentTrack *Track  `json:"currentTrack"`
	Queue        []Track `json:"queue"`
	Playing      bool    `json:"playing"`
	State        string  `json:"state"`
	Volume       int     `json:"volume"`
}
