package model

import "time"

// PlaybackOutcome 播放记录的结果
type PlaybackOutcome string

const (
	OutcomeStarted  PlaybackOutcome = "started"
	OutcomeFinished PlaybackOutcome = "finished"
	OutcomeSkipped  PlaybackOutcome = "skipped"
	OutcomeFailed   PlaybackOutcome = "failed"
)

// PlaybackRecord 播放历史，每个播放事件一行
type PlaybackRecord struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID     string          `gorm:"size:36;uniqueIndex" json:"eventId"`
	GuildID     string          `gorm:"size:32;index:idx_guild_time" json:"guildId"`
	Title       string          `gorm:"size:255" json:"title"`
	Artist      string          `gorm:"size:255" json:"artist"`
	SourceURI   string          `gorm:"size:1024" json:"sourceUri"`
	RequestedBy string          `gorm:"size:100" json:"requestedBy"`
	Outcome     PlaybackOutcome `gorm:"size:16" json:"outcome"`
	Reason      string          `gorm:"size:512" json:"reason,omitempty"`
	CreatedAt   time.Time       `gorm:"index:idx_guild_time" json:"createdAt"`
}

// TableName 指定表名
func (PlaybackRecord) TableName() string {
	return "playback_records"
}
