package repository

import (
	"context"
	"fmt"

	"GuildFM/model"

	"gorm.io/gorm"
)

// PlaybackRepository 播放历史数据访问接口
type PlaybackRepository interface {
	Create(ctx context.Context, record *model.PlaybackRecord) error
	ListByGuild(ctx context.Context, guildID string, limit int) ([]*model.PlaybackRecord, error)
	CountByGuild(ctx context.Context, guildID string) (int64, error)
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// gormPlaybackRepository GORM 实现
type gormPlaybackRepository struct {
	db *gorm.DB
}

// NewGormPlaybackRepository 创建 GORM 播放历史仓库
func NewGormPlaybackRepository(db *gorm.DB) PlaybackRepository {
	return &gormPlaybackRepository{db: db}
}

// Create 写入一条播放记录
func (r *gormPlaybackRepository) Create(ctx context.Context, record *model.PlaybackRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to save playback record: %w", err)
	}
	return nil
}

// ListByGuild returns the guild's most recent records, newest first.
func (r *gormPlaybackRepository) ListByGuild(ctx context.Context, guildID string, limit int) ([]*model.PlaybackRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var records []*model.PlaybackRecord
	err := r.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list playback records: %w", err)
	}
	return records, nil
}

// CountByGuild 统计服务器的播放记录数
func (r *gormPlaybackRepository) CountByGuild(ctx context.Context, guildID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.PlaybackRecord{}).
		Where("guild_id = ?", guildID).
		Count(&count).Error
	return count, err
}
