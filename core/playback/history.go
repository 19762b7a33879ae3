package playback

import (
	"context"
	"time"

	"GuildFM/logger"
	"GuildFM/model"
)

// HistoryRepository persists playback records.
type HistoryRepository interface {
	Create(ctx context.Context, record *model.PlaybackRecord) error
}

// HistoryRecorder writes every playback event to the history repository.
type HistoryRecorder struct {
	repo HistoryRepository
}

// NewHistoryRecorder 创建播放历史记录器
func NewHistoryRecorder(repo HistoryRepository) *HistoryRecorder {
	return &HistoryRecorder{repo: repo}
}

// Run consumes events until ctx is done or the channel is closed.
func (r *HistoryRecorder) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			r.record(ctx, e)
		}
	}
}

func (r *HistoryRecorder) record(ctx context.Context, e Event) {
	rec := &model.PlaybackRecord{
		EventID:     e.ID,
		GuildID:     e.GuildID,
		Title:       e.Track.Title,
		Artist:      e.Track.Artist,
		SourceURI:   e.Track.SourceURI,
		RequestedBy: e.Track.RequestedBy,
		Outcome:     outcomeOf(e),
		Reason:      truncate(e.Reason, 512),
		CreatedAt:   e.At,
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.repo.Create(ctx, rec); err != nil {
		logger.Warn("failed to save playback record",
			logger.GuildID(e.GuildID), logger.String("eventId", e.ID), logger.ErrorField(err))
	}
}

func outcomeOf(e Event) model.PlaybackOutcome {
	switch e.Type {
	case TrackStarted:
		return model.OutcomeStarted
	case TrackFailed:
		return model.OutcomeFailed
	}
	if e.Reason == skipped.reason || e.Reason == stopped.reason {
		return model.OutcomeSkipped
	}
	return model.OutcomeFinished
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
