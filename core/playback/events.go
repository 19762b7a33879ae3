package playback

import (
	"sync"
	"time"

	"GuildFM/logger"
	"GuildFM/model"

	"github.com/google/uuid"
)

// EventType 播放事件类型
type EventType string

const (
	TrackStarted EventType = "trackStarted"
	TrackEnded   EventType = "trackEnded"
	TrackFailed  EventType = "trackFailed"
)

// Event reports a playback transition to presentation layers.
type Event struct {
	ID      string      `json:"id"`
	Type    EventType   `json:"type"`
	GuildID string      `json:"guildId"`
	Track   model.Track `json:"track"`
	Reason  string      `json:"reason,omitempty"`
	At      time.Time   `json:"at"`
}

// Bus fans events out to subscribers. Slow subscribers lose events rather
// than block playback.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	buffer int
}

// NewBus 创建事件总线，buffer 为每个订阅者的缓冲大小
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{subs: make(map[int]chan Event), buffer: buffer}
}

// Subscribe returns a channel of events and a function that unsubscribes and closes it.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish logs the event and delivers it to every subscriber without blocking.
func (b *Bus) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	fields := []logger.Field{
		logger.GuildID(e.GuildID),
		logger.Track(e.Track.Title, e.Track.Artist),
		logger.String("eventId", e.ID),
	}
	switch e.Type {
	case TrackStarted:
		logger.Info("track started", fields...)
	case TrackEnded:
		logger.Info("track ended", append(fields, logger.String("reason", e.Reason))...)
	case TrackFailed:
		logger.Warn("track failed", append(fields, logger.String("reason", e.Reason))...)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
