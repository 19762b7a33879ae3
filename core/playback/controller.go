package playback

import (
	"context"
	"errors"
	"time"

	"GuildFM/core/audio"
	"GuildFM/core/session"
	"GuildFM/core/source"
	"GuildFM/core/voice"
	"GuildFM/logger"
	"GuildFM/model"
)

// Resolver turns a track into a playable locator.
type Resolver interface {
	Resolve(ctx context.Context, track model.Track) (source.Locator, error)
}

// outcome of a track leaving the Streaming or Resolving state
type outcome struct {
	reason string
	err    error
}

var (
	ended   = outcome{reason: "finished"}
	skipped = outcome{reason: "skipped"}
	stopped = outcome{reason: "stopped"}
)

func failed(err error) outcome {
	return outcome{reason: "failed", err: err}
}

// Controller drives each guild through Idle, Resolving, Streaming and
// Finishing. Operations on one guild are serialized by the session's
// operation lock; guilds progress independently.
type Controller struct {
	store    *session.Store
	resolver Resolver
	pipeline audio.Opener
	events   *Bus

	advanceDelay time.Duration
	afterFunc    func(d time.Duration, f func())
}

// NewController 创建播放控制器
func NewController(store *session.Store, resolver Resolver, pipeline audio.Opener, events *Bus, advanceDelay time.Duration) *Controller {
	return &Controller{
		store:        store,
		resolver:     resolver,
		pipeline:     pipeline,
		events:       events,
		advanceDelay: advanceDelay,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// Events returns the bus the controller publishes to.
func (c *Controller) Events() *Bus {
	return c.events
}

// Enqueue appends tracks to the guild's queue and returns its new length.
func (c *Controller) Enqueue(guildID string, tracks ...model.Track) int {
	n := c.store.GetOrCreate(guildID).Enqueue(tracks...)
	logger.Info("tracks enqueued",
		logger.GuildID(guildID), logger.Int("added", len(tracks)), logger.Int("queueLength", n))
	return n
}

// Play starts the next track if the guild is connected and not already
// playing. It returns once the guild is Streaming or back to Idle; failures
// are reported through events only.
func (c *Controller) Play(guildID string) {
	sess, ok := c.store.Get(guildID)
	if !ok {
		return
	}
	c.play(sess)
}

func (c *Controller) play(sess *session.GuildSession) {
	sess.Exclusive(func() {
		c.startNext(sess)
	})
}

// startNext runs with the operation lock held.
func (c *Controller) startNext(sess *session.GuildSession) {
	if sess.Closed() {
		return
	}
	if sess.Playing() {
		logger.Debug("play ignored, already playing", logger.GuildID(sess.GuildID))
		return
	}
	_, player := sess.Connection()
	if player == nil {
		logger.Debug("play ignored, not connected", logger.GuildID(sess.GuildID))
		return
	}

	track, ok := sess.DequeueHead()
	if !ok {
		sess.SetState(session.Idle)
		return
	}
	sess.SetState(session.Resolving)
	logger.Debug("resolving track", logger.GuildID(sess.GuildID), logger.Track(track.Title, track.Artist))

	ctx := sess.Context()
	loc, err := c.resolver.Resolve(ctx, track)
	if err != nil {
		c.finish(sess, track, failed(err))
		return
	}

	stream, err := c.pipeline.Open(ctx, loc)
	if err != nil {
		c.finish(sess, track, failed(err))
		return
	}
	if sess.Closed() {
		_ = stream.Close()
		c.finish(sess, track, stopped)
		return
	}

	playCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	gen := sess.Attach(&session.Attachment{Stream: stream, Cancel: cancel, Done: done})
	sess.SetPlaying(true)
	sess.SetState(session.Streaming)
	c.events.Publish(Event{Type: TrackStarted, GuildID: sess.GuildID, Track: track})

	go c.stream(playCtx, cancel, sess, gen, track, player, stream, done)
}

// stream feeds the player and reports how the attachment ended.
func (c *Controller) stream(ctx context.Context, cancel context.CancelFunc, sess *session.GuildSession,
	gen uint64, track model.Track, player voice.Player, stream audio.ByteStream, done chan struct{}) {

	playErr := make(chan error, 1)
	go func() {
		playErr <- player.Play(ctx, stream)
	}()

	var cause error
	select {
	case cause = <-playErr:
		select {
		case serr := <-stream.Err():
			cause = serr
		default:
		}
	case cause = <-stream.Err():
		cancel()
		<-playErr
	}
	cancel()
	_ = stream.Close()
	close(done)

	sess.Exclusive(func() {
		if _, ok := sess.Detach(gen); !ok {
			// skip 或 stop 已经处理过
			return
		}
		if cause != nil && !errors.Is(cause, context.Canceled) {
			c.finish(sess, track, failed(cause))
			return
		}
		c.finish(sess, track, ended)
	})
}

// finish is the single Finishing transition. It runs with the operation lock held.
func (c *Controller) finish(sess *session.GuildSession, track model.Track, out outcome) {
	sess.SetState(session.Finishing)
	sess.ClearCurrent()

	if sess.Closed() {
		sess.SetState(session.Idle)
		return
	}

	if out.err != nil {
		c.events.Publish(Event{Type: TrackFailed, GuildID: sess.GuildID, Track: track, Reason: out.err.Error()})
	} else {
		c.events.Publish(Event{Type: TrackEnded, GuildID: sess.GuildID, Track: track, Reason: out.reason})
	}

	if sess.Len() == 0 {
		sess.SetState(session.Idle)
		logger.Info("queue finished", logger.GuildID(sess.GuildID))
		return
	}

	// 固定延迟后推进，不设重试上限
	c.afterFunc(c.advanceDelay, func() {
		c.play(sess)
	})
}

// release stops the attached stream and waits until the player has let go of it.
func (c *Controller) release(sess *session.GuildSession, a *session.Attachment) {
	sess.Detach(a.Gen)
	a.Cancel()
	_ = a.Stream.Close()
	<-a.Done
}

// Skip stops the current track and advances. It reports false, changing
// nothing, when the guild is not playing.
func (c *Controller) Skip(guildID string) bool {
	sess, ok := c.store.Get(guildID)
	if !ok {
		return false
	}

	var didSkip bool
	sess.Exclusive(func() {
		if !sess.Playing() {
			return
		}
		a := sess.CurrentAttachment()
		if a == nil {
			return
		}
		track, _ := sess.Current()
		c.release(sess, a)
		c.finish(sess, track, skipped)
		didSkip = true
	})
	return didSkip
}

// Stop clears the queue, stops playback and disconnects the guild.
func (c *Controller) Stop(guildID string) {
	c.Cleanup(guildID, "stop")
}

// Cleanup terminates the guild's session. Safe to call for unknown guilds.
func (c *Controller) Cleanup(guildID, reason string) {
	sess, ok := c.store.Get(guildID)
	if !ok {
		return
	}

	// 先取消 session context，正在解析或拉流的进程会立即退出
	sess.Close()
	sess.Exclusive(func() {
		dropped := sess.ClearQueue()

		if a := sess.CurrentAttachment(); a != nil {
			track, _ := sess.Current()
			c.release(sess, a)
			c.events.Publish(Event{Type: TrackEnded, GuildID: guildID, Track: track, Reason: stopped.reason})
		}
		sess.ClearCurrent()
		sess.SetState(session.Idle)

		if conn := sess.ClearConnection(); conn != nil {
			if err := conn.Disconnect(); err != nil {
				logger.Warn("voice disconnect failed", logger.GuildID(guildID), logger.ErrorField(err))
			}
		}
		c.store.Delete(sess)

		logger.Info("session cleaned up",
			logger.GuildID(guildID), logger.String("reason", reason), logger.Int("droppedTracks", dropped))
	})
}

// Snapshot returns the guild's current track and queue.
func (c *Controller) Snapshot(guildID string) model.QueueSnapshot {
	sess, ok := c.store.Get(guildID)
	if !ok {
		return model.QueueSnapshot{GuildID: guildID, Queue: []model.Track{}, State: session.Idle.String()}
	}
	return sess.Snapshot()
}

// Guilds returns snapshots of every live session.
func (c *Controller) Guilds() []model.QueueSnapshot {
	ids := c.store.GuildIDs()
	out := make([]model.QueueSnapshot, 0, len(ids))
	for _, id := range ids {
		if sess, ok := c.store.Get(id); ok {
			out = append(out, sess.Snapshot())
		}
	}
	return out
}
