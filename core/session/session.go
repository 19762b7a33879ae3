package session

import (
	"context"
	"io"
	"sync"

	"GuildFM/core/voice"
	"GuildFM/model"
)

// State is the playback state of a guild.
type State int

const (
	Idle State = iota
	Resolving
	Streaming
	Finishing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resolving:
		return "resolving"
	case Streaming:
		return "streaming"
	case Finishing:
		return "finishing"
	default:
		return "unknown"
	}
}

// Attachment is the stream currently attached to the guild's player.
type Attachment struct {
	Gen    uint64
	Stream io.Closer
	Cancel context.CancelFunc
	Done   <-chan struct{} // closed when the player has let go of the stream
}

// GuildSession holds the mutable playback state of one guild.
//
// Queue, current track and the playing flag are written only by the playback
// controller while it holds the operation lock (see Exclusive). Enqueue only
// touches the tail and may run at any time.
type GuildSession struct {
	GuildID string

	op sync.Mutex // 串行化同一 guild 的播放操作

	mu         sync.Mutex
	queue      []model.Track
	current    *model.Track
	playing    bool
	state      State
	volume     int
	conn       voice.Connection
	player     voice.Player
	attachment *Attachment
	gen        uint64
	closed     bool

	ctx    context.Context
	cancel context.CancelFunc
}

func newGuildSession(guildID string, volume int) *GuildSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &GuildSession{
		GuildID: guildID,
		volume:  volume,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Exclusive runs fn while holding the guild's operation lock.
func (s *GuildSession) Exclusive(fn func()) {
	s.op.Lock()
	defer s.op.Unlock()
	fn()
}

// Context is cancelled when the session is torn down; in-flight resolution
// and pipeline processes are bound to it.
func (s *GuildSession) Context() context.Context {
	return s.ctx
}

// Close cancels the session context and marks the session terminated.
func (s *GuildSession) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

// Closed reports whether the session has been torn down.
func (s *GuildSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Enqueue appends tracks to the tail and returns the new queue length.
func (s *GuildSession) Enqueue(tracks ...model.Track) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, tracks...)
	return len(s.queue)
}

// PeekHead returns the next track without removing it.
func (s *GuildSession) PeekHead() (model.Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return model.Track{}, false
	}
	return s.queue[0], true
}

// DequeueHead removes the head of the queue and makes it the current track.
func (s *GuildSession) DequeueHead() (model.Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return model.Track{}, false
	}
	t := s.queue[0]
	s.queue[0] = model.Track{}
	s.queue = s.queue[1:]
	s.current = &t
	return t, true
}

// ClearCurrent unsets the current track and the playing flag.
func (s *GuildSession) ClearCurrent() {
	s.mu.Lock()
	s.current = nil
	s.playing = false
	s.mu.Unlock()
}

// ClearQueue drops every queued track and returns how many were removed.
func (s *GuildSession) ClearQueue() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.queue)
	s.queue = nil
	return n
}

func (s *GuildSession) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *GuildSession) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *GuildSession) SetPlaying(playing bool) {
	s.mu.Lock()
	s.playing = playing
	s.mu.Unlock()
}

func (s *GuildSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *GuildSession) SetState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Current returns a copy of the current track.
func (s *GuildSession) Current() (model.Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return model.Track{}, false
	}
	return *s.current, true
}

func (s *GuildSession) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// SetConnection stores the connection and its player together.
func (s *GuildSession) SetConnection(conn voice.Connection) {
	s.mu.Lock()
	s.conn = conn
	s.player = conn.Player()
	s.mu.Unlock()
}

// Connection returns the connection and player handles, both nil when not joined.
func (s *GuildSession) Connection() (voice.Connection, voice.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn, s.player
}

// ClearConnection drops both handles and returns the connection that was held.
func (s *GuildSession) ClearConnection() voice.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn := s.conn
	s.conn = nil
	s.player = nil
	return conn
}

// Attach records a new attachment and returns its generation.
func (s *GuildSession) Attach(a *Attachment) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	a.Gen = s.gen
	s.attachment = a
	return a.Gen
}

// Detach removes the attachment if it is still generation gen.
func (s *GuildSession) Detach(gen uint64) (*Attachment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attachment == nil || s.attachment.Gen != gen {
		return nil, false
	}
	a := s.attachment
	s.attachment = nil
	return a, true
}

// CurrentAttachment returns the live attachment, if any.
func (s *GuildSession) CurrentAttachment() *Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attachment
}

// Snapshot copies the queue state.
func (s *GuildSession) Snapshot() model.QueueSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := model.QueueSnapshot{
		GuildID: s.GuildID,
		Queue:   append([]model.Track{}, s.queue...),
		Playing: s.playing,
		State:   s.state.String(),
		Volume:  s.volume,
	}
	if s.current != nil {
		cur := *s.current
		snap.CurrentTrack = &cur
	}
	return snap
}
