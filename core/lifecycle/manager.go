package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"GuildFM/core/session"
	"GuildFM/core/voice"
	"GuildFM/logger"
)

// Cleaner tears down a guild's session, its playback and its connection.
type Cleaner interface {
	Cleanup(guildID, reason string)
}

// MembershipCounter reports the live number of non-bot members in a voice channel.
type MembershipCounter interface {
	NonBotMembers(guildID, channelID string) int
}

// Manager joins voice channels and disconnects guilds whose channel stays
// empty of non-bot members for the idle timeout.
type Manager struct {
	store       *session.Store
	gateway     voice.Gateway
	cleaner     Cleaner
	idleTimeout time.Duration

	counter   MembershipCounter
	afterFunc func(d time.Duration, f func())

	mu     sync.Mutex
	counts map[channelKey]int
}

type channelKey struct {
	guildID   string
	channelID string
}

// NewManager 创建连接生命周期管理器
func NewManager(store *session.Store, gateway voice.Gateway, cleaner Cleaner, idleTimeout time.Duration) *Manager {
	return &Manager{
		store:       store,
		gateway:     gateway,
		cleaner:     cleaner,
		idleTimeout: idleTimeout,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		counts: make(map[channelKey]int),
	}
}

// SetMembershipCounter makes the idle check read live membership instead of
// the last reported count.
func (m *Manager) SetMembershipCounter(c MembershipCounter) {
	m.counter = c
}

// Join connects the guild to channelID. An existing connection is reused,
// even if it is in another channel. Join errors are *voice.ConnectionError.
func (m *Manager) Join(ctx context.Context, guildID, channelID string) (voice.Connection, error) {
	sess := m.store.GetOrCreate(guildID)
	if conn, _ := sess.Connection(); conn != nil {
		return conn, nil
	}

	var (
		conn voice.Connection
		err  error
	)
	sess.Exclusive(func() {
		if existing, _ := sess.Connection(); existing != nil {
			conn = existing
			return
		}
		if sess.Closed() {
			err = &voice.ConnectionError{GuildID: guildID, ChannelID: channelID, Err: errors.New("session is shutting down")}
			return
		}

		c, jerr := m.gateway.Join(ctx, guildID, channelID)
		if jerr != nil {
			err = &voice.ConnectionError{GuildID: guildID, ChannelID: channelID, Err: jerr}
			return
		}
		sess.SetConnection(c)
		c.OnDisconnect(func() {
			m.handleTransportLoss(guildID, c)
		})
		conn = c
	})
	if err != nil {
		logger.Error("failed to join voice channel",
			logger.GuildID(guildID), logger.String("channelId", channelID), logger.ErrorField(err))
		return nil, err
	}

	logger.Info("joined voice channel", logger.GuildID(guildID), logger.String("channelId", conn.ChannelID()))
	return conn, nil
}

// Leave disconnects the guild and cleans up its session.
func (m *Manager) Leave(guildID string) {
	m.cleaner.Cleanup(guildID, "leave")
	m.forget(guildID)
}

// Connected reports whether the guild holds a voice connection.
func (m *Manager) Connected(guildID string) bool {
	sess, ok := m.store.Get(guildID)
	if !ok {
		return false
	}
	conn, _ := sess.Connection()
	return conn != nil
}

func (m *Manager) handleTransportLoss(guildID string, conn voice.Connection) {
	sess, ok := m.store.Get(guildID)
	if !ok {
		return
	}
	if current, _ := sess.Connection(); current != conn {
		// 已主动断开或已被新连接替换
		return
	}
	logger.Warn("voice transport disconnected", logger.GuildID(guildID))
	m.cleaner.Cleanup(guildID, "transport disconnected")
	m.forget(guildID)
}

// HandleMembershipChange records the number of non-bot members left in the
// channel the guild is connected to. When it reaches zero, a check is
// scheduled after the idle timeout; the check re-reads membership when it
// fires and disconnects only if the channel is still empty.
func (m *Manager) HandleMembershipChange(guildID, channelID string, remaining int) {
	key := channelKey{guildID: guildID, channelID: channelID}

	var conn voice.Connection
	if sess, ok := m.store.Get(guildID); ok {
		conn, _ = sess.Connection()
	}
	if conn == nil || conn.ChannelID() != channelID {
		// 只跟踪当前所在频道，其余计数丢弃
		m.mu.Lock()
		delete(m.counts, key)
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	m.counts[key] = remaining
	m.mu.Unlock()
	if remaining > 0 {
		return
	}

	logger.Info("voice channel empty, scheduling idle check",
		logger.GuildID(guildID), logger.String("channelId", channelID), logger.Duration("after", m.idleTimeout))
	m.afterFunc(m.idleTimeout, func() {
		m.checkIdle(key, conn)
	})
}

func (m *Manager) checkIdle(key channelKey, conn voice.Connection) {
	if n := m.members(key); n > 0 {
		logger.Debug("idle check skipped, members present",
			logger.GuildID(key.guildID), logger.Int("members", n))
		return
	}
	sess, ok := m.store.Get(key.guildID)
	if !ok {
		return
	}
	if current, _ := sess.Connection(); current != conn {
		return
	}
	m.cleaner.Cleanup(key.guildID, "idle timeout")
	m.forget(key.guildID)
}

// forget drops every recorded count for the guild.
func (m *Manager) forget(guildID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.counts {
		if key.guildID == guildID {
			delete(m.counts, key)
		}
	}
}

func (m *Manager) members(key channelKey) int {
	if m.counter != nil {
		return m.counter.NonBotMembers(key.guildID, key.channelID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}
