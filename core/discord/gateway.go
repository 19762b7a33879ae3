package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"GuildFM/core/voice"
	"GuildFM/logger"

	"github.com/bwmarrin/discordgo"
)

const (
	joinAttempts   = 3
	readyTimeout   = 10 * time.Second
	readyPollEvery = 100 * time.Millisecond
)

// Gateway joins voice channels through a discordgo session.
type Gateway struct {
	session *discordgo.Session
	bitrate int

	mu    sync.Mutex
	conns map[string]*connection
}

// NewGateway 创建语音网关
func NewGateway(s *discordgo.Session, bitrate int) *Gateway {
	return &Gateway{session: s, bitrate: bitrate, conns: make(map[string]*connection)}
}

func (g *Gateway) Join(ctx context.Context, guildID, channelID string) (voice.Connection, error) {
	var (
		vc  *discordgo.VoiceConnection
		err error
	)
	for i := 0; i < joinAttempts; i++ {
		vc, err = g.session.ChannelVoiceJoin(guildID, channelID, false, true)
		if err == nil {
			break
		}
		logger.Warn("voice join attempt failed",
			logger.GuildID(guildID), logger.Int("attempt", i+1), logger.ErrorField(err))
		if i < joinAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i+1) * time.Second):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("join failed after %d attempts: %w", joinAttempts, err)
	}

	if err := waitReady(ctx, vc); err != nil {
		_ = vc.Disconnect()
		return nil, err
	}

	c := &connection{gateway: g, guildID: guildID, channelID: channelID, vc: vc}
	c.player = &opusPlayer{vc: vc, bitrate: g.bitrate}

	g.mu.Lock()
	g.conns[guildID] = c
	g.mu.Unlock()
	return c, nil
}

func waitReady(ctx context.Context, vc *discordgo.VoiceConnection) error {
	timeout := time.NewTimer(readyTimeout)
	defer timeout.Stop()
	ticker := time.NewTicker(readyPollEvery)
	defer ticker.Stop()

	for {
		vc.RLock()
		ready := vc.Ready
		vc.RUnlock()
		if ready {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			return errors.New("voice connection timed out")
		case <-ticker.C:
		}
	}
}

// transportLost fires the disconnect listener of the guild's connection, if any.
func (g *Gateway) transportLost(guildID string) {
	g.mu.Lock()
	c, ok := g.conns[guildID]
	if ok {
		delete(g.conns, guildID)
	}
	g.mu.Unlock()
	if ok {
		c.fireDisconnect()
	}
}

// channelMoved records that the bot was moved to another channel of the
// guild. It reports whether a tracked connection changed channel.
func (g *Gateway) channelMoved(guildID, channelID string) bool {
	g.mu.Lock()
	c, ok := g.conns[guildID]
	g.mu.Unlock()
	if !ok {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.channelID == channelID {
		return false
	}
	logger.Info("bot moved to another voice channel",
		logger.GuildID(guildID), logger.String("from", c.channelID), logger.String("to", channelID))
	c.channelID = channelID
	return true
}

func (g *Gateway) forget(c *connection) {
	g.mu.Lock()
	if cur, ok := g.conns[c.guildID]; ok && cur == c {
		delete(g.conns, c.guildID)
	}
	g.mu.Unlock()
}

// NonBotMembers counts the members of a voice channel that are not bots.
func (g *Gateway) NonBotMembers(guildID, channelID string) int {
	st := g.session.State
	selfID := ""
	if st.User != nil {
		selfID = st.User.ID
	}

	type occupant struct {
		userID string
		bot    *bool
	}
	var occupants []occupant

	guild, err := st.Guild(guildID)
	if err != nil {
		return 0
	}

	st.RLock()
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID || vs.UserID == selfID {
			continue
		}
		o := occupant{userID: vs.UserID}
		if vs.Member != nil && vs.Member.User != nil {
			b := vs.Member.User.Bot
			o.bot = &b
		}
		occupants = append(occupants, o)
	}
	st.RUnlock()

	n := 0
	for _, o := range occupants {
		if o.bot == nil {
			if m, err := st.Member(guildID, o.userID); err == nil && m.User != nil {
				b := m.User.Bot
				o.bot = &b
			}
		}
		if o.bot == nil || !*o.bot {
			n++
		}
	}
	return n
}

type connection struct {
	gateway   *Gateway
	guildID   string
	channelID string
	vc        *discordgo.VoiceConnection
	player    *opusPlayer

	mu           sync.Mutex
	onDisconnect func()
	closed       bool
}

func (c *connection) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

func (c *connection) Player() voice.Player {
	return c.player
}

func (c *connection) OnDisconnect(fn func()) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

func (c *connection) fireDisconnect() {
	c.mu.Lock()
	fn := c.onDisconnect
	closed := c.closed
	c.mu.Unlock()
	if fn != nil && !closed {
		fn()
	}
}

func (c *connection) Disconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.gateway.forget(c)
	return c.vc.Disconnect()
}
