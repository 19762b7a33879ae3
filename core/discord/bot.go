package discord

import (
	"context"
	"fmt"
	"time"

	"GuildFM/logger"

	"github.com/bwmarrin/discordgo"
)

// MembershipHandler receives voice channel membership changes.
type MembershipHandler interface {
	HandleMembershipChange(guildID, channelID string, remaining int)
}

// NewSession 创建 discordgo session 并设置所需的 intents
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent
	return s, nil
}

// Bot wires discordgo events to the playback core.
type Bot struct {
	session    *discordgo.Session
	gateway    *Gateway
	commands   *Commands
	membership MembershipHandler
}

// NewBot 注册事件处理器
func NewBot(s *discordgo.Session, gateway *Gateway, playback Playback, v Voice, membership MembershipHandler, prefix string) *Bot {
	b := &Bot{session: s, gateway: gateway, membership: membership}
	b.commands = NewCommands(prefix, playback, v, b.userVoiceChannel)

	s.AddHandler(b.onReady)
	s.AddHandler(b.onMessageCreate)
	s.AddHandler(b.onVoiceStateUpdate)
	return b
}

// Open connects to the Discord gateway.
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	return nil
}

// Close disconnects from the Discord gateway.
func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	logger.Info("discord session ready",
		logger.String("user", r.User.Username), logger.Int("guilds", len(r.Guilds)))
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reply, ok := b.commands.Dispatch(ctx, Message{
		GuildID:  m.GuildID,
		AuthorID: m.Author.ID,
		Author:   m.Author.Username,
		Content:  m.Content,
	})
	if !ok || reply == "" {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		logger.Warn("failed to send reply", logger.GuildID(m.GuildID), logger.ErrorField(err))
	}
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.VoiceState == nil {
		return
	}
	if s.State.User != nil && v.UserID == s.State.User.ID {
		switch {
		case v.ChannelID == "":
			b.gateway.transportLost(v.GuildID)
		case b.gateway.channelMoved(v.GuildID, v.ChannelID):
			// 被移到新频道后按新频道的人数重新判断空闲
			b.membership.HandleMembershipChange(v.GuildID, v.ChannelID, b.gateway.NonBotMembers(v.GuildID, v.ChannelID))
		}
		return
	}

	if v.BeforeUpdate != nil && v.BeforeUpdate.ChannelID != "" && v.BeforeUpdate.ChannelID != v.ChannelID {
		old := v.BeforeUpdate.ChannelID
		b.membership.HandleMembershipChange(v.GuildID, old, b.gateway.NonBotMembers(v.GuildID, old))
	}
	if v.ChannelID != "" {
		b.membership.HandleMembershipChange(v.GuildID, v.ChannelID, b.gateway.NonBotMembers(v.GuildID, v.ChannelID))
	}
}

func (b *Bot) userVoiceChannel(guildID, userID string) (string, error) {
	vs, err := b.session.State.VoiceState(guildID, userID)
	if err != nil {
		return "", errNoVoiceChannel
	}
	return vs.ChannelID, nil
}
