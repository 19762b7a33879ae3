package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"GuildFM/core/source"
	"GuildFM/core/voice"
	"GuildFM/model"
)

// Playback is the subset of the playback controller used by commands.
type Playback interface {
	Enqueue(guildID string, tracks ...model.Track) int
	Play(guildID string)
	Skip(guildID string) bool
	Stop(guildID string)
	Snapshot(guildID string) model.QueueSnapshot
}

// Voice joins and leaves channels.
type Voice interface {
	Join(ctx context.Context, guildID, channelID string) (voice.Connection, error)
	Leave(guildID string)
}

// Message is a chat message addressed to the bot.
type Message struct {
	GuildID  string
	AuthorID string
	Author   string
	Content  string
}

var errNoVoiceChannel = errors.New("not in a voice channel")

// Commands parses prefixed chat commands and drives playback.
type Commands struct {
	prefix   string
	playback Playback
	voice    Voice
	// locate returns the voice channel a user is in.
	locate func(guildID, userID string) (string, error)
}

// NewCommands 创建命令分发器
func NewCommands(prefix string, playback Playback, v Voice, locate func(guildID, userID string) (string, error)) *Commands {
	return &Commands{prefix: prefix, playback: playback, voice: v, locate: locate}
}

// Dispatch handles a message and returns the reply, or false if the message
// is not a command.
func (c *Commands) Dispatch(ctx context.Context, m Message) (string, bool) {
	if m.GuildID == "" || !strings.HasPrefix(m.Content, c.prefix) {
		return "", false
	}
	fields := strings.Fields(strings.TrimPrefix(m.Content, c.prefix))
	if len(fields) == 0 {
		return "", false
	}
	name, arg := strings.ToLower(fields[0]), strings.Join(fields[1:], " ")

	switch name {
	case "play", "p":
		return c.play(ctx, m, arg), true
	case "skip", "s":
		if c.playback.Skip(m.GuildID) {
			return "⏭️ Skipped.", true
		}
		return "Nothing is playing.", true
	case "stop":
		c.playback.Stop(m.GuildID)
		return "⏹️ Stopped and cleared the queue.", true
	case "queue", "q":
		return formatQueue(c.playback.Snapshot(m.GuildID)), true
	case "leave":
		c.voice.Leave(m.GuildID)
		return "👋 Left the voice channel.", true
	case "help":
		return c.help(), true
	default:
		return "", false
	}
}

func (c *Commands) play(ctx context.Context, m Message, query string) string {
	if strings.TrimSpace(query) == "" {
		return fmt.Sprintf("Usage: `%splay <url | artist - title>`", c.prefix)
	}
	channelID, err := c.locate(m.GuildID, m.AuthorID)
	if err != nil || channelID == "" {
		return "You must be in a voice channel to play music."
	}
	if _, err := c.voice.Join(ctx, m.GuildID, channelID); err != nil {
		return "❌ Could not join your voice channel."
	}

	track := source.TrackFromQuery(query, m.Author)
	n := c.playback.Enqueue(m.GuildID, track)
	go c.playback.Play(m.GuildID)

	return fmt.Sprintf("🎶 Queued **%s** (position %d)", track.DisplayName(), n)
}

func (c *Commands) help() string {
	p := c.prefix
	return strings.Join([]string{
		p + "play <url | artist - title> - queue a track",
		p + "skip - skip the current track",
		p + "stop - stop and clear the queue",
		p + "queue - show the queue",
		p + "leave - leave the voice channel",
	}, "\n")
}

func formatQueue(s model.QueueSnapshot) string {
	var b strings.Builder
	if s.CurrentTrack != nil {
		fmt.Fprintf(&b, "▶️ Now playing: **%s**\n", s.CurrentTrack.DisplayName())
	} else {
		b.WriteString("Nothing is playing.\n")
	}
	if len(s.Queue) == 0 {
		b.WriteString("The queue is empty.")
		return b.String()
	}
	const shown = 10
	for i, t := range s.Queue {
		if i == shown {
			fmt.Fprintf(&b, "…and %d more", len(s.Queue)-shown)
			break
		}
		fmt.Fprintf(&b, "%d. %s", i+1, t.DisplayName())
		if t.RequestedBy != "" {
			fmt.Fprintf(&b, " (requested by %s)", t.RequestedBy)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
