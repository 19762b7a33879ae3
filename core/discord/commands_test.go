package discord

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"GuildFM/core/voice"
	"GuildFM/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlayback struct {
	mu      sync.Mutex
	queue   []model.Track
	plays   chan string
	skipped bool
	stopped []string
}

func newFakePlayback() *fakePlayback {
	return &fakePlayback{plays: make(chan string, 8)}
}

func (f *fakePlayback) Enqueue(_ string, tracks ...model.Track) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, tracks...)
	return len(f.queue)
}
func (f *fakePlayback) Play(guildID string) { f.plays <- guildID }
func (f *fakePlayback) Skip(string) bool    { return f.skipped }
func (f *fakePlayback) Stop(guildID string) { f.stopped = append(f.stopped, guildID) }
func (f *fakePlayback) Snapshot(guildID string) model.QueueSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.QueueSnapshot{GuildID: guildID, Queue: append([]model.Track{}, f.queue...)}
}

type fakeVoice struct {
	joined  []string
	left    []string
	joinErr error
}

func (f *fakeVoice) Join(_ context.Context, _, channelID string) (voice.Connection, error) {
	f.joined = append(f.joined, channelID)
	return nil, f.joinErr
}
func (f *fakeVoice) Leave(guildID string) { f.left = append(f.left, guildID) }

func locateIn(channelID string) func(string, string) (string, error) {
	return func(string, string) (string, error) {
		if channelID == "" {
			return "", errNoVoiceChannel
		}
		return channelID, nil
	}
}

func msg(content string) Message {
	return Message{GuildID: "G", AuthorID: "u1", Author: "alice", Content: content}
}

func TestDispatchPlay(t *testing.T) {
	pb, v := newFakePlayback(), &fakeVoice{}
	c := NewCommands("!", pb, v, locateIn("vc1"))

	reply, ok := c.Dispatch(context.Background(), msg("!play Artist - SongX"))
	require.True(t, ok)
	assert.Contains(t, reply, "Artist - SongX")
	assert.Contains(t, reply, "position 1")
	assert.Equal(t, []string{"vc1"}, v.joined)

	select {
	case g := <-pb.plays:
		assert.Equal(t, "G", g)
	case <-time.After(time.Second):
		t.Fatal("play was not triggered")
	}
	require.Len(t, pb.queue, 1)
	assert.Equal(t, model.Track{Artist: "Artist", Title: "SongX", SourceURI: "Artist - SongX", RequestedBy: "alice"}, pb.queue[0])
}

func TestDispatchPlayErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		channel string
		joinErr error
		want    string
	}{
		{"missing query", "!play", "vc1", nil, "Usage"},
		{"not in voice", "!play song", "", nil, "must be in a voice channel"},
		{"join fails", "!play song", "vc1", &voice.ConnectionError{Err: errors.New("timeout")}, "Could not join"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb := newFakePlayback()
			c := NewCommands("!", pb, &fakeVoice{joinErr: tt.joinErr}, locateIn(tt.channel))

			reply, ok := c.Dispatch(context.Background(), msg(tt.content))
			require.True(t, ok)
			assert.Contains(t, reply, tt.want)
			assert.Empty(t, pb.queue)
		})
	}
}

func TestDispatchOtherCommands(t *testing.T) {
	pb, v := newFakePlayback(), &fakeVoice{}
	c := NewCommands("!", pb, v, locateIn("vc1"))

	reply, _ := c.Dispatch(context.Background(), msg("!skip"))
	assert.Equal(t, "Nothing is playing.", reply)
	pb.skipped = true
	reply, _ = c.Dispatch(context.Background(), msg("!SKIP"))
	assert.Contains(t, reply, "Skipped")

	_, ok := c.Dispatch(context.Background(), msg("!stop"))
	assert.True(t, ok)
	assert.Equal(t, []string{"G"}, pb.stopped)

	_, ok = c.Dispatch(context.Background(), msg("!leave"))
	assert.True(t, ok)
	assert.Equal(t, []string{"G"}, v.left)

	for _, content := range []string{"hello", "!", "!unknown", "?play x"} {
		_, ok := c.Dispatch(context.Background(), msg(content))
		assert.False(t, ok, content)
	}
	_, ok = c.Dispatch(context.Background(), Message{Content: "!skip"})
	assert.False(t, ok, "direct messages are ignored")
}

func TestFormatQueue(t *testing.T) {
	cur := model.Track{Artist: "A", Title: "Now"}
	snap := model.QueueSnapshot{
		CurrentTrack: &cur,
		Queue:        []model.Track{{Artist: "B", Title: "Next", RequestedBy: "alice"}},
	}
	assert.Equal(t, "▶️ Now playing: **A - Now**\n1. B - Next (requested by alice)", formatQueue(snap))
	assert.Equal(t, "Nothing is playing.\nThe queue is empty.", formatQueue(model.QueueSnapshot{}))
}
