// Package voice defines the transport boundary used by the playback core and
// manages the connection lifecycle of each guild.
package voice

import (
	"context"
	"fmt"
	"io"
)

// Gateway joins voice channels.
type Gateway interface {
	Join(ctx context.Context, guildID, channelID string) (Connection, error)
}

// Connection is an established voice connection for one guild.
type Connection interface {
	ChannelID() string
	// Player returns the audio player bound to this connection.
	Player() Player
	// OnDisconnect registers fn to run when the transport drops without Disconnect being called.
	OnDisconnect(fn func())
	Disconnect() error
}

// Player sends a PCM stream to the channel. Play blocks until the stream
// ends, fails, or ctx is cancelled. Cancellation is not an error.
type Player interface {
	Play(ctx context.Context, pcm io.Reader) error
}

// ConnectionError is a voice join or transport failure.
type ConnectionError struct {
	GuildID   string
	ChannelID string
	Err       error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("voice connection guild=%s channel=%s: %v", e.GuildID, e.ChannelID, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
