package audio

import (
	"context"
	"io"
	"os/exec"

	"GuildFM/core/source"
)

// PCM format produced by every stream: signed 16-bit little-endian, 48 kHz, stereo.
const (
	SampleRate = 48000
	Channels   = 2
	FrameSize  = 960                      // samples per channel in a 20ms frame
	FrameBytes = FrameSize * Channels * 2 // 3840
)

// FetchStage is the running first half of a pipeline: raw encoded media bytes.
type FetchStage struct {
	Output io.ReadCloser
	// Wait blocks until the underlying process exits. Nil for in-process readers.
	Wait func() error

	cmd *exec.Cmd
}

// Fetcher starts a fetch stage for a locator. Stages must stop when ctx is cancelled.
type Fetcher interface {
	Fetch(ctx context.Context, loc source.Locator) (*FetchStage, error)
}

// Opener opens a ByteStream for a locator; implemented by *Pipeline.
type Opener interface {
	Open(ctx context.Context, loc source.Locator) (ByteStream, error)
}

// ByteStream is a readable PCM stream. Err delivers at most one *StreamError.
type ByteStream interface {
	io.ReadCloser
	Err() <-chan error
}
