package audio

import (
	"context"
	"os/exec"

	"GuildFM/core/utils"
)

// Transcoder describes the process that turns fetched media into PCM.
// It reads stdin and writes stdout.
type Transcoder struct {
	Path string
	Args []string
}

// NewFFmpegTranscoder returns an ffmpeg transcoder producing s16le/48k/stereo.
func NewFFmpegTranscoder(ffmpegPath string) Transcoder {
	return Transcoder{
		Path: ffmpegPath,
		Args: []string{
			"-hide_banner",
			"-loglevel", "error",
			"-i", "pipe:0",
			"-f", "s16le",
			"-ar", "48000",
			"-ac", "2",
			"pipe:1",
		},
	}
}

func (t Transcoder) command(ctx context.Context) *exec.Cmd {
	return utils.NewCommand(exec.CommandContext(ctx, t.Path, t.Args...))
}
