package discord

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"GuildFM/core/audio"

	"github.com/bwmarrin/discordgo"
	"layeh.com/gopus"
)

// opusPlayer encodes 20ms PCM frames to Opus and sends them on the voice connection.
type opusPlayer struct {
	vc      *discordgo.VoiceConnection
	bitrate int
}

func (p *opusPlayer) Play(ctx context.Context, pcm io.Reader) error {
	enc, err := gopus.NewEncoder(audio.SampleRate, audio.Channels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("create opus encoder: %w", err)
	}
	if p.bitrate > 0 {
		enc.SetBitrate(p.bitrate)
	}

	if err := p.vc.Speaking(true); err != nil {
		return fmt.Errorf("set speaking: %w", err)
	}
	defer p.vc.Speaking(false)

	frame := make([]byte, audio.FrameBytes)
	samples := make([]int16, audio.FrameBytes/2)
	for {
		if ctx.Err() != nil {
			return nil
		}

		if _, err := io.ReadFull(pcm, frame); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		for i := range samples {
			samples[i] = int16(binary.LittleEndian.Uint16(frame[i*2:]))
		}

		packet, err := enc.Encode(samples, audio.FrameSize, len(frame))
		if err != nil {
			return fmt.Errorf("opus encode: %w", err)
		}

		select {
		case p.vc.OpusSend <- packet:
		case <-ctx.Done():
			return nil
		}
	}
}
