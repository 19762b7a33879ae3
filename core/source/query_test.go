package source

import (
	"testing"

	"GuildFM/model"

	"github.com/stretchr/testify/assert"
)

func TestTrackFromQuery(t *testing.T) {
	tests := []struct {
		query string
		want  model.Track
	}{
		{
			query: "https://youtu.be/dQw4w9WgXcQ",
			want:  model.Track{Title: "https://youtu.be/dQw4w9WgXcQ", SourceURI: "https://youtu.be/dQw4w9WgXcQ", RequestedBy: "bob"},
		},
		{
			query: " Artist - SongX ",
			want:  model.Track{Artist: "Artist", Title: "SongX", SourceURI: "Artist - SongX", RequestedBy: "bob"},
		},
		{
			query: "just a title",
			want:  model.Track{Title: "just a title", SourceURI: "just a title", RequestedBy: "bob"},
		},
		{
			query: "trailing - ",
			want:  model.Track{Title: "trailing -", SourceURI: "trailing -", RequestedBy: "bob"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, TrackFromQuery(tt.query, "bob"))
		})
	}
}

