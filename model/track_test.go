package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackQueryAndDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		track   Track
		query   string
		display string
	}{
		{"artist and title", Track{Artist: "Artist", Title: "SongX"}, "Artist SongX", "Artist - SongX"},
		{"title only", Track{Title: "SongX"}, "SongX", "SongX"},
		{"url only", Track{SourceURI: "https://youtu.be/abc"}, "", "https://youtu.be/abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.query, tt.track.Query())
			assert.Equal(t, tt.display, tt.track.DisplayName())
		})
	}
}

func TestTrackJSONFields(t *testing.T) {
	data, err := json.Marshal(Track{Title: "SongX", Artist: "Artist", DurationMs: 1000, SourceURI: "Artist - SongX", RequestedBy: "bob"})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"title":"SongX","artist":"Artist","durationMs":1000,"sourceUri":"Artist - SongX","requestedBy":"bob"}`, string(data))
}
