package source

import (
	"strings"

	"GuildFM/model"
)

// TrackFromQuery builds a track from user input: a direct link, "artist - title", or free text.
func TrackFromQuery(query, requestedBy string) model.Track {
	query = strings.TrimSpace(query)
	t := model.Track{SourceURI: query, RequestedBy: requestedBy}
	if _, ok := DirectLocator(query); ok {
		t.Title = query
		return t
	}
	if artist, title, ok := strings.Cut(query, " - "); ok && strings.TrimSpace(title) != "" {
		t.Artist = strings.TrimSpace(artist)
		t.Title = strings.TrimSpace(title)
		return t
	}
	t.Title = query
	return t
}
