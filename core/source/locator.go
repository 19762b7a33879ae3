package source

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/kkdai/youtube/v2"
)

// Kind tells the stream pipeline which fetch stage can read a locator.
type Kind string

const (
	KindRemote Kind = "remote" // 由 yt-dlp 拉取
	KindObject Kind = "object" // 对象存储中的音频
)

// ObjectScheme is the URI scheme for tracks stored in the object store.
const ObjectScheme = "minio"

// Locator is an opaque identifier sufficient to fetch raw media bytes.
type Locator struct {
	URL  string `json:"url"`
	Kind Kind   `json:"kind"`
}

func (l Locator) String() string {
	return l.URL
}

// ObjectKey returns the object name of a minio:// locator.
func (l Locator) ObjectKey() string {
	u, err := url.Parse(l.URL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Host+u.Path, "/")
}

// WatchURL 由视频 ID 生成可直接拉取的链接
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

var hostingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://(?:www\.|m\.|music\.)?youtube\.com/(?:watch|shorts/|embed/|live/)`),
	regexp.MustCompile(`^https?://youtu\.be/[\w-]{6,}`),
	regexp.MustCompile(`^https?://(?:www\.|m\.)?soundcloud\.com/[^/\s]+/[^/\s]+`),
	regexp.MustCompile(`^https?://(?:www\.)?vimeo\.com/\d+`),
	regexp.MustCompile(`^https?://[\w-]+\.bandcamp\.com/track/`),
	regexp.MustCompile(`^https?://(?:www\.)?dailymotion\.com/video/`),
}

// DirectLocator reports whether uri is already a playable media link and
// returns it unchanged as a locator.
func DirectLocator(uri string) (Locator, bool) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return Locator{}, false
	}
	if strings.HasPrefix(uri, ObjectScheme+"://") {
		return Locator{URL: uri, Kind: KindObject}, true
	}
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		return Locator{}, false
	}
	for _, p := range hostingPatterns {
		if p.MatchString(uri) {
			return Locator{URL: uri, Kind: KindRemote}, true
		}
	}
	// ExtractVideoID also accepts bare 11-char IDs, so only URLs reach it.
	if id, err := youtube.ExtractVideoID(uri); err == nil && id != "" && strings.Contains(uri, "youtu") {
		return Locator{URL: uri, Kind: KindRemote}, true
	}
	return Locator{}, false
}
