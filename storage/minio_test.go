package storage

import (
	"testing"

	"GuildFM/config"

	"github.com/stretchr/testify/assert"
)

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.0 KB", FormatSize(1024))
	assert.Equal(t, "1.5 MB", FormatSize(1536*1024))
	assert.Equal(t, "2.0 GB", FormatSize(2<<30))
}

func TestIsAudioKey(t *testing.T) {
	assert.True(t, IsAudioKey("library/song.opus"))
	assert.True(t, IsAudioKey("A/B.FLAC"))
	assert.False(t, IsAudioKey("covers/art.jpg"))
	assert.False(t, IsAudioKey("library/"))
}

func TestNewObjectStoreRejectsBadEndpoint(t *testing.T) {
	_, err := NewObjectStore(&config.Config{MinioEndpoint: "http://minio:9000", MinioBucket: "guildfm"})
	assert.Error(t, err, "endpoint must not carry a scheme")

	s, err := NewObjectStore(&config.Config{MinioEndpoint: "minio:9000", MinioBucket: "guildfm"})
	assert.NoError(t, err)
	assert.Equal(t, "guildfm", s.Bucket())
}
