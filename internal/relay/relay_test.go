package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractURL(t *testing.T) {
	cases := []struct {
		text string
		want string
		ok   bool
	}{
		{"https://example.com/clip.mp4", "https://example.com/clip.mp4", true},
		{"grab this https://example.com/clip.mp4 please", "https://example.com/clip.mp4", true},
		{"http://example.com/a", "http://example.com/a", true},
		{"example.com/clip.mp4", "", false},
		{"just some text", "", false},
		{"https://", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := ExtractURL(c.text)
		assert.Equal(t, c.ok, ok, c.text)
		assert.Equal(t, c.want, got, c.text)
	}
}

func TestIsOwnStatus(t *testing.T) {
	assert.True(t, IsOwnStatus("Uploading: clip.mp4..."))
	assert.True(t, IsOwnStatus("Downloading: 42%"))
	assert.True(t, IsOwnStatus("Invalid URL"))
	assert.False(t, IsOwnStatus("https://example.com/clip.mp4"))
	assert.False(t, IsOwnStatus("hello"))
}
