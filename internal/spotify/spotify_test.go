package spotify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	cases := []struct {
		in, kind, id string
	}{
		{"spotify:track:4uLU6hMCjMI75M1A2tKUQC", "track", "4uLU6hMCjMI75M1A2tKUQC"},
		{"https://open.spotify.com/album/1DFixLWuPkv3KT3TnV35m3?si=abc", "album", "1DFixLWuPkv3KT3TnV35m3"},
		{"https://open.spotify.com/intl-de/playlist/37i9dQZF1DXcBWIGoYBM5M", "playlist", "37i9dQZF1DXcBWIGoYBM5M"},
		{"https://open.spotify.com/artist/0OdUWJ0sBjDrqHygGUXeCF", "artist", "0OdUWJ0sBjDrqHygGUXeCF"},
	}
	for _, c := range cases {
		kind, id, err := ParseID(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.kind, kind, c.in)
		assert.Equal(t, c.id, id, c.in)
	}

	for _, bad := range []string{
		"spotify:track",
		"https://example.com/track/abc",
		"https://open.spotify.com/episode/abc",
		"https://open.spotify.com/track/",
	} {
		_, _, err := ParseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestIsLink(t *testing.T) {
	assert.True(t, IsLink("spotify:album:x"))
	assert.True(t, IsLink("https://open.spotify.com/track/x"))
	assert.False(t, IsLink("https://www.youtube.com/watch?v=x"))
	assert.False(t, IsLink("never gonna give you up"))
}
