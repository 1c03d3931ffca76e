package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/napstablook/internal/player"
)

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "🔘▬▬▬▬", ProgressBar(5, 0))
	assert.Equal(t, "▬▬🔘▬▬", ProgressBar(5, 0.5))
	assert.Equal(t, "▬▬▬▬🔘", ProgressBar(5, 1.7))
	assert.Equal(t, "", ProgressBar(0, 0.5))
}

func TestNowPlayingEmbed(t *testing.T) {
	var queue []player.Track
	for i := 0; i < 7; i++ {
		queue = append(queue, player.Track{Title: "next", Author: "band", DurationMs: 60_000})
	}
	snap := player.Snapshot{
		Current: &player.Track{
			Title: "Song", Author: "Artist - Topic", URI: "https://youtu.be/x",
			DurationMs: 200_000, RequesterID: "42", SourceName: "youtube", Thumbnail: "https://img",
		},
		Queue:      queue,
		PositionMs: 100_000,
		Volume:     40,
		Autoplay:   true,
	}

	e := NowPlayingEmbed(snap)
	assert.Equal(t, "Now Playing", e.Title)
	assert.Contains(t, e.Description, "[Song - Artist](https://youtu.be/x)")
	assert.Contains(t, e.Description, "<@42>")
	assert.Contains(t, e.Description, "`[ 1:40/3:20 ]`")
	assert.Contains(t, e.Description, "40%")
	assert.Contains(t, e.Description, "…and 2 songs more")
	require.Len(t, e.Fields, 3)
	assert.Equal(t, "7 songs", e.Fields[0].Value)
	assert.Equal(t, "7:00", e.Fields[1].Value)
	assert.Equal(t, "autoplay", e.Fields[2].Value)
	require.NotNil(t, e.Thumbnail)

	snap.Paused = true
	snap.Current.IsStream = true
	e = NowPlayingEmbed(snap)
	assert.Equal(t, "Paused", e.Title)
	assert.Contains(t, e.Description, "`[ live ]`")
}

func TestNowPlayingEmbedIdle(t *testing.T) {
	e := NowPlayingEmbed(player.Snapshot{})
	assert.Equal(t, "Nothing Playing", e.Title)
}
