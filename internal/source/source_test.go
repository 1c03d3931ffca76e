package source

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/napstablook/internal/player"
	"github.com/sonroyaalmerol/napstablook/internal/spotify"
	"github.com/sonroyaalmerol/napstablook/internal/stream"
)

type fakeExtractor struct {
	infos    map[string]*stream.Info
	listings map[string]*stream.Listing
	err      error
	targets  []string
}

func (f *fakeExtractor) Info(_ context.Context, target string) (*stream.Info, error) {
	f.targets = append(f.targets, target)
	if f.err != nil {
		return nil, f.err
	}
	if info, ok := f.infos[target]; ok {
		return info, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeExtractor) List(_ context.Context, target string) (*stream.Listing, error) {
	f.targets = append(f.targets, target)
	if f.err != nil {
		return nil, f.err
	}
	if l, ok := f.listings[target]; ok {
		return l, nil
	}
	return &stream.Listing{}, nil
}

type fakeCatalog struct {
	tracks []spotify.Track
	meta   spotify.PlaylistMeta
	calls  []string
}

func (f *fakeCatalog) GetTrack(_ context.Context, id string) (spotify.Track, error) {
	f.calls = append(f.calls, "track:"+id)
	return f.tracks[0], nil
}

func (f *fakeCatalog) GetAlbum(_ context.Context, id string, _ int) ([]spotify.Track, spotify.PlaylistMeta, error) {
	f.calls = append(f.calls, "album:"+id)
	return f.tracks, f.meta, nil
}

func (f *fakeCatalog) GetPlaylist(_ context.Context, id string, _ int) ([]spotify.Track, spotify.PlaylistMeta, error) {
	f.calls = append(f.calls, "playlist:"+id)
	return f.tracks, f.meta, nil
}

func (f *fakeCatalog) GetArtistTop(_ context.Context, id string, market string, _ int) ([]spotify.Track, spotify.PlaylistMeta, error) {
	f.calls = append(f.calls, "artist:"+id+":"+market)
	return f.tracks, f.meta, nil
}

func video(id, title string, secs float64) *stream.Info {
	return &stream.Info{
		ID:         id,
		Title:      title,
		Uploader:   "Artist - Topic",
		Duration:   secs,
		WebpageURL: "https://www.youtube.com/watch?v=" + id,
	}
}

func TestSearchReturnsCandidates(t *testing.T) {
	ex := &fakeExtractor{listings: map[string]*stream.Listing{}}
	var entries []*stream.Info
	for i := 0; i < 8; i++ {
		entries = append(entries, video(fmt.Sprintf("id%d", i), fmt.Sprintf("song %d", i), 200))
	}
	ex.listings["ytsearch5:lofi beats"] = &stream.Listing{Entries: entries}
	r := New(ex, nil)

	res, err := r.Search(context.Background(), "  lofi beats ", player.SearchOptions{RequesterID: "u1", SourceHint: "youtube"})
	require.NoError(t, err)
	assert.Equal(t, player.LoadSingle, res.Type)
	require.Len(t, res.Tracks, searchResults)

	first := res.Tracks[0]
	assert.Equal(t, "song 0", first.Title)
	assert.Equal(t, "https://www.youtube.com/watch?v=id0", first.URI)
	assert.Equal(t, int64(200_000), first.DurationMs)
	assert.True(t, first.IsSeekable)
	assert.Equal(t, "youtube", first.SourceName)
	assert.Equal(t, "u1", first.RequesterID)
}

func TestSearchTargets(t *testing.T) {
	assert.Equal(t, "scsearch5:foo", searchTarget("foo", "soundcloud"))
	assert.Equal(t, "https://music.youtube.com/search?q=foo+bar", searchTarget("foo bar", "youtubemusic"))
	assert.Equal(t, "ytsearch5:foo", searchTarget("foo", ""))
}

func TestSearchEmpty(t *testing.T) {
	r := New(&fakeExtractor{}, nil)
	res, err := r.Search(context.Background(), "nothing here", player.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, player.LoadEmpty, res.Type)
}

func TestSearchError(t *testing.T) {
	r := New(&fakeExtractor{err: errors.New("yt-dlp exploded")}, nil)
	_, err := r.Search(context.Background(), "x", player.SearchOptions{})
	assert.ErrorContains(t, err, "yt-dlp exploded")
}

func TestYouTubeLinks(t *testing.T) {
	single := "https://www.youtube.com/watch?v=abc&list=PL1"
	pl := "https://www.youtube.com/playlist?list=PL1"
	ex := &fakeExtractor{
		infos:    map[string]*stream.Info{single: video("abc", "one", 60)},
		listings: map[string]*stream.Listing{pl: {Title: "Mix", Entries: []*stream.Info{video("a", "A", 10), video("b", "B", 20)}}},
	}
	r := New(ex, nil)

	res, err := r.Search(context.Background(), single, player.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, player.LoadSingle, res.Type)
	assert.Equal(t, "one", res.Tracks[0].Title)

	res, err = r.Search(context.Background(), pl, player.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, player.LoadPlaylist, res.Type)
	assert.Equal(t, "Mix", res.PlaylistName)
	assert.Len(t, res.Tracks, 2)
}

func TestLiveVideoIsStream(t *testing.T) {
	u := "https://www.youtube.com/watch?v=live1"
	info := video("live1", "24/7 radio", 0)
	info.IsLive = true
	r := New(&fakeExtractor{infos: map[string]*stream.Info{u: info}}, nil)

	res, err := r.Search(context.Background(), u, player.SearchOptions{})
	require.NoError(t, err)
	assert.True(t, res.Tracks[0].IsStream)
	assert.False(t, res.Tracks[0].IsSeekable)
}

func TestDirectURL(t *testing.T) {
	ex := &fakeExtractor{}
	r := New(ex, nil)
	res, err := r.Search(context.Background(), "https://radio.example/live.mp3", player.SearchOptions{RequesterID: "u"})
	require.NoError(t, err)
	require.Len(t, res.Tracks, 1)
	tr := res.Tracks[0]
	assert.Equal(t, "http", tr.SourceName)
	assert.Equal(t, "radio.example", tr.Author)
	assert.True(t, tr.IsStream)
	assert.Empty(t, ex.targets, "direct links are not sent to yt-dlp")
}

func TestSpotifyDisabled(t *testing.T) {
	r := New(&fakeExtractor{}, nil)
	res, err := r.Search(context.Background(), "spotify:track:abc", player.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, player.LoadError, res.Type)
	assert.Equal(t, "spotify is not enabled", res.Exception)
}

func TestSpotifyLinks(t *testing.T) {
	cat := &fakeCatalog{
		tracks: []spotify.Track{
			{ID: "t1", Name: "Song", Artist: "Band", DurationMs: 180_000, URL: "https://open.spotify.com/track/t1"},
			{ID: "t2", Name: "Other", Artist: "Band", DurationMs: 200_000, URL: "https://open.spotify.com/track/t2"},
		},
		meta: spotify.PlaylistMeta{Title: "Best of Band"},
	}
	r := New(&fakeExtractor{}, cat)

	res, err := r.Search(context.Background(), "https://open.spotify.com/track/t1", player.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, player.LoadSingle, res.Type)
	assert.Equal(t, "spotify", res.Tracks[0].SourceName)
	assert.Equal(t, "Band", res.Tracks[0].Author)

	res, err = r.Search(context.Background(), "spotify:album:al1", player.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, player.LoadPlaylist, res.Type)
	assert.Equal(t, "Best of Band", res.PlaylistName)
	assert.Len(t, res.Tracks, 2)

	_, err = r.Search(context.Background(), "https://open.spotify.com/artist/ar1", player.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"track:t1", "album:al1", "artist:ar1:US"}, cat.calls)
}
