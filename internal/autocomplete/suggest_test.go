package autocomplete

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/napstablook/internal/spotify"
)

type fakeSpotify struct {
	hits []spotify.Suggestion
}

func (f fakeSpotify) Suggest(context.Context, string, int) ([]spotify.Suggestion, error) {
	return f.hits, nil
}

func suggestServer(t *testing.T, body string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "yt", r.URL.Query().Get("ds"))
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	old := suggestURL
	suggestURL = srv.URL
	t.Cleanup(func() { suggestURL = old })
}

func TestChoicesYouTubeOnly(t *testing.T) {
	suggestServer(t, `["lofi",["lofi hip hop","lofi girl","lofi beats"]]`)
	s := New(nil)

	got := s.Choices(context.Background(), "lofi", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "YouTube: lofi hip hop", got[0].Name)
	assert.Equal(t, "lofi hip hop", got[0].Value)
}

func TestChoicesMixSpotify(t *testing.T) {
	suggestServer(t, `["q",["a","b","c","d","e","f","g","h","i","j"]]`)
	s := New(fakeSpotify{hits: []spotify.Suggestion{
		{Label: "💿 Album - Band", Value: "spotify:album:1"},
		{Label: "🎵 Song - Band", Value: "spotify:track:2"},
	}})

	got := s.Choices(context.Background(), "q", 10)
	require.Len(t, got, 10)
	assert.Equal(t, "spotify:album:1", got[8].Value)
	assert.Equal(t, "Spotify: 🎵 Song - Band", got[9].Name)
}

func TestChoicesTruncated(t *testing.T) {
	long := strings.Repeat("x", 150)
	suggestServer(t, `["q",["`+long+`"]]`)
	got := New(nil).Choices(context.Background(), "q", 5)
	require.Len(t, got, 1)
	assert.LessOrEqual(t, len([]rune(got[0].Name)), choiceCap)
	assert.LessOrEqual(t, len(got[0].Value.(string)), choiceCap)
}

func TestChoicesEmptyQuery(t *testing.T) {
	assert.Nil(t, New(nil).Choices(context.Background(), "", 5))
}
