package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// Track is catalog metadata only; audio comes from a YouTube match at play time.
type Track struct {
	ID         string
	Name       string
	Artist     string
	DurationMs int64
	URL        string
	Image      string
}

type PlaylistMeta struct {
	Title  string
	Source string
}

type Client struct {
	raw *spotify.Client
}

func NewClientCredentials(clientID, clientSecret string) *Client {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	httpClient := cfg.Client(context.Background())
	return &Client{raw: spotify.New(httpClient, spotify.WithRetry(true))}
}

// IsLink reports whether s looks like a Spotify URL or URI.
func IsLink(s string) bool {
	return strings.HasPrefix(s, "spotify:") || strings.Contains(s, "open.spotify.com")
}

// ParseID splits a Spotify URL or URI into its kind (album, playlist, track,
// artist) and ID.
func ParseID(raw string) (kind string, id string, err error) {
	if strings.HasPrefix(raw, "spotify:") {
		parts := strings.Split(raw, ":")
		if len(parts) == 3 && parts[2] != "" {
			return parts[1], parts[2], nil
		}
		return "", "", fmt.Errorf("invalid spotify URI")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Host != "open.spotify.com" && u.Host != "www.open.spotify.com" {
		return "", "", fmt.Errorf("not a spotify URL")
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// localized links look like /intl-de/track/<id>
	if len(parts) > 0 && strings.HasPrefix(parts[0], "intl-") {
		parts = parts[1:]
	}
	if len(parts) < 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid spotify URL path")
	}
	switch parts[0] {
	case "album", "playlist", "track", "artist":
		return parts[0], parts[1], nil
	}
	return "", "", fmt.Errorf("unsupported spotify type: %s", parts[0])
}

func fromSimple(t spotify.SimpleTrack, image string) Track {
	artist := ""
	if len(t.Artists) > 0 {
		artist = t.Artists[0].Name
	}
	return Track{
		ID:         t.ID.String(),
		Name:       t.Name,
		Artist:     artist,
		DurationMs: int64(t.Duration),
		URL:        "https://open.spotify.com/track/" + t.ID.String(),
		Image:      image,
	}
}

func fromFull(t *spotify.FullTrack) Track {
	image := ""
	if len(t.Album.Images) > 0 {
		image = t.Album.Images[0].URL
	}
	return fromSimple(t.SimpleTrack, image)
}

func (c *Client) GetAlbum(ctx context.Context, id string, limit int) ([]Track, PlaylistMeta, error) {
	alb, err := c.raw.GetAlbum(ctx, spotify.ID(id))
	if err != nil {
		return nil, PlaylistMeta{}, err
	}
	image := ""
	if len(alb.Images) > 0 {
		image = alb.Images[0].URL
	}
	page, err := c.raw.GetAlbumTracks(ctx, spotify.ID(id))
	if err != nil {
		return nil, PlaylistMeta{}, err
	}
	out := make([]Track, 0, page.Total)
	add := func(items []spotify.SimpleTrack) {
		for _, t := range items {
			if limit > 0 && len(out) >= limit {
				return
			}
			out = append(out, fromSimple(t, image))
		}
	}
	add(page.Tracks)
	for page.Next != "" && (limit == 0 || len(out) < limit) {
		if err := c.raw.NextPage(ctx, page); err != nil {
			break
		}
		add(page.Tracks)
	}
	return out, PlaylistMeta{Title: alb.Name, Source: alb.ExternalURLs["spotify"]}, nil
}

func (c *Client) GetPlaylist(ctx context.Context, id string, limit int) ([]Track, PlaylistMeta, error) {
	pl, err := c.raw.GetPlaylist(ctx, spotify.ID(id))
	if err != nil {
		return nil, PlaylistMeta{}, err
	}
	page, err := c.raw.GetPlaylistItems(ctx, spotify.ID(id))
	if err != nil {
		return nil, PlaylistMeta{}, err
	}
	out := make([]Track, 0, page.Total)
	add := func(items []spotify.PlaylistItem) {
		for _, it := range items {
			if limit > 0 && len(out) >= limit {
				return
			}
			if it.Track.Track != nil {
				out = append(out, fromFull(it.Track.Track))
			}
		}
	}
	add(page.Items)
	for page.Next != "" && (limit == 0 || len(out) < limit) {
		if err := c.raw.NextPage(ctx, page); err != nil {
			break
		}
		add(page.Items)
	}
	return out, PlaylistMeta{Title: pl.Name, Source: pl.ExternalURLs["spotify"]}, nil
}

func (c *Client) GetTrack(ctx context.Context, id string) (Track, error) {
	t, err := c.raw.GetTrack(ctx, spotify.ID(id))
	if err != nil {
		return Track{}, err
	}
	return fromFull(t), nil
}

// GetArtistTop returns an artist's top tracks in market, named after the artist.
func (c *Client) GetArtistTop(ctx context.Context, id string, market string, limit int) ([]Track, PlaylistMeta, error) {
	artist, err := c.raw.GetArtist(ctx, spotify.ID(id))
	if err != nil {
		return nil, PlaylistMeta{}, err
	}
	full, err := c.raw.GetArtistsTopTracks(ctx, spotify.ID(id), market)
	if err != nil {
		return nil, PlaylistMeta{}, err
	}
	out := make([]Track, 0, len(full))
	for i := range full {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, fromFull(&full[i]))
	}
	return out, PlaylistMeta{Title: artist.Name, Source: artist.ExternalURLs["spotify"]}, nil
}

// Suggestion is one autocomplete hit; Value is a spotify: URI.
type Suggestion struct {
	Label string
	Value string
}

func (c *Client) Suggest(ctx context.Context, query string, limit int) ([]Suggestion, error) {
	if limit <= 0 {
		limit = 10
	}
	res, err := c.raw.Search(ctx, query, spotify.SearchTypeAlbum|spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, err
	}
	var out []Suggestion
	if res.Albums != nil {
		for _, a := range res.Albums.Albums {
			if len(out) >= limit {
				break
			}
			label := "💿 " + a.Name
			if len(a.Artists) > 0 {
				label += " - " + a.Artists[0].Name
			}
			out = append(out, Suggestion{Label: label, Value: "spotify:album:" + a.ID.String()})
		}
	}
	if res.Tracks != nil {
		for _, t := range res.Tracks.Tracks {
			if len(out) >= 2*limit {
				break
			}
			label := "🎵 " + t.Name
			if len(t.Artists) > 0 {
				label += " - " + t.Artists[0].Name
			}
			out = append(out, Suggestion{Label: label, Value: "spotify:track:" + t.ID.String()})
		}
	}
	return out, nil
}
