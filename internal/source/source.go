// Package source resolves user queries and links into playable tracks.
package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sonroyaalmerol/napstablook/internal/player"
	"github.com/sonroyaalmerol/napstablook/internal/spotify"
	"github.com/sonroyaalmerol/napstablook/internal/stream"
)

const (
	searchResults = 5
	playlistLimit = 200
	spotifyMarket = "US"
)

// Extractor is the yt-dlp surface the resolver needs.
type Extractor interface {
	Info(ctx context.Context, target string) (*stream.Info, error)
	List(ctx context.Context, target string) (*stream.Listing, error)
}

// Catalog is the Spotify surface the resolver needs.
type Catalog interface {
	GetTrack(ctx context.Context, id string) (spotify.Track, error)
	GetAlbum(ctx context.Context, id string, limit int) ([]spotify.Track, spotify.PlaylistMeta, error)
	GetPlaylist(ctx context.Context, id string, limit int) ([]spotify.Track, spotify.PlaylistMeta, error)
	GetArtistTop(ctx context.Context, id string, market string, limit int) ([]spotify.Track, spotify.PlaylistMeta, error)
}

type Resolver struct {
	ytdlp   Extractor
	spotify Catalog
}

// New builds a resolver. sp may be nil when Spotify is not configured.
func New(ytdlp Extractor, sp Catalog) *Resolver {
	return &Resolver{ytdlp: ytdlp, spotify: sp}
}

func (r *Resolver) Search(ctx context.Context, query string, opts player.SearchOptions) (player.TrackResult, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return player.TrackResult{Type: player.LoadEmpty}, nil
	}

	switch {
	case spotify.IsLink(q):
		return r.spotifyLink(ctx, q, opts.RequesterID)
	case isURL(q):
		return r.link(ctx, q, opts.RequesterID)
	}

	listing, err := r.ytdlp.List(ctx, searchTarget(q, opts.SourceHint))
	if err != nil {
		return player.TrackResult{}, err
	}
	res := player.TrackResult{Type: player.LoadSingle}
	for _, e := range listing.Entries {
		if len(res.Tracks) >= searchResults {
			break
		}
		res.Tracks = append(res.Tracks, fromInfo(e, opts.RequesterID))
	}
	if len(res.Tracks) == 0 {
		res.Type = player.LoadEmpty
	}
	return res, nil
}

// searchTarget picks the yt-dlp search for the configured source.
func searchTarget(q, hint string) string {
	switch hint {
	case "soundcloud":
		return fmt.Sprintf("scsearch%d:%s", searchResults, q)
	case "youtubemusic":
		return "https://music.youtube.com/search?q=" + url.QueryEscape(q)
	}
	return fmt.Sprintf("ytsearch%d:%s", searchResults, q)
}

func (r *Resolver) link(ctx context.Context, q, requester string) (player.TrackResult, error) {
	switch {
	case isPlaylistURL(q):
		listing, err := r.ytdlp.List(ctx, q)
		if err != nil {
			return player.TrackResult{}, err
		}
		res := player.TrackResult{Type: player.LoadPlaylist, PlaylistName: listing.Title}
		for _, e := range listing.Entries {
			if len(res.Tracks) >= playlistLimit {
				break
			}
			res.Tracks = append(res.Tracks, fromInfo(e, requester))
		}
		if len(res.Tracks) == 0 {
			res.Type = player.LoadEmpty
		}
		return res, nil

	case isYouTube(q) || isSoundCloud(q):
		info, err := r.ytdlp.Info(ctx, q)
		if err != nil {
			return player.TrackResult{}, err
		}
		return player.TrackResult{Type: player.LoadSingle, Tracks: []player.Track{fromInfo(info, requester)}}, nil
	}

	// anything else goes to ffmpeg as-is, typically a radio or HLS stream
	return player.TrackResult{Type: player.LoadSingle, Tracks: []player.Track{{
		Title:       q,
		Author:      hostOf(q),
		URI:         q,
		IsStream:    true,
		SourceName:  "http",
		RequesterID: requester,
	}}}, nil
}

func (r *Resolver) spotifyLink(ctx context.Context, q, requester string) (player.TrackResult, error) {
	if r.spotify == nil {
		return player.TrackResult{Type: player.LoadError, Exception: "spotify is not enabled"}, nil
	}
	kind, id, err := spotify.ParseID(q)
	if err != nil {
		return player.TrackResult{Type: player.LoadError, Exception: "invalid spotify link"}, nil
	}

	var (
		tracks []spotify.Track
		meta   spotify.PlaylistMeta
	)
	switch kind {
	case "track":
		t, err := r.spotify.GetTrack(ctx, id)
		if err != nil {
			return player.TrackResult{}, fmt.Errorf("spotify track: %w", err)
		}
		return player.TrackResult{Type: player.LoadSingle, Tracks: []player.Track{fromSpotify(t, requester)}}, nil
	case "album":
		tracks, meta, err = r.spotify.GetAlbum(ctx, id, playlistLimit)
	case "playlist":
		tracks, meta, err = r.spotify.GetPlaylist(ctx, id, playlistLimit)
	case "artist":
		tracks, meta, err = r.spotify.GetArtistTop(ctx, id, spotifyMarket, playlistLimit)
	default:
		return player.TrackResult{Type: player.LoadError, Exception: "unsupported spotify link"}, nil
	}
	if err != nil {
		return player.TrackResult{}, fmt.Errorf("spotify %s: %w", kind, err)
	}

	res := player.TrackResult{Type: player.LoadPlaylist, PlaylistName: meta.Title}
	for _, t := range tracks {
		res.Tracks = append(res.Tracks, fromSpotify(t, requester))
	}
	if len(res.Tracks) == 0 {
		res.Type = player.LoadEmpty
	}
	return res, nil
}

func fromInfo(info *stream.Info, requester string) player.Track {
	uri := info.WebpageURL
	if uri == "" {
		uri = info.URL
	}
	name := "http"
	switch {
	case isYouTube(uri):
		name = "youtube"
	case isSoundCloud(uri):
		name = "soundcloud"
	}
	live := info.IsLive
	return player.Track{
		Title:       info.Title,
		Author:      info.Uploader,
		URI:         uri,
		DurationMs:  int64(info.Duration * 1000),
		IsSeekable:  !live && info.Duration > 0,
		IsStream:    live,
		SourceName:  name,
		Thumbnail:   info.Thumbnail,
		RequesterID: requester,
	}
}

func fromSpotify(t spotify.Track, requester string) player.Track {
	return player.Track{
		Title:       t.Name,
		Author:      t.Artist,
		URI:         t.URL,
		DurationMs:  t.DurationMs,
		IsSeekable:  t.DurationMs > 0,
		SourceName:  "spotify",
		Thumbnail:   t.Image,
		RequesterID: requester,
	}
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func isYouTube(s string) bool {
	return strings.Contains(s, "youtube.com") || strings.Contains(s, "youtu.be")
}

func isSoundCloud(s string) bool {
	return strings.Contains(s, "soundcloud.com")
}

func isPlaylistURL(s string) bool {
	if isYouTube(s) {
		u, err := url.Parse(s)
		if err != nil {
			return false
		}
		// watch?v=..&list=.. plays the single video
		return u.Query().Get("list") != "" && u.Query().Get("v") == ""
	}
	return isSoundCloud(s) && strings.Contains(s, "/sets/")
}

func hostOf(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return s
	}
	return u.Host
}
