package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	ytdlp "github.com/lrstanley/go-ytdlp"

	"github.com/sonroyaalmerol/napstablook/internal/player"
)

// Info is the subset of yt-dlp's metadata the bot cares about.
type Info struct {
	ID         string
	Title      string
	Uploader   string
	Duration   float64 // seconds
	IsLive     bool
	WebpageURL string
	URL        string
	Thumbnail  string

	// MediaURLs are candidate direct media links, best first.
	MediaURLs []string
}

// Listing is a search result or playlist.
type Listing struct {
	Title   string
	Entries []*Info
}

var ErrNoMedia = errors.New("no usable media URL")

var installOnce sync.Once

// YTDLP wraps the yt-dlp binary.
type YTDLP struct {
	cookiesPath string
}

func NewYTDLP(cookiesPath string) *YTDLP {
	return &YTDLP{cookiesPath: cookiesPath}
}

func (y *YTDLP) install(ctx context.Context) {
	installOnce.Do(func() {
		if _, err := ytdlp.Install(ctx, nil); err != nil {
			slog.Warn("yt-dlp install failed, relying on PATH", "err", err)
		}
	})
}

func (y *YTDLP) command(target string) *ytdlp.Command {
	cmd := ytdlp.New().
		NoCheckCertificates().
		DumpJSON()
	if y.cookiesPath != "" {
		cmd = cmd.Cookies(y.cookiesPath)
	}
	if isYouTube(target) {
		cmd = cmd.ExtractorArgs("youtube:player-client=default,mweb")
	}
	return cmd
}

// Info fetches full metadata, including media URLs, for a single item.
func (y *YTDLP) Info(ctx context.Context, target string) (*Info, error) {
	y.install(ctx)

	res, err := y.command(target).
		Format("ba[acodec^=opus]/ba[ext=m4a]/bestaudio/best").
		NoPlaylist().
		Run(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp run: %w", err)
	}
	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("parse yt-dlp json: %w", err)
	}
	for _, ext := range infos {
		if ext == nil {
			continue
		}
		if len(ext.Entries) > 0 {
			for _, e := range ext.Entries {
				if e != nil {
					return convert(e), nil
				}
			}
			continue
		}
		return convert(ext), nil
	}
	return nil, fmt.Errorf("yt-dlp returned no info for %s", target)
}

// List resolves a search prefix (ytsearch5:...) or playlist URL without
// fetching media URLs for every entry.
func (y *YTDLP) List(ctx context.Context, target string) (*Listing, error) {
	y.install(ctx)

	res, err := y.command(target).
		FlatPlaylist().
		Run(ctx, target)
	if err != nil {
		if strings.Contains(err.Error(), "Sign in to confirm") {
			return nil, fmt.Errorf("yt-dlp listing blocked (cookies may be required): %w", err)
		}
		return nil, fmt.Errorf("yt-dlp listing %s: %w", target, err)
	}
	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("parse yt-dlp json: %w", err)
	}

	out := &Listing{}
	for _, ext := range infos {
		if ext == nil {
			continue
		}
		if len(ext.Entries) == 0 {
			out.Entries = append(out.Entries, convert(ext))
			continue
		}
		if out.Title == "" {
			out.Title = str(ext.Title)
		}
		for _, e := range ext.Entries {
			if e != nil {
				out.Entries = append(out.Entries, convert(e))
			}
		}
	}
	return out, nil
}

// MediaURL returns the best direct link for info, or its page URL so ffmpeg
// can still try it.
func MediaURL(info *Info) (string, error) {
	for _, u := range info.MediaURLs {
		if strings.HasPrefix(u, "http") {
			return u, nil
		}
	}
	if info.WebpageURL != "" && !isYouTube(info.WebpageURL) {
		return info.WebpageURL, nil
	}
	return "", ErrNoMedia
}

// MediaURL implements MediaResolver. Spotify tracks have no media of their
// own and are matched on YouTube by title and artist.
func (y *YTDLP) MediaURL(ctx context.Context, t player.Track) (string, error) {
	target := t.URI
	switch t.SourceName {
	case "http":
		return t.URI, nil
	case "spotify":
		target = fmt.Sprintf(`ytsearch1:"%s" "%s"`, t.Title, t.Author)
	}
	info, err := y.Info(ctx, target)
	if err != nil {
		return "", err
	}
	return MediaURL(info)
}

func convert(e *ytdlp.ExtractedInfo) *Info {
	info := &Info{
		ID:         e.ID,
		Title:      str(e.Title),
		Uploader:   str(e.Uploader),
		Duration:   num(e.Duration),
		IsLive:     flag(e.IsLive),
		WebpageURL: str(e.WebpageURL),
		URL:        str(e.URL),
	}
	if n := len(e.Thumbnails); n > 0 && e.Thumbnails[n-1] != nil {
		info.Thumbnail = e.Thumbnails[n-1].URL
	}
	for _, f := range e.RequestedFormats {
		if f != nil && f.URL != "" {
			info.MediaURLs = append(info.MediaURLs, f.URL)
		}
	}
	if info.URL != "" {
		info.MediaURLs = append(info.MediaURLs, info.URL)
	}
	for _, f := range e.Formats {
		if f != nil && f.URL != "" {
			info.MediaURLs = append(info.MediaURLs, f.URL)
		}
	}
	if info.WebpageURL == "" {
		info.WebpageURL = info.URL
	}
	return info
}

func isYouTube(u string) bool {
	return strings.Contains(u, "youtube.com") || strings.Contains(u, "youtu.be")
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func num(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func flag(p *bool) bool {
	if p == nil {
		return false
	}
	return *p
}
