package player

import (
	"context"
	"strings"

	"github.com/sonroyaalmerol/napstablook/internal/utils"
)

const (
	titleCap  = 30
	authorCap = 25
)

// Track is a resolved playable unit. Values are never mutated after resolution.
type Track struct {
	Title       string
	Author      string
	URI         string
	DurationMs  int64
	IsSeekable  bool
	IsStream    bool
	SourceName  string // youtube, soundcloud, spotify, http
	Thumbnail   string
	RequesterID string
}

// DisplayTitle is the title capped for status lines, with catalog " - Topic" noise removed.
func (t Track) DisplayTitle() string { return displayName(t.Title, titleCap) }

func (t Track) DisplayAuthor() string { return displayName(t.Author, authorCap) }

func (t Track) DisplayDuration() string {
	if t.IsStream {
		return "LIVE"
	}
	return utils.PrettyMillis(t.DurationMs)
}

func displayName(s string, max int) string {
	s = strings.TrimSuffix(utils.Truncate(s, max), " - Topic")
	if s == "" {
		return "Unknown"
	}
	return s
}

type LoadType int

const (
	LoadEmpty LoadType = iota
	LoadError
	LoadSingle
	LoadPlaylist
)

func (t LoadType) String() string {
	switch t {
	case LoadError:
		return "ERROR"
	case LoadSingle:
		return "SINGLE"
	case LoadPlaylist:
		return "PLAYLIST"
	}
	return "EMPTY"
}

type TrackResult struct {
	Type         LoadType
	Tracks       []Track
	PlaylistName string
	Exception    string
}

type SearchOptions struct {
	RequesterID string
	SourceHint  string
}

// TrackSource turns a query or URL into tracks.
type TrackSource interface {
	Search(ctx context.Context, query string, opts SearchOptions) (TrackResult, error)
}

type EndReason int

const (
	EndFinished EndReason = iota
	EndFailed
)

func (r EndReason) String() string {
	if r == EndFailed {
		return "failed"
	}
	return "finished"
}

// Backend opens voice links. Connect performs the voice handshake and may block.
type Backend interface {
	Connect(ctx context.Context, guildID, voiceChannelID string) (Link, error)
}

// Link is one guild's audio connection. Every method except Close returns
// without waiting on the network, so callers may hold their own locks.
//
// Play replaces whatever is playing. done fires at most once, and never for a
// play that was superseded by Play, Stop or Close. The paused flag belongs to
// the link and carries over to the next Play or Seek.
type Link interface {
	Play(t Track, startMs int64, volume int, done func(EndReason))
	Stop()
	Pause()
	Resume()
	Seek(ms int64)
	SetVolume(v int)
	Position() int64
	Close() error
}

// Presence answers questions about a member's current state in a guild.
// Answers must come from live gateway state, never from a per-command cache.
type Presence interface {
	VoiceChannel(guildID, userID string) string
	CanManageGuild(guildID, userID string) bool
}

// Persistent is the 24/7 mode binding of a guild.
type Persistent struct {
	Enabled        bool
	TextChannelID  string
	VoiceChannelID string
}

type GuildSettings struct {
	DefaultVolume int // negative means use the bot default
	Autoplay      bool
	Persistent    Persistent
}

type SettingsStore interface {
	GuildSettings(ctx context.Context, guildID string) (GuildSettings, error)
	SavePersistent(ctx context.Context, guildID string, p Persistent) error
	SaveAutoplay(ctx context.Context, guildID string, on bool) error
	SaveDefaultVolume(ctx context.Context, guildID string, volume int) error
	PersistentGuilds(ctx context.Context) (map[string]Persistent, error)
}
