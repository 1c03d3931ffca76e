package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sonroyaalmerol/napstablook/internal/utils"
)

// Request identifies who is asking and from where.
type Request struct {
	GuildID       string
	UserID        string
	TextChannelID string
}

type Options struct {
	DefaultVolume  int
	SearchSource   string
	ResolveTimeout time.Duration
}

// Gateway is the single entry point for playback commands, from slash
// commands and assistant tool calls alike.
type Gateway struct {
	registry *Registry
	source   TrackSource
	presence Presence
	settings SettingsStore
	opts     Options
}

func NewGateway(reg *Registry, source TrackSource, presence Presence, settings SettingsStore, opts Options) *Gateway {
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = 15 * time.Second
	}
	return &Gateway{
		registry: reg,
		source:   source,
		presence: presence,
		settings: settings,
		opts:     opts,
	}
}

func (g *Gateway) Registry() *Registry { return g.registry }

// Authorize checks the actor against a guild's session. needsVoice requires
// the actor to be in some voice channel; an existing session further requires
// it to be the bound one.
func (g *Gateway) Authorize(s *Session, actorVoiceChannelID string, needsVoice bool) error {
	if needsVoice && actorVoiceChannelID == "" {
		return ErrNotInVoice
	}
	if s == nil {
		return nil
	}
	if actorVoiceChannelID != s.VoiceChannelID() {
		return ErrWrongChannel
	}
	return nil
}

// Play resolves query and queues the result, joining the actor's channel if
// the guild has no session yet.
func (g *Gateway) Play(ctx context.Context, req Request, query string) Result {
	query = strings.TrimSpace(query)
	if query == "" {
		return Fail(ErrQueryRequired)
	}

	voice := g.presence.VoiceChannel(req.GuildID, req.UserID)
	if err := g.Authorize(g.registry.Get(req.GuildID), voice, true); err != nil {
		return g.deny(req, "play", err)
	}

	rctx, cancel := context.WithTimeout(ctx, g.opts.ResolveTimeout)
	res, err := g.source.Search(rctx, query, SearchOptions{RequesterID: req.UserID, SourceHint: g.opts.SearchSource})
	cancel()
	if err != nil {
		slog.Warn("track resolution failed", "guildID", req.GuildID, "query", query, "err", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return Failf("error playing track: resolution timed out")
		}
		return Failf("error playing track: %s", err.Error())
	}
	switch {
	case res.Type == LoadError:
		slog.Warn("track resolution returned error", "guildID", req.GuildID, "query", query, "exception", res.Exception)
		return Failf("error playing track: %s", res.Exception)
	case res.Type == LoadEmpty || len(res.Tracks) == 0:
		return Failf("%s for `%s`", ErrNoResults.Error(), utils.EscapeMd(query))
	}

	// a search yields candidates; only the best one is queued
	tracks := res.Tracks
	if res.Type != LoadPlaylist {
		tracks = tracks[:1]
	}

	// presence may have changed during resolution
	voice = g.presence.VoiceChannel(req.GuildID, req.UserID)
	if voice == "" {
		return g.deny(req, "play", ErrNotInVoice)
	}

	for attempt := 0; attempt < 2; attempt++ {
		s, err := g.acquire(ctx, req.GuildID, Binding{VoiceChannelID: voice, TextChannelID: req.TextChannelID})
		if err != nil {
			return Failf("error playing track: %s", err.Error())
		}
		if err := g.Authorize(s, voice, true); err != nil {
			s.release()
			return g.deny(req, "play", err)
		}
		started, err := s.Enqueue(tracks)
		s.release()
		if errors.Is(err, ErrSessionClosed) {
			continue
		}
		return playResult(query, res, started)
	}
	return Failf("error playing track: %s", ErrSessionClosed.Error())
}

func playResult(query string, res TrackResult, started bool) Result {
	if res.Type == LoadPlaylist {
		name := res.PlaylistName
		if name == "" {
			name = "playlist"
		}
		msg := fmt.Sprintf("Added **[%s](%s)** - `%d` songs to the queue.", utils.EscapeMd(name), query, len(res.Tracks))
		return OK(msg, PlayData{PlaylistName: name, TrackCount: len(res.Tracks), Started: started})
	}
	t := res.Tracks[0]
	msg := fmt.Sprintf("Added **[%s - %s](%s)** - `%s`.",
		utils.EscapeMd(t.DisplayTitle()), utils.EscapeMd(t.DisplayAuthor()), t.URI, t.DisplayDuration())
	return OK(msg, PlayData{TrackCount: 1, Title: t.Title, Duration: t.DisplayDuration(), Started: started})
}

// acquire returns a connected, held session for the guild.
func (g *Gateway) acquire(ctx context.Context, guildID string, b Binding) (*Session, error) {
	opts := g.sessionOptions(ctx, guildID)
	for attempt := 0; attempt < 2; attempt++ {
		s, created := g.registry.GetOrCreate(guildID, b, opts)
		if !s.hold() {
			continue
		}
		if err := s.Connect(ctx); err != nil {
			s.release()
			if created || errors.Is(err, ErrSessionClosed) {
				s.Stop()
			}
			if errors.Is(err, ErrSessionClosed) {
				continue
			}
			return nil, err
		}
		return s, nil
	}
	return nil, ErrSessionClosed
}

func (g *Gateway) sessionOptions(ctx context.Context, guildID string) SessionOptions {
	opts := SessionOptions{Volume: g.opts.DefaultVolume, Continuation: g.continuation}
	set, err := g.settings.GuildSettings(ctx, guildID)
	if err != nil {
		slog.Warn("failed to load guild settings", "guildID", guildID, "err", err)
		return opts
	}
	if set.DefaultVolume >= 0 && set.DefaultVolume <= 100 {
		opts.Volume = set.DefaultVolume
	}
	opts.Autoplay = set.Autoplay
	opts.Persistent = set.Persistent
	return opts
}

// continuation picks a follow-up from the finished track's author.
func (g *Gateway) continuation(ctx context.Context, prev Track) (Track, bool) {
	if prev.Author == "" {
		return Track{}, false
	}
	query := strings.TrimSuffix(prev.Author, " - Topic")
	res, err := g.source.Search(ctx, query, SearchOptions{RequesterID: prev.RequesterID, SourceHint: g.opts.SearchSource})
	if err != nil {
		slog.Warn("autoplay lookup failed", "query", query, "err", err)
		return Track{}, false
	}
	for _, t := range res.Tracks {
		if t.URI != prev.URI && !t.IsStream {
			return t, true
		}
	}
	return Track{}, false
}

// withSession runs fn against the guild's session after authorizing the actor.
// missing is returned when the guild has no live session.
func (g *Gateway) withSession(req Request, op string, missing error, fn func(s *Session) Result) Result {
	s := g.registry.Get(req.GuildID)
	if s == nil || !s.hold() {
		return g.deny(req, op, missing)
	}
	defer s.release()
	voice := g.presence.VoiceChannel(req.GuildID, req.UserID)
	if err := g.Authorize(s, voice, false); err != nil {
		return g.deny(req, op, err)
	}
	return fn(s)
}

func (g *Gateway) deny(req Request, op string, err error) Result {
	slog.Debug("command rejected", "op", op, "guildID", req.GuildID, "userID", req.UserID, "reason", err)
	return Fail(err)
}

func (g *Gateway) Stop(req Request) Result {
	return g.withSession(req, "stop", ErrNotPlaying, func(s *Session) Result {
		s.Stop()
		return OK("Stopped the music and left the voice channel.", nil)
	})
}

func (g *Gateway) Skip(req Request) Result {
	return g.withSession(req, "skip", ErrNoSession, func(s *Session) Result {
		t, err := s.Skip()
		if err != nil {
			return g.deny(req, "skip", err)
		}
		return OK(fmt.Sprintf("Skipped **%s**.", utils.EscapeMd(t.DisplayTitle())), nil)
	})
}

func (g *Gateway) SetVolume(req Request, volume int) Result {
	return g.withSession(req, "volume", ErrNoSession, func(s *Session) Result {
		if err := s.SetVolume(volume); err != nil {
			return g.deny(req, "volume", err)
		}
		return OK(fmt.Sprintf("Volume set to %d%%.", volume), map[string]int{"volume": volume})
	})
}

func (g *Gateway) Pause(req Request) Result {
	return g.withSession(req, "pause", ErrNoSession, func(s *Session) Result {
		if err := s.Pause(); err != nil {
			return g.deny(req, "pause", err)
		}
		return OK("Paused the music.", nil)
	})
}

func (g *Gateway) Resume(req Request) Result {
	return g.withSession(req, "resume", ErrNoSession, func(s *Session) Result {
		if err := s.Resume(); err != nil {
			return g.deny(req, "resume", err)
		}
		return OK("Resumed the music.", nil)
	})
}

func (g *Gateway) Shuffle(req Request) Result {
	return g.withSession(req, "shuffle", ErrNoSession, func(s *Session) Result {
		if err := s.Shuffle(); err != nil {
			return g.deny(req, "shuffle", err)
		}
		return OK(fmt.Sprintf("Shuffled `%d` songs in the queue.", len(s.Snapshot().Queue)), nil)
	})
}

func (g *Gateway) Seek(req Request, seconds int) Result {
	return g.withSession(req, "seek", ErrNoSession, func(s *Session) Result {
		if err := s.Seek(seconds); err != nil {
			return g.deny(req, "seek", err)
		}
		return OK(fmt.Sprintf("Seeked to `%s`.", utils.PrettyTime(seconds)), nil)
	})
}

func (g *Gateway) PlayPrevious(req Request) Result {
	return g.withSession(req, "previous", ErrNoSession, func(s *Session) Result {
		t, err := s.PlayPrevious()
		if err != nil {
			return g.deny(req, "previous", err)
		}
		return OK(fmt.Sprintf("Playing previous song **%s - %s**.",
			utils.EscapeMd(t.DisplayTitle()), utils.EscapeMd(t.DisplayAuthor())), nil)
	})
}

// Toggle247 flips 24/7 mode for the guild and persists it. Enabling binds the
// actor's text and voice channels and joins voice right away, so it needs
// either a session or an actor in voice. Disabling works from anywhere.
func (g *Gateway) Toggle247(ctx context.Context, req Request) Result {
	if !g.presence.CanManageGuild(req.GuildID, req.UserID) {
		return g.deny(req, "247", ErrNeedManageGuild)
	}
	voice := g.presence.VoiceChannel(req.GuildID, req.UserID)
	s := g.registry.Get(req.GuildID)
	if err := g.Authorize(s, voice, false); err != nil {
		return g.deny(req, "247", err)
	}

	set, err := g.settings.GuildSettings(ctx, req.GuildID)
	if err != nil {
		slog.Warn("failed to load guild settings", "guildID", req.GuildID, "err", err)
		return Failf("could not toggle 24/7 mode: %s", err.Error())
	}

	p := Persistent{}
	if !set.Persistent.Enabled {
		if s == nil && voice == "" {
			return g.deny(req, "247", ErrNotInVoice)
		}
		p = Persistent{Enabled: true, TextChannelID: req.TextChannelID, VoiceChannelID: voice}
		if s != nil {
			p.VoiceChannelID = s.VoiceChannelID()
		}
	}
	if err := g.settings.SavePersistent(ctx, req.GuildID, p); err != nil {
		slog.Warn("failed to save 24/7 state", "guildID", req.GuildID, "err", err)
		return Failf("could not toggle 24/7 mode: %s", err.Error())
	}

	if s != nil && s.hold() {
		s.SetPersistent(p)
		s.release()
	}
	if !p.Enabled {
		return OK("24/7 mode is now **disabled**.", map[string]bool{"enabled": false})
	}

	if s == nil && voice != "" {
		ns, err := g.acquire(ctx, req.GuildID, Binding{VoiceChannelID: voice, TextChannelID: req.TextChannelID})
		if err != nil {
			return Failf("24/7 mode enabled, but joining voice failed: %s", err.Error())
		}
		ns.SetPersistent(p)
		ns.release()
	}
	return OK("24/7 mode is now **enabled**.", map[string]bool{"enabled": true})
}

// ToggleAutoplay flips the guild's continuation flag.
func (g *Gateway) ToggleAutoplay(ctx context.Context, req Request) Result {
	voice := g.presence.VoiceChannel(req.GuildID, req.UserID)
	s := g.registry.Get(req.GuildID)
	if err := g.Authorize(s, voice, false); err != nil {
		return g.deny(req, "autoplay", err)
	}
	set, err := g.settings.GuildSettings(ctx, req.GuildID)
	if err != nil {
		return Failf("could not toggle autoplay: %s", err.Error())
	}
	on := !set.Autoplay
	if err := g.settings.SaveAutoplay(ctx, req.GuildID, on); err != nil {
		slog.Warn("failed to save autoplay", "guildID", req.GuildID, "err", err)
		return Failf("could not toggle autoplay: %s", err.Error())
	}
	if s != nil {
		s.SetAutoplay(on)
	}
	state := "disabled"
	if on {
		state = "enabled"
	}
	return OK(fmt.Sprintf("Autoplay is now **%s**.", state), map[string]bool{"enabled": on})
}

// SetDefaultVolume stores the volume new sessions of the guild start at.
func (g *Gateway) SetDefaultVolume(ctx context.Context, req Request, volume int) Result {
	if !g.presence.CanManageGuild(req.GuildID, req.UserID) {
		return g.deny(req, "defaultvolume", ErrNeedManageGuild)
	}
	if volume < 0 || volume > 100 {
		return g.deny(req, "defaultvolume", ErrVolumeRange)
	}
	if err := g.settings.SaveDefaultVolume(ctx, req.GuildID, volume); err != nil {
		slog.Warn("failed to save default volume", "guildID", req.GuildID, "err", err)
		return Failf("could not save default volume: %s", err.Error())
	}
	return OK(fmt.Sprintf("Default volume set to %d%%.", volume), map[string]int{"volume": volume})
}

// NowPlaying reports the session state. It needs no voice presence.
func (g *Gateway) NowPlaying(req Request) Result {
	s := g.registry.Get(req.GuildID)
	if s == nil {
		return Fail(ErrNoSession)
	}
	snap := s.Snapshot()
	if snap.Current == nil {
		return OK(fmt.Sprintf("Nothing is playing. `%d` songs queued.", len(snap.Queue)), snap)
	}
	cur := snap.Current
	pos := utils.PrettyMillis(snap.PositionMs)
	msg := fmt.Sprintf("Now playing **%s - %s** `[%s/%s]`, `%d` songs queued, volume %d%%.",
		utils.EscapeMd(cur.DisplayTitle()), utils.EscapeMd(cur.DisplayAuthor()),
		pos, cur.DisplayDuration(), len(snap.Queue), snap.Volume)
	if snap.Paused {
		msg += " (paused)"
	}
	return OK(msg, snap)
}

// VoiceLost tears down the guild's session after the bot was disconnected
// from voice by something other than a command. fromChannelID is the channel
// the bot left; a session bound elsewhere is newer and stays. An empty
// fromChannelID matches any session. The echo of a session's own departure
// is ignored even when a new session already took the same channel.
func (g *Gateway) VoiceLost(guildID, fromChannelID string) {
	if g.registry.OwnDeparture(guildID, fromChannelID) {
		slog.Debug("own voice departure echoed", "guildID", guildID, "channelID", fromChannelID)
		return
	}
	s := g.registry.Get(guildID)
	if s == nil {
		return
	}
	if fromChannelID != "" && fromChannelID != s.VoiceChannelID() {
		slog.Debug("stale voice disconnect ignored", "guildID", guildID, "channelID", fromChannelID)
		return
	}
	slog.Info("voice connection lost, destroying session", "guildID", guildID)
	g.registry.Remove(guildID)
	// the teardown above found the bot already gone; no echo will follow
	g.registry.dropDeparture(guildID)
}

// Restore rejoins every guild that has 24/7 mode enabled.
func (g *Gateway) Restore(ctx context.Context) int {
	all, err := g.settings.PersistentGuilds(ctx)
	if err != nil {
		slog.Warn("failed to load 24/7 guilds", "err", err)
		return 0
	}
	n := 0
	for guildID, p := range all {
		if !p.Enabled || p.VoiceChannelID == "" {
			continue
		}
		s, err := g.acquire(ctx, guildID, Binding{VoiceChannelID: p.VoiceChannelID, TextChannelID: p.TextChannelID})
		if err != nil {
			slog.Warn("failed to restore 24/7 session", "guildID", guildID, "err", err)
			continue
		}
		s.release()
		n++
	}
	slog.Info("restored 24/7 sessions", "count", n)
	return n
}
