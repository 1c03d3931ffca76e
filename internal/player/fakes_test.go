package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeLink struct {
	mu      sync.Mutex
	played  []Track
	done    func(EndReason)
	paused  bool
	volume  int
	seekMs  int64
	stopped int
	closed  bool
}

func (l *fakeLink) Play(t Track, startMs int64, volume int, done func(EndReason)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.played = append(l.played, t)
	l.volume = volume
	l.seekMs = startMs
	l.done = done
}

func (l *fakeLink) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped++
	l.done = nil
}

func (l *fakeLink) Pause() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paused = true
}

func (l *fakeLink) Resume() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paused = false
}

func (l *fakeLink) Seek(ms int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seekMs = ms
}

func (l *fakeLink) SetVolume(v int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.volume = v
}

func (l *fakeLink) Position() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seekMs
}

func (l *fakeLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// finish ends the playing track the way the audio backend would.
func (l *fakeLink) finish(r EndReason) {
	l.mu.Lock()
	done := l.done
	l.done = nil
	l.mu.Unlock()
	if done != nil {
		done(r)
	}
}

func (l *fakeLink) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *fakeLink) playedURIs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, t := range l.played {
		out = append(out, t.URI)
	}
	return out
}

type fakeBackend struct {
	mu    sync.Mutex
	links map[string]*fakeLink
	err   error
	dials int
}

func (b *fakeBackend) Connect(ctx context.Context, guildID, voiceChannelID string) (Link, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dials++
	if b.err != nil {
		return nil, b.err
	}
	if b.links == nil {
		b.links = make(map[string]*fakeLink)
	}
	l := &fakeLink{}
	b.links[guildID] = l
	return l, nil
}

func (b *fakeBackend) link(guildID string) *fakeLink {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.links[guildID]
}

type fakePresence struct {
	mu       sync.Mutex
	voice    map[string]string
	managers map[string]bool
}

func newFakePresence() *fakePresence {
	return &fakePresence{voice: map[string]string{}, managers: map[string]bool{}}
}

func (p *fakePresence) join(guildID, userID, channelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.voice[guildID+"/"+userID] = channelID
}

func (p *fakePresence) VoiceChannel(guildID, userID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.voice[guildID+"/"+userID]
}

func (p *fakePresence) CanManageGuild(guildID, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.managers[guildID+"/"+userID]
}

type fakeSource struct {
	mu      sync.Mutex
	results map[string]TrackResult
	block   bool
	queries []string
}

func (f *fakeSource) Search(ctx context.Context, query string, opts SearchOptions) (TrackResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	block := f.block
	res, ok := f.results[query]
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return TrackResult{}, ctx.Err()
	}
	if !ok {
		return TrackResult{Type: LoadEmpty}, nil
	}
	return res, nil
}

type fakeSettings struct {
	mu  sync.Mutex
	all map[string]GuildSettings
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{all: map[string]GuildSettings{}}
}

func (f *fakeSettings) GuildSettings(ctx context.Context, guildID string) (GuildSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if set, ok := f.all[guildID]; ok {
		return set, nil
	}
	return GuildSettings{DefaultVolume: -1}, nil
}

func (f *fakeSettings) SavePersistent(ctx context.Context, guildID string, p Persistent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.all[guildID]
	if !ok {
		set.DefaultVolume = -1
	}
	set.Persistent = p
	f.all[guildID] = set
	return nil
}

func (f *fakeSettings) SaveAutoplay(ctx context.Context, guildID string, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.all[guildID]
	if !ok {
		set.DefaultVolume = -1
	}
	set.Autoplay = on
	f.all[guildID] = set
	return nil
}

func (f *fakeSettings) SaveDefaultVolume(ctx context.Context, guildID string, volume int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := f.all[guildID]
	set.DefaultVolume = volume
	f.all[guildID] = set
	return nil
}

func (f *fakeSettings) PersistentGuilds(ctx context.Context) (map[string]Persistent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]Persistent{}
	for id, set := range f.all {
		if set.Persistent.Enabled {
			out[id] = set.Persistent
		}
	}
	return out, nil
}

var errDial = errors.New("voice handshake failed")

type harness struct {
	backend  *fakeBackend
	presence *fakePresence
	source   *fakeSource
	settings *fakeSettings
	gw       *Gateway
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		backend:  &fakeBackend{},
		presence: newFakePresence(),
		source:   &fakeSource{results: map[string]TrackResult{}},
		settings: newFakeSettings(),
	}
	h.gw = NewGateway(NewRegistry(h.backend), h.source, h.presence, h.settings, Options{
		DefaultVolume:  100,
		SearchSource:   "youtube",
		ResolveTimeout: 200 * time.Millisecond,
	})
	return h
}

func song(name string, seconds int64) Track {
	return Track{
		Title:      name,
		Author:     name + " artist",
		URI:        "https://example.com/" + name,
		DurationMs: seconds * 1000,
		IsSeekable: true,
		SourceName: "youtube",
	}
}

// single registers query as resolving to a single track with the same name.
func (h *harness) single(name string) Track {
	t := song(name, 180)
	h.source.mu.Lock()
	h.source.results[name] = TrackResult{Type: LoadSingle, Tracks: []Track{t}}
	h.source.mu.Unlock()
	return t
}

// playing joins user to channel in guild and plays each name in order.
func (h *harness) playing(t *testing.T, guildID, userID, channelID string, names ...string) *Session {
	t.Helper()
	h.presence.join(guildID, userID, channelID)
	req := Request{GuildID: guildID, UserID: userID, TextChannelID: "text"}
	for _, name := range names {
		h.single(name)
		res := h.gw.Play(context.Background(), req, name)
		require.True(t, res.Success, res.Message)
	}
	s := h.gw.Registry().Get(guildID)
	require.NotNil(t, s)
	return s
}
