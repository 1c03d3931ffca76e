package player

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sonroyaalmerol/napstablook/internal/utils"
)

const (
	dialTimeout         = 20 * time.Second
	continuationTimeout = 15 * time.Second
)

// Binding is where a session lives. It is fixed for the life of the session.
type Binding struct {
	VoiceChannelID string
	TextChannelID  string
}

// Continuation looks up a follow-up for a finished track when autoplay is on.
type Continuation func(ctx context.Context, prev Track) (Track, bool)

type SessionOptions struct {
	Volume       int
	Autoplay     bool
	Persistent   Persistent
	Continuation Continuation
}

// Session is the playback state of one guild. All mutations go through s.mu;
// nothing under s.mu waits on the network.
type Session struct {
	guildID string
	binding Binding
	backend Backend
	next    Continuation
	onClose func(s *Session, leftVoice bool)

	dialOnce  sync.Once
	connected chan struct{}
	connErr   error

	mu         sync.Mutex
	link       Link
	queue      []Track
	current    *Track
	previous   *Track
	playing    bool
	paused     bool
	volume     int
	autoplay   bool
	persistent Persistent
	gen        uint64
	holds      int
	idle       bool
	closed     bool

	snap atomic.Pointer[Snapshot]
}

func newSession(guildID string, b Binding, backend Backend, opts SessionOptions, onClose func(*Session, bool)) *Session {
	s := &Session{
		guildID:    guildID,
		binding:    b,
		backend:    backend,
		next:       opts.Continuation,
		onClose:    onClose,
		connected:  make(chan struct{}),
		volume:     opts.Volume,
		autoplay:   opts.Autoplay,
		persistent: opts.Persistent,
	}
	s.publishLocked()
	return s
}

func (s *Session) GuildID() string { return s.guildID }
func (s *Session) VoiceChannelID() string { return s.binding.VoiceChannelID }
func (s *Session) TextChannelID() string { return s.binding.TextChannelID }

// Connect joins the bound voice channel. Concurrent callers share one
// handshake; ctx only bounds how long this caller waits for it.
func (s *Session) Connect(ctx context.Context) error {
	s.dialOnce.Do(func() { go s.dial() })
	select {
	case <-s.connected:
		return s.connErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) dial() {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	link, err := s.backend.Connect(ctx, s.guildID, s.binding.VoiceChannelID)
	if err == nil {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = link.Close()
			err = ErrSessionClosed
		} else {
			s.link = link
			s.publishLocked()
			s.mu.Unlock()
		}
	}
	if err != nil {
		slog.Warn("voice connect failed", "guildID", s.guildID, "channelID", s.binding.VoiceChannelID, "err", err)
	}
	s.connErr = err
	close(s.connected)
}

// hold keeps an exhausted session alive until the matching release.
func (s *Session) hold() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.holds++
	return true
}

func (s *Session) release() {
	s.mu.Lock()
	s.holds--
	if s.holds > 0 || !s.idle || !s.shouldTearDownLocked() {
		s.mu.Unlock()
		return
	}
	link := s.closeLocked()
	s.mu.Unlock()
	slog.Debug("session idle after release, tearing down", "guildID", s.guildID)
	s.teardown(link)
}

func (s *Session) shouldTearDownLocked() bool {
	return !s.closed && !s.playing && !s.persistent.Enabled
}

// Enqueue appends tracks and starts playback when idle.
func (s *Session) Enqueue(tracks []Track) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.publishLocked()

	if s.closed {
		return false, ErrSessionClosed
	}
	s.queue = append(s.queue, tracks...)
	if s.playing {
		return false, nil
	}
	return s.startNextLocked(), nil
}

// Skip ends the current track. With autoplay on and nothing queued, the
// follow-up is looked up in the background.
func (s *Session) Skip() (Track, error) {
	s.mu.Lock()
	if !s.playing || s.current == nil {
		s.mu.Unlock()
		return Track{}, ErrNoSession
	}
	if len(s.queue) == 0 && !(s.autoplay && s.next != nil) {
		s.mu.Unlock()
		return Track{}, ErrCannotSkip
	}

	skipped := *s.current
	s.previous = s.current
	s.current = nil
	if s.startNextLocked() {
		s.publishLocked()
		s.mu.Unlock()
		return skipped, nil
	}

	s.playing = false
	s.gen++
	s.link.Stop()
	gen := s.gen
	s.publishLocked()
	s.mu.Unlock()

	go s.continueAfter(skipped, gen)
	return skipped, nil
}

func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing || s.current == nil {
		return ErrNoSession
	}
	if s.paused {
		return ErrAlreadyPaused
	}
	s.paused = true
	s.link.Pause()
	s.publishLocked()
	return nil
}

func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return ErrNotPaused
	}
	s.paused = false
	s.link.Resume()
	s.publishLocked()
	return nil
}

func (s *Session) SetVolume(v int) error {
	if v < 0 || v > 100 {
		return ErrVolumeRange
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNoSession
	}
	s.volume = v
	if s.link != nil {
		s.link.SetVolume(v)
	}
	s.publishLocked()
	return nil
}

// Shuffle permutes the upcoming tracks. The current track is not part of the queue.
func (s *Session) Shuffle() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) <= 1 {
		return ErrNotEnoughSongs
	}
	q := slices.Clone(s.queue)
	utils.ShuffleSlice(q)
	s.queue = q
	s.publishLocked()
	return nil
}

func (s *Session) Seek(seconds int) error {
	if seconds < 0 {
		return ErrSeekNegative
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ErrNoSession
	}
	if !s.current.IsSeekable {
		return ErrNotSeekable
	}
	if int64(seconds) > s.current.DurationMs/1000 {
		return ErrSeekPastEnd
	}
	ms := int64(seconds) * 1000
	if ms > s.current.DurationMs {
		return ErrSeekPastEnd
	}
	s.link.Seek(ms)
	s.publishLocked()
	return nil
}

// PlayPrevious puts the current track back at the head of the queue and plays
// the previous one.
func (s *Session) PlayPrevious() (Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.link == nil {
		return Track{}, ErrNoSession
	}
	if s.previous == nil {
		return Track{}, ErrNoPrevious
	}
	prev := *s.previous
	if s.current != nil {
		s.queue = append([]Track{*s.current}, s.queue...)
	}
	s.previous = nil
	s.playLocked(prev)
	s.publishLocked()
	return prev, nil
}

func (s *Session) SetAutoplay(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoplay = on
	s.publishLocked()
}

// SetPersistent updates the 24/7 binding. Turning it off while idle lets the
// session go away once nothing holds it.
func (s *Session) SetPersistent(p Persistent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistent = p
	if !p.Enabled && !s.playing {
		s.idle = true
	}
	s.publishLocked()
}

// Stop discards the queue and releases the voice link.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	link := s.closeLocked()
	s.mu.Unlock()
	s.teardown(link)
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// startNextLocked pops the queue head and plays it. It reports false when the
// queue is empty.
func (s *Session) startNextLocked() bool {
	if len(s.queue) == 0 || s.link == nil {
		return false
	}
	t := s.queue[0]
	s.queue = s.queue[1:]
	s.playLocked(t)
	return true
}

func (s *Session) playLocked(t Track) {
	s.current = &t
	s.playing = true
	s.idle = false
	s.gen++
	gen := s.gen
	s.link.Play(t, 0, s.volume, func(r EndReason) { s.trackEnded(gen, r) })
}

func (s *Session) trackEnded(gen uint64, reason EndReason) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	if reason == EndFailed && s.current != nil {
		slog.Warn("track failed", "guildID", s.guildID, "uri", s.current.URI)
	}

	finished := s.current
	if finished != nil {
		s.previous = finished
	}
	s.current = nil
	if s.startNextLocked() {
		s.publishLocked()
		s.mu.Unlock()
		return
	}

	s.playing = false
	useNext := s.autoplay && s.next != nil && finished != nil
	gen = s.gen
	s.publishLocked()
	s.mu.Unlock()

	if useNext {
		s.continueAfter(*finished, gen)
		return
	}
	s.exhausted()
}

func (s *Session) continueAfter(prev Track, gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), continuationTimeout)
	t, ok := s.next(ctx, prev)
	cancel()

	s.mu.Lock()
	if s.closed || s.gen != gen || s.playing {
		s.mu.Unlock()
		return
	}
	if ok {
		slog.Debug("autoplay continuing", "guildID", s.guildID, "uri", t.URI)
		s.queue = append(s.queue, t)
		s.startNextLocked()
		s.publishLocked()
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.exhausted()
}

// exhausted tears down a session that ran out of tracks, unless it is pinned
// by 24/7 mode or deferred by a hold.
func (s *Session) exhausted() {
	s.mu.Lock()
	if !s.shouldTearDownLocked() {
		s.mu.Unlock()
		return
	}
	if s.holds > 0 {
		s.idle = true
		s.mu.Unlock()
		return
	}
	link := s.closeLocked()
	s.mu.Unlock()
	slog.Debug("queue exhausted, leaving voice", "guildID", s.guildID)
	s.teardown(link)
}

func (s *Session) closeLocked() Link {
	s.closed = true
	s.queue = nil
	s.current = nil
	s.previous = nil
	s.playing = false
	s.paused = false
	s.gen++
	link := s.link
	s.link = nil
	s.publishLocked()
	return link
}

func (s *Session) teardown(link Link) {
	if link != nil {
		link.Stop()
		if err := link.Close(); err != nil {
			slog.Warn("voice disconnect failed", "guildID", s.guildID, "err", err)
		}
	}
	if s.onClose != nil {
		s.onClose(s, link != nil)
	}
}
