package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sonroyaalmerol/napstablook/internal/player"
)

const (
	mediaTimeout = 30 * time.Second
	trimTimeout  = 3 * time.Second
	readyTimeout = 5 * time.Second
	opusBitrate  = 160_000
)

// MediaResolver turns a track into something ffmpeg can open.
type MediaResolver interface {
	MediaURL(ctx context.Context, t player.Track) (string, error)
}

// Trimmer narrows a track to its playable window. endMs of 0 plays to the end.
type Trimmer interface {
	Trim(ctx context.Context, t player.Track) (startMs, endMs int64, ok bool)
}

// Voice opens discordgo voice connections and streams tracks over them.
type Voice struct {
	session *discordgo.Session
	media   MediaResolver
	trim    Trimmer
}

// NewVoice builds the voice backend. trim may be nil.
func NewVoice(s *discordgo.Session, media MediaResolver, trim Trimmer) *Voice {
	return &Voice{session: s, media: media, trim: trim}
}

func (v *Voice) Connect(ctx context.Context, guildID, channelID string) (player.Link, error) {
	type joined struct {
		vc  *discordgo.VoiceConnection
		err error
	}
	ch := make(chan joined, 1)
	go func() {
		vc, err := v.session.ChannelVoiceJoin(guildID, channelID, false, true)
		ch <- joined{vc, err}
	}()

	select {
	case j := <-ch:
		if j.err != nil {
			if j.vc != nil {
				safeDisconnect(guildID, j.vc)
			}
			return nil, fmt.Errorf("join voice channel: %w", j.err)
		}
		ensureChannels(j.vc)
		slog.Info("joined voice channel", "guildID", guildID, "channelID", channelID)
		return newLink(guildID, j.vc, v.media, v.trim), nil
	case <-ctx.Done():
		go func() {
			if j := <-ch; j.vc != nil {
				safeDisconnect(guildID, j.vc)
			}
		}()
		return nil, ctx.Err()
	}
}

// ensureChannels keeps Kill from closing nil channels on disconnect.
func ensureChannels(vc *discordgo.VoiceConnection) {
	vc.Lock()
	defer vc.Unlock()
	if vc.OpusSend == nil {
		vc.OpusSend = make(chan []byte, 2)
	}
	if vc.OpusRecv == nil {
		vc.OpusRecv = make(chan *discordgo.Packet, 2)
	}
}

func safeDisconnect(guildID string, vc *discordgo.VoiceConnection) error {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("voice disconnect panic recovered", "panic", r, "guildID", guildID)
		}
	}()
	ensureChannels(vc)
	_ = vc.Speaking(false)
	return vc.Disconnect()
}

type playback struct {
	track  player.Track
	done   func(player.EndReason)
	cancel context.CancelFunc
	posMs  atomic.Int64
}

type link struct {
	guildID string
	vc      *discordgo.VoiceConnection
	media   MediaResolver
	trim    Trimmer

	volume atomic.Int32
	paused atomic.Bool

	mu     sync.Mutex
	cur    *playback
	closed bool
}

func newLink(guildID string, vc *discordgo.VoiceConnection, media MediaResolver, trim Trimmer) *link {
	l := &link{guildID: guildID, vc: vc, media: media, trim: trim}
	l.volume.Store(100)
	return l
}

func (l *link) Play(t player.Track, startMs int64, volume int, done func(player.EndReason)) {
	l.volume.Store(int32(volume))
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.stopLocked()
	l.startLocked(t, startMs, done)
}

func (l *link) startLocked(t player.Track, startMs int64, done func(player.EndReason)) {
	ctx, cancel := context.WithCancel(context.Background())
	pb := &playback{track: t, done: done, cancel: cancel}
	pb.posMs.Store(startMs)
	l.cur = pb
	go l.run(ctx, pb, startMs)
}

func (l *link) stopLocked() {
	if l.cur != nil {
		l.cur.cancel()
		l.cur = nil
	}
}

func (l *link) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
}

func (l *link) Pause()  { l.paused.Store(true) }
func (l *link) Resume() { l.paused.Store(false) }

// Seek restarts the current track at ms; its completion callback carries over.
func (l *link) Seek(ms int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.cur == nil {
		return
	}
	t, done := l.cur.track, l.cur.done
	l.stopLocked()
	l.startLocked(t, ms, done)
}

func (l *link) SetVolume(v int) { l.volume.Store(int32(v)) }

func (l *link) Position() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cur == nil {
		return 0
	}
	return l.cur.posMs.Load()
}

func (l *link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.stopLocked()
	l.mu.Unlock()
	slog.Info("leaving voice channel", "guildID", l.guildID)
	return safeDisconnect(l.guildID, l.vc)
}

func (l *link) run(ctx context.Context, pb *playback, startMs int64) {
	err := l.stream(ctx, pb, startMs)
	if ctx.Err() != nil {
		return
	}

	l.mu.Lock()
	current := l.cur == pb
	if current {
		l.cur = nil
	}
	l.mu.Unlock()
	pb.cancel()
	if !current {
		return
	}

	reason := player.EndFinished
	if err != nil {
		slog.Warn("playback failed", "guildID", l.guildID, "uri", pb.track.URI, "err", err)
		reason = player.EndFailed
	}
	pb.done(reason)
}

func (l *link) stream(ctx context.Context, pb *playback, startMs int64) error {
	mctx, cancel := context.WithTimeout(ctx, mediaTimeout)
	input, err := l.media.MediaURL(mctx, pb.track)
	cancel()
	if err != nil {
		return fmt.Errorf("resolve media: %w", err)
	}

	startMs, endMs := l.window(ctx, pb, startMs)

	src, err := openPCM(ctx, input, startMs)
	if err != nil {
		return err
	}
	defer src.Close()

	enc, err := NewEncoder(opusBitrate)
	if err != nil {
		return err
	}
	defer enc.Close()

	send, err := l.waitReady(ctx)
	if err != nil {
		return err
	}
	_ = l.vc.Speaking(true)
	defer l.vc.Speaking(false)

	r := bufio.NewReaderSize(src, 64*1024)
	frame := make([]byte, FrameBytes())
	for {
		if err := l.waitUnpaused(ctx); err != nil {
			return err
		}
		if endMs > 0 && pb.posMs.Load() >= endMs {
			return nil
		}
		if _, err := io.ReadFull(r, frame); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return src.Wait()
			}
			return fmt.Errorf("read pcm: %w", err)
		}
		applyGain(frame, int(l.volume.Load()))

		err := enc.EncodeFrame(frame, func(pkt []byte) error {
			select {
			case send <- slices.Clone(pkt):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			return err
		}
		pb.posMs.Add(frameMs)
	}
}

// window applies the trimmer. The intro skip only applies to a fresh start;
// seeks keep their offset but still stop at the outro.
func (l *link) window(ctx context.Context, pb *playback, startMs int64) (int64, int64) {
	if l.trim == nil {
		return startMs, 0
	}
	tctx, cancel := context.WithTimeout(ctx, trimTimeout)
	from, to, ok := l.trim.Trim(tctx, pb.track)
	cancel()
	if !ok {
		return startMs, 0
	}
	if startMs == 0 && from > 0 {
		slog.Debug("skipping intro", "guildID", l.guildID, "uri", pb.track.URI, "toMs", from)
		startMs = from
		pb.posMs.Store(from)
	}
	if to > 0 && to <= startMs {
		to = 0
	}
	return startMs, to
}

func (l *link) waitReady(ctx context.Context) (chan []byte, error) {
	deadline := time.Now().Add(readyTimeout)
	for {
		l.vc.RLock()
		ready, send := l.vc.Ready, l.vc.OpusSend
		l.vc.RUnlock()
		if ready && send != nil {
			return send, nil
		}
		if time.Now().After(deadline) {
			return nil, errors.New("voice connection not ready")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (l *link) waitUnpaused(ctx context.Context) error {
	for l.paused.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(frameMs * time.Millisecond):
		}
	}
	return nil
}
