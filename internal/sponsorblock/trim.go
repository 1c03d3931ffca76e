package sponsorblock

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sonroyaalmerol/napstablook/internal/player"
)

const (
	cacheTTL = time.Hour
	// segments this close to either end count as intro or outro
	edgeSlackSec = 2.0
)

type segmentFetcher interface {
	GetSegments(ctx context.Context, videoID string, categories []string) ([]Segment, error)
}

type cacheEntry struct {
	segs []Segment
	exp  time.Time
}

// Trimmer skips the off-topic intro and outro of YouTube music videos.
type Trimmer struct {
	client   segmentFetcher
	cooldown time.Duration
	now      func() time.Time

	mu            sync.Mutex
	cache         map[string]cacheEntry
	disabledUntil time.Time
}

// NewTrimmer builds a Trimmer. After the API reports itself unavailable,
// lookups are skipped for cooldown.
func NewTrimmer(cooldown time.Duration) *Trimmer {
	return &Trimmer{
		client:   NewClient(),
		cooldown: cooldown,
		now:      time.Now,
		cache:    make(map[string]cacheEntry),
	}
}

// Trim returns the playable window of t in milliseconds. ok is false when
// nothing should be trimmed; endMs of 0 means play to the end.
func (tr *Trimmer) Trim(ctx context.Context, t player.Track) (startMs, endMs int64, ok bool) {
	if t.SourceName != "youtube" || t.IsStream || t.DurationMs <= 0 {
		return 0, 0, false
	}
	id := VideoID(t.URI)
	if id == "" {
		return 0, 0, false
	}
	segs, err := tr.segments(ctx, id)
	if err != nil {
		slog.Debug("sponsorblock lookup failed", "videoID", id, "err", err)
		return 0, 0, false
	}
	return window(MergeSegments(segs), float64(t.DurationMs)/1000)
}

func (tr *Trimmer) segments(ctx context.Context, id string) ([]Segment, error) {
	tr.mu.Lock()
	now := tr.now()
	if now.Before(tr.disabledUntil) {
		tr.mu.Unlock()
		return nil, errUnavailable
	}
	if ent, hit := tr.cache[id]; hit && now.Before(ent.exp) {
		tr.mu.Unlock()
		return ent.segs, nil
	}
	tr.mu.Unlock()

	segs, err := tr.client.GetSegments(ctx, id, []string{categoryOffTopic})

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if err != nil {
		if errors.Is(err, errUnavailable) {
			tr.disabledUntil = tr.now().Add(tr.cooldown)
		}
		return nil, err
	}
	tr.cache[id] = cacheEntry{segs: segs, exp: tr.now().Add(cacheTTL)}
	return segs, nil
}

func window(segs []Segment, lengthSec float64) (startMs, endMs int64, ok bool) {
	if len(segs) == 0 {
		return 0, 0, false
	}
	start, end := 0.0, lengthSec

	if last := segs[len(segs)-1]; last.Segment[1] >= lengthSec-edgeSlackSec && last.Segment[0] > 0 {
		end = last.Segment[0]
	}
	if first := segs[0]; first.Segment[0] <= edgeSlackSec && first.Segment[1] < end {
		start = first.Segment[1]
	}
	if start == 0 && end == lengthSec {
		return 0, 0, false
	}
	if end <= start {
		return 0, 0, false
	}
	startMs = int64(start * 1000)
	if end < lengthSec {
		endMs = int64(end * 1000)
	}
	return startMs, endMs, true
}
