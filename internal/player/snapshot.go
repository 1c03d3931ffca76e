package player

import "slices"

// Snapshot is a point-in-time copy of a session. Published snapshots are
// never modified.
type Snapshot struct {
	GuildID        string
	VoiceChannelID string
	TextChannelID  string
	Current        *Track
	Previous       *Track
	Queue          []Track
	Playing        bool
	Paused         bool
	Volume         int
	Autoplay       bool
	Persistent     Persistent
	Connected      bool
	Closed         bool
	PositionMs     int64

	link Link
}

// QueueDurationMs sums the upcoming tracks, live streams excluded.
func (s Snapshot) QueueDurationMs() int64 {
	var total int64
	for _, t := range s.Queue {
		if !t.IsStream {
			total += t.DurationMs
		}
	}
	return total
}

func (s *Session) publishLocked() {
	snap := &Snapshot{
		GuildID:        s.guildID,
		VoiceChannelID: s.binding.VoiceChannelID,
		TextChannelID:  s.binding.TextChannelID,
		Queue:          slices.Clone(s.queue),
		Playing:        s.playing,
		Paused:         s.paused,
		Volume:         s.volume,
		Autoplay:       s.autoplay,
		Persistent:     s.persistent,
		Connected:      s.link != nil,
		Closed:         s.closed,
		link:           s.link,
	}
	if s.current != nil {
		c := *s.current
		snap.Current = &c
	}
	if s.previous != nil {
		p := *s.previous
		snap.Previous = &p
	}
	s.snap.Store(snap)
}

// Snapshot reads the latest published state without taking the session lock.
func (s *Session) Snapshot() Snapshot {
	snap := *s.snap.Load()
	if snap.link != nil && snap.Current != nil {
		snap.PositionMs = snap.link.Position()
	}
	return snap
}
