package player

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// departures older than this no longer explain a voice disconnect
const echoWindow = 15 * time.Second

type departure struct {
	channelID string
	at        time.Time
}

// Registry holds at most one session per guild. Its lock only guards the maps.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	departed map[string]departure
	backend  Backend
	now      func() time.Time
}

func NewRegistry(backend Backend) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		departed: make(map[string]departure),
		backend:  backend,
		now:      time.Now,
	}
}

func (r *Registry) Get(guildID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[guildID]
}

// GetOrCreate returns the guild's session, creating it with b and opts when
// there is none. An existing session keeps its binding.
func (r *Registry) GetOrCreate(guildID string, b Binding, opts SessionOptions) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[guildID]; ok {
		return s, false
	}
	s := newSession(guildID, b, r.backend, opts, r.forget)
	r.sessions[guildID] = s
	slog.Debug("session created", "guildID", guildID, "channelID", b.VoiceChannelID)
	return s, true
}

// Remove stops and drops the guild's session. Removing a missing guild is a no-op.
func (r *Registry) Remove(guildID string) {
	r.mu.Lock()
	s := r.sessions[guildID]
	delete(r.sessions, guildID)
	r.mu.Unlock()

	if s != nil {
		s.Stop()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close stops every session.
func (r *Registry) Close() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(8)
	for _, s := range all {
		g.Go(func() error {
			s.Stop()
			return nil
		})
	}
	_ = g.Wait()
}

// OwnDeparture reports whether a disconnect from channelID in the guild is the
// echo of a session that left voice on its own. Each departure is matched at
// most once. An empty channelID matches any recent departure.
func (r *Registry) OwnDeparture(guildID, channelID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.departed[guildID]
	if !ok {
		return false
	}
	if r.now().Sub(d.at) > echoWindow {
		delete(r.departed, guildID)
		return false
	}
	if channelID != "" && channelID != d.channelID {
		return false
	}
	delete(r.departed, guildID)
	return true
}

func (r *Registry) dropDeparture(guildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.departed, guildID)
}

// forget drops s only if it is still the registered session for its guild.
// leftVoice records the departure so the gateway's disconnect echo is not
// mistaken for a newer session losing voice.
func (r *Registry) forget(s *Session, leftVoice bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if leftVoice {
		r.departed[s.guildID] = departure{channelID: s.VoiceChannelID(), at: r.now()}
	}
	if r.sessions[s.guildID] == s {
		delete(r.sessions, s.guildID)
		slog.Debug("session removed", "guildID", s.guildID)
	}
}
