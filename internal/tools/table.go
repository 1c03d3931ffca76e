package tools

import (
	"context"
	"fmt"

	"github.com/sonroyaalmerol/napstablook/internal/player"
)

// Op is a user-facing operation. Every Op has exactly one row in table.
type Op int

const (
	OpPlay Op = iota
	OpStop
	OpSkip
	OpVolume
	OpPause
	OpResume
	OpShuffle
	OpSeek
	OpPrevious
	OpPersistent
	OpNowPlaying
	OpAutoplay
	OpDefaultVolume
	OpMinecraftStatus
	OpMinecraftRcon
	OpStartServer
	OpStopServer
)

type ParamType int

const (
	ParamString ParamType = iota
	ParamNumber
)

type Param struct {
	Name         string
	Description  string
	Type         ParamType
	Required     bool
	Autocomplete bool
}

// Spec describes one operation for both the slash-command and assistant
// surfaces. An empty Tool or Slash keeps the op off that surface.
type Spec struct {
	Op          Op
	Tool        string
	Slash       string
	Description string
	Params      []Param
	Deferred    bool

	run func(ctx context.Context, a *Adapter, c Call) player.Result
}

func (o Op) String() string {
	if s, ok := byOp[o]; ok {
		if s.Tool != "" {
			return s.Tool
		}
		return s.Slash
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

var table = []Spec{
	{
		Op: OpPlay, Tool: "play_music", Slash: "play", Deferred: true,
		Description: "Plays music based on a search query or URL. Use this when the user asks to play a song or artist.",
		Params: []Param{
			{Name: "query", Description: "The song name, artist name, or URL to play.", Type: ParamString, Required: true, Autocomplete: true},
		},
		run: runPlay,
	},
	{
		Op: OpStop, Tool: "stop_music", Slash: "stop",
		Description: "Stops the music, clears the queue and leaves the voice channel.",
		run:         func(_ context.Context, a *Adapter, c Call) player.Result { return a.gw.Stop(c.Request) },
	},
	{
		Op: OpSkip, Tool: "skip_music", Slash: "skip",
		Description: "Skips the current song.",
		run:         func(_ context.Context, a *Adapter, c Call) player.Result { return a.gw.Skip(c.Request) },
	},
	{
		Op: OpVolume, Tool: "set_volume", Slash: "volume",
		Description: "Sets the playback volume.",
		Params: []Param{
			{Name: "volume", Description: "Volume from 0 to 100.", Type: ParamNumber, Required: true},
		},
		run: runVolume,
	},
	{
		Op: OpPause, Tool: "pause_music", Slash: "pause",
		Description: "Pauses the current song.",
		run:         func(_ context.Context, a *Adapter, c Call) player.Result { return a.gw.Pause(c.Request) },
	},
	{
		Op: OpResume, Tool: "resume_music", Slash: "resume",
		Description: "Resumes a paused song.",
		run:         func(_ context.Context, a *Adapter, c Call) player.Result { return a.gw.Resume(c.Request) },
	},
	{
		Op: OpShuffle, Tool: "shuffle_queue", Slash: "shuffle",
		Description: "Shuffles the upcoming songs in the queue.",
		run:         func(_ context.Context, a *Adapter, c Call) player.Result { return a.gw.Shuffle(c.Request) },
	},
	{
		Op: OpSeek, Tool: "seek_music", Slash: "seek",
		Description: "Seeks the current song to a position.",
		Params: []Param{
			{Name: "time", Description: "Position in seconds, or as 1:30 / 1m30s.", Type: ParamString, Required: true},
		},
		run: runSeek,
	},
	{
		Op: OpPrevious, Tool: "play_previous", Slash: "previous",
		Description: "Plays the previously played song.",
		run:         func(_ context.Context, a *Adapter, c Call) player.Result { return a.gw.PlayPrevious(c.Request) },
	},
	{
		Op: OpPersistent, Tool: "set_247", Slash: "247", Deferred: true,
		Description: "Toggles 24/7 mode so the bot stays in the voice channel. Needs the manage-server permission.",
		run:         func(ctx context.Context, a *Adapter, c Call) player.Result { return a.gw.Toggle247(ctx, c.Request) },
	},
	{
		Op: OpNowPlaying, Tool: "now_playing", Slash: "nowplaying",
		Description: "Shows the current song, its position and the queue length.",
		run:         func(_ context.Context, a *Adapter, c Call) player.Result { return a.gw.NowPlaying(c.Request) },
	},
	{
		Op: OpAutoplay, Slash: "autoplay",
		Description: "Toggles autoplay of related songs when the queue runs out.",
		run:         func(ctx context.Context, a *Adapter, c Call) player.Result { return a.gw.ToggleAutoplay(ctx, c.Request) },
	},
	{
		Op: OpDefaultVolume, Slash: "defaultvolume",
		Description: "Sets the volume new sessions start at. Needs the manage-server permission.",
		Params: []Param{
			{Name: "volume", Description: "Volume from 0 to 100.", Type: ParamNumber, Required: true},
		},
		run: runDefaultVolume,
	},
	{
		Op: OpMinecraftStatus, Tool: "minecraft_status", Slash: "status", Deferred: true,
		Description: "Checks whether the Minecraft server is online, its version and players.",
		run:         runMinecraftStatus,
	},
	{
		Op: OpMinecraftRcon, Tool: "minecraft_rcon", Slash: "rcon", Deferred: true,
		Description: "Runs a console command on the Minecraft server over RCON. Only allowed users may do this.",
		Params: []Param{
			{Name: "command", Description: "The console command, without a leading slash.", Type: ParamString, Required: true},
		},
		run: runMinecraftRcon,
	},
	{
		Op: OpStartServer, Slash: "start", Deferred: true,
		Description: "Start the Minecraft server (EC2 instance).",
		run:         runStartServer,
	},
	{
		Op: OpStopServer, Slash: "stopserver", Deferred: true,
		Description: "Stop the Minecraft server (EC2 instance).",
		run:         runStopServer,
	},
}

var (
	byOp    = map[Op]Spec{}
	byTool  = map[string]Spec{}
	bySlash = map[string]Spec{}
)

func init() {
	for _, s := range table {
		byOp[s.Op] = s
		if s.Tool != "" {
			byTool[s.Tool] = s
		}
		if s.Slash != "" {
			bySlash[s.Slash] = s
		}
	}
}

// All returns every spec in declaration order.
func All() []Spec {
	out := make([]Spec, len(table))
	copy(out, table)
	return out
}

// Tools returns the specs exposed to the assistant.
func Tools() []Spec {
	var out []Spec
	for _, s := range table {
		if s.Tool != "" {
			out = append(out, s)
		}
	}
	return out
}

func LookupTool(name string) (Spec, bool) {
	s, ok := byTool[name]
	return s, ok
}

func LookupSlash(name string) (Spec, bool) {
	s, ok := bySlash[name]
	return s, ok
}
