package tools

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/sonroyaalmerol/napstablook/internal/compute"
	"github.com/sonroyaalmerol/napstablook/internal/minecraft"
	"github.com/sonroyaalmerol/napstablook/internal/player"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLink struct{ volume int }

func (l *nopLink) Play(player.Track, int64, int, func(player.EndReason)) {}
func (l *nopLink) Stop() {}
func (l *nopLink) Pause() {}
func (l *nopLink) Resume() {}
func (l *nopLink) Seek(int64) {}
func (l *nopLink) SetVolume(v int) { l.volume = v }
func (l *nopLink) Position() int64 { return 0 }
func (l *nopLink) Close() error { return nil }

type nopBackend struct{}

func (nopBackend) Connect(context.Context, string, string) (player.Link, error) {
	return &nopLink{}, nil
}

type staticPresence map[string]string

func (p staticPresence) VoiceChannel(_, userID string) string { return p[userID] }
func (p staticPresence) CanManageGuild(string, string) bool { return false }

type staticSource struct{}

func (staticSource) Search(_ context.Context, q string, _ player.SearchOptions) (player.TrackResult, error) {
	return player.TrackResult{Type: player.LoadSingle, Tracks: []player.Track{{
		Title: q, Author: "someone", URI: "https://example.com/" + q, DurationMs: 60_000, IsSeekable: true,
	}}}, nil
}

type memSettings struct{}

func (memSettings) GuildSettings(context.Context, string) (player.GuildSettings, error) {
	return player.GuildSettings{DefaultVolume: -1}, nil
}
func (memSettings) SavePersistent(context.Context, string, player.Persistent) error { return nil }
func (memSettings) SaveAutoplay(context.Context, string, bool) error { return nil }
func (memSettings) SaveDefaultVolume(context.Context, string, int) error { return nil }
func (memSettings) PersistentGuilds(context.Context) (map[string]player.Persistent, error) {
	return nil, nil
}

type fakeMC struct {
	status minecraft.Status
	err    error
	ran    []string
}

func (f *fakeMC) Status(context.Context) (minecraft.Status, error) { return f.status, f.err }

func (f *fakeMC) Exec(_ context.Context, cmd string) (string, error) {
	if cmd == "" {
		return "", minecraft.ErrMissingCommand
	}
	f.ran = append(f.ran, cmd)
	return "done", nil
}

type fakeCompute struct{ err error }

func (f fakeCompute) InstanceID() string { return "i-1" }
func (f fakeCompute) Start(context.Context) (compute.Instance, error) {
	return compute.Instance{ID: "i-1", State: "running", PublicIP: "1.2.3.4"}, f.err
}
func (f fakeCompute) Stop(context.Context) (compute.Instance, error) {
	return compute.Instance{ID: "i-1", State: "stopping"}, f.err
}

func newAdapter(mc Minecraft, ec2 Compute) *Adapter {
	presence := staticPresence{"u1": "vc1", "u2": "vc2"}
	gw := player.NewGateway(player.NewRegistry(nopBackend{}), staticSource{}, presence, memSettings{}, player.Options{DefaultVolume: 100})
	return New(gw, mc, ec2, ACL{DevIDs: []string{"dev"}, UserIDs: []string{"u1"}, RoleIDs: []string{"ops"}})
}

func call(userID string, args map[string]any) Call {
	return Call{Request: player.Request{GuildID: "g1", UserID: userID, TextChannelID: "t1"}, Args: args}
}

func TestTableIsConsistent(t *testing.T) {
	seenOps := map[Op]bool{}
	for _, s := range All() {
		assert.False(t, seenOps[s.Op], "duplicate op %v", s.Op)
		seenOps[s.Op] = true
		assert.NotNil(t, s.run, s.Op.String())
		assert.NotEmpty(t, s.Description)
		assert.True(t, s.Tool != "" || s.Slash != "", "op %d is on no surface", s.Op)
	}
	for op := OpPlay; op <= OpStopServer; op++ {
		assert.True(t, seenOps[op], "op %d has no row", op)
	}

	var names []string
	for _, s := range Tools() {
		names = append(names, s.Tool)
	}
	assert.Subset(t, names, []string{
		"play_music", "stop_music", "skip_music", "set_volume", "pause_music", "resume_music",
		"shuffle_queue", "seek_music", "play_previous", "set_247", "now_playing",
		"minecraft_status", "minecraft_rcon",
	})
}

func TestUnknownFunction(t *testing.T) {
	a := newAdapter(nil, nil)
	res := a.Dispatch(context.Background(), "launch_rockets", call("u1", nil))
	assert.False(t, res.Success)
	assert.Equal(t, "unknown function", res.Message)
	assert.Equal(t, "unknown function", a.DispatchSlash(context.Background(), "nope", call("u1", nil)).Message)
}

func TestPlayAndVolumeThroughTools(t *testing.T) {
	a := newAdapter(nil, nil)
	ctx := context.Background()

	res := a.Dispatch(ctx, "play_music", call("u1", map[string]any{}))
	assert.Equal(t, player.ErrQueryRequired.Error(), res.Message)

	res = a.Dispatch(ctx, "play_music", call("u1", map[string]any{"query": "lofi"}))
	require.True(t, res.Success, res.Message)

	res = a.Dispatch(ctx, "set_volume", call("u1", map[string]any{"volume": "loud"}))
	assert.Equal(t, "volume must be a number", res.Message)

	res = a.Dispatch(ctx, "set_volume", call("u1", map[string]any{"volume": 150.0}))
	assert.Equal(t, "volume must be between 0 and 100", res.Message)

	res = a.Dispatch(ctx, "set_volume", call("u1", map[string]any{"volume": "40"}))
	require.True(t, res.Success)

	res = a.Dispatch(ctx, "skip_music", call("u2", nil))
	assert.Equal(t, "must be in the same voice channel", res.Message)

	res = a.Dispatch(ctx, "seek_music", call("u1", map[string]any{"time": "0:30"}))
	require.True(t, res.Success, res.Message)
	res = a.Dispatch(ctx, "seek_music", call("u1", map[string]any{"time": true}))
	assert.False(t, res.Success)

	res = a.DispatchSlash(ctx, "stop", call("u1", nil))
	assert.True(t, res.Success)
}

func TestNumberArg(t *testing.T) {
	for _, v := range []any{40, int64(40), 40.0, "40", " 40 ", 39.6} {
		n, err := numberArg(map[string]any{"v": v}, "v")
		require.NoError(t, err, "%v", v)
		assert.Equal(t, 40, n)
	}
	for _, v := range []any{1e16, "10000000000000000", int64(1) << 62} {
		n, err := numberArg(map[string]any{"v": v}, "v")
		require.NoError(t, err, "%v", v)
		assert.Equal(t, math.MaxInt32, n)
	}
	n, err := numberArg(map[string]any{"v": -1e16}, "v")
	require.NoError(t, err)
	assert.Equal(t, -math.MaxInt32, n)

	for _, v := range []any{nil, "forty", true, []int{1}} {
		_, err := numberArg(map[string]any{"v": v}, "v")
		assert.Error(t, err, "%v", v)
	}
}

func TestMinecraftTools(t *testing.T) {
	mc := &fakeMC{status: minecraft.Status{Version: "1.21", Online: 1, Max: 10}}
	a := newAdapter(mc, nil)
	ctx := context.Background()

	res := a.Dispatch(ctx, "minecraft_status", call("anyone", nil))
	require.True(t, res.Success)
	assert.Equal(t, "minecraft server is online. version: 1.21. players: 1/10.", res.Message)

	mc.err = errors.New("i/o timeout")
	res = a.Dispatch(ctx, "minecraft_status", call("anyone", nil))
	assert.False(t, res.Success)
	assert.Equal(t, "minecraft server status check failed: i/o timeout", res.Message)

	res = a.Dispatch(ctx, "minecraft_rcon", call("stranger", map[string]any{"command": "list"}))
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "aren't allowed")
	assert.Empty(t, mc.ran)

	res = a.Dispatch(ctx, "minecraft_rcon", call("u1", map[string]any{}))
	assert.Equal(t, "missing rcon command", res.Message)

	byRole := call("member", map[string]any{"command": "list"})
	byRole.RoleIDs = []string{"ops"}
	res = a.Dispatch(ctx, "minecraft_rcon", byRole)
	require.True(t, res.Success)
	assert.Equal(t, "rcon response: done", res.Message)

	res = a.Dispatch(ctx, "minecraft_rcon", call("dev", map[string]any{"command": "say hi"}))
	require.True(t, res.Success)
	assert.Equal(t, []string{"list", "say hi"}, mc.ran)
}

func TestMinecraftNotConfigured(t *testing.T) {
	a := newAdapter(nil, nil)
	res := a.Dispatch(context.Background(), "minecraft_rcon", call("u1", map[string]any{"command": "list"}))
	assert.Equal(t, minecraft.ErrRconNotConfigured.Error(), res.Message)
	assert.Equal(t, "minecraft is not configured", a.Dispatch(context.Background(), "minecraft_status", call("u1", nil)).Message)
}

func TestServerCommands(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(nil, fakeCompute{})
	res := a.DispatchSlash(ctx, "start", call("u1", nil))
	require.True(t, res.Success)
	assert.Contains(t, res.Message, "`1.2.3.4`")
	assert.True(t, a.DispatchSlash(ctx, "stopserver", call("u1", nil)).Success)

	_, isTool := LookupTool("start")
	assert.False(t, isTool)

	a = newAdapter(nil, fakeCompute{err: errors.New("boom")})
	res = a.DispatchSlash(ctx, "start", call("u1", nil))
	assert.Equal(t, "Failed to start EC2 instance `i-1`: boom", res.Message)

	a = newAdapter(nil, nil)
	assert.Contains(t, a.DispatchSlash(ctx, "start", call("u1", nil)).Message, "EC2_INSTANCE_ID")
}

func TestAsMap(t *testing.T) {
	m := AsMap(player.OK("hi", map[string]int{"volume": 3}))
	assert.Equal(t, true, m["success"])
	assert.Equal(t, "hi", m["message"])
	assert.Equal(t, map[string]any{"volume": 3.0}, m["data"])

	m = AsMap(player.Result{Message: "unknown function"})
	assert.NotContains(t, m, "data")
}
