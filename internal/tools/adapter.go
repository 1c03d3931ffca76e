package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/sonroyaalmerol/napstablook/internal/compute"
	"github.com/sonroyaalmerol/napstablook/internal/minecraft"
	"github.com/sonroyaalmerol/napstablook/internal/player"
	"github.com/sonroyaalmerol/napstablook/internal/utils"
)

const unknownFunction = "unknown function"

// Call carries one invocation from either surface.
type Call struct {
	Request player.Request
	RoleIDs []string
	Args    map[string]any
}

type Minecraft interface {
	Status(ctx context.Context) (minecraft.Status, error)
	Exec(ctx context.Context, command string) (string, error)
}

type Compute interface {
	InstanceID() string
	Start(ctx context.Context) (compute.Instance, error)
	Stop(ctx context.Context) (compute.Instance, error)
}

// ACL gates console access by user id, role id or developer id.
type ACL struct {
	DevIDs  []string
	UserIDs []string
	RoleIDs []string
}

func (acl ACL) Allows(userID string, roleIDs []string) bool {
	if userID == "" {
		return false
	}
	if slices.Contains(acl.DevIDs, userID) || slices.Contains(acl.UserIDs, userID) {
		return true
	}
	for _, r := range roleIDs {
		if slices.Contains(acl.RoleIDs, r) {
			return true
		}
	}
	return false
}

// Adapter maps tool and slash-command names onto gateway operations.
type Adapter struct {
	gw  *player.Gateway
	mc  Minecraft
	ec2 Compute
	acl ACL
}

// New wires the adapter. mc and ec2 may be nil when not configured.
func New(gw *player.Gateway, mc Minecraft, ec2 Compute, acl ACL) *Adapter {
	return &Adapter{gw: gw, mc: mc, ec2: ec2, acl: acl}
}

// Dispatch runs the assistant tool called name.
func (a *Adapter) Dispatch(ctx context.Context, name string, c Call) player.Result {
	s, ok := LookupTool(name)
	if !ok {
		slog.Debug("unknown tool call", "name", name, "guildID", c.Request.GuildID)
		return player.Result{Message: unknownFunction}
	}
	return a.run(ctx, s, c)
}

// DispatchSlash runs the slash command called name.
func (a *Adapter) DispatchSlash(ctx context.Context, name string, c Call) player.Result {
	s, ok := LookupSlash(name)
	if !ok {
		return player.Result{Message: unknownFunction}
	}
	return a.run(ctx, s, c)
}

func (a *Adapter) run(ctx context.Context, s Spec, c Call) player.Result {
	if c.Args == nil {
		c.Args = map[string]any{}
	}
	res := s.run(ctx, a, c)
	slog.Debug("dispatched", "op", s.Op.String(), "guildID", c.Request.GuildID, "userID", c.Request.UserID, "success", res.Success)
	return res
}

// AsMap renders a result as a plain JSON object for function responses.
func AsMap(r player.Result) map[string]any {
	out := map[string]any{"success": r.Success, "message": r.Message}
	if r.Data == nil {
		return out
	}
	raw, err := json.Marshal(r.Data)
	if err != nil {
		return out
	}
	var data any
	if err := json.Unmarshal(raw, &data); err == nil {
		out["data"] = data
	}
	return out
}

var errNotNumber = errors.New("not a number")

func stringArg(args map[string]any, name string) string {
	switch v := args[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}

// numberArg accepts JSON numbers, Go ints and numeric strings. Magnitudes
// past math.MaxInt32 are clamped so callers can scale the result safely.
func numberArg(args map[string]any, name string) (int, error) {
	var f float64
	switch v := args[name].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return 0, errNotNumber
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, errNotNumber
		}
		f = n
	default:
		return 0, errNotNumber
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotNumber
	}
	return int(math.Round(max(-math.MaxInt32, min(f, math.MaxInt32)))), nil
}

func runPlay(ctx context.Context, a *Adapter, c Call) player.Result {
	q := stringArg(c.Args, "query")
	if q == "" {
		return player.Fail(player.ErrQueryRequired)
	}
	return a.gw.Play(ctx, c.Request, q)
}

func runVolume(_ context.Context, a *Adapter, c Call) player.Result {
	v, err := numberArg(c.Args, "volume")
	if err != nil {
		return player.Failf("volume must be a number")
	}
	return a.gw.SetVolume(c.Request, v)
}

func runDefaultVolume(ctx context.Context, a *Adapter, c Call) player.Result {
	v, err := numberArg(c.Args, "volume")
	if err != nil {
		return player.Failf("volume must be a number")
	}
	return a.gw.SetDefaultVolume(ctx, c.Request, v)
}

func runSeek(_ context.Context, a *Adapter, c Call) player.Result {
	if n, err := numberArg(c.Args, "time"); err == nil {
		return a.gw.Seek(c.Request, n)
	}
	sec, ok := utils.ParseDurationString(stringArg(c.Args, "time"))
	if !ok {
		return player.Failf("time must be a number of seconds or a duration like 1:30")
	}
	return a.gw.Seek(c.Request, sec)
}

func runMinecraftStatus(ctx context.Context, a *Adapter, _ Call) player.Result {
	if a.mc == nil {
		return player.Failf("minecraft is not configured")
	}
	st, err := a.mc.Status(ctx)
	if err != nil {
		slog.Warn("minecraft status failed", "err", err)
		return player.Result{
			Message: fmt.Sprintf("minecraft server status check failed: %s", err.Error()),
			Data:    map[string]any{"online": false, "host": st.Host, "port": st.Port},
		}
	}
	msg := fmt.Sprintf("minecraft server is online. version: %s. players: %d/%d.", st.Version, st.Online, st.Max)
	return player.OK(msg, st)
}

func runMinecraftRcon(ctx context.Context, a *Adapter, c Call) player.Result {
	if !a.acl.Allows(c.Request.UserID, c.RoleIDs) {
		slog.Info("rcon denied", "guildID", c.Request.GuildID, "userID", c.Request.UserID)
		return player.Failf("you aren't allowed to use minecraft rcon. ask an admin to add your user id to RCON_ALLOWED_USER_IDS (or give you an allowed role).")
	}
	if a.mc == nil {
		return player.Fail(minecraft.ErrRconNotConfigured)
	}
	cmd := stringArg(c.Args, "command")
	out, err := a.mc.Exec(ctx, cmd)
	switch {
	case errors.Is(err, minecraft.ErrRconNotConfigured), errors.Is(err, minecraft.ErrMissingCommand):
		return player.Fail(err)
	case err != nil:
		slog.Warn("rcon failed", "command", cmd, "err", err)
		return player.Failf("rcon failed: %s", err.Error())
	}
	if out == "" {
		return player.OK("rcon command sent (no response).", map[string]string{"command": cmd})
	}
	return player.OK("rcon response: "+out, map[string]string{"command": cmd, "response": out})
}

func runStartServer(ctx context.Context, a *Adapter, _ Call) player.Result {
	if a.ec2 == nil {
		return player.Failf("%s", compute.Explain(compute.ErrNotConfigured))
	}
	inst, err := a.ec2.Start(ctx)
	if err != nil {
		slog.Warn("ec2 start failed", "instanceID", a.ec2.InstanceID(), "err", err)
		return player.Failf("Failed to start EC2 instance `%s`: %s", a.ec2.InstanceID(), compute.Explain(err))
	}
	ip := inst.PublicIP
	if ip == "" {
		ip = "not available (check if in public subnet)"
	}
	msg := fmt.Sprintf("Started EC2 instance `%s`. Public IP: `%s`. The Minecraft server is booting, allow 2-5 minutes.", inst.ID, ip)
	return player.OK(msg, inst)
}

func runStopServer(ctx context.Context, a *Adapter, _ Call) player.Result {
	if a.ec2 == nil {
		return player.Failf("%s", compute.Explain(compute.ErrNotConfigured))
	}
	inst, err := a.ec2.Stop(ctx)
	if err != nil {
		slog.Warn("ec2 stop failed", "instanceID", a.ec2.InstanceID(), "err", err)
		return player.Failf("Failed to stop EC2 instance `%s`: %s", a.ec2.InstanceID(), compute.Explain(err))
	}
	return player.OK(fmt.Sprintf("Stopping server `%s`. It may take a few minutes to fully stop.", inst.ID), inst)
}
