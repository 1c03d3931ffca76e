package minecraft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/Tnze/go-mc/bot"
	"github.com/Tnze/go-mc/chat"
	"github.com/gorcon/rcon"
)

var (
	ErrRconNotConfigured = errors.New("rcon is not configured. set enable-rcon=true and rcon.password in server.properties, then set RCON_PASSWORD (and RCON_PORT if needed)")
	ErrMissingCommand    = errors.New("missing rcon command")
)

const maxSamplePlayers = 10

type Config struct {
	Host          string
	Port          int
	StatusTimeout time.Duration

	RconHost     string
	RconPort     int
	RconPassword string
	RconTimeout  time.Duration
}

type Status struct {
	Host      string   `json:"host"`
	Port      int      `json:"port"`
	Version   string   `json:"version"`
	Protocol  int      `json:"protocol"`
	Online    int      `json:"online"`
	Max       int      `json:"max"`
	Players   []string `json:"players,omitempty"`
	MOTD      string   `json:"motd"`
	LatencyMs int64    `json:"latencyMs"`
}

// Addr is host:port of the game listener.
func (s Status) Addr() string { return net.JoinHostPort(s.Host, strconv.Itoa(s.Port)) }

type pingFunc func(addr string, timeout time.Duration) ([]byte, time.Duration, error)

type rconConn interface {
	Execute(command string) (string, error)
	Close() error
}

type dialFunc func(addr, password string, timeout time.Duration) (rconConn, error)

type Client struct {
	cfg  Config
	ping pingFunc
	dial dialFunc
}

func New(cfg Config) *Client {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 25565
	}
	if cfg.RconHost == "" {
		cfg.RconHost = cfg.Host
	}
	if cfg.RconPort == 0 {
		cfg.RconPort = 25575
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = 3 * time.Second
	}
	if cfg.RconTimeout <= 0 {
		cfg.RconTimeout = 5 * time.Second
	}
	return &Client{cfg: cfg, ping: bot.PingAndListTimeout, dial: dialRcon}
}

func dialRcon(addr, password string, timeout time.Duration) (rconConn, error) {
	return rcon.Dial(addr, password, rcon.SetDialTimeout(timeout), rcon.SetDeadline(timeout))
}

func (c *Client) Host() string { return c.cfg.Host }
func (c *Client) Port() int { return c.cfg.Port }

// Status pings the server list endpoint.
func (c *Client) Status(ctx context.Context) (Status, error) {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	timeout := boundedTimeout(ctx, c.cfg.StatusTimeout)

	raw, latency, err := c.ping(addr, timeout)
	if err != nil {
		return Status{Host: c.cfg.Host, Port: c.cfg.Port}, fmt.Errorf("ping %s: %w", addr, err)
	}
	st, err := ParseStatus(raw)
	if err != nil {
		return Status{Host: c.cfg.Host, Port: c.cfg.Port}, err
	}
	st.Host = c.cfg.Host
	st.Port = c.cfg.Port
	st.LatencyMs = latency.Milliseconds()
	return st, nil
}

type listResponse struct {
	Version struct {
		Name     string `json:"name"`
		Protocol int    `json:"protocol"`
	} `json:"version"`
	Players struct {
		Max    int `json:"max"`
		Online int `json:"online"`
		Sample []struct {
			Name string `json:"name"`
			ID   string `json:"id"`
		} `json:"sample"`
	} `json:"players"`
	Description chat.Message `json:"description"`
}

// ParseStatus decodes a server list ping response.
func ParseStatus(raw []byte) (Status, error) {
	var resp listResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Status{}, fmt.Errorf("decode status: %w", err)
	}
	st := Status{
		Version:  resp.Version.Name,
		Protocol: resp.Version.Protocol,
		Online:   resp.Players.Online,
		Max:      resp.Players.Max,
		MOTD:     strings.TrimSpace(resp.Description.ClearString()),
	}
	if st.Version == "" {
		st.Version = "unknown"
	}
	for i, p := range resp.Players.Sample {
		if i == maxSamplePlayers {
			break
		}
		st.Players = append(st.Players, p.Name)
	}
	return st, nil
}

// Exec runs one console command over RCON and returns the trimmed response.
func (c *Client) Exec(ctx context.Context, command string) (string, error) {
	if c.cfg.RconPassword == "" {
		return "", ErrRconNotConfigured
	}
	command = strings.TrimSpace(command)
	if command == "" {
		return "", ErrMissingCommand
	}

	addr := net.JoinHostPort(c.cfg.RconHost, strconv.Itoa(c.cfg.RconPort))
	conn, err := c.dial(addr, c.cfg.RconPassword, boundedTimeout(ctx, c.cfg.RconTimeout))
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", addr, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("rcon close failed", "addr", addr, "err", err)
		}
	}()

	slog.Info("rcon command", "addr", addr, "command", command)
	out, err := conn.Execute(command)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func boundedTimeout(ctx context.Context, d time.Duration) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < d {
			return max(left, time.Millisecond)
		}
	}
	return d
}
