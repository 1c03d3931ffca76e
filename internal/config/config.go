package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var searchSources = map[string]bool{"youtube": true, "youtubemusic": true, "soundcloud": true}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not read .env file", "err", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	_ = os.MkdirAll(cfg.DataDir, 0o755)
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DiscordToken == "" {
		return ErrConfig("DISCORD_TOKEN required")
	}
	if c.DefaultVolume < 0 || c.DefaultVolume > 100 {
		return ErrConfig("DEFAULT_VOLUME must be between 0 and 100")
	}
	c.SearchSource = strings.ToLower(strings.TrimSpace(c.SearchSource))
	if !searchSources[c.SearchSource] {
		return ErrConfig("SEARCH_SOURCE must be one of youtube, youtubemusic, soundcloud")
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 20
	}
	return nil
}

// SpotifyEnabled reports whether Spotify client credentials were provided.
func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
