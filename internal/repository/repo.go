package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sonroyaalmerol/napstablook/internal/player"
)

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db, now: time.Now} }

func (r *Repo) UpsertSettings(ctx context.Context, guild string) (*Settings, error) {
	if _, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings(guild_id, updated_at) VALUES (?, ?)`, guild, r.now().Unix(),
	); err != nil {
		return nil, err
	}
	return r.GetSettings(ctx, guild)
}

func (r *Repo) GetSettings(ctx context.Context, guild string) (*Settings, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT guild_id, default_volume, autoplay, persistent_enabled,
	       persistent_text, persistent_voice, updated_at
	FROM settings WHERE guild_id = ?`, guild)
	return scanSettings(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSettings(row scanner) (*Settings, error) {
	var s Settings
	var autoplay, persistent int
	var updated int64
	if err := row.Scan(
		&s.GuildID,
		&s.DefaultVolume,
		&autoplay,
		&persistent,
		&s.PersistentText,
		&s.PersistentVoice,
		&updated,
	); err != nil {
		return nil, err
	}
	s.Autoplay = autoplay != 0
	s.Persistent = persistent != 0
	s.UpdatedAt = time.Unix(updated, 0)
	return &s, nil
}

func (r *Repo) UpdateSettings(ctx context.Context, s *Settings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings(guild_id, default_volume, autoplay, persistent_enabled,
		                     persistent_text, persistent_voice, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
		  default_volume=excluded.default_volume,
		  autoplay=excluded.autoplay,
		  persistent_enabled=excluded.persistent_enabled,
		  persistent_text=excluded.persistent_text,
		  persistent_voice=excluded.persistent_voice,
		  updated_at=excluded.updated_at`,
		s.GuildID, s.DefaultVolume, boolToInt(s.Autoplay), boolToInt(s.Persistent),
		s.PersistentText, s.PersistentVoice, r.now().Unix(),
	)
	return err
}

// update loads, mutates and stores a guild's settings row.
func (r *Repo) update(ctx context.Context, guild string, fn func(*Settings)) error {
	s, err := r.UpsertSettings(ctx, guild)
	if err != nil {
		return err
	}
	fn(s)
	return r.UpdateSettings(ctx, s)
}

// GuildSettings reports a guild's playback settings, defaults when the guild
// has never been configured.
func (r *Repo) GuildSettings(ctx context.Context, guild string) (player.GuildSettings, error) {
	s, err := r.GetSettings(ctx, guild)
	if errors.Is(err, sql.ErrNoRows) {
		return player.GuildSettings{DefaultVolume: -1}, nil
	}
	if err != nil {
		return player.GuildSettings{}, err
	}
	return player.GuildSettings{
		DefaultVolume: s.DefaultVolume,
		Autoplay:      s.Autoplay,
		Persistent: player.Persistent{
			Enabled:        s.Persistent,
			TextChannelID:  s.PersistentText,
			VoiceChannelID: s.PersistentVoice,
		},
	}, nil
}

func (r *Repo) SavePersistent(ctx context.Context, guild string, p player.Persistent) error {
	return r.update(ctx, guild, func(s *Settings) {
		s.Persistent = p.Enabled
		s.PersistentText = p.TextChannelID
		s.PersistentVoice = p.VoiceChannelID
	})
}

func (r *Repo) SaveAutoplay(ctx context.Context, guild string, on bool) error {
	return r.update(ctx, guild, func(s *Settings) { s.Autoplay = on })
}

func (r *Repo) SaveDefaultVolume(ctx context.Context, guild string, volume int) error {
	return r.update(ctx, guild, func(s *Settings) { s.DefaultVolume = volume })
}

// PersistentGuilds lists every guild with 24/7 mode on.
func (r *Repo) PersistentGuilds(ctx context.Context) (map[string]player.Persistent, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT guild_id, default_volume, autoplay, persistent_enabled,
	       persistent_text, persistent_voice, updated_at
	FROM settings WHERE persistent_enabled = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]player.Persistent)
	for rows.Next() {
		s, err := scanSettings(rows)
		if err != nil {
			return nil, err
		}
		out[s.GuildID] = player.Persistent{
			Enabled:        true,
			TextChannelID:  s.PersistentText,
			VoiceChannelID: s.PersistentVoice,
		}
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
