package repository

import (
	"database/sql"
	"time"
)

type Repo struct {
	db  *sql.DB
	now func() time.Time
}

type Settings struct {
	GuildID         string
	DefaultVolume   int
	Autoplay        bool
	Persistent      bool
	PersistentText  string
	PersistentVoice string
	UpdatedAt       time.Time
}

// Turn is one message of a user's conversation with the assistant.
type Turn struct {
	ID        int64
	UserID    string
	Role      string
	Content   string
	CreatedAt time.Time
}
