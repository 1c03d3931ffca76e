package player

import "errors"

var (
	// validation
	ErrQueryRequired = errors.New("query is required")
	ErrVolumeRange   = errors.New("volume must be between 0 and 100")
	ErrSeekNegative  = errors.New("time must be zero or more seconds")

	// authorization
	ErrNotInVoice      = errors.New("must be in a voice channel")
	ErrWrongChannel    = errors.New("must be in the same voice channel")
	ErrNeedManageGuild = errors.New("need manage-guild permission")

	// state preconditions
	ErrNotPlaying     = errors.New("not currently playing")
	ErrNoSession      = errors.New("no music is playing")
	ErrCannotSkip     = errors.New("cannot skip: queue is empty")
	ErrAlreadyPaused  = errors.New("already paused")
	ErrNotPaused      = errors.New("not paused")
	ErrNotEnoughSongs = errors.New("not enough songs to shuffle")
	ErrNotSeekable    = errors.New("current song is not seekable")
	ErrSeekPastEnd    = errors.New("time exceeds song duration")
	ErrNoPrevious     = errors.New("no previous song found")
	ErrNoResults      = errors.New("no results found")

	ErrSessionClosed = errors.New("session closed")
)
