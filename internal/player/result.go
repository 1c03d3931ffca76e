package player

import "fmt"

// Result is what every controller operation hands back to the command and
// tool-call paths for rendering.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func OK(msg string, data any) Result {
	return Result{Success: true, Message: msg, Data: data}
}

func Fail(err error) Result {
	return Result{Message: err.Error()}
}

func Failf(format string, args ...any) Result {
	return Result{Message: fmt.Sprintf(format, args...)}
}

// PlayData accompanies a successful play.
type PlayData struct {
	PlaylistName string `json:"playlistName,omitempty"`
	TrackCount   int    `json:"trackCount"`
	Duration     string `json:"duration,omitempty"`
	Title        string `json:"title,omitempty"`
	Started      bool   `json:"started"`
}
