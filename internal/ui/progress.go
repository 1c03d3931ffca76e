package ui

import (
	"math"
	"strings"
)

const (
	barTrack = "▬"
	barKnob  = "🔘"
)

// ProgressBar renders a track of width cells with the knob placed at
// progress, clamped to [0, 1].
func ProgressBar(width int, progress float64) string {
	if width <= 0 {
		return ""
	}
	progress = max(0, min(progress, 1))
	knob := int(math.Round(progress * float64(width-1)))
	return strings.Repeat(barTrack, knob) + barKnob + strings.Repeat(barTrack, width-1-knob)
}
