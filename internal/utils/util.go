package utils

import (
	"fmt"
	"math"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

func EscapeMd(s string) string {
	repl := []string{"*", "\\*", "_", "\\_", "`", "\\`", "~", "\\~", "[", "\\[", "]", "\\]"}
	r := strings.NewReplacer(repl...)
	return r.Replace(s)
}

// PrettyTime renders seconds as m:ss or h:mm:ss.
func PrettyTime(sec int) string {
	if sec < 0 {
		sec = 0
	}
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// PrettyMillis is PrettyTime for millisecond durations.
func PrettyMillis(ms int64) string {
	return PrettyTime(int(ms / 1000))
}

// Truncate cuts s to max runes, replacing the tail with "..." when it had to cut.
func Truncate(s string, max int) string {
	if max <= 3 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}

var reDur = regexp.MustCompile(`(?i)^(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

// ParseDurationString accepts plain seconds, "1m30s" or "1:30" and returns seconds.
// ok is false when s is not a duration at all.
func ParseDurationString(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	if strings.Contains(s, ":") {
		total := 0
		for _, part := range strings.Split(s, ":") {
			n, err := strconv.Atoi(part)
			if err != nil || n < 0 {
				return 0, false
			}
			total = total*60 + n
			if total > math.MaxInt32 {
				return 0, false
			}
		}
		return total, true
	}
	m := reDur.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	return Atoi(m[1])*3600 + Atoi(m[2])*60 + Atoi(m[3]), true
}

func Atoi(s string) int {
	if s == "" {
		return 0
	}
	v, _ := strconv.Atoi(s)
	return v
}

func ShuffleSlice[T any](a []T) {
	rand.Shuffle(len(a), func(i, j int) { a[i], a[j] = a[j], a[i] })
}
