package utils

import (
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
	"strings"
)

func RandomUserAgent() string {
	const minMajor = 132
	const maxMajor = 138

	major := rand.IntN(maxMajor-minMajor+1) + minMajor
	return fmt.Sprintf(
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.0.0 Safari/537.36",
		major,
	)
}

// FFmpegHeaders builds the CRLF-joined value for ffmpeg's -headers input option.
// Missing browser-ish defaults are filled in; output order is stable.
func FFmpegHeaders(base map[string]string) string {
	h := maps.Clone(base)
	if h == nil {
		h = map[string]string{}
	}
	defaults := map[string]string{
		"User-Agent":      RandomUserAgent(),
		"Accept":          "*/*",
		"Accept-Language": "en-US,en;q=0.9",
	}
	for k, v := range defaults {
		if _, ok := h[k]; !ok {
			h[k] = v
		}
	}

	keys := slices.Sorted(maps.Keys(h))
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", strings.TrimSpace(k), strings.TrimSpace(h[k]))
	}
	return b.String()
}
