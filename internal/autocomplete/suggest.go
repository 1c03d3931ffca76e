package autocomplete

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sonroyaalmerol/napstablook/internal/spotify"
	"github.com/sonroyaalmerol/napstablook/internal/utils"
)

const (
	choiceCap  = 100
	maxChoices = 25
)

var suggestURL = "https://suggestqueries.google.com/complete/search"

// SpotifySuggester is optional; a nil value skips Spotify hits.
type SpotifySuggester interface {
	Suggest(ctx context.Context, query string, limit int) ([]spotify.Suggestion, error)
}

type Suggester struct {
	http    *http.Client
	spotify SpotifySuggester
}

func New(sp SpotifySuggester) *Suggester {
	return &Suggester{http: &http.Client{Timeout: 3 * time.Second}, spotify: sp}
}

func (s *Suggester) youtube(ctx context.Context, query string) ([]string, error) {
	u, _ := url.Parse(suggestURL)
	q := u.Query()
	q.Set("client", "firefox")
	q.Set("ds", "yt")
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", utils.RandomUserAgent())
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("suggest: status %d", resp.StatusCode)
	}

	var parsed []any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed) < 2 {
		return nil, nil
	}
	arr, ok := parsed[1].([]any)
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if str, ok := v.(string); ok {
			out = append(out, str)
		}
	}
	return out, nil
}

// Choices mixes YouTube search suggestions with Spotify albums and tracks,
// keeping room for up to limit/2 Spotify hits.
func (s *Suggester) Choices(ctx context.Context, query string, limit int) []*discordgo.ApplicationCommandOptionChoice {
	if limit <= 0 || limit > maxChoices {
		limit = 10
	}
	if query == "" {
		return nil
	}
	yt, _ := s.youtube(ctx, query)

	var sp []spotify.Suggestion
	if s.spotify != nil {
		sp, _ = s.spotify.Suggest(ctx, query, limit/4)
		if len(sp) > limit/2 {
			sp = sp[:limit/2]
		}
	}

	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, limit)
	for _, v := range yt {
		if len(out) >= limit-len(sp) {
			break
		}
		out = append(out, choice("YouTube: "+v, v))
	}
	for _, v := range sp {
		out = append(out, choice("Spotify: "+v.Label, v.Value))
	}
	return out
}

func choice(name, value string) *discordgo.ApplicationCommandOptionChoice {
	return &discordgo.ApplicationCommandOptionChoice{
		Name:  utils.Truncate(name, choiceCap),
		Value: utils.Truncate(value, choiceCap),
	}
}
