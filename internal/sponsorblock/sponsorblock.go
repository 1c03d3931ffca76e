package sponsorblock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

var baseURL = "https://sponsor.ajay.app/api/skipSegments"

// categoryOffTopic marks the non-music parts of music videos.
const categoryOffTopic = "music_offtopic"

var errUnavailable = errors.New("sponsorblock unavailable")

type Segment struct {
	Category   string     `json:"category"`
	Segment    [2]float64 `json:"segment"` // [start, end] seconds
	UUID       string     `json:"UUID"`
	ActionType string     `json:"actionType"`
}

type Client struct {
	http *http.Client
}

func NewClient() *Client {
	return &Client{http: &http.Client{Timeout: 8 * time.Second}}
}

// GetSegments fetches segments of the given categories for a YouTube video.
func (c *Client) GetSegments(ctx context.Context, videoID string, categories []string) ([]Segment, error) {
	u, _ := url.Parse(baseURL)
	q := u.Query()
	q.Set("videoID", videoID)
	for _, cat := range categories {
		q.Add("category", cat)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		// no segments for this video
		return []Segment{}, nil
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return nil, fmt.Errorf("%w: status %d", errUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("sponsorblock: status %d", resp.StatusCode)
	}

	var segs []Segment
	if err := json.NewDecoder(resp.Body).Decode(&segs); err != nil {
		return nil, err
	}
	return segs, nil
}

// MergeSegments sorts segments by start and joins the overlapping ones.
func MergeSegments(segs []Segment) []Segment {
	if len(segs) == 0 {
		return segs
	}
	segs = append([]Segment(nil), segs...)
	sort.Slice(segs, func(i, j int) bool {
		return segs[i].Segment[0] < segs[j].Segment[0]
	})
	out := []Segment{segs[0]}
	for _, s := range segs[1:] {
		last := &out[len(out)-1]
		if s.Segment[0] <= last.Segment[1] {
			if s.Segment[1] > last.Segment[1] {
				last.Segment[1] = s.Segment[1]
			}
		} else {
			out = append(out, s)
		}
	}
	return out
}

// VideoID extracts the video id from a YouTube watch, short or youtu.be URL.
func VideoID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch {
	case host == "youtu.be":
		return strings.Trim(u.Path, "/")
	case strings.HasSuffix(host, "youtube.com"):
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		if id, ok := strings.CutPrefix(u.Path, "/shorts/"); ok {
			return strings.Trim(id, "/")
		}
	}
	return ""
}
