package stream

import (
	"context"
	"encoding/binary"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/napstablook/internal/player"
)

func samples(vals ...int16) []byte {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(v))
	}
	return b
}

func TestApplyGain(t *testing.T) {
	pcm := samples(1000, -1000, 32767, -32768)
	applyGain(pcm, 50)
	assert.Equal(t, samples(500, -500, 16383, -16384), pcm)

	full := samples(1234, -4321)
	applyGain(full, 100)
	assert.Equal(t, samples(1234, -4321), full)

	mute := samples(1234, -4321)
	applyGain(mute, 0)
	assert.Equal(t, samples(0, 0), mute)
}

func TestFFmpegArgs(t *testing.T) {
	args := ffmpegArgs("https://cdn.example/audio.webm", 90_500)
	assert.Contains(t, args, "-reconnect")
	assert.Contains(t, args, "-headers")

	ss := slices.Index(args, "-ss")
	in := slices.Index(args, "-i")
	require.NotEqual(t, -1, ss)
	assert.Equal(t, "90.500", args[ss+1])
	assert.Less(t, ss, in, "seek must be an input option")
	assert.Equal(t, "https://cdn.example/audio.webm", args[in+1])
	assert.Equal(t, []string{"-f", "s16le", "pipe:1"}, args[len(args)-3:])

	local := ffmpegArgs("/tmp/file.mp3", 0)
	assert.NotContains(t, local, "-reconnect")
	assert.NotContains(t, local, "-ss")
}

func TestMediaURL(t *testing.T) {
	u, err := MediaURL(&Info{MediaURLs: []string{"", "https://rr1.example/videoplayback"}})
	require.NoError(t, err)
	assert.Equal(t, "https://rr1.example/videoplayback", u)

	u, err = MediaURL(&Info{WebpageURL: "https://radio.example/stream.mp3"})
	require.NoError(t, err)
	assert.Equal(t, "https://radio.example/stream.mp3", u)

	_, err = MediaURL(&Info{WebpageURL: "https://www.youtube.com/watch?v=abc"})
	assert.ErrorIs(t, err, ErrNoMedia)
}

func TestDirectTracksSkipYtdlp(t *testing.T) {
	y := NewYTDLP("")
	u, err := y.MediaURL(context.Background(), player.Track{URI: "https://radio.example/live", SourceName: "http"})
	require.NoError(t, err)
	assert.Equal(t, "https://radio.example/live", u)
}

func TestFrameBytes(t *testing.T) {
	assert.Equal(t, 3840, FrameBytes())
}

type fixedTrimmer struct {
	start, end int64
	ok         bool
}

func (f fixedTrimmer) Trim(context.Context, player.Track) (int64, int64, bool) {
	return f.start, f.end, f.ok
}

func TestLinkWindow(t *testing.T) {
	pb := &playback{}
	l := &link{trim: fixedTrimmer{start: 8000, end: 180000, ok: true}}

	start, end := l.window(context.Background(), pb, 0)
	assert.Equal(t, int64(8000), start)
	assert.Equal(t, int64(180000), end)
	assert.Equal(t, int64(8000), pb.posMs.Load())

	// seeks keep their offset
	start, end = l.window(context.Background(), pb, 60000)
	assert.Equal(t, int64(60000), start)
	assert.Equal(t, int64(180000), end)

	// seeking past the outro plays to the end
	_, end = l.window(context.Background(), pb, 190000)
	assert.Zero(t, end)

	l.trim = nil
	start, end = l.window(context.Background(), pb, 0)
	assert.Zero(t, start)
	assert.Zero(t, end)
}
