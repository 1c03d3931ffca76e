package stream

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/sonroyaalmerol/napstablook/internal/utils"
)

// pcmSource is an ffmpeg process decoding one input to s16le 48kHz stereo.
type pcmSource struct {
	cmd    *exec.Cmd
	out    io.ReadCloser
	stderr *utils.StderrTail
	cancel context.CancelFunc

	waitOnce sync.Once
	waitErr  error
}

func ffmpegArgs(input string, startMs int64) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		args = append(args,
			"-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5",
			"-headers", utils.FFmpegHeaders(nil),
		)
	}
	if startMs > 0 {
		args = append(args, "-ss", strconv.FormatFloat(float64(startMs)/1000, 'f', 3, 64))
	}
	return append(args,
		"-i", input,
		"-vn",
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(sampleRate),
		"-f", "s16le",
		"pipe:1",
	)
}

func openPCM(ctx context.Context, input string, startMs int64) (*pcmSource, error) {
	ctx, cancel := context.WithCancel(ctx)
	cmd := utils.ExecWith(ctx, "ffmpeg", ffmpegArgs(input, startMs)...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	stderr := utils.NewStderrTail(2048)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg start: %w", err)
	}
	return &pcmSource{cmd: cmd, out: out, stderr: stderr, cancel: cancel}, nil
}

func (p *pcmSource) Read(b []byte) (int, error) {
	return p.out.Read(b)
}

// Wait reaps ffmpeg once its output is drained.
func (p *pcmSource) Wait() error {
	p.waitOnce.Do(func() {
		if err := p.cmd.Wait(); err != nil {
			p.waitErr = fmt.Errorf("ffmpeg: %w (stderr: %s)", err, p.stderr.String())
		}
	})
	return p.waitErr
}

func (p *pcmSource) Close() {
	p.cancel()
	_ = p.Wait()
}

// applyGain scales interleaved s16le samples in place by volume percent.
func applyGain(pcm []byte, volume int) {
	if volume >= 100 {
		return
	}
	if volume < 0 {
		volume = 0
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int32(int16(binary.LittleEndian.Uint16(pcm[i:])))
		s = s * int32(volume) / 100
		binary.LittleEndian.PutUint16(pcm[i:], uint16(int16(s)))
	}
}
