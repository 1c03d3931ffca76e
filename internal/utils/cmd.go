package utils

import (
	"bytes"
	"context"
	"os/exec"
)

func ExecWith(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}

// StderrTail keeps the last bytes a child process wrote to stderr so failures
// can be reported without buffering the whole stream.
type StderrTail struct {
	max int
	buf bytes.Buffer
}

func NewStderrTail(max int) *StderrTail { return &StderrTail{max: max} }

func (t *StderrTail) Write(p []byte) (int, error) {
	t.buf.Write(p)
	if over := t.buf.Len() - t.max; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *StderrTail) String() string { return string(bytes.TrimSpace(t.buf.Bytes())) }
