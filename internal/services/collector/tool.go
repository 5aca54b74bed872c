package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/google/shlex"
)

var (
	ErrTimeout     = errors.New("query tool timed out")
	ErrEmptyOutput = errors.New("query tool returned no output")
)

// QueryTool runs the external device query tool and returns its stdout.
// On failure the output read so far is returned with the error.
type QueryTool interface {
	Query(ctx context.Context, args ...string) (string, error)
}

// ExecTool runs a tool binary as a child process.
type ExecTool struct {
	path    string
	base    []string
	dir     string
	timeout time.Duration
}

// NewExecTool splits commandLine shell style; the first word is the binary
// and the rest are passed before the per-call arguments.
func NewExecTool(commandLine, dir string, timeout time.Duration) (*ExecTool, error) {
	parts, err := shlex.Split(commandLine)
	if err != nil {
		return nil, fmt.Errorf("parse tool command %q: %w", commandLine, err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty tool command")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ExecTool{path: parts[0], base: parts[1:], dir: dir, timeout: timeout}, nil
}

func (t *ExecTool) String() string { return t.path }

func (t *ExecTool) Query(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	argv := make([]string, 0, len(t.base)+len(args))
	argv = append(argv, t.base...)
	argv = append(argv, args...)
	cmd := exec.CommandContext(ctx, t.path, argv...)
	cmd.Dir = t.dir
	var out bytes.Buffer
	cmd.Stdout = &out
	// a killed tool may leave children holding stdout open
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out.String(), fmt.Errorf("%s after %s: %w", t.path, t.timeout, ErrTimeout)
	}
	if err != nil {
		return out.String(), fmt.Errorf("%s: %w", t.path, err)
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("%s: %w", t.path, ErrEmptyOutput)
	}
	return out.String(), nil
}
