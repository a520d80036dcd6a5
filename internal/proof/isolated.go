package proof

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/kazz187/keeperd/pkg/codec"
)

const (
	// stderrTail bounds the worker stderr written to the log.
	stderrTail = 2048
	waitDelay  = 2 * time.Second
)

// workerEnvKeys are the only variables a prover inherits from the broker.
var workerEnvKeys = []string{"PATH", "HOME", "TMPDIR", "KEEPER_PROVER_COMMAND", "KEEPER_LOG_LEVEL"}

// WorkerEnviron returns the allowlisted part of the broker environment
// followed by extra.
func WorkerEnviron(extra ...string) []string {
	env := make([]string, 0, len(workerEnvKeys)+len(extra))
	for _, key := range workerEnvKeys {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+v)
		}
	}
	return append(env, extra...)
}

// Isolated proves each request in a fresh worker process. The worker gets
// exactly one request on stdin and answers with exactly one result on
// stdout; it is killed and reaped on every exit path.
type Isolated struct {
	binary string
	args   []string
	env    []string
	onExit func(*os.ProcessState)
}

type IsolatedOption func(*Isolated)

func WithWorkerArgs(args ...string) IsolatedOption {
	return func(d *Isolated) { d.args = args }
}

// WithWorkerEnv appends KEY=VALUE pairs to the worker environment.
func WithWorkerEnv(env ...string) IsolatedOption {
	return func(d *Isolated) { d.env = append(d.env, env...) }
}

func NewIsolated(binary string, opts ...IsolatedOption) *Isolated {
	d := &Isolated{binary: binary}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Isolated) Prove(ctx context.Context, req *Request) (resp *Response, err error) {
	cmd := exec.CommandContext(ctx, d.binary, d.args...)
	cmd.Env = WorkerEnviron(d.env...)
	cmd.WaitDelay = waitDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}
	defer func() {
		d.teardown(ctx, cmd)
		if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
			err = ctxErr
			return
		}
		if err != nil && stderr.Len() > 0 {
			slog.WarnContext(ctx, "prover worker failed", "pid", cmd.Process.Pid, "stderr", tail(stderr.String()))
		}
	}()

	if err := codec.NewEncoder(stdin).Encode(req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if err := stdin.Close(); err != nil {
		return nil, fmt.Errorf("close worker stdin: %w", err)
	}

	var result workerResult
	if err := codec.NewDecoder(stdout).Decode(&result); err != nil {
		return nil, fmt.Errorf("read worker result: %w", err)
	}
	if result.Error != "" {
		return nil, errors.New(result.Error)
	}
	if result.Response == nil {
		return nil, errors.New("worker returned an empty result")
	}
	return result.Response, nil
}

func (d *Isolated) teardown(ctx context.Context, cmd *exec.Cmd) {
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		slog.WarnContext(ctx, "failed to kill prover worker", "pid", cmd.Process.Pid, "error", err)
	}
	_ = cmd.Wait()
	slog.DebugContext(ctx, "prover worker reaped", "pid", cmd.Process.Pid, "state", cmd.ProcessState.String())
	if d.onExit != nil {
		d.onExit(cmd.ProcessState)
	}
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTail {
		s = s[len(s)-stderrTail:]
	}
	return s
}
