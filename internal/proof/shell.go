package proof

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Environment passed to the prover command.
const (
	EnvProofKind  = "KEEPER_PROOF_KIND"
	EnvProofInput = "KEEPER_PROOF_INPUT"
	EnvCircuit    = "KEEPER_CIRCUIT"
	EnvZkey       = "KEEPER_ZKEY"
	EnvVKey       = "KEEPER_VKEY"
)

// ShellProver runs a configured shell command, such as a snarkjs invocation,
// through an embedded POSIX shell. The request is written as JSON to the
// file named by $KEEPER_PROOF_INPUT and the command prints the full proof as
// JSON on stdout.
type ShellProver struct {
	command *syntax.File
	env     []string
}

// NewShellProver parses command once. env is the base environment of every
// run; nil means WorkerEnviron().
func NewShellProver(command string, env []string) (*ShellProver, error) {
	if strings.TrimSpace(command) == "" {
		return nil, errors.New("prover command is empty")
	}
	file, err := syntax.NewParser(syntax.Variant(syntax.LangPOSIX)).Parse(strings.NewReader(command), "prover")
	if err != nil {
		return nil, fmt.Errorf("parse prover command: %w", err)
	}
	if env == nil {
		env = WorkerEnviron()
	}
	return &ShellProver{command: file, env: env}, nil
}

func (p *ShellProver) Prove(ctx context.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, ErrInvalidRequest.Wrap(err)
	}
	dir, err := os.MkdirTemp("", "keeper-proof-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode proof input: %w", err)
	}
	inputPath := filepath.Join(dir, "input.json")
	if err := os.WriteFile(inputPath, input, 0o600); err != nil {
		return nil, fmt.Errorf("write proof input: %w", err)
	}

	circuit := req.Circuit()
	env := append(append([]string(nil), p.env...),
		EnvProofKind+"="+string(req.Kind),
		EnvProofInput+"="+inputPath,
		EnvCircuit+"="+circuit.CircuitFilePath,
		EnvZkey+"="+circuit.ZkeyFilePath,
		EnvVKey+"="+circuit.VerificationKey,
	)

	var stdout, stderr bytes.Buffer
	runner, err := interp.New(
		interp.StdIO(nil, &stdout, &stderr),
		interp.Env(expand.ListEnviron(env...)),
		interp.Dir(dir),
	)
	if err != nil {
		return nil, fmt.Errorf("create shell runner: %w", err)
	}
	if err := runner.Run(ctx, p.command); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var status interp.ExitStatus
		if errors.As(err, &status) {
			slog.WarnContext(ctx, "prover command failed", "status", int(status), "stderr", tail(stderr.String()))
			return nil, fmt.Errorf("prover command exited with status %d", status)
		}
		return nil, fmt.Errorf("run prover command: %w", err)
	}

	var full FullProof
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &full); err != nil {
		return nil, fmt.Errorf("decode prover output: %w", err)
	}
	if full.Proof == nil {
		return nil, errors.New("prover output has no proof")
	}
	return &Response{Kind: req.Kind, FullProof: full}, nil
}
