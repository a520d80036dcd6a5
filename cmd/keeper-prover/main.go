// Command keeper-prover proves a single request. keeperd starts one per
// proof, writes the request to stdin as CBOR and reads one CBOR result from
// stdout.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/kazz187/keeperd/internal/proof"
	"github.com/kazz187/keeperd/pkg/clog"
)

var (
	app = kingpin.New("keeper-prover", "Isolated zero-knowledge proof worker for keeperd")

	command  = app.Flag("command", "Shell command producing the proof JSON on stdout").Envar("KEEPER_PROVER_COMMAND").Required().String()
	logLevel = app.Flag("log-level", "Log level").Envar("KEEPER_LOG_LEVEL").Default("info").String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	// stdout carries the result, so logs go to stderr where keeperd keeps
	// the tail for error reports.
	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(clog.NewTextHandler(os.Stderr, clog.WithLevel(level), clog.WithColor(false))))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prover, err := proof.NewShellProver(*command, nil)
	if err != nil {
		slog.Error("invalid prover command", "error", err)
		os.Exit(2)
	}
	if err := proof.ServeWorker(ctx, os.Stdin, os.Stdout, prover); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}
