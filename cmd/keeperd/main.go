package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc/pool"

	server "github.com/kazz187/keeperd/internal"
	"github.com/kazz187/keeperd/internal/approval"
	"github.com/kazz187/keeperd/internal/blobrepo"
	"github.com/kazz187/keeperd/internal/config"
	"github.com/kazz187/keeperd/internal/eventbus"
	"github.com/kazz187/keeperd/internal/identity"
	"github.com/kazz187/keeperd/internal/injector"
	"github.com/kazz187/keeperd/internal/locker"
	"github.com/kazz187/keeperd/internal/locker/credentialimpl"
	"github.com/kazz187/keeperd/internal/popup"
	"github.com/kazz187/keeperd/internal/proof"
	"github.com/kazz187/keeperd/internal/pushsubscription"
	pushsubrepo "github.com/kazz187/keeperd/internal/pushsubscription/repositoryimpl"
	"github.com/kazz187/keeperd/internal/request"
	"github.com/kazz187/keeperd/pkg/clog"
	"github.com/kazz187/keeperd/pkg/panicerr"
	"github.com/kazz187/keeperd/pkg/secure"
	"github.com/kazz187/keeperd/pkg/storage"
)

const (
	approvalsPath = "approvals/store.enc"
	identityPath  = "identity/connected.enc"

	shutdownTimeout = 10 * time.Second
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	if err := run(env); err != nil {
		slog.Error("keeperd stopped", "error", err)
		os.Exit(1)
	}
}

func run(env *config.Env) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	store, closeStore, err := newStorage(ctx, config.StorageEnvFromEnv(env))
	if err != nil {
		return err
	}
	defer closeStore()

	creds, err := newCredentialStore(&env.LockerEnv, store)
	if err != nil {
		return err
	}

	bus := eventbus.New()
	session := secure.NewSession()

	// Setup stores guarded by the session key
	approvalService := approval.NewService(
		blobrepo.New(store, approvalsPath, "approvals"),
		session.For("approvals"),
		secure.NewBackup(0),
		approval.WithProduction(env.IsProduction()),
		approval.WithEventBus(bus),
	)
	identityService := identity.NewService(
		blobrepo.New(store, identityPath, "identity"),
		session.For("identity"),
		identity.WithEventBus(bus),
	)
	unlockLimit, unlockBurst := env.UnlockLimit()
	lockerService := locker.NewService(creds, session,
		locker.WithRateLimit(unlockLimit, unlockBurst),
		locker.WithEventBus(bus),
		locker.WithStores(approvalService, identityService),
	)
	approvalService.SetAuthenticator(lockerService)

	requestManager := request.NewManager(
		request.WithTimeout(env.RequestTimeout),
		request.WithEventBus(bus),
	)

	// Setup popup
	pushSubRepo := pushsubrepo.NewDocumentRepository(store)
	popupController := newPopup(env, pushSubRepo, bus)

	// Setup proof delegation
	artifacts := env.Artifacts()
	delegate, pins, err := newProofDelegate(&env.ProverEnv, artifacts)
	if err != nil {
		return err
	}

	injectorService := injector.NewService(
		lockerService,
		approvalService,
		identityService,
		requestManager,
		popupController,
		delegate,
		artifacts,
	)

	srv := server.NewServer(
		env,
		lockerService,
		approvalService,
		identityService,
		requestManager,
		pushsubscription.NewService(pushSubRepo),
		injector.NewServer(injectorService),
		eventbus.NewServer(bus),
	)

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(panicerr.SafeContext(func(ctx context.Context) error {
		if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}))
	if pins != nil {
		p.Go(panicerr.SafeContext(pins.Watch))
	}
	p.Go(panicerr.SafeContext(func(ctx context.Context) error {
		<-ctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer shutdownCancel()
		if n := requestManager.RejectAll("keeper shutting down"); n > 0 {
			slog.Info("rejected pending requests", "count", n)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		return lockerService.Lock(shutdownCtx)
	}))
	return p.Wait()
}

func newStorage(ctx context.Context, env *config.StorageEnv) (storage.Storage, func(), error) {
	noop := func() {}
	switch env.Type {
	case "s3":
		s, err := storage.NewS3Storage(ctx, env.S3Bucket, env.S3Prefix, env.S3Region)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create S3 storage: %w", err)
		}
		return s, noop, nil
	case "sqlite":
		s, err := storage.NewSQLiteStorage(ctx, env.SQLitePath)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create sqlite storage: %w", err)
		}
		return s, func() {
			if err := s.Close(); err != nil {
				slog.Error("failed to close sqlite storage", "error", err)
			}
		}, nil
	default:
		s, err := storage.NewLocalStorage(env.BaseDir)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create local storage: %w", err)
		}
		return s, noop, nil
	}
}

func newCredentialStore(env *config.LockerEnv, store storage.Storage) (locker.CredentialStore, error) {
	if env.CredentialStore == "keyring" {
		return credentialimpl.OpenKeyring("keeperd", env.KeyringBackend, env.KeyringDir, env.KeyringPassword)
	}
	return credentialimpl.NewYAMLStore(store), nil
}

func newPopup(env *config.Env, repo pushsubscription.Repository, bus *eventbus.Bus) popup.Controller {
	url := env.ApprovalURL()
	var controllers popup.Multi
	for _, name := range env.Popups {
		switch name {
		case "browser":
			controllers = append(controllers, popup.NewBrowser(url))
		case "webpush":
			controllers = append(controllers, popup.NewWebPush(env.VAPID(), url, repo, popup.WithEventBus(bus)))
		case "none", "":
		default:
			slog.Warn("unknown popup controller", "name", name)
		}
	}
	if len(controllers) == 0 {
		return popup.Noop{}
	}
	return controllers
}

// newProofDelegate wires the configured prover. Pins are only taken when
// circuits are configured.
func newProofDelegate(env *config.ProverEnv, artifacts proof.Artifacts) (*proof.Router, *proof.Pins, error) {
	var inProcess proof.Delegate
	if env.Command != "" {
		shell, err := proof.NewShellProver(env.Command, nil)
		if err != nil {
			return nil, nil, err
		}
		inProcess = proof.NewInProcess(shell)
	}
	var isolated proof.Delegate
	if env.Binary != "" {
		isolated = proof.NewIsolated(env.Binary)
	}

	var opts []proof.RouterOption
	var pins *proof.Pins
	if paths := artifacts.Paths(); len(paths) > 0 {
		var err error
		if pins, err = proof.NewPins(paths...); err != nil {
			return nil, nil, fmt.Errorf("failed to pin proving artifacts: %w", err)
		}
		opts = append(opts, proof.WithPins(pins))
	}
	return proof.NewRouter(env.ProverMode(), inProcess, isolated, opts...), pins, nil
}
