package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/time/rate"

	"github.com/kazz187/keeperd/internal/popup"
	"github.com/kazz187/keeperd/internal/proof"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:"127.0.0.1"`
	HTTPPort string `envconfig:"HTTP_PORT" default:"8547"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	APIKey   string `envconfig:"API_KEY" required:"true"`
	UIURL    string `envconfig:"UI_URL"`
	// Popups lists the approval UI controllers: browser, webpush, none.
	Popups []string `envconfig:"POPUPS" default:"browser,webpush"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".keeper/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"keeper/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
	// SQLite settings (used when Type == "sqlite")
	SQLitePath string `envconfig:"SQLITE_PATH" default:".keeper/keeper.db"`
}

type LockerEnv struct {
	CredentialStore string  `envconfig:"CREDENTIAL_STORE" default:"storage"`
	KeyringBackend  string  `envconfig:"KEYRING_BACKEND"`
	KeyringDir      string  `envconfig:"KEYRING_DIR" default:".keeper/keyring"`
	KeyringPassword string  `envconfig:"KEYRING_PASSWORD"`
	UnlockRate      float64 `envconfig:"UNLOCK_RATE" default:"0.2"`
	UnlockBurst     int     `envconfig:"UNLOCK_BURST" default:"5"`
}

type RequestEnv struct {
	// RequestTimeout rejects unanswered requests; zero waits forever.
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"0"`
}

type ProverEnv struct {
	Mode        string `envconfig:"PROVER_MODE" default:"isolated"`
	Binary      string `envconfig:"PROVER_BINARY" default:"keeper-prover"`
	Command     string `envconfig:"PROVER_COMMAND"`
	CircuitsDir string `envconfig:"CIRCUITS_DIR"`
}

type VAPIDEnv struct {
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDContact    string `envconfig:"VAPID_CONTACT"`
}

type Env struct {
	BaseEnv
	StorageEnv
	LockerEnv
	RequestEnv
	ProverEnv
	VAPIDEnv
}

const namespace = "KEEPER"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	if err := env.validate(); err != nil {
		return nil, fmt.Errorf("invalid env: %w", err)
	}
	return &env, nil
}

func (e *Env) validate() error {
	switch e.StorageEnv.Type {
	case "local", "sqlite":
	case "s3":
		if e.S3Bucket == "" {
			return fmt.Errorf("%s_S3_BUCKET is required for s3 storage", namespace)
		}
	default:
		return fmt.Errorf("unknown storage type %q", e.StorageEnv.Type)
	}
	switch e.CredentialStore {
	case "storage", "keyring":
	default:
		return fmt.Errorf("unknown credential store %q", e.CredentialStore)
	}
	if _, err := proof.ParseMode(e.Mode); err != nil {
		return err
	}
	if e.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must not be negative")
	}
	return nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}

func (e *BaseEnv) IsProduction() bool {
	return e.Env == "production"
}

// ApprovalURL is where the approval UI is served. It defaults to the broker
// itself.
func (e *BaseEnv) ApprovalURL() string {
	if e.UIURL != "" {
		return e.UIURL
	}
	host := e.HTTPHost
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%s/", host, e.HTTPPort)
}

// UnlockLimit returns the rate of password attempts. A non-positive rate
// disables throttling.
func (e *LockerEnv) UnlockLimit() (rate.Limit, int) {
	if e.UnlockRate <= 0 {
		return rate.Inf, 0
	}
	return rate.Limit(e.UnlockRate), e.UnlockBurst
}

func (e *ProverEnv) ProverMode() proof.Mode {
	m, _ := proof.ParseMode(e.Mode)
	return m
}

func (e *ProverEnv) Artifacts() proof.Artifacts {
	if e.CircuitsDir == "" {
		return proof.Artifacts{}
	}
	return proof.ArtifactsIn(e.CircuitsDir)
}

func (e *VAPIDEnv) VAPID() popup.VAPID {
	return popup.VAPID{
		PublicKey:  e.VAPIDPublicKey,
		PrivateKey: e.VAPIDPrivateKey,
		Contact:    e.VAPIDContact,
	}
}

func BaseEnvFromEnv(env *Env) *BaseEnv {
	return &env.BaseEnv
}

func StorageEnvFromEnv(env *Env) *StorageEnv {
	return &env.StorageEnv
}

func VAPIDEnvFromEnv(env *Env) *VAPIDEnv {
	return &env.VAPIDEnv
}
