package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/kazz187/keeperd/internal/proof"
)

func TestLoadEnv_Defaults(t *testing.T) {
	t.Setenv("KEEPER_API_KEY", "secret")

	env, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, "local", env.Env)
	assert.Equal(t, "local", env.StorageEnv.Type)
	assert.Equal(t, "storage", env.CredentialStore)
	assert.Equal(t, proof.ModeIsolated, env.ProverMode())
	assert.Equal(t, time.Duration(0), env.RequestTimeout)
	assert.Equal(t, []string{"browser", "webpush"}, env.Popups)
	assert.Equal(t, "http://127.0.0.1:8547/", env.ApprovalURL())
	assert.False(t, env.IsProduction())
	assert.Equal(t, proof.Artifacts{}, env.Artifacts())
}

func TestLoadEnv_Overrides(t *testing.T) {
	t.Setenv("KEEPER_API_KEY", "secret")
	t.Setenv("KEEPER_ENV", "production")
	t.Setenv("KEEPER_REQUEST_TIMEOUT", "90s")
	t.Setenv("KEEPER_PROVER_MODE", "inprocess")
	t.Setenv("KEEPER_CIRCUITS_DIR", "/opt/circuits")
	t.Setenv("KEEPER_UNLOCK_RATE", "0")
	t.Setenv("KEEPER_UI_URL", "https://ui.example/")

	env, err := LoadEnv()
	require.NoError(t, err)
	assert.True(t, env.IsProduction())
	assert.Equal(t, 90*time.Second, env.RequestTimeout)
	assert.Equal(t, proof.ModeInProcess, env.ProverMode())
	assert.Equal(t, "/opt/circuits/rln.wasm", env.Artifacts().RLN.CircuitFilePath)
	assert.Equal(t, "https://ui.example/", env.ApprovalURL())
	limit, _ := env.UnlockLimit()
	assert.Equal(t, rate.Inf, limit)
}

func TestLoadEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing api key", env: map[string]string{}},
		{name: "unknown storage", env: map[string]string{"KEEPER_STORAGE_TYPE": "ftp"}},
		{name: "s3 without bucket", env: map[string]string{"KEEPER_STORAGE_TYPE": "s3"}},
		{name: "unknown credential store", env: map[string]string{"KEEPER_CREDENTIAL_STORE": "vault"}},
		{name: "unknown prover mode", env: map[string]string{"KEEPER_PROVER_MODE": "remote"}},
		{name: "negative timeout", env: map[string]string{"KEEPER_REQUEST_TIMEOUT": "-1s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name == "missing api key" {
				t.Setenv("KEEPER_API_KEY", "")
				require.NoError(t, os.Unsetenv("KEEPER_API_KEY"))
			} else {
				t.Setenv("KEEPER_API_KEY", "secret")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadEnv()
			assert.Error(t, err)
		})
	}
}
