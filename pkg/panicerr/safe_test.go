package panicerr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafe(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		fn      func() error
		wantErr string
	}{
		{name: "ok", fn: func() error { return nil }},
		{name: "error", fn: func() error { return boom }, wantErr: "boom"},
		{name: "panic", fn: func() error { panic("kaboom") }, wantErr: "kaboom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Safe(tt.fn)()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSafeContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := SafeContext(func(ctx context.Context) error { return ctx.Err() })(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSafeValue(t *testing.T) {
	v, err := SafeValue(func() (int, error) { return 7, nil })()
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	v, err = SafeValue(func() (int, error) { panic("nope") })()
	require.Error(t, err)
	assert.Zero(t, v)
	assert.Contains(t, err.Error(), "nope")
}
