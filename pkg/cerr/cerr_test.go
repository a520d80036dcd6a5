package cerr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesWrappedSentinel(t *testing.T) {
	locked := Sentinel(FailedPrecondition, "locked")

	wrapped := fmt.Errorf("unlock stores: %w", locked.Wrap(errors.New("disk")))
	assert.ErrorIs(t, wrapped, locked)
	assert.NotErrorIs(t, wrapped, Sentinel(FailedPrecondition, "other"))
	assert.True(t, IsCode(wrapped, FailedPrecondition))
	assert.Equal(t, "locked", Message(wrapped))
}

func TestCode_Mapping(t *testing.T) {
	tests := []struct {
		code    Code
		status  int
		connect connect.Code
		name    string
	}{
		{InvalidArgument, http.StatusBadRequest, connect.CodeInvalidArgument, "invalid_argument"},
		{Unauthenticated, http.StatusUnauthorized, connect.CodeUnauthenticated, "unauthenticated"},
		{PermissionDenied, http.StatusForbidden, connect.CodePermissionDenied, "permission_denied"},
		{NotFound, http.StatusNotFound, connect.CodeNotFound, "not_found"},
		{FailedPrecondition, http.StatusPreconditionFailed, connect.CodeFailedPrecondition, "failed_precondition"},
		{DataLoss, http.StatusInternalServerError, connect.CodeDataLoss, "data_loss"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.code.HTTPCode())
			assert.Equal(t, tt.connect, tt.code.ConnectCode())
			assert.Equal(t, tt.name, tt.code.String())
			assert.Equal(t, tt.code, NewCodeFromConnectError(connect.NewError(tt.connect, errors.New("x"))))
		})
	}
}

func TestExtractConnectError(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, ExtractConnectError(ctx, nil))

	err := ExtractConnectError(ctx, Sentinel(PermissionDenied, "a.example is not approved").Wrap(errors.New("store")))
	assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	var connectErr *connect.Error
	require.ErrorAs(t, err, &connectErr)
	assert.Equal(t, "a.example is not approved", connectErr.Message())

	assert.Equal(t, connect.CodeUnknown, connect.CodeOf(ExtractConnectError(ctx, errors.New("boom"))))
	assert.Equal(t, connect.CodeCanceled, connect.CodeOf(ExtractConnectError(ctx, context.Canceled)))
}

func TestJSONResponseChiMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		handler func(r *http.Request)
		status  int
		body    string
	}{
		{
			name:    "no content",
			handler: func(*http.Request) {},
			status:  http.StatusNoContent,
		},
		{
			name:    "response",
			handler: func(r *http.Request) { SetJSONResponse(r.Context(), map[string]int{"rejected": 2}) },
			status:  http.StatusOK,
			body:    `{"rejected":2}`,
		},
		{
			name: "created",
			handler: func(r *http.Request) {
				SetJSONResponseWithStatus(r.Context(), http.StatusCreated, []string{"a"})
			},
			status: http.StatusCreated,
			body:   `["a"]`,
		},
		{
			name: "error",
			handler: func(r *http.Request) {
				SetNewJSONError(r.Context(), FailedPrecondition, "locked", nil)
			},
			status: http.StatusPreconditionFailed,
			body:   `{"code":"failed_precondition","message":"locked"}`,
		},
		{
			name:    "plain error",
			handler: func(r *http.Request) { SetJSONError(r.Context(), errors.New("boom")) },
			status:  http.StatusInternalServerError,
			body:    `{"code":"unknown","message":"unknown error"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewJSONResponseChiMiddleware()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				tt.handler(r)
			}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.status, rec.Code)
			if tt.body == "" {
				assert.Empty(t, rec.Body.String())
				return
			}
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}

func TestBindJSON(t *testing.T) {
	var v struct {
		Password string `json:"password"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"password":"pw"}`))
	require.NoError(t, BindJSON(r, &v))
	assert.Equal(t, "pw", v.Password)

	r = httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	require.NoError(t, BindJSON(r, &v))
	assert.Equal(t, "pw", v.Password)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"password":`))
	err := BindJSON(r, &v)
	assert.True(t, IsCode(err, InvalidArgument))
}
