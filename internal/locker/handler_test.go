package locker

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/keeperd/pkg/cerr"
	"github.com/kazz187/keeperd/pkg/secure"
)

func TestHandler_Lifecycle(t *testing.T) {
	svc := NewService(&memCreds{}, secure.NewSession(), WithKDFParams(testKDF))
	r := chi.NewRouter()
	r.Use(cerr.NewJSONResponseChiMiddleware())
	svc.RegisterRoutes(r)

	steps := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		want   string
	}{
		{name: "fresh status", method: http.MethodGet, path: "/status", status: http.StatusOK, want: `{"isUnlocked":false,"isInitialized":false}`},
		{name: "unlock before setup", method: http.MethodPost, path: "/unlock", body: `{"password":"password"}`, status: http.StatusPreconditionFailed},
		{name: "setup empty", method: http.MethodPost, path: "/setup", body: `{"password":""}`, status: http.StatusBadRequest},
		{name: "setup", method: http.MethodPost, path: "/setup", body: `{"password":"password"}`, status: http.StatusNoContent},
		{name: "setup twice", method: http.MethodPost, path: "/setup", body: `{"password":"password"}`, status: http.StatusConflict},
		{name: "wrong password", method: http.MethodPost, path: "/unlock", body: `{"password":"nope"}`, status: http.StatusUnauthorized},
		{name: "unlock", method: http.MethodPost, path: "/unlock", body: `{"password":"password"}`, status: http.StatusOK, want: `{"isUnlocked":true}`},
		{name: "unlocked status", method: http.MethodGet, path: "/status", status: http.StatusOK, want: `{"isUnlocked":true,"isInitialized":true}`},
		{name: "lock", method: http.MethodPost, path: "/lock", status: http.StatusNoContent},
		{name: "locked status", method: http.MethodGet, path: "/status", status: http.StatusOK, want: `{"isUnlocked":false,"isInitialized":true}`},
	}
	for _, step := range steps {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(step.method, step.path, strings.NewReader(step.body)))
		require.Equal(t, step.status, rec.Code, step.name)
		if step.want != "" {
			assert.JSONEq(t, step.want, rec.Body.String(), step.name)
		}
	}
}
