package approval

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/keeperd/pkg/cerr"
)

func newTestRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	r.Use(cerr.NewJSONResponseChiMiddleware())
	svc.RegisterRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Permissions(t *testing.T) {
	svc, _, _ := newTestService(t)
	unlock(t, svc)
	h := newTestRouter(svc)
	origin := url.PathEscape("https://app.example")

	rec := do(t, h, http.MethodGet, "/hosts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, h, http.MethodPut, "/permissions/"+origin, `{"canSkipApprove":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"urlOrigin":"https://app.example","canSkipApprove":true}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/permissions/"+origin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"urlOrigin":"https://app.example","canSkipApprove":true}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/permissions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"urlOrigin":"https://app.example","canSkipApprove":true}]`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/hosts", "")
	assert.JSONEq(t, `["https://app.example"]`, rec.Body.String())

	rec = do(t, h, http.MethodDelete, "/permissions/"+origin, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, svc.IsApproved("https://app.example"))
}

func TestHandler_PermissionErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := newTestRouter(svc)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{
			name:   "malformed body",
			method: http.MethodPut,
			path:   "/permissions/" + url.PathEscape("https://app.example"),
			body:   `{"canSkipApprove":`,
			status: http.StatusBadRequest,
			code:   "invalid_argument",
		},
		{
			name:   "write while locked",
			method: http.MethodPut,
			path:   "/permissions/" + url.PathEscape("https://app.example"),
			body:   `{}`,
			status: http.StatusPreconditionFailed,
			code:   "failed_precondition",
		},
		{
			name:   "backup not a string",
			method: http.MethodPost,
			path:   "/backup/upload",
			body:   `{"backup":42,"password":"pw"}`,
			status: http.StatusBadRequest,
			code:   "invalid_argument",
		},
		{
			name:   "restore not a string",
			method: http.MethodPut,
			path:   "/storage",
			body:   `{"storage":{"a":1}}`,
			status: http.StatusBadRequest,
			code:   "invalid_argument",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			var body struct {
				Code string `json:"code"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestHandler_BackupRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.SetAuthenticator(fakeAuth{password: "password"})
	unlock(t, svc)
	require.NoError(t, svc.Add(t.Context(), Record{URLOrigin: "https://a.example"}))
	h := newTestRouter(svc)

	rec := do(t, h, http.MethodPost, "/backup/download", `{"password":"password"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var backup struct {
		Backup *string `json:"backup"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &backup))
	require.NotNil(t, backup.Backup)

	other, _, _ := newTestService(t)
	other.SetAuthenticator(fakeAuth{password: "password"})
	unlock(t, other)
	body, err := json.Marshal(map[string]any{"backup": *backup.Backup, "password": "password"})
	require.NoError(t, err)
	rec = do(t, newTestRouter(other), http.MethodPost, "/backup/upload", string(body))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, other.IsApproved("https://a.example"))

	rec = do(t, h, http.MethodPost, "/backup/download", `{"password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_Storage(t *testing.T) {
	svc, repo, _ := newTestService(t)
	unlock(t, svc)
	h := newTestRouter(svc)

	rec := do(t, h, http.MethodGet, "/storage", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"storage":null}`, rec.Body.String())

	require.NoError(t, svc.Add(t.Context(), Record{URLOrigin: "https://a.example"}))
	rec = do(t, h, http.MethodGet, "/storage", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Storage string `json:"storage"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, repo.blob, got.Storage)

	rec = do(t, h, http.MethodDelete, "/permissions", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, svc.GetAllowedHosts())

	body, err := json.Marshal(map[string]string{"storage": got.Storage})
	require.NoError(t, err)
	rec = do(t, h, http.MethodPut, "/storage", string(body))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, svc.IsApproved("https://a.example"))
}
