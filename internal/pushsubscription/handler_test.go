package pushsubscription_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/keeperd/pkg/cerr"
)

func TestHandler(t *testing.T) {
	tests := []struct {
		name   string
		vapid  string
		method string
		path   string
		body   string
		status int
		want   string
	}{
		{name: "vapid key", vapid: "BPub", method: http.MethodGet, path: "/push/vapid-key", status: http.StatusOK, want: `{"publicKey":"BPub"}`},
		{name: "vapid key missing", method: http.MethodGet, path: "/push/vapid-key", status: http.StatusPreconditionFailed},
		{name: "register without keys", method: http.MethodPost, path: "/push/subscriptions", body: `{"endpoint":"https://push.example/1"}`, status: http.StatusBadRequest},
		{name: "unregister unknown", method: http.MethodDelete, path: "/push/subscriptions", body: `{"endpoint":"https://push.example/1"}`, status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(t)
			r := chi.NewRouter()
			r.Use(cerr.NewJSONResponseChiMiddleware())
			svc.RegisterRoutes(r, tt.vapid)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, rec.Code)
			if tt.want != "" {
				assert.JSONEq(t, tt.want, rec.Body.String())
			}
		})
	}
}

func TestHandler_RegisterUnregister(t *testing.T) {
	svc, repo := newService(t)
	r := chi.NewRouter()
	r.Use(cerr.NewJSONResponseChiMiddleware())
	svc.RegisterRoutes(r, "BPub")

	body := `{"endpoint":"https://push.example/1","keys":{"p256dh":"pk","auth":"ak"}}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/push/subscriptions", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"endpoint":"https://push.example/1"`)

	subs, err := repo.List(t.Context())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "pk", subs[0].P256dhKey)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/push/subscriptions", strings.NewReader(`{"endpoint":"https://push.example/1"}`)))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	subs, err = repo.List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, subs)
}
