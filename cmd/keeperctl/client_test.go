package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_Do(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/api/status":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"isUnlocked":true,"isInitialized":true}`))
		case "/api/lock":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusPreconditionFailed)
			_, _ = w.Write([]byte(`{"code":"failed_precondition","message":"keeper is locked"}`))
		}
	}))
	t.Cleanup(srv.Close)

	api := NewAPIClient(srv.URL+"/", newHTTPClient("k", 0))

	var st struct {
		IsUnlocked bool `json:"isUnlocked"`
	}
	require.NoError(t, api.Do(t.Context(), http.MethodGet, "/status", nil, &st))
	assert.True(t, st.IsUnlocked)

	require.NoError(t, api.Do(t.Context(), http.MethodPost, "/lock", nil, nil))

	err := api.Do(t.Context(), http.MethodGet, "/permissions", nil, nil)
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "failed_precondition", apiErr.Code)
	assert.Equal(t, "failed_precondition: keeper is locked", err.Error())

	err = NewAPIClient(srv.URL, newHTTPClient("wrong", 0)).Do(t.Context(), http.MethodGet, "/status", nil, nil)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "401 Unauthorized", err.Error())
}
