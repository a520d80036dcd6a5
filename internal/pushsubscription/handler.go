package pushsubscription

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/keeperd/pkg/cerr"
)

var ErrVAPIDNotConfigured = cerr.Sentinel(cerr.FailedPrecondition, "VAPID keys not configured")

// registerRequest mirrors PushSubscription.toJSON() in the browser.
type registerRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

type unregisterRequest struct {
	Endpoint string `json:"endpoint"`
}

type vapidKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

// RegisterRoutes mounts the push endpoints. vapidPublicKey is handed to
// browsers subscribing to notifications.
func (s *Service) RegisterRoutes(r chi.Router, vapidPublicKey string) {
	r.Get("/push/vapid-key", func(_ http.ResponseWriter, r *http.Request) {
		if vapidPublicKey == "" {
			cerr.SetJSONError(r.Context(), ErrVAPIDNotConfigured)
			return
		}
		cerr.SetJSONResponse(r.Context(), vapidKeyResponse{PublicKey: vapidPublicKey})
	})
	r.Post("/push/subscriptions", s.handleRegister)
	r.Delete("/push/subscriptions", s.handleUnregister)
}

func (s *Service) handleRegister(_ http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := cerr.BindJSON(r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	sub, err := s.Register(r.Context(), req.Endpoint, req.Keys.P256dh, req.Keys.Auth)
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponseWithStatus(r.Context(), http.StatusCreated, sub)
}

func (s *Service) handleUnregister(_ http.ResponseWriter, r *http.Request) {
	var req unregisterRequest
	if err := cerr.BindJSON(r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	if err := s.Unregister(r.Context(), req.Endpoint); err != nil {
		cerr.SetJSONError(r.Context(), err)
	}
}
