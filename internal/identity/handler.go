package identity

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/keeperd/pkg/cerr"
)

// connectRequest carries the secret, which Identity never decodes from JSON.
type connectRequest struct {
	Commitment string   `json:"commitment"`
	Secret     string   `json:"secret"`
	Metadata   Metadata `json:"metadata"`
}

func (s *Service) RegisterRoutes(r chi.Router) {
	r.Get("/identity", s.handleGet)
	r.Put("/identity", s.handleConnect)
	r.Delete("/identity", s.handleDisconnect)
}

func (s *Service) handleGet(_ http.ResponseWriter, r *http.Request) {
	id, err := s.GetConnectedIdentity(r.Context())
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	if id == nil {
		cerr.SetJSONResponse(r.Context(), nil)
		return
	}
	cerr.SetJSONResponse(r.Context(), id.Connection())
}

func (s *Service) handleConnect(_ http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := cerr.BindJSON(r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	id := &Identity{Commitment: req.Commitment, Secret: req.Secret, Metadata: req.Metadata}
	if err := s.Connect(r.Context(), id); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), id.Connection())
}

func (s *Service) handleDisconnect(_ http.ResponseWriter, r *http.Request) {
	if err := s.Disconnect(r.Context()); err != nil {
		cerr.SetJSONError(r.Context(), err)
	}
}
