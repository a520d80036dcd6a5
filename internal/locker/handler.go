package locker

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/keeperd/pkg/cerr"
)

type passwordRequest struct {
	Password string `json:"password"`
}

type unlockResponse struct {
	IsUnlocked bool `json:"isUnlocked"`
}

// RegisterRoutes mounts the lock endpoints of the approval UI.
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Get("/status", s.handleStatus)
	r.Post("/setup", s.handleSetup)
	r.Post("/unlock", s.handleUnlock)
	r.Post("/lock", s.handleLock)
}

func (s *Service) handleStatus(_ http.ResponseWriter, r *http.Request) {
	status, err := s.GetStatus(r.Context())
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), status)
}

func (s *Service) handleSetup(_ http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := cerr.BindJSON(r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	if err := s.Setup(r.Context(), req.Password); err != nil {
		cerr.SetJSONError(r.Context(), err)
	}
}

func (s *Service) handleUnlock(_ http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := cerr.BindJSON(r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	ok, err := s.Unlock(r.Context(), req.Password)
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), unlockResponse{IsUnlocked: ok})
}

func (s *Service) handleLock(_ http.ResponseWriter, r *http.Request) {
	if err := s.Lock(r.Context()); err != nil {
		cerr.SetJSONError(r.Context(), err)
	}
}
