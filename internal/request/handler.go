package request

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/keeperd/internal/eventbus"
	"github.com/kazz187/keeperd/pkg/cerr"
)

// ReasonPopupClosed is the rejection reason when the approval UI goes away.
const ReasonPopupClosed = "popup closed"

type rejectRequest struct {
	Reason string `json:"reason"`
}

type rejectAllResponse struct {
	Rejected int `json:"rejected"`
}

// RegisterRoutes mounts the queue endpoints of the approval UI.
func (m *Manager) RegisterRoutes(r chi.Router) {
	r.Get("/requests", m.handleList)
	r.Post("/requests/{id}/accept", m.handleAccept)
	r.Post("/requests/{id}/reject", m.handleReject)
	r.Post("/popup/closed", m.handlePopupClosed)
}

func (m *Manager) handleList(_ http.ResponseWriter, r *http.Request) {
	cerr.SetJSONResponse(r.Context(), m.Pending())
}

// handleAccept passes the raw JSON body on as the accepted data; the
// requester decodes it.
func (m *Manager) handleAccept(_ http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		cerr.SetNewJSONError(r.Context(), cerr.InvalidArgument, "malformed request body", err)
		return
	}
	var data any
	if len(body) > 0 {
		if !json.Valid(body) {
			cerr.SetNewJSONError(r.Context(), cerr.InvalidArgument, "malformed request body", nil)
			return
		}
		data = json.RawMessage(body)
	}
	if !m.Accept(chi.URLParam(r, "id"), data) {
		cerr.SetJSONError(r.Context(), ErrRequestNotFound)
	}
}

func (m *Manager) handleReject(_ http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := cerr.BindJSON(r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	if !m.Reject(chi.URLParam(r, "id"), req.Reason) {
		cerr.SetJSONError(r.Context(), ErrRequestNotFound)
	}
}

func (m *Manager) handlePopupClosed(_ http.ResponseWriter, r *http.Request) {
	n := m.RejectAll(ReasonPopupClosed)
	if m.eventBus != nil {
		m.eventBus.PublishNew(eventbus.EventPopupClosed, "", nil)
	}
	cerr.SetJSONResponse(r.Context(), rejectAllResponse{Rejected: n})
}
