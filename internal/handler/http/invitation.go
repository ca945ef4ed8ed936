package http

import (
	"encoding/json"
	"net/http"

	"github.com/codetrial/broker-backend-go/internal/domain/invitation"
	"github.com/codetrial/broker-backend-go/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

// InvitationHandler is the admin API over invitations.
type InvitationHandler interface {
	Create(w http.ResponseWriter, r *http.Request)
	GetByID(w http.ResponseWriter, r *http.Request)
	Revoke(w http.ResponseWriter, r *http.Request)
}

type InvitationHandlerImpl struct {
	broker invitation.BrokerService
}

func NewInvitationHandler(broker invitation.BrokerService) InvitationHandler {
	return &InvitationHandlerImpl{broker: broker}
}

// Create implements InvitationHandler. The response carries the start-link
// token plaintext; it is never retrievable again.
func (h *InvitationHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	var req invitation.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	resp, err := h.broker.CreateAndIssue(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Invitation created", resp)
}

// GetByID implements InvitationHandler.
func (h *InvitationHandlerImpl) GetByID(w http.ResponseWriter, r *http.Request) {
	inv, err := h.broker.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, inv)
}

// Revoke implements InvitationHandler.
func (h *InvitationHandlerImpl) Revoke(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.broker.Revoke(r.Context(), id); err != nil {
		response.HandleError(w, err)
		return
	}

	inv, err := h.broker.GetByID(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, inv)
}
