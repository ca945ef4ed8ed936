package http

import (
	"encoding/json"
	"net/http"

	"github.com/codetrial/broker-backend-go/internal/domain/invitation"
	"github.com/codetrial/broker-backend-go/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

// CandidateHandler serves the candidate-facing start and submit flow.
// All routes are keyed by the start-link token; no session state exists.
type CandidateHandler interface {
	StartInfo(w http.ResponseWriter, r *http.Request)
	Start(w http.ResponseWriter, r *http.Request)
	Submit(w http.ResponseWriter, r *http.Request)
}

type CandidateHandlerImpl struct {
	broker invitation.BrokerService
}

func NewCandidateHandler(broker invitation.BrokerService) CandidateHandler {
	return &CandidateHandlerImpl{broker: broker}
}

// StartInfo implements CandidateHandler.
func (h *CandidateHandlerImpl) StartInfo(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	info, err := h.broker.StartInfo(r.Context(), token)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, info)
}

// Start implements CandidateHandler.
func (h *CandidateHandlerImpl) Start(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	resp, err := h.broker.Start(r.Context(), token)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, resp)
}

// Submit implements CandidateHandler.
func (h *CandidateHandlerImpl) Submit(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req invitation.SubmitRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "Invalid request format", nil)
			return
		}
	}

	resp, err := h.broker.Submit(r.Context(), token, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, resp)
}
