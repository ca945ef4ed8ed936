package http

import (
	"encoding/json"
	"net/http"

	"github.com/codetrial/broker-backend-go/internal/domain/assessment"
	"github.com/codetrial/broker-backend-go/internal/domain/seed"
	"github.com/codetrial/broker-backend-go/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

// SeedHandler is the admin API over the seed catalog.
type SeedHandler interface {
	Create(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	GetByID(w http.ResponseWriter, r *http.Request)
	RefreshSHA(w http.ResponseWriter, r *http.Request)
}

type SeedHandlerImpl struct {
	seedService seed.SeedService
}

func NewSeedHandler(seedService seed.SeedService) SeedHandler {
	return &SeedHandlerImpl{seedService: seedService}
}

// Create implements SeedHandler.
func (h *SeedHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	var req seed.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	sd, err := h.seedService.Create(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Seed registered", sd)
}

// List implements SeedHandler.
func (h *SeedHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	seeds, err := h.seedService.List(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, seeds)
}

// GetByID implements SeedHandler.
func (h *SeedHandlerImpl) GetByID(w http.ResponseWriter, r *http.Request) {
	sd, err := h.seedService.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, sd)
}

// RefreshSHA implements SeedHandler.
func (h *SeedHandlerImpl) RefreshSHA(w http.ResponseWriter, r *http.Request) {
	sd, err := h.seedService.RefreshHeadSHA(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, sd)
}

// AssessmentHandler is the admin API over the assessment catalog.
type AssessmentHandler interface {
	Create(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	GetByID(w http.ResponseWriter, r *http.Request)
}

type AssessmentHandlerImpl struct {
	assessmentService assessment.AssessmentService
}

func NewAssessmentHandler(assessmentService assessment.AssessmentService) AssessmentHandler {
	return &AssessmentHandlerImpl{assessmentService: assessmentService}
}

// Create implements AssessmentHandler.
func (h *AssessmentHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	var req assessment.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	a, err := h.assessmentService.Create(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Assessment created", a)
}

// List implements AssessmentHandler.
func (h *AssessmentHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	assessments, err := h.assessmentService.List(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, assessments)
}

// GetByID implements AssessmentHandler.
func (h *AssessmentHandlerImpl) GetByID(w http.ResponseWriter, r *http.Request) {
	a, err := h.assessmentService.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, a)
}
