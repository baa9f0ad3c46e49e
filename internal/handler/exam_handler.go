package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medcampus/sims-api/internal/dto"
	"github.com/medcampus/sims-api/internal/service"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
	"github.com/medcampus/sims-api/pkg/response"
)

// ExamHandler exposes exam definition endpoints.
type ExamHandler struct {
	exams *service.ExamService
}

// NewExamHandler constructs ExamHandler.
func NewExamHandler(exams *service.ExamService) *ExamHandler {
	return &ExamHandler{exams: exams}
}

// Get returns one exam with its components.
func (h *ExamHandler) Get(c *gin.Context) {
	exam, err := h.exams.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exam, nil)
}

// Create defines an exam and its passing policy.
func (h *ExamHandler) Create(c *gin.Context) {
	var req dto.CreateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	exam, err := h.exams.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, exam)
}

// Update edits an exam. Passing-policy fields are restricted to elevated roles.
func (h *ExamHandler) Update(c *gin.Context) {
	var req dto.UpdateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	exam, err := h.exams.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exam, nil)
}

// AddComponent appends a marks component to an exam.
func (h *ExamHandler) AddComponent(c *gin.Context) {
	var req dto.ExamComponentPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	component, err := h.exams.AddComponent(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, component)
}
