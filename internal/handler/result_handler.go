package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/medcampus/sims-api/internal/dto"
	"github.com/medcampus/sims-api/internal/models"
	"github.com/medcampus/sims-api/internal/service"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
	"github.com/medcampus/sims-api/pkg/response"
)

// ResultHandler exposes result sheets, entries, the workflow transitions and
// the post-publication change requests.
type ResultHandler struct {
	results *service.ResultService
}

// NewResultHandler constructs ResultHandler.
func NewResultHandler(results *service.ResultService) *ResultHandler {
	return &ResultHandler{results: results}
}

// Create opens a DRAFT result sheet for a student and exam.
func (h *ResultHandler) Create(c *gin.Context) {
	var req dto.CreateResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	header, err := h.results.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, header)
}

// Get returns one result sheet with entries.
func (h *ResultHandler) Get(c *gin.Context) {
	header, err := h.results.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, header, nil)
}

// List returns filtered result sheets. Students see only their own published
// results.
func (h *ResultHandler) List(c *gin.Context) {
	var filter models.ResultFilter
	filter.ExamID = c.Query("exam_id")
	filter.StudentID = c.Query("student_id")
	filter.Status = models.ResultStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	headers, total, err := h.results.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, headers, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// UpsertEntry writes one component's marks and recomputes the sheet.
func (h *ResultHandler) UpsertEntry(c *gin.Context) {
	var req dto.UpsertEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	header, err := h.results.UpsertEntry(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, header, nil)
}

// Transition moves the sheet through the workflow.
func (h *ResultHandler) Transition(c *gin.Context) {
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	header, err := h.results.Transition(c.Request.Context(), c.Param("id"), models.ResultStatus(req.To), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, header, nil)
}

// RequestChange files a pending change against a published sheet.
func (h *ResultHandler) RequestChange(c *gin.Context) {
	var req dto.PendingChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	change, err := h.results.RequestChange(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, change)
}

// ListChanges returns open change requests for a sheet.
func (h *ResultHandler) ListChanges(c *gin.Context) {
	changes, err := h.results.ListChanges(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, changes, nil)
}

// DecideChange approves or rejects a pending change.
func (h *ResultHandler) DecideChange(c *gin.Context) {
	var req dto.DecideChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.results.DecideChange(c.Request.Context(), c.Param("changeId"), req.Approve, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
