package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medcampus/sims-api/internal/dto"
	"github.com/medcampus/sims-api/internal/service"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
	"github.com/medcampus/sims-api/pkg/response"
)

// TimetableHandler exposes the weekly timetable grid.
type TimetableHandler struct {
	timetables *service.TimetableService
}

// NewTimetableHandler constructs TimetableHandler.
func NewTimetableHandler(timetables *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{timetables: timetables}
}

// Get returns one timetable with its cells.
func (h *TimetableHandler) Get(c *gin.Context) {
	timetable, err := h.timetables.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}

// Create opens a draft timetable for a batch week.
func (h *TimetableHandler) Create(c *gin.Context) {
	var req dto.CreateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	timetable, err := h.timetables.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, timetable)
}

// SetCell writes one grid cell of a draft timetable.
func (h *TimetableHandler) SetCell(c *gin.Context) {
	var req dto.TimetableCellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	cell, err := h.timetables.SetCell(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cell, nil)
}

// Publish validates the grid and makes the timetable visible.
func (h *TimetableHandler) Publish(c *gin.Context) {
	timetable, err := h.timetables.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}
