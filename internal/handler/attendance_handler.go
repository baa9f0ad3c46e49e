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

// AttendanceHandler exposes session and attendance endpoints, covering the
// live grid, CSV upload and scanned-sheet input paths.
type AttendanceHandler struct {
	attendance *service.AttendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// CreateSession registers a teaching session.
func (h *AttendanceHandler) CreateSession(c *gin.Context) {
	var session models.Session
	if err := c.ShouldBindJSON(&session); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	created, err := h.attendance.CreateSession(c.Request.Context(), &session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// ListSessions returns sessions visible to the caller. Faculty members see
// only their own.
func (h *AttendanceHandler) ListSessions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	sessions, err := h.attendance.ListSessions(c.Request.Context(), claimsFromContext(c), c.Query("faculty_id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// Roster returns the session roster with any existing marks.
func (h *AttendanceHandler) Roster(c *gin.Context) {
	roster, err := h.attendance.Roster(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// MarkBulk submits the full interactive grid for a session.
func (h *AttendanceHandler) MarkBulk(c *gin.Context) {
	var req dto.BulkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	summary, err := h.attendance.MarkLive(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// MarkOne toggles a single student in the grid.
func (h *AttendanceHandler) MarkOne(c *gin.Context) {
	var req dto.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	summary, err := h.attendance.MarkOne(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// PreviewCSV dry-runs an uploaded attendance CSV against the roster.
func (h *AttendanceHandler) PreviewCSV(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "could not read upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	preview, err := h.attendance.PreviewCSV(c.Request.Context(), c.Param("id"), file, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview, nil)
}

// CommitCSV applies an uploaded attendance CSV. Students missing from the
// file are marked absent.
func (h *AttendanceHandler) CommitCSV(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "could not read upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	summary, err := h.attendance.CommitCSV(c.Request.Context(), c.Param("id"), c.PostForm("date"), file, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// ScannedTemplate returns the transcription template for a paper sheet.
func (h *AttendanceHandler) ScannedTemplate(c *gin.Context) {
	template, err := h.attendance.ScannedSheetTemplate(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, template, nil)
}

// SubmitScanned applies a transcribed paper sheet.
func (h *AttendanceHandler) SubmitScanned(c *gin.Context) {
	var req dto.ScannedSheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	summary, err := h.attendance.SubmitScanned(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Summary returns a student's attendance percentage for a period.
func (h *AttendanceHandler) Summary(c *gin.Context) {
	summary, err := h.attendance.Summary(c.Request.Context(), c.Param("id"), c.Query("period_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
