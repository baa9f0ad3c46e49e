package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medcampus/sims-api/internal/models"
	"github.com/medcampus/sims-api/internal/service"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
	"github.com/medcampus/sims-api/pkg/response"
)

// StudentHandler exposes student endpoints.
type StudentHandler struct {
	students    *service.StudentService
	transcripts *service.TranscriptService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students *service.StudentService, transcripts *service.TranscriptService) *StudentHandler {
	return &StudentHandler{students: students, transcripts: transcripts}
}

// List returns a filtered, paginated student listing.
func (h *StudentHandler) List(c *gin.Context) {
	var filter models.StudentFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.ProgramID = c.Query("program_id")
	filter.BatchID = c.Query("batch_id")
	filter.GroupID = c.Query("group_id")
	filter.Status = models.StudentStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	students, total, err := h.students.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Get returns one student record.
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Create registers a single student.
func (h *StudentHandler) Create(c *gin.Context) {
	var student models.Student
	if err := c.ShouldBindJSON(&student); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	created, err := h.students.Create(c.Request.Context(), &student)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Transcript streams the student's signed transcript PDF.
func (h *StudentHandler) Transcript(c *gin.Context) {
	pdf, err := h.transcripts.Generate(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="transcript.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
