package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medcampus/sims-api/internal/dto"
	"github.com/medcampus/sims-api/internal/models"
	"github.com/medcampus/sims-api/internal/service"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
	"github.com/medcampus/sims-api/pkg/response"
)

// ImportHandler exposes the two-phase CSV bulk-import endpoints.
type ImportHandler struct {
	imports *service.ImportService
}

// NewImportHandler constructs ImportHandler.
func NewImportHandler(imports *service.ImportService) *ImportHandler {
	return &ImportHandler{imports: imports}
}

// Preview accepts a multipart CSV upload and returns the dry-run report.
func (h *ImportHandler) Preview(c *gin.Context) {
	kind := models.ImportKind(c.Param("kind"))
	if kind != models.ImportStudents && kind != models.ImportFaculty {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "unknown import kind"))
		return
	}

	var opts dto.ImportUploadOptions
	if err := c.ShouldBind(&opts); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid options"))
		return
	}
	if opts.Mode == "" {
		opts.Mode = models.ImportUpsert
	}

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

	claims := claimsFromContext(c)
	preview, err := h.imports.Preview(c.Request.Context(), kind, opts, file, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview, nil)
}

// Commit executes a previewed job. Large jobs run asynchronously.
func (h *ImportHandler) Commit(c *gin.Context) {
	var req dto.ImportCommitRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.imports.Commit(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.Async {
		status = http.StatusAccepted
	}
	response.JSON(c, status, result, nil)
}

// GetJob returns a job's current state and tallies.
func (h *ImportHandler) GetJob(c *gin.Context) {
	job, err := h.imports.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// ErrorReport streams the preview error report as a CSV download.
func (h *ImportHandler) ErrorReport(c *gin.Context) {
	file, err := h.imports.ErrorReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", `attachment; filename="errors.csv"`)
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		_ = c.Error(err)
	}
}
