package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/medcampus/sims-api/internal/models"
	"github.com/medcampus/sims-api/internal/repository"
	"github.com/medcampus/sims-api/pkg/response"
)

// AuditHandler exposes the read side of the audit trail.
type AuditHandler struct {
	audits *repository.AuditRepository
}

// NewAuditHandler constructs AuditHandler.
func NewAuditHandler(audits *repository.AuditRepository) *AuditHandler {
	return &AuditHandler{audits: audits}
}

// List returns audit records newest first.
func (h *AuditHandler) List(c *gin.Context) {
	var filter repository.AuditFilter
	filter.ActorID = c.Query("actor_id")
	filter.Entity = c.Query("entity")
	filter.EntityID = c.Query("entity_id")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	logs, total, err := h.audits.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}
