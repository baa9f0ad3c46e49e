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

// FinanceHandler exposes the fee pipeline: templates, charges, ledgers,
// challans and payments.
type FinanceHandler struct {
	finance *service.FinanceService
}

// NewFinanceHandler constructs FinanceHandler.
func NewFinanceHandler(finance *service.FinanceService) *FinanceHandler {
	return &FinanceHandler{finance: finance}
}

// CreateTemplate defines a reusable charge template.
func (h *FinanceHandler) CreateTemplate(c *gin.Context) {
	var req dto.ChargeTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	template, err := h.finance.CreateTemplate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, template)
}

// ListTemplates returns all charge templates.
func (h *FinanceHandler) ListTemplates(c *gin.Context) {
	templates, err := h.finance.ListTemplates(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, templates, nil)
}

// CreateCharge instantiates a charge from a template.
func (h *FinanceHandler) CreateCharge(c *gin.Context) {
	var req dto.ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	charge, err := h.finance.CreateCharge(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, charge)
}

// GenerateLedger fans a charge out to the targeted students. Existing ledger
// rows are skipped, so the operation is safe to repeat.
func (h *FinanceHandler) GenerateLedger(c *gin.Context) {
	var req dto.GenerateLedgerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.finance.GenerateLedger(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListLedger returns ledger items. Students see only their own.
func (h *FinanceHandler) ListLedger(c *gin.Context) {
	var filter models.LedgerFilter
	filter.StudentID = c.Query("student_id")
	filter.ChargeID = c.Query("charge_id")
	filter.Status = models.LedgerStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	items, total, err := h.finance.ListLedger(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// SetLedgerStatus waives or cancels a pending ledger item.
func (h *FinanceHandler) SetLedgerStatus(c *gin.Context) {
	var req struct {
		Status models.LedgerStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.finance.SetLedgerStatus(c.Request.Context(), c.Param("id"), req.Status, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// IssueChallan creates a numbered payment slip for a pending ledger item.
func (h *FinanceHandler) IssueChallan(c *gin.Context) {
	challan, err := h.finance.IssueChallan(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, challan)
}

// RecordPayment appends a payment against a challan. Ledger items flip to
// PAID once the sum covers the total.
func (h *FinanceHandler) RecordPayment(c *gin.Context) {
	var req dto.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	payment, err := h.finance.RecordPayment(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// ChallanPDF streams a printable challan.
func (h *FinanceHandler) ChallanPDF(c *gin.Context) {
	pdf, err := h.finance.ChallanPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="challan.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
