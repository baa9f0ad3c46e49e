package dto

import "github.com/medcampus/sims-api/internal/models"

// ChargeTemplateRequest defines a recurring charge.
type ChargeTemplateRequest struct {
	TitleTemplate     string                  `json:"title_template" validate:"required"`
	DefaultAmount     string                  `json:"default_amount" validate:"required"`
	FrequencyUnit     models.FrequencyUnit    `json:"frequency_unit" validate:"required"`
	FrequencyInterval int                     `json:"frequency_interval" validate:"required,min=1"`
	AutoGenerateMode  models.AutoGenerateMode `json:"auto_generate_mode" validate:"required"`
}

// ChargeRequest creates a one-off or template-derived charge.
type ChargeRequest struct {
	TemplateID *string `json:"template_id,omitempty"`
	Title      string  `json:"title" validate:"required"`
	Amount     string  `json:"amount" validate:"required"`
	DueDate    *string `json:"due_date,omitempty"`
}

// GenerateLedgerRequest fans a charge out to students. Either explicit
// StudentIDs or an organisational scope may be given.
type GenerateLedgerRequest struct {
	ChargeID   string   `json:"charge_id" validate:"required"`
	StudentIDs []string `json:"student_ids,omitempty"`
	ProgramID  string   `json:"program_id,omitempty"`
	BatchID    string   `json:"batch_id,omitempty"`
	GroupID    string   `json:"group_id,omitempty"`
}

// GenerateLedgerResponse reports how many rows were created vs already
// present.
type GenerateLedgerResponse struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// PaymentRequest records money received against a challan.
type PaymentRequest struct {
	Amount    string  `json:"amount" validate:"required"`
	Method    *string `json:"method,omitempty"`
	Reference *string `json:"reference,omitempty"`
}
