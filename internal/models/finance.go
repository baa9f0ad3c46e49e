package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FrequencyUnit is the recurrence unit of a charge template.
type FrequencyUnit string

const (
	FrequencyBlock FrequencyUnit = "BLOCK"
	FrequencyMonth FrequencyUnit = "MONTH"
	FrequencyTerm  FrequencyUnit = "TERM"
	FrequencyYear  FrequencyUnit = "YEAR"
)

// AutoGenerateMode controls how charges materialise from a template.
type AutoGenerateMode string

const (
	GenerateManualWithReminder AutoGenerateMode = "MANUAL_WITH_REMINDER"
	GenerateAllNow             AutoGenerateMode = "GENERATE_ALL_NOW"
	GenerateRemindThenGenerate AutoGenerateMode = "REMIND_THEN_GENERATE"
)

// LedgerStatus is the lifecycle state of a student ledger item.
type LedgerStatus string

const (
	LedgerPending   LedgerStatus = "PENDING"
	LedgerPaid      LedgerStatus = "PAID"
	LedgerWaived    LedgerStatus = "WAIVED"
	LedgerCancelled LedgerStatus = "CANCELLED"
)

// ChargeTemplate defines a periodic charge.
type ChargeTemplate struct {
	ID                string           `db:"id" json:"id"`
	TitleTemplate     string           `db:"title_template" json:"title_template"`
	DefaultAmount     decimal.Decimal  `db:"default_amount" json:"default_amount"`
	FrequencyUnit     FrequencyUnit    `db:"frequency_unit" json:"frequency_unit"`
	FrequencyInterval int              `db:"frequency_interval" json:"frequency_interval"`
	AutoGenerateMode  AutoGenerateMode `db:"auto_generate_mode" json:"auto_generate_mode"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
}

// Charge is a generated instance of a template.
type Charge struct {
	ID          string          `db:"id" json:"id"`
	TemplateID  *string         `db:"template_id" json:"template_id,omitempty"`
	Title       string          `db:"title" json:"title"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	DueDate     *time.Time      `db:"due_date" json:"due_date,omitempty"`
	CreatedBy   *string         `db:"created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// StudentLedgerItem is the per-student materialisation of a charge; unique on
// (student, charge).
type StudentLedgerItem struct {
	ID          string          `db:"id" json:"id"`
	StudentID   string          `db:"student_id" json:"student_id"`
	ChargeID    string          `db:"charge_id" json:"charge_id"`
	AmountTotal decimal.Decimal `db:"amount_total" json:"amount_total"`
	Status      LedgerStatus    `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Challan is a payment slip with a unique, time-monotonic number aggregating
// one ledger item's due amount.
type Challan struct {
	ID           string          `db:"id" json:"id"`
	ChallanNo    string          `db:"challan_no" json:"challan_no"`
	LedgerItemID string          `db:"ledger_item_id" json:"ledger_item_id"`
	StudentID    string          `db:"student_id" json:"student_id"`
	AmountTotal  decimal.Decimal `db:"amount_total" json:"amount_total"`
	IssuedAt     time.Time       `db:"issued_at" json:"issued_at"`
	DueDate      *time.Time      `db:"due_date" json:"due_date,omitempty"`
}

// PaymentLog entries are append-only and never mutate.
type PaymentLog struct {
	ID         string          `db:"id" json:"id"`
	ChallanID  string          `db:"challan_id" json:"challan_id"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Method     *string         `db:"method" json:"method,omitempty"`
	Reference  *string         `db:"reference" json:"reference,omitempty"`
	ReceivedBy *string         `db:"received_by" json:"received_by,omitempty"`
	ReceivedAt time.Time       `db:"received_at" json:"received_at"`
}

// LedgerFilter scopes ledger listing queries; StudentUserID drives tenancy.
type LedgerFilter struct {
	StudentID     string
	ChargeID      string
	Status        LedgerStatus
	StudentUserID string
	Page          int
	PageSize      int
}
