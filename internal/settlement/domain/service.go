package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/cargosettle/pkg/db/pagination"
)

// Service is the settlement application surface. Commands mutate inside a
// single transaction; queries never mutate.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*SettlementView, error)
	GetByID(ctx context.Context, id string) (*SettlementView, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)

	SetQuantities(ctx context.Context, req SetQuantitiesRequest) (*SettlementView, error)
	Calculate(ctx context.Context, req CalculateRequest) (*SettlementView, error)
	Transition(ctx context.Context, req TransitionRequest) (*SettlementView, error)
	BulkTransition(ctx context.Context, req BulkTransitionRequest) (*BulkTransitionResponse, error)

	AddCharge(ctx context.Context, req AddChargeRequest) (*SettlementView, error)
	UpdateCharge(ctx context.Context, req UpdateChargeRequest) (*SettlementView, error)
	RemoveCharge(ctx context.Context, req RemoveChargeRequest) (*SettlementView, error)
	ListCharges(ctx context.Context, settlementID string) ([]*ChargeLineItem, error)

	UpdatePayment(ctx context.Context, req UpdatePaymentRequest) (*SettlementView, error)
	History(ctx context.Context, settlementID string) ([]*TransitionRecord, error)
}

// CreateRequest opens a new settlement for a contract side.
type CreateRequest struct {
	ContractID   string       `json:"contract_id" binding:"required"`
	ContractKind ContractKind `json:"contract_kind" binding:"required"`
	SupersedesID string       `json:"supersedes_id,omitempty"`

	DocumentNumber string       `json:"document_number,omitempty"`
	DocumentType   DocumentType `json:"document_type,omitempty"`
	DocumentDate   *time.Time   `json:"document_date,omitempty"`

	CalculationMode CalculationMode `json:"calculation_mode,omitempty"`
	ConversionRatio decimal.Decimal `json:"conversion_ratio,omitempty"`
	Currency        string          `json:"currency,omitempty"`
	PaymentTerms    PaymentTerms    `json:"payment_terms,omitempty"`

	ActorID string `json:"-"`
	// Origin tags the creation path for metrics: "api" or "auto".
	Origin string `json:"-"`
}

// SetQuantitiesRequest replaces the physical figures on a settlement.
type SetQuantitiesRequest struct {
	SettlementID string `json:"-"`

	QuantityMass    *decimal.Decimal `json:"quantity_mass,omitempty"`
	QuantityVolume  *decimal.Decimal `json:"quantity_volume,omitempty"`
	ConversionRatio *decimal.Decimal `json:"conversion_ratio,omitempty"`
	CalculationMode CalculationMode  `json:"calculation_mode,omitempty"`

	BenchmarkAmount  *decimal.Decimal `json:"benchmark_amount,omitempty"`
	AdjustmentAmount *decimal.Decimal `json:"adjustment_amount,omitempty"`

	DocumentNumber *string       `json:"document_number,omitempty"`
	DocumentType   *DocumentType `json:"document_type,omitempty"`
	DocumentDate   *time.Time    `json:"document_date,omitempty"`

	ActorID string `json:"-"`
	Version int64  `json:"version" binding:"required"`
}

// CalculateRequest prices a settlement from its entered figures.
type CalculateRequest struct {
	SettlementID string `json:"-"`
	ActorID      string `json:"-"`
	Version      int64  `json:"version" binding:"required"`
}

// TransitionRequest moves a settlement one lifecycle step.
type TransitionRequest struct {
	SettlementID string `json:"-"`
	Target       Status `json:"target" binding:"required"`
	Reason       string `json:"reason,omitempty"`
	ActorID      string `json:"-"`
	Version      int64  `json:"version" binding:"required"`
}

// BulkTransitionRequest applies the same transition to several settlements.
// Each settlement is processed in its own transaction; a failure on one never
// rolls back the others.
type BulkTransitionRequest struct {
	SettlementIDs []string `json:"settlement_ids" binding:"required"`
	Target        Status   `json:"target" binding:"required"`
	Reason        string   `json:"reason,omitempty"`
	ActorID       string   `json:"-"`
}

// BulkTransitionOutcome is the per-settlement result of a bulk transition.
type BulkTransitionOutcome struct {
	SettlementID string `json:"settlement_id"`
	Succeeded    bool   `json:"succeeded"`
	Error        string `json:"error,omitempty"`
}

type BulkTransitionResponse struct {
	Outcomes  []BulkTransitionOutcome `json:"outcomes"`
	Succeeded int                     `json:"succeeded"`
	Failed    int                     `json:"failed"`
}

// AddChargeRequest appends a line item to the charge ledger.
type AddChargeRequest struct {
	SettlementID string `json:"-"`

	Description string          `json:"description" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Currency    string          `json:"currency,omitempty"`
	Category    ChargeCategory  `json:"category,omitempty"`

	ActorID string `json:"-"`
}

type UpdateChargeRequest struct {
	SettlementID string `json:"-"`
	ChargeID     string `json:"-"`

	Description *string          `json:"description,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Category    *ChargeCategory  `json:"category,omitempty"`

	ActorID string `json:"-"`
}

type RemoveChargeRequest struct {
	SettlementID string `json:"-"`
	ChargeID     string `json:"-"`
	ActorID      string `json:"-"`
}

// UpdatePaymentRequest adjusts payment bookkeeping. Unlike other commands it
// remains legal on a finalized settlement.
type UpdatePaymentRequest struct {
	SettlementID string `json:"-"`

	PaymentStatus  *PaymentStatus `json:"payment_status,omitempty"`
	PaymentTerms   *PaymentTerms  `json:"payment_terms,omitempty"`
	PaymentDueDate *time.Time     `json:"payment_due_date,omitempty"`

	ActorID string `json:"-"`
}

// ListRequest filters the settlement collection.
type ListRequest struct {
	pagination.Pagination

	ContractID     string        `form:"contract_id"`
	ContractKind   ContractKind  `form:"contract_kind"`
	Status         Status        `form:"status"`
	PaymentStatus  PaymentStatus `form:"payment_status"`
	DocumentNumber string        `form:"document_number"`
	Currency       string        `form:"currency"`
}

type ListResponse struct {
	Data     []*SettlementView    `json:"data"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}

// TransitionRecord is a read model of one audit trail entry.
type TransitionRecord struct {
	ID         string            `json:"id"`
	FromStatus Status            `json:"from_status"`
	ToStatus   Status            `json:"to_status"`
	ActorID    string            `json:"actor_id"`
	Reason     string            `json:"reason,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// SettlementView is the read model returned by every operation. Monetary
// totals are recomputed from components at view-assembly time.
type SettlementView struct {
	ID           string       `json:"id"`
	ContractID   string       `json:"contract_id"`
	ContractKind ContractKind `json:"contract_kind"`
	SupersedesID string       `json:"supersedes_id,omitempty"`

	DocumentNumber string       `json:"document_number,omitempty"`
	DocumentType   DocumentType `json:"document_type"`
	DocumentDate   *time.Time   `json:"document_date,omitempty"`

	QuantityMass    *decimal.Decimal `json:"quantity_mass,omitempty"`
	QuantityVolume  *decimal.Decimal `json:"quantity_volume,omitempty"`
	ConversionRatio decimal.Decimal  `json:"conversion_ratio"`
	CalculationMode CalculationMode  `json:"calculation_mode"`

	BenchmarkAmount  *decimal.Decimal `json:"benchmark_amount,omitempty"`
	AdjustmentAmount *decimal.Decimal `json:"adjustment_amount,omitempty"`
	Currency         string           `json:"currency"`

	CargoValue  decimal.Decimal `json:"cargo_value"`
	NetCharges  decimal.Decimal `json:"net_charges"`
	TotalAmount decimal.Decimal `json:"total_amount"`

	PaymentTerms   PaymentTerms  `json:"payment_terms"`
	PaymentDueDate *time.Time    `json:"payment_due_date,omitempty"`
	PaymentStatus  PaymentStatus `json:"payment_status"`

	Status                Status `json:"status"`
	RequiresRecalculation bool   `json:"requires_recalculation"`
	Version               int64  `json:"version"`

	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedBy   string     `json:"updated_by,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ReviewedBy  string     `json:"reviewed_by,omitempty"`
	ApprovedBy  string     `json:"approved_by,omitempty"`
	FinalizedBy string     `json:"finalized_by,omitempty"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
}

// NewView assembles the read model, recomputing derived totals.
func NewView(s *Settlement) *SettlementView {
	v := &SettlementView{
		ID:           s.ID.String(),
		ContractID:   s.ContractID.String(),
		ContractKind: s.ContractKind,

		DocumentNumber: s.DocumentNumber,
		DocumentType:   s.DocumentType,
		DocumentDate:   s.DocumentDate,

		QuantityMass:    s.QuantityMass,
		QuantityVolume:  s.QuantityVolume,
		ConversionRatio: s.ConversionRatio,
		CalculationMode: s.CalculationMode,

		BenchmarkAmount:  s.BenchmarkAmount,
		AdjustmentAmount: s.AdjustmentAmount,
		Currency:         s.Currency,

		CargoValue:  s.CargoValue(),
		NetCharges:  s.NetCharges,
		TotalAmount: s.TotalAmount(),

		PaymentTerms:   s.PaymentTerms,
		PaymentDueDate: s.PaymentDueDate,
		PaymentStatus:  s.PaymentStatus,

		Status:                s.Status,
		RequiresRecalculation: s.RequiresRecalculation,
		Version:               s.Version,

		CreatedBy:   s.CreatedBy,
		CreatedAt:   s.CreatedAt,
		UpdatedBy:   s.UpdatedBy,
		UpdatedAt:   s.UpdatedAt,
		FinalizedAt: s.FinalizedAt,
	}
	if s.SupersedesID != nil {
		v.SupersedesID = s.SupersedesID.String()
	}
	if s.ReviewedBy != nil {
		v.ReviewedBy = *s.ReviewedBy
	}
	if s.ApprovedBy != nil {
		v.ApprovedBy = *s.ApprovedBy
	}
	if s.FinalizedBy != nil {
		v.FinalizedBy = *s.FinalizedBy
	}
	return v
}
