// Package domain contains the settlement aggregate and its calculation rules.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Status represents settlement lifecycle states.
type Status string

const (
	StatusDraft       Status = "DRAFT"
	StatusDataEntered Status = "DATA_ENTERED"
	StatusCalculated  Status = "CALCULATED"
	StatusReviewed    Status = "REVIEWED"
	StatusApproved    Status = "APPROVED"
	StatusFinalized   Status = "FINALIZED"
	StatusCancelled   Status = "CANCELLED"
)

// ContractKind distinguishes which contract side the settlement reconciles.
type ContractKind string

const (
	ContractKindPurchase ContractKind = "PURCHASE"
	ContractKindSale     ContractKind = "SALE"
)

// DocumentType enumerates the delivery evidence backing a settlement.
type DocumentType string

const (
	DocumentTypeBillOfLading DocumentType = "BILL_OF_LADING"
	DocumentTypeInvoice      DocumentType = "INVOICE"
	DocumentTypeOther        DocumentType = "OTHER"
)

// CalculationMode selects which physical unit is authoritative when deriving
// the other.
type CalculationMode string

const (
	ModeUseMass     CalculationMode = "USE_MASS"
	ModeUseVolume   CalculationMode = "USE_VOLUME"
	ModeIndependent CalculationMode = "INDEPENDENT"
)

// PaymentTerms enumerates standard payment terms.
type PaymentTerms string

const (
	TermsPrepayment      PaymentTerms = "PREPAYMENT"
	TermsCashAgainstDocs PaymentTerms = "CASH_AGAINST_DOCS"
	TermsNet30           PaymentTerms = "NET_30"
	TermsNet60           PaymentTerms = "NET_60"
	TermsCustom          PaymentTerms = "CUSTOM"
)

// PaymentStatus tracks payment bookkeeping independently of lifecycle status.
type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "UNPAID"
	PaymentPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	PaymentPaid          PaymentStatus = "PAID"
	PaymentOverdue       PaymentStatus = "OVERDUE"
)

// ChargeCategory tags a charge line item.
type ChargeCategory string

const (
	ChargeFreight    ChargeCategory = "FREIGHT"
	ChargeInspection ChargeCategory = "INSPECTION"
	ChargeDemurrage  ChargeCategory = "DEMURRAGE"
	ChargePort       ChargeCategory = "PORT"
	ChargeOther      ChargeCategory = "OTHER"
)

// Settlement is the aggregate root reconciling a physical delivery against
// contracted pricing. Totals are derived, never stored: CargoValue and
// TotalAmount recompute from their components on every read.
type Settlement struct {
	ID           snowflake.ID  `gorm:"primaryKey"`
	ContractID   snowflake.ID  `gorm:"not null;index:ix_settlements_contract"`
	ContractKind ContractKind  `gorm:"type:text;not null;index:ix_settlements_contract"`
	SupersedesID *snowflake.ID `gorm:"index"`

	DocumentNumber string       `gorm:"type:text;not null;default:'';index"`
	DocumentType   DocumentType `gorm:"type:text;not null;default:'BILL_OF_LADING'"`
	DocumentDate   *time.Time   `gorm:""`

	QuantityMass    *decimal.Decimal `gorm:"type:numeric(20,6)"`
	QuantityVolume  *decimal.Decimal `gorm:"type:numeric(20,6)"`
	ConversionRatio decimal.Decimal  `gorm:"type:numeric(20,6);not null;default:0"`
	CalculationMode CalculationMode  `gorm:"type:text;not null;default:'INDEPENDENT'"`

	BenchmarkAmount  *decimal.Decimal `gorm:"type:numeric(20,6)"`
	AdjustmentAmount *decimal.Decimal `gorm:"type:numeric(20,6)"`
	Currency         string           `gorm:"type:text;not null;default:'USD'"`
	NetCharges       decimal.Decimal  `gorm:"type:numeric(20,6);not null;default:0"`

	PaymentTerms   PaymentTerms  `gorm:"type:text;not null;default:'NET_30'"`
	PaymentDueDate *time.Time    `gorm:""`
	PaymentStatus  PaymentStatus `gorm:"type:text;not null;default:'UNPAID'"`

	Status                Status `gorm:"type:text;not null;default:'DRAFT';index"`
	RequiresRecalculation bool   `gorm:"not null;default:false"`
	Version               int64  `gorm:"not null;default:1"`

	CreatedBy   string     `gorm:"type:text;not null;default:''"`
	CreatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedBy   string     `gorm:"type:text;not null;default:''"`
	UpdatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"`
	ReviewedBy  *string    `gorm:"type:text"`
	ApprovedBy  *string    `gorm:"type:text"`
	FinalizedBy *string    `gorm:"type:text"`
	FinalizedAt *time.Time `gorm:""`
}

// TableName sets the database table name.
func (Settlement) TableName() string { return "settlements" }

// CargoValue is benchmark plus adjustment; zero until a benchmark is entered.
func (s *Settlement) CargoValue() decimal.Decimal {
	if s.BenchmarkAmount == nil {
		return decimal.Zero
	}
	value := *s.BenchmarkAmount
	if s.AdjustmentAmount != nil {
		value = value.Add(*s.AdjustmentAmount)
	}
	return value
}

// TotalAmount is cargo value plus net charges, recomputed on read.
func (s *Settlement) TotalAmount() decimal.Decimal {
	return s.CargoValue().Add(s.NetCharges)
}

// IsTerminal reports whether no further lifecycle transitions are possible.
func (s *Settlement) IsTerminal() bool {
	return s.Status == StatusFinalized || s.Status == StatusCancelled
}

// PaymentDueDateFor derives the expected payment date from terms and the
// document date. Custom terms carry no derivable date.
func PaymentDueDateFor(terms PaymentTerms, documentDate *time.Time) *time.Time {
	if documentDate == nil {
		return nil
	}
	var days int
	switch terms {
	case TermsPrepayment, TermsCashAgainstDocs:
		days = 0
	case TermsNet30:
		days = 30
	case TermsNet60:
		days = 60
	default:
		return nil
	}
	due := documentDate.AddDate(0, 0, days)
	return &due
}

// ChargeLineItem is a fee or deduction owned by a settlement. The sum of a
// settlement's line items is its net charges figure.
type ChargeLineItem struct {
	ID           snowflake.ID    `gorm:"primaryKey"`
	SettlementID snowflake.ID    `gorm:"not null;index"`
	Description  string          `gorm:"type:text;not null;default:''"`
	Amount       decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	Currency     string          `gorm:"type:text;not null"`
	Category     ChargeCategory  `gorm:"type:text;not null;default:'OTHER'"`
	CreatedBy    string          `gorm:"type:text;not null;default:''"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ChargeLineItem) TableName() string { return "settlement_charges" }
