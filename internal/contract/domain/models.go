// Package domain contains the read model for the contract-management
// collaborator. Settlements link to these rows but never mutate contract
// lifecycle state beyond the completion flag.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Kind distinguishes the two contract sides a settlement can reconcile.
type Kind string

const (
	KindPurchase Kind = "PURCHASE"
	KindSale     Kind = "SALE"
)

// ContractSummary seeds default settlement fields on auto-creation.
type ContractSummary struct {
	ID               snowflake.ID    `gorm:"primaryKey"`
	Kind             Kind            `gorm:"type:text;not null"`
	CounterpartyID   snowflake.ID    `gorm:"not null"`
	CounterpartyName string          `gorm:"type:text;not null;default:''"`
	Product          string          `gorm:"type:text;not null;default:''"`
	Quantity         decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0"`
	QuantityUnit     string          `gorm:"type:text;not null;default:''"`
	Currency         string          `gorm:"type:text;not null;default:'USD'"`
	Completed        bool            `gorm:"not null;default:false"`
	CompletedAt      *time.Time      `gorm:""`
	CreatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ContractSummary) TableName() string { return "contracts" }

// CounterpartyExposure tracks the open exposure figure adjusted when a
// settlement against the counterparty finalizes.
type CounterpartyExposure struct {
	CounterpartyID snowflake.ID    `gorm:"primaryKey"`
	OpenExposure   decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CounterpartyExposure) TableName() string { return "counterparty_exposures" }
