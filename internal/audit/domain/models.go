// Package domain contains the settlement history stream models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// SettlementTransition records one applied state change, including rejections
// with their mandatory reason.
type SettlementTransition struct {
	ID           snowflake.ID      `gorm:"primaryKey"`
	SettlementID snowflake.ID      `gorm:"not null;index"`
	FromStatus   string            `gorm:"type:text;not null"`
	ToStatus     string            `gorm:"type:text;not null"`
	ActorID      string            `gorm:"type:text;not null;default:''"`
	Reason       string            `gorm:"type:text;not null;default:''"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (SettlementTransition) TableName() string { return "settlement_transitions" }
