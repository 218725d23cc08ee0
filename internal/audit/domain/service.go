package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Service records and reads the transition stream. Record stages the entry on
// the caller's transaction so history commits atomically with the state change.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, entry SettlementTransition) error
	ListBySettlement(ctx context.Context, settlementID snowflake.ID) ([]SettlementTransition, error)
}
