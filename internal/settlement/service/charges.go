package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cargosettle/internal/settlement/domain"
	"gorm.io/gorm"
)

// chargeEditable lists the states in which the charge ledger may change.
// Reviewed and approved settlements must be rejected back first.
var chargeEditable = map[domain.Status]bool{
	domain.StatusDraft:       true,
	domain.StatusDataEntered: true,
	domain.StatusCalculated:  true,
}

// AddCharge appends a line item and refreshes the stored net charges figure.
// Negative amounts are deductions.
func (s *Service) AddCharge(ctx context.Context, req domain.AddChargeRequest) (*domain.SettlementView, error) {
	settlementID, err := parseSettlementID(req.SettlementID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, domain.ErrIncompleteInput
	}

	var updated *domain.Settlement
	err = s.coordinator.Execute(ctx, func(ctx context.Context, tx *gorm.DB) error {
		settlement, err := s.load(ctx, tx, settlementID)
		if err != nil {
			return err
		}
		if !chargeEditable[settlement.Status] {
			return domain.ErrInvalidState
		}

		currency := strings.ToUpper(strings.TrimSpace(req.Currency))
		if currency == "" {
			currency = settlement.Currency
		}
		if currency != settlement.Currency {
			return domain.ErrCurrencyMismatch
		}
		category := req.Category
		if category == "" {
			category = domain.ChargeOther
		}

		now := s.clock.Now()
		charge := &domain.ChargeLineItem{
			ID:           s.node.Generate(),
			SettlementID: settlement.ID,
			Description:  strings.TrimSpace(req.Description),
			Amount:       req.Amount,
			Currency:     currency,
			Category:     category,
			CreatedBy:    req.ActorID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.charges.WithTrx(tx).Create(ctx, charge); err != nil {
			return err
		}

		updated, err = s.refreshCharges(ctx, tx, settlement, req.ActorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return domain.NewView(updated), nil
}

func (s *Service) UpdateCharge(ctx context.Context, req domain.UpdateChargeRequest) (*domain.SettlementView, error) {
	settlementID, err := parseSettlementID(req.SettlementID)
	if err != nil {
		return nil, err
	}
	chargeID, err := snowflake.ParseString(strings.TrimSpace(req.ChargeID))
	if err != nil {
		return nil, domain.ErrChargeNotFound
	}

	var updated *domain.Settlement
	err = s.coordinator.Execute(ctx, func(ctx context.Context, tx *gorm.DB) error {
		settlement, err := s.load(ctx, tx, settlementID)
		if err != nil {
			return err
		}
		if !chargeEditable[settlement.Status] {
			return domain.ErrInvalidState
		}

		charge, err := s.charges.WithTrx(tx).FindOne(ctx, &domain.ChargeLineItem{ID: chargeID, SettlementID: settlement.ID})
		if err != nil {
			return err
		}
		if charge == nil {
			return domain.ErrChargeNotFound
		}

		fields := map[string]any{"updated_at": s.clock.Now()}
		if req.Description != nil {
			if strings.TrimSpace(*req.Description) == "" {
				return domain.ErrIncompleteInput
			}
			fields["description"] = strings.TrimSpace(*req.Description)
		}
		if req.Amount != nil {
			fields["amount"] = *req.Amount
		}
		if req.Category != nil {
			fields["category"] = *req.Category
		}
		if err := tx.WithContext(ctx).Model(&domain.ChargeLineItem{}).
			Where("id = ?", chargeID).
			Updates(fields).Error; err != nil {
			return err
		}

		updated, err = s.refreshCharges(ctx, tx, settlement, req.ActorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return domain.NewView(updated), nil
}

func (s *Service) RemoveCharge(ctx context.Context, req domain.RemoveChargeRequest) (*domain.SettlementView, error) {
	settlementID, err := parseSettlementID(req.SettlementID)
	if err != nil {
		return nil, err
	}
	chargeID, err := snowflake.ParseString(strings.TrimSpace(req.ChargeID))
	if err != nil {
		return nil, domain.ErrChargeNotFound
	}

	var updated *domain.Settlement
	err = s.coordinator.Execute(ctx, func(ctx context.Context, tx *gorm.DB) error {
		settlement, err := s.load(ctx, tx, settlementID)
		if err != nil {
			return err
		}
		if !chargeEditable[settlement.Status] {
			return domain.ErrInvalidState
		}

		charge, err := s.charges.WithTrx(tx).FindOne(ctx, &domain.ChargeLineItem{ID: chargeID, SettlementID: settlement.ID})
		if err != nil {
			return err
		}
		if charge == nil {
			return domain.ErrChargeNotFound
		}

		if err := tx.WithContext(ctx).Delete(&domain.ChargeLineItem{}, "id = ?", chargeID).Error; err != nil {
			return err
		}

		updated, err = s.refreshCharges(ctx, tx, settlement, req.ActorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return domain.NewView(updated), nil
}

func (s *Service) ListCharges(ctx context.Context, settlementID string) ([]*domain.ChargeLineItem, error) {
	id, err := parseSettlementID(settlementID)
	if err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, s.db, id); err != nil {
		return nil, err
	}
	return s.charges.Find(ctx, &domain.ChargeLineItem{SettlementID: id})
}

// refreshCharges re-sums the ledger in one place after any charge mutation.
// A calculated settlement is flagged for recalculation rather than left with
// totals that no longer match its line items.
func (s *Service) refreshCharges(ctx context.Context, tx *gorm.DB, settlement *domain.Settlement, actorID string) (*domain.Settlement, error) {
	charges, err := s.charges.WithTrx(tx).Find(ctx, &domain.ChargeLineItem{SettlementID: settlement.ID})
	if err != nil {
		return nil, err
	}
	netCharges := domain.SumCharges(charges)

	fields := map[string]any{
		"net_charges": netCharges,
		"updated_by":  actorID,
	}
	if settlement.Status == domain.StatusCalculated {
		fields["requires_recalculation"] = true
		settlement.RequiresRecalculation = true
	}

	if err := s.guardedUpdate(ctx, tx, settlement.ID, settlement.Version, fields); err != nil {
		return nil, err
	}

	settlement.NetCharges = netCharges
	settlement.Version++
	settlement.UpdatedBy = actorID
	settlement.UpdatedAt = s.clock.Now()
	return settlement, nil
}
