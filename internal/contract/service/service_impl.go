package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cargosettle/internal/clock"
	contractdomain "github.com/smallbiznis/cargosettle/internal/contract/domain"
	"github.com/smallbiznis/cargosettle/internal/events"
	"github.com/smallbiznis/cargosettle/internal/txn"
	"github.com/smallbiznis/cargosettle/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Coordinator *txn.Coordinator
	Publisher   events.Publisher
	Clock       clock.Clock
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	coordinator *txn.Coordinator
	publisher   events.Publisher
	clock       clock.Clock

	contracts repository.Repository[contractdomain.ContractSummary]
}

func NewService(p ServiceParam) contractdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("contract.service"),
		coordinator: p.Coordinator,
		publisher:   p.Publisher,
		clock:       p.Clock,

		contracts: repository.ProvideStore[contractdomain.ContractSummary](p.DB),
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (contractdomain.ContractSummary, error) {
	contractID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return contractdomain.ContractSummary{}, contractdomain.ErrInvalidContractID
	}

	item, err := s.contracts.FindOne(ctx, &contractdomain.ContractSummary{ID: contractID})
	if err != nil {
		return contractdomain.ContractSummary{}, err
	}
	if item == nil {
		return contractdomain.ContractSummary{}, contractdomain.ErrNotFound
	}

	return *item, nil
}

// Complete marks the contract completed and, after the commit, notifies
// subscribers. The notification is fire-and-forget: settlement-side faults
// must never roll back the completion.
func (s *Service) Complete(ctx context.Context, id string) (contractdomain.ContractSummary, error) {
	contractID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return contractdomain.ContractSummary{}, contractdomain.ErrInvalidContractID
	}

	var completed contractdomain.ContractSummary
	err = s.coordinator.Execute(ctx, func(ctx context.Context, tx *gorm.DB) error {
		item, err := s.contracts.WithTrx(tx).FindOne(ctx, &contractdomain.ContractSummary{ID: contractID})
		if err != nil {
			return err
		}
		if item == nil {
			return contractdomain.ErrNotFound
		}

		if !item.Completed {
			now := s.clock.Now()
			if err := tx.WithContext(ctx).Exec(
				`UPDATE contracts SET completed = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
				true, now, now, contractID,
			).Error; err != nil {
				return err
			}
			item.Completed = true
			item.CompletedAt = &now
		}

		completed = *item
		return nil
	})
	if err != nil {
		return contractdomain.ContractSummary{}, err
	}

	payload, err := json.Marshal(contractdomain.ContractCompletedPayload{
		ContractID:   completed.ID.String(),
		ContractKind: string(completed.Kind),
	})
	if err != nil {
		return contractdomain.ContractSummary{}, err
	}
	if err := s.publisher.Publish(ctx, contractdomain.ContractCompletedTopic, payload); err != nil {
		s.log.Error("failed to publish contract completion",
			zap.String("contract_id", completed.ID.String()),
			zap.Error(err),
		)
	}

	return completed, nil
}
