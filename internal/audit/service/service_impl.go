package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/cargosettle/internal/audit/domain"
	"github.com/smallbiznis/cargosettle/pkg/db/option"
	"github.com/smallbiznis/cargosettle/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node

	transitions repository.Repository[auditdomain.SettlementTransition]
}

func NewService(p ServiceParam) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,

		transitions: repository.ProvideStore[auditdomain.SettlementTransition](p.DB),
	}
}

func (s *Service) Record(ctx context.Context, tx *gorm.DB, entry auditdomain.SettlementTransition) error {
	if entry.ID == 0 {
		entry.ID = s.genID.Generate()
	}
	return s.transitions.WithTrx(tx).Create(ctx, &entry)
}

func (s *Service) ListBySettlement(ctx context.Context, settlementID snowflake.ID) ([]auditdomain.SettlementTransition, error) {
	items, err := s.transitions.Find(ctx,
		&auditdomain.SettlementTransition{SettlementID: settlementID},
		// Snowflake ids are monotonic per node, unlike the wall-clock
		// timestamps which can collide within a millisecond.
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"id": true}, Field: "id"}),
	)
	if err != nil {
		return nil, err
	}

	entries := make([]auditdomain.SettlementTransition, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entries = append(entries, *item)
	}
	return entries, nil
}
