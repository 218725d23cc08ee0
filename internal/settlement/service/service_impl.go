package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/cargosettle/internal/audit/domain"
	"github.com/smallbiznis/cargosettle/internal/clock"
	contractdomain "github.com/smallbiznis/cargosettle/internal/contract/domain"
	"github.com/smallbiznis/cargosettle/internal/observability/metrics"
	"github.com/smallbiznis/cargosettle/internal/settlement/domain"
	"github.com/smallbiznis/cargosettle/internal/txn"
	"github.com/smallbiznis/cargosettle/pkg/db"
	"github.com/smallbiznis/cargosettle/pkg/db/option"
	"github.com/smallbiznis/cargosettle/pkg/db/pagination"
	"github.com/smallbiznis/cargosettle/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Node        *snowflake.Node
	Coordinator *txn.Coordinator
	Clock       clock.Clock
	Audit       auditdomain.Service
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	node        *snowflake.Node
	coordinator *txn.Coordinator
	clock       clock.Clock
	audit       auditdomain.Service
	metrics     *metrics.Metrics

	settlements repository.Repository[domain.Settlement]
	charges     repository.Repository[domain.ChargeLineItem]
	contracts   repository.Repository[contractdomain.ContractSummary]
	exposures   repository.Repository[contractdomain.CounterpartyExposure]
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("settlement.service"),
		node:        p.Node,
		coordinator: p.Coordinator,
		clock:       p.Clock,
		audit:       p.Audit,
		metrics:     p.Metrics,

		settlements: repository.ProvideStore[domain.Settlement](p.DB),
		charges:     repository.ProvideStore[domain.ChargeLineItem](p.DB),
		contracts:   repository.ProvideStore[contractdomain.ContractSummary](p.DB),
		exposures:   repository.ProvideStore[contractdomain.CounterpartyExposure](p.DB),
	}
}

// Create opens a DRAFT settlement against a contract side. A contract side
// carries at most one live settlement; corrections must name the finalized
// record they supersede.
func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.SettlementView, error) {
	contractID, err := snowflake.ParseString(strings.TrimSpace(req.ContractID))
	if err != nil {
		return nil, contractdomain.ErrInvalidContractID
	}
	if req.ContractKind != domain.ContractKindPurchase && req.ContractKind != domain.ContractKindSale {
		return nil, domain.ErrIncompleteInput
	}
	if req.ConversionRatio.IsNegative() {
		return nil, domain.ErrInvalidQuantity
	}

	var created *domain.Settlement
	err = s.coordinator.Execute(ctx, func(ctx context.Context, tx *gorm.DB) error {
		contract, err := s.contracts.WithTrx(tx).FindOne(ctx, &contractdomain.ContractSummary{ID: contractID})
		if err != nil {
			return err
		}
		if contract == nil {
			return contractdomain.ErrNotFound
		}

		var supersedesID *snowflake.ID
		if strings.TrimSpace(req.SupersedesID) != "" {
			id, err := snowflake.ParseString(strings.TrimSpace(req.SupersedesID))
			if err != nil {
				return domain.ErrNotFound
			}
			superseded, err := s.settlements.WithTrx(tx).FindOne(ctx, &domain.Settlement{ID: id})
			if err != nil {
				return err
			}
			if superseded == nil {
				return domain.ErrNotFound
			}
			if superseded.Status != domain.StatusFinalized {
				return domain.ErrInvalidState
			}
			supersedesID = &id
		} else {
			var count int64
			if err := tx.WithContext(ctx).Model(&domain.Settlement{}).
				Where("contract_id = ? AND contract_kind = ? AND supersedes_id IS NULL", contractID, req.ContractKind).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return domain.ErrAlreadySettled
			}
		}

		now := s.clock.Now()
		settlement := &domain.Settlement{
			ID:           s.node.Generate(),
			ContractID:   contractID,
			ContractKind: req.ContractKind,
			SupersedesID: supersedesID,

			DocumentNumber: strings.TrimSpace(req.DocumentNumber),
			DocumentType:   req.DocumentType,
			DocumentDate:   req.DocumentDate,

			ConversionRatio: req.ConversionRatio,
			CalculationMode: req.CalculationMode,

			Currency:     strings.ToUpper(strings.TrimSpace(req.Currency)),
			PaymentTerms: req.PaymentTerms,

			Status:        domain.StatusDraft,
			PaymentStatus: domain.PaymentUnpaid,
			Version:       1,

			CreatedBy: req.ActorID,
			CreatedAt: now,
			UpdatedBy: req.ActorID,
			UpdatedAt: now,
		}
		if settlement.DocumentType == "" {
			settlement.DocumentType = domain.DocumentTypeBillOfLading
		}
		if settlement.CalculationMode == "" {
			settlement.CalculationMode = domain.ModeIndependent
		}
		if settlement.Currency == "" {
			settlement.Currency = contract.Currency
		}
		if settlement.PaymentTerms == "" {
			settlement.PaymentTerms = domain.TermsNet30
		}
		settlement.PaymentDueDate = domain.PaymentDueDateFor(settlement.PaymentTerms, settlement.DocumentDate)

		if err := s.settlements.WithTrx(tx).Create(ctx, settlement); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrAlreadySettled
			}
			return err
		}

		if err := s.audit.Record(ctx, tx, auditdomain.SettlementTransition{
			SettlementID: settlement.ID,
			FromStatus:   "",
			ToStatus:     string(domain.StatusDraft),
			ActorID:      req.ActorID,
			Metadata:     datatypes.JSONMap{"origin": origin(req.Origin)},
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		created = settlement
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncSettlementCreated(origin(req.Origin))
	s.log.Info("settlement created",
		zap.String("settlement_id", created.ID.String()),
		zap.String("contract_id", created.ContractID.String()),
		zap.String("origin", origin(req.Origin)),
	)

	return domain.NewView(created), nil
}

func origin(v string) string {
	if v == "" {
		return "api"
	}
	return v
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.SettlementView, error) {
	settlementID, err := parseSettlementID(id)
	if err != nil {
		return nil, err
	}

	item, err := s.settlements.FindOne(ctx, &domain.Settlement{ID: settlementID})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	return domain.NewView(item), nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	limit := req.PageSize
	if limit <= 0 {
		limit = 25
	}

	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"id": true}, Field: "id", Desc: true}),
		option.WithLimit(limit + 1),
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return nil, err
		}
		if cursor.ID != "" {
			cursorID, err := snowflake.ParseString(cursor.ID)
			if err != nil {
				return nil, err
			}
			opts = append(opts, option.ApplyOperator(option.Condition{Field: "id", Operator: option.LT, Value: cursorID}))
		}
	}

	query := &domain.Settlement{
		ContractKind:   req.ContractKind,
		Status:         req.Status,
		PaymentStatus:  req.PaymentStatus,
		DocumentNumber: strings.TrimSpace(req.DocumentNumber),
		Currency:       strings.ToUpper(strings.TrimSpace(req.Currency)),
	}
	if req.ContractID != "" {
		contractID, err := snowflake.ParseString(req.ContractID)
		if err != nil {
			return nil, contractdomain.ErrInvalidContractID
		}
		query.ContractID = contractID
	}

	items, err := s.settlements.Find(ctx, query, opts...)
	if err != nil {
		return nil, err
	}

	pageInfo, items := pagination.BuildCursorPageInfo(items, limit, func(item *domain.Settlement) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: item.ID.String()})
		return token
	})

	views := make([]*domain.SettlementView, 0, len(items))
	for _, item := range items {
		views = append(views, domain.NewView(item))
	}

	return &domain.ListResponse{Data: views, PageInfo: pageInfo}, nil
}

// SetQuantities replaces the physical and pricing inputs. A DRAFT advances to
// DATA_ENTERED automatically once the document number and a quantity are both
// keyed; editing after calculation flags the settlement for recalculation
// instead of silently keeping stale totals.
func (s *Service) SetQuantities(ctx context.Context, req domain.SetQuantitiesRequest) (*domain.SettlementView, error) {
	settlementID, err := parseSettlementID(req.SettlementID)
	if err != nil {
		return nil, err
	}

	var updated *domain.Settlement
	err = s.coordinator.Execute(ctx, func(ctx context.Context, tx *gorm.DB) error {
		settlement, err := s.loadForUpdate(ctx, tx, settlementID, req.Version)
		if err != nil {
			return err
		}
		switch settlement.Status {
		case domain.StatusDraft, domain.StatusDataEntered, domain.StatusCalculated:
		default:
			return domain.ErrInvalidState
		}

		if req.QuantityMass != nil {
			settlement.QuantityMass = req.QuantityMass
		}
		if req.QuantityVolume != nil {
			settlement.QuantityVolume = req.QuantityVolume
		}
		if req.ConversionRatio != nil {
			settlement.ConversionRatio = *req.ConversionRatio
		}
		if req.CalculationMode != "" {
			settlement.CalculationMode = req.CalculationMode
		}
		if req.BenchmarkAmount != nil {
			settlement.BenchmarkAmount = req.BenchmarkAmount
		}
		if req.AdjustmentAmount != nil {
			settlement.AdjustmentAmount = req.AdjustmentAmount
		}
		if req.DocumentNumber != nil {
			settlement.DocumentNumber = strings.TrimSpace(*req.DocumentNumber)
		}
		if req.DocumentType != nil {
			settlement.DocumentType = *req.DocumentType
		}
		if req.DocumentDate != nil {
			settlement.DocumentDate = req.DocumentDate
			settlement.PaymentDueDate = domain.PaymentDueDateFor(settlement.PaymentTerms, settlement.DocumentDate)
		}

		// Derive the counterpart quantity as soon as the authoritative figure
		// is available; completeness is only enforced at calculation time.
		if settlement.CalculationMode != domain.ModeIndependent && hasAuthoritative(settlement) {
			resolved, err := domain.ResolveQuantities(domain.QuantityInput{
				Mass:   settlement.QuantityMass,
				Volume: settlement.QuantityVolume,
				Ratio:  settlement.ConversionRatio,
				Mode:   settlement.CalculationMode,
			})
			if err != nil {
				return err
			}
			settlement.QuantityMass = &resolved.Mass
			settlement.QuantityVolume = &resolved.Volume
		} else if settlement.CalculationMode == domain.ModeIndependent {
			if settlement.QuantityMass != nil && settlement.QuantityMass.IsNegative() {
				return domain.ErrInvalidQuantity
			}
			if settlement.QuantityVolume != nil && settlement.QuantityVolume.IsNegative() {
				return domain.ErrInvalidQuantity
			}
		}

		fields := map[string]any{
			"quantity_mass":     settlement.QuantityMass,
			"quantity_volume":   settlement.QuantityVolume,
			"conversion_ratio":  settlement.ConversionRatio,
			"calculation_mode":  settlement.CalculationMode,
			"benchmark_amount":  settlement.BenchmarkAmount,
			"adjustment_amount": settlement.AdjustmentAmount,
			"document_number":   settlement.DocumentNumber,
			"document_type":     settlement.DocumentType,
			"document_date":     settlement.DocumentDate,
			"payment_due_date":  settlement.PaymentDueDate,
			"updated_by":        req.ActorID,
		}

		if settlement.Status == domain.StatusDraft && readyForDataEntry(settlement) {
			fields["status"] = domain.StatusDataEntered
			if err := s.recordTransition(ctx, tx, settlement.ID, settlement.Status, domain.StatusDataEntered, req.ActorID, "", nil); err != nil {
				return err
			}
			settlement.Status = domain.StatusDataEntered
		}
		if settlement.Status == domain.StatusCalculated {
			fields["requires_recalculation"] = true
			settlement.RequiresRecalculation = true
		}

		if err := s.guardedUpdate(ctx, tx, settlement.ID, req.Version, fields); err != nil {
			return err
		}
		settlement.Version = req.Version + 1
		settlement.UpdatedBy = req.ActorID
		settlement.UpdatedAt = s.clock.Now()

		updated = settlement
		return nil
	})
	if err != nil {
		return nil, err
	}

	return domain.NewView(updated), nil
}

// Calculate prices the settlement and marks it CALCULATED. The pricing itself
// is pure; running it again over unchanged inputs produces identical totals.
// A DRAFT with complete data passes through DATA_ENTERED on the way, with both
// steps recorded in the history stream.
func (s *Service) Calculate(ctx context.Context, req domain.CalculateRequest) (*domain.SettlementView, error) {
	settlementID, err := parseSettlementID(req.SettlementID)
	if err != nil {
		return nil, err
	}

	var updated *domain.Settlement
	err = s.coordinator.Execute(ctx, func(ctx context.Context, tx *gorm.DB) error {
		settlement, err := s.loadForUpdate(ctx, tx, settlementID, req.Version)
		if err != nil {
			return err
		}
		switch settlement.Status {
		case domain.StatusDraft, domain.StatusDataEntered, domain.StatusCalculated:
		default:
			return domain.ErrInvalidState
		}

		resolved, err := domain.ResolveQuantities(domain.QuantityInput{
			Mass:   settlement.QuantityMass,
			Volume: settlement.QuantityVolume,
			Ratio:  settlement.ConversionRatio,
			Mode:   settlement.CalculationMode,
		})
		if err != nil {
			return err
		}
		if settlement.CalculationMode != domain.ModeIndependent {
			settlement.QuantityMass = &resolved.Mass
			settlement.QuantityVolume = &resolved.Volume
		}

		charges, err := s.charges.WithTrx(tx).Find(ctx, &domain.ChargeLineItem{SettlementID: settlement.ID})
		if err != nil {
			return err
		}
		result, err := domain.ComputeTotals(settlement, charges)
		if err != nil {
			return err
		}

		if settlement.Status == domain.StatusDraft {
			if !readyForDataEntry(settlement) {
				return domain.ErrIncompleteInput
			}
			if err := s.recordTransition(ctx, tx, settlement.ID, domain.StatusDraft, domain.StatusDataEntered, req.ActorID, "", nil); err != nil {
				return err
			}
			settlement.Status = domain.StatusDataEntered
		}
		if settlement.Status == domain.StatusDataEntered {
			if err := s.recordTransition(ctx, tx, settlement.ID, domain.StatusDataEntered, domain.StatusCalculated, req.ActorID, "", nil); err != nil {
				return err
			}
		}

		fields := map[string]any{
			"quantity_mass":          settlement.QuantityMass,
			"quantity_volume":        settlement.QuantityVolume,
			"net_charges":            result.NetCharges,
			"status":                 domain.StatusCalculated,
			"requires_recalculation": false,
			"updated_by":             req.ActorID,
		}
		if err := s.guardedUpdate(ctx, tx, settlement.ID, req.Version, fields); err != nil {
			return err
		}

		settlement.NetCharges = result.NetCharges
		settlement.Status = domain.StatusCalculated
		settlement.RequiresRecalculation = false
		settlement.Version = req.Version + 1
		settlement.UpdatedBy = req.ActorID
		settlement.UpdatedAt = s.clock.Now()

		updated = settlement
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(string(domain.StatusCalculated))
	return domain.NewView(updated), nil
}

// Transition moves a settlement one lifecycle step, recording the change in
// the history stream inside the same transaction.
func (s *Service) Transition(ctx context.Context, req domain.TransitionRequest) (*domain.SettlementView, error) {
	settlementID, err := parseSettlementID(req.SettlementID)
	if err != nil {
		return nil, err
	}

	var updated *domain.Settlement
	err = s.coordinator.Execute(ctx, func(ctx context.Context, tx *gorm.DB) error {
		settlement, err := s.loadForUpdate(ctx, tx, settlementID, req.Version)
		if err != nil {
			return err
		}
		updated, err = s.applyTransition(ctx, tx, settlement, req.Target, req.Reason, req.ActorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(string(req.Target))
	return domain.NewView(updated), nil
}

// BulkTransition applies the same move to several settlements, each in its own
// transaction. One settlement failing never rolls back the others.
func (s *Service) BulkTransition(ctx context.Context, req domain.BulkTransitionRequest) (*domain.BulkTransitionResponse, error) {
	resp := &domain.BulkTransitionResponse{}
	for _, id := range req.SettlementIDs {
		outcome := domain.BulkTransitionOutcome{SettlementID: id}

		settlementID, err := parseSettlementID(id)
		if err == nil {
			err = s.coordinator.Execute(ctx, func(ctx context.Context, tx *gorm.DB) error {
				settlement, err := s.load(ctx, tx, settlementID)
				if err != nil {
					return err
				}
				_, err = s.applyTransition(ctx, tx, settlement, req.Target, req.Reason, req.ActorID)
				return err
			})
		}

		if err != nil {
			outcome.Error = err.Error()
			resp.Failed++
		} else {
			outcome.Succeeded = true
			resp.Succeeded++
			s.metrics.IncTransition(string(req.Target))
		}
		resp.Outcomes = append(resp.Outcomes, outcome)
	}
	return resp, nil
}

func (s *Service) applyTransition(ctx context.Context, tx *gorm.DB, settlement *domain.Settlement, target domain.Status, reason, actorID string) (*domain.Settlement, error) {
	if err := domain.ValidateTransition(settlement.Status, target); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	fields := map[string]any{"updated_by": actorID, "status": target}

	switch target {
	case domain.StatusDataEntered:
		if !readyForDataEntry(settlement) {
			return nil, domain.ErrIncompleteInput
		}

	case domain.StatusCalculated:
		// CALCULATED is only reachable through Calculate; a bare status write
		// would skip the pricing run.
		return nil, domain.ErrInvalidState

	case domain.StatusReviewed:
		if settlement.RequiresRecalculation {
			return nil, domain.ErrInvalidState
		}
		fields["reviewed_by"] = actorID
		settlement.ReviewedBy = &actorID

	case domain.StatusApproved:
		if settlement.ReviewedBy != nil && *settlement.ReviewedBy == actorID {
			return nil, domain.ErrSameActor
		}
		fields["approved_by"] = actorID
		settlement.ApprovedBy = &actorID

	case domain.StatusFinalized:
		fields["finalized_by"] = actorID
		fields["finalized_at"] = now
		settlement.FinalizedBy = &actorID
		settlement.FinalizedAt = &now
		if err := s.adjustExposure(ctx, tx, settlement); err != nil {
			return nil, err
		}

	case domain.StatusDraft:
		// Rejection: entered data survives, sign-offs do not, and the
		// settlement must be repriced before it can move forward again.
		if strings.TrimSpace(reason) == "" {
			return nil, domain.ErrMissingReason
		}
		fields["requires_recalculation"] = true
		fields["reviewed_by"] = nil
		fields["approved_by"] = nil
		settlement.RequiresRecalculation = true
		settlement.ReviewedBy = nil
		settlement.ApprovedBy = nil
	}

	if err := s.recordTransition(ctx, tx, settlement.ID, settlement.Status, target, actorID, reason, nil); err != nil {
		return nil, err
	}
	if err := s.guardedUpdate(ctx, tx, settlement.ID, settlement.Version, fields); err != nil {
		return nil, err
	}

	settlement.Version++
	settlement.Status = target
	settlement.UpdatedBy = actorID
	settlement.UpdatedAt = now
	return settlement, nil
}

// adjustExposure folds the finalized total into the counterparty's open
// exposure in the same transaction as the status change. Sales open a
// receivable; purchases offset with a payable.
func (s *Service) adjustExposure(ctx context.Context, tx *gorm.DB, settlement *domain.Settlement) error {
	contract, err := s.contracts.WithTrx(tx).FindOne(ctx, &contractdomain.ContractSummary{ID: settlement.ContractID})
	if err != nil {
		return err
	}
	if contract == nil {
		return contractdomain.ErrNotFound
	}

	delta := settlement.TotalAmount()
	if settlement.ContractKind == domain.ContractKindPurchase {
		delta = delta.Neg()
	}

	now := s.clock.Now()
	existing, err := s.exposures.WithTrx(tx).FindOne(ctx, &contractdomain.CounterpartyExposure{CounterpartyID: contract.CounterpartyID})
	if err != nil {
		return err
	}
	if existing == nil {
		return s.exposures.WithTrx(tx).Create(ctx, &contractdomain.CounterpartyExposure{
			CounterpartyID: contract.CounterpartyID,
			OpenExposure:   delta,
			UpdatedAt:      now,
		})
	}

	return tx.WithContext(ctx).Model(&contractdomain.CounterpartyExposure{}).
		Where("counterparty_id = ?", contract.CounterpartyID).
		Updates(map[string]any{
			"open_exposure": existing.OpenExposure.Add(delta),
			"updated_at":    now,
		}).Error
}

// UpdatePayment adjusts payment bookkeeping. Payment state is deliberately
// orthogonal to the lifecycle: a finalized settlement still accepts it.
func (s *Service) UpdatePayment(ctx context.Context, req domain.UpdatePaymentRequest) (*domain.SettlementView, error) {
	settlementID, err := parseSettlementID(req.SettlementID)
	if err != nil {
		return nil, err
	}

	var updated *domain.Settlement
	err = s.coordinator.Execute(ctx, func(ctx context.Context, tx *gorm.DB) error {
		settlement, err := s.load(ctx, tx, settlementID)
		if err != nil {
			return err
		}
		if settlement.Status == domain.StatusCancelled {
			return domain.ErrInvalidState
		}

		fields := map[string]any{"updated_by": req.ActorID}
		if req.PaymentStatus != nil {
			switch *req.PaymentStatus {
			case domain.PaymentUnpaid, domain.PaymentPartiallyPaid, domain.PaymentPaid, domain.PaymentOverdue:
			default:
				return domain.ErrIncompleteInput
			}
			fields["payment_status"] = *req.PaymentStatus
			settlement.PaymentStatus = *req.PaymentStatus
		}
		if req.PaymentTerms != nil {
			fields["payment_terms"] = *req.PaymentTerms
			settlement.PaymentTerms = *req.PaymentTerms
			settlement.PaymentDueDate = domain.PaymentDueDateFor(settlement.PaymentTerms, settlement.DocumentDate)
			fields["payment_due_date"] = settlement.PaymentDueDate
		}
		if req.PaymentDueDate != nil {
			fields["payment_due_date"] = req.PaymentDueDate
			settlement.PaymentDueDate = req.PaymentDueDate
		}

		if err := s.guardedUpdate(ctx, tx, settlement.ID, settlement.Version, fields); err != nil {
			return err
		}
		settlement.Version++
		settlement.UpdatedBy = req.ActorID
		settlement.UpdatedAt = s.clock.Now()

		updated = settlement
		return nil
	})
	if err != nil {
		return nil, err
	}

	return domain.NewView(updated), nil
}

func (s *Service) History(ctx context.Context, settlementID string) ([]*domain.TransitionRecord, error) {
	id, err := parseSettlementID(settlementID)
	if err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, s.db, id); err != nil {
		return nil, err
	}

	entries, err := s.audit.ListBySettlement(ctx, id)
	if err != nil {
		return nil, err
	}

	records := make([]*domain.TransitionRecord, 0, len(entries))
	for _, entry := range entries {
		record := &domain.TransitionRecord{
			ID:         entry.ID.String(),
			FromStatus: domain.Status(entry.FromStatus),
			ToStatus:   domain.Status(entry.ToStatus),
			ActorID:    entry.ActorID,
			Reason:     entry.Reason,
			OccurredAt: entry.CreatedAt,
		}
		if len(entry.Metadata) > 0 {
			record.Metadata = make(map[string]string, len(entry.Metadata))
			for k, v := range entry.Metadata {
				if str, ok := v.(string); ok {
					record.Metadata[k] = str
				}
			}
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *Service) recordTransition(ctx context.Context, tx *gorm.DB, settlementID snowflake.ID, from, to domain.Status, actorID, reason string, metadata datatypes.JSONMap) error {
	return s.audit.Record(ctx, tx, auditdomain.SettlementTransition{
		SettlementID: settlementID,
		FromStatus:   string(from),
		ToStatus:     string(to),
		ActorID:      actorID,
		Reason:       reason,
		Metadata:     metadata,
		CreatedAt:    s.clock.Now(),
	})
}

func (s *Service) load(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Settlement, error) {
	item, err := s.settlements.WithTrx(tx).FindOne(ctx, &domain.Settlement{ID: id})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

// loadForUpdate fetches the settlement and rejects stale writers up front; the
// version guard on the eventual UPDATE remains the authoritative check.
func (s *Service) loadForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID, version int64) (*domain.Settlement, error) {
	settlement, err := s.load(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if settlement.Version != version {
		return nil, domain.ErrConcurrentModification
	}
	return settlement, nil
}

// guardedUpdate applies fields only when the stored version still matches the
// one the caller read. A zero row count means another writer got there first.
func (s *Service) guardedUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID, version int64, fields map[string]any) error {
	fields["version"] = version + 1
	fields["updated_at"] = s.clock.Now()

	res := tx.WithContext(ctx).Model(&domain.Settlement{}).
		Where("id = ? AND version = ?", id, version).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrConcurrentModification
	}
	return nil
}

func parseSettlementID(id string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return 0, domain.ErrNotFound
	}
	return parsed, nil
}

func hasAuthoritative(s *domain.Settlement) bool {
	switch s.CalculationMode {
	case domain.ModeUseMass:
		return s.QuantityMass != nil
	case domain.ModeUseVolume:
		return s.QuantityVolume != nil
	}
	return false
}

// readyForDataEntry reports whether the external document and at least one
// quantity have been keyed, the entry criteria for DATA_ENTERED.
func readyForDataEntry(s *domain.Settlement) bool {
	return s.DocumentNumber != "" && (s.QuantityMass != nil || s.QuantityVolume != nil)
}
