package autosettle

import (
	"context"
	"encoding/json"
	"errors"

	contractdomain "github.com/smallbiznis/cargosettle/internal/contract/domain"
	"github.com/smallbiznis/cargosettle/internal/observability/metrics"
	"github.com/smallbiznis/cargosettle/internal/settlement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// actorID tags rows written by the subsystem rather than an operator.
const actorID = "system:autosettle"

type HandlerParam struct {
	fx.In

	Log         *zap.Logger
	Config      Config
	Settlements domain.Service
	Contracts   contractdomain.Service
	Metrics     *metrics.Metrics `optional:"true"`
}

// Handler consumes contract completion notifications and opens the matching
// settlement. Delivery is at-least-once, so the handler must tolerate the
// same completion arriving twice.
type Handler struct {
	log         *zap.Logger
	cfg         Config
	settlements domain.Service
	contracts   contractdomain.Service
	metrics     *metrics.Metrics
}

func NewHandler(p HandlerParam) *Handler {
	return &Handler{
		log:         p.Log.Named("autosettle"),
		cfg:         p.Config,
		settlements: p.Settlements,
		contracts:   p.Contracts,
		metrics:     p.Metrics,
	}
}

func (h *Handler) Topic() string { return contractdomain.ContractCompletedTopic }

func (h *Handler) Handle(ctx context.Context, payload []byte) error {
	if !h.cfg.Enabled {
		return nil
	}

	var event contractdomain.ContractCompletedPayload
	if err := json.Unmarshal(payload, &event); err != nil {
		h.log.Error("malformed completion payload", zap.Error(err))
		return h.fail(err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	contract, err := h.contracts.GetByID(ctx, event.ContractID)
	if err != nil {
		h.log.Error("completion for unknown contract",
			zap.String("contract_id", event.ContractID),
			zap.Error(err),
		)
		return h.fail(err)
	}

	view, err := h.settlements.Create(ctx, h.createRequest(contract, event))
	if errors.Is(err, domain.ErrAlreadySettled) {
		// Redelivery of a completion we already acted on.
		h.log.Info("settlement already exists, skipping",
			zap.String("contract_id", event.ContractID),
			zap.Error(domain.ErrDuplicateEventNotification),
		)
		return nil
	}
	if err != nil {
		h.log.Error("auto-creation failed",
			zap.String("contract_id", event.ContractID),
			zap.Error(err),
		)
		return h.fail(err)
	}

	h.log.Info("settlement auto-created",
		zap.String("settlement_id", view.ID),
		zap.String("contract_id", event.ContractID),
	)

	h.seed(ctx, view, contract)
	return nil
}

func (h *Handler) createRequest(contract contractdomain.ContractSummary, event contractdomain.ContractCompletedPayload) domain.CreateRequest {
	mode := domain.ModeUseMass
	if isVolumeUnit(contract.QuantityUnit) {
		mode = domain.ModeUseVolume
	}

	currency := h.cfg.DefaultCurrency
	if currency == "" {
		currency = contract.Currency
	}

	return domain.CreateRequest{
		ContractID:      event.ContractID,
		ContractKind:    domain.ContractKind(event.ContractKind),
		DocumentType:    h.cfg.DefaultDocumentType,
		CalculationMode: mode,
		ConversionRatio: h.cfg.DefaultConversionRatio,
		Currency:        currency,
		ActorID:         actorID,
		Origin:          "auto",
	}
}

// seed optionally pre-fills quantities from the contract and prices the
// settlement. Both steps are best effort: the settlement already exists, and
// an operator can finish what the seeding could not.
func (h *Handler) seed(ctx context.Context, view *domain.SettlementView, contract contractdomain.ContractSummary) {
	if !h.cfg.AutoTransition && !h.cfg.AutoCalculate {
		return
	}
	if !contract.Quantity.IsPositive() {
		return
	}

	req := domain.SetQuantitiesRequest{
		SettlementID: view.ID,
		ActorID:      actorID,
		Version:      view.Version,
	}
	quantity := contract.Quantity
	if isVolumeUnit(contract.QuantityUnit) {
		req.QuantityVolume = &quantity
	} else {
		req.QuantityMass = &quantity
	}

	seeded, err := h.settlements.SetQuantities(ctx, req)
	if err != nil {
		h.log.Warn("quantity seeding failed",
			zap.String("settlement_id", view.ID),
			zap.Error(err),
		)
		return
	}

	if !h.cfg.AutoCalculate {
		return
	}
	if _, err := h.settlements.Calculate(ctx, domain.CalculateRequest{
		SettlementID: seeded.ID,
		ActorID:      actorID,
		Version:      seeded.Version,
	}); err != nil {
		// Usually incomplete pricing inputs; the settlement stays in
		// DATA_ENTERED for manual completion.
		h.log.Warn("auto-calculation skipped",
			zap.String("settlement_id", seeded.ID),
			zap.Error(err),
		)
	}
}

func (h *Handler) fail(err error) error {
	h.metrics.IncAutoCreateFailure()
	if h.cfg.FailOnError {
		return err
	}
	return nil
}

func isVolumeUnit(unit string) bool {
	switch unit {
	case "BBL", "bbl", "M3", "m3", "L", "GAL":
		return true
	}
	return false
}
