package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/cargosettle/internal/audit/domain"
	auditservice "github.com/smallbiznis/cargosettle/internal/audit/service"
	"github.com/smallbiznis/cargosettle/internal/clock"
	contractdomain "github.com/smallbiznis/cargosettle/internal/contract/domain"
	"github.com/smallbiznis/cargosettle/internal/settlement/domain"
	"github.com/smallbiznis/cargosettle/internal/settlement/service"
	"github.com/smallbiznis/cargosettle/internal/txn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc      domain.Service
	db       *gorm.DB
	clock    *clock.FakeClock
	node     *snowflake.Node
	contract contractdomain.ContractSummary
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&contractdomain.ContractSummary{},
		&contractdomain.CounterpartyExposure{},
		&domain.Settlement{},
		&domain.ChargeLineItem{},
		&auditdomain.SettlementTransition{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	auditSvc := auditservice.NewService(auditservice.ServiceParam{
		DB:    db,
		Log:   log,
		GenID: node,
	})

	svc := service.NewService(service.ServiceParam{
		DB:          db,
		Log:         log,
		Node:        node,
		Coordinator: txn.New(db),
		Clock:       fake,
		Audit:       auditSvc,
	})

	contract := contractdomain.ContractSummary{
		ID:               node.Generate(),
		Kind:             contractdomain.KindSale,
		CounterpartyID:   node.Generate(),
		CounterpartyName: "Meridian Petroleum",
		Product:          "Brent Crude",
		Quantity:         decimal.RequireFromString("36650"),
		QuantityUnit:     "BBL",
		Currency:         "USD",
		CreatedAt:        fake.Now(),
		UpdatedAt:        fake.Now(),
	}
	require.NoError(t, db.Create(&contract).Error)

	return &fixture{svc: svc, db: db, clock: fake, node: node, contract: contract}
}

func (f *fixture) create(t *testing.T) *domain.SettlementView {
	t.Helper()
	view, err := f.svc.Create(context.Background(), domain.CreateRequest{
		ContractID:      f.contract.ID.String(),
		ContractKind:    domain.ContractKindSale,
		CalculationMode: domain.ModeUseVolume,
		ConversionRatio: decimal.RequireFromString("7.33"),
		ActorID:         "ops.alice",
	})
	require.NoError(t, err)
	return view
}

func (f *fixture) enterData(t *testing.T, view *domain.SettlementView) *domain.SettlementView {
	t.Helper()
	volume := decimal.RequireFromString("36650")
	benchmark := decimal.RequireFromString("85.50").Mul(volume)
	adjustment := decimal.RequireFromString("-1200")
	docNumber := "BL-2024-0611"
	docDate := f.clock.Now()

	updated, err := f.svc.SetQuantities(context.Background(), domain.SetQuantitiesRequest{
		SettlementID:     view.ID,
		QuantityVolume:   &volume,
		BenchmarkAmount:  &benchmark,
		AdjustmentAmount: &adjustment,
		DocumentNumber:   &docNumber,
		DocumentDate:     &docDate,
		ActorID:          "ops.alice",
		Version:          view.Version,
	})
	require.NoError(t, err)
	return updated
}

func (f *fixture) calculated(t *testing.T) *domain.SettlementView {
	t.Helper()
	view := f.enterData(t, f.create(t))
	calculated, err := f.svc.Calculate(context.Background(), domain.CalculateRequest{
		SettlementID: view.ID,
		ActorID:      "ops.alice",
		Version:      view.Version,
	})
	require.NoError(t, err)
	return calculated
}

func (f *fixture) transition(t *testing.T, view *domain.SettlementView, target domain.Status, actor string) *domain.SettlementView {
	t.Helper()
	next, err := f.svc.Transition(context.Background(), domain.TransitionRequest{
		SettlementID: view.ID,
		Target:       target,
		ActorID:      actor,
		Version:      view.Version,
	})
	require.NoError(t, err)
	return next
}

func TestFullLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	view := f.create(t)
	assert.Equal(t, domain.StatusDraft, view.Status)
	assert.Equal(t, int64(1), view.Version)

	// Entering data derives the mass from the authoritative volume and moves
	// the settlement forward.
	view = f.enterData(t, view)
	assert.Equal(t, domain.StatusDataEntered, view.Status)
	require.NotNil(t, view.QuantityMass)
	expectedMass := decimal.RequireFromString("36650").DivRound(decimal.RequireFromString("7.33"), 6)
	assert.True(t, view.QuantityMass.Equal(expectedMass), "got %s want %s", view.QuantityMass, expectedMass)

	view, err := f.svc.AddCharge(ctx, domain.AddChargeRequest{
		SettlementID: view.ID,
		Description:  "ocean freight",
		Amount:       decimal.RequireFromString("15000"),
		Category:     domain.ChargeFreight,
		ActorID:      "ops.alice",
	})
	require.NoError(t, err)
	assert.True(t, view.NetCharges.Equal(decimal.RequireFromString("15000")))

	view, err = f.svc.Calculate(ctx, domain.CalculateRequest{
		SettlementID: view.ID,
		ActorID:      "ops.alice",
		Version:      view.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCalculated, view.Status)

	// benchmark 85.50 * 36650 = 3_133_575; adjustment -1200; charges +15000
	assert.True(t, view.CargoValue.Equal(decimal.RequireFromString("3132375")), "cargo %s", view.CargoValue)
	assert.True(t, view.TotalAmount.Equal(decimal.RequireFromString("3147375")), "total %s", view.TotalAmount)

	view = f.transition(t, view, domain.StatusReviewed, "ops.bob")
	assert.Equal(t, "ops.bob", view.ReviewedBy)

	view = f.transition(t, view, domain.StatusApproved, "ops.carol")
	view = f.transition(t, view, domain.StatusFinalized, "ops.carol")
	assert.Equal(t, domain.StatusFinalized, view.Status)
	assert.NotNil(t, view.FinalizedAt)
	assert.Equal(t, "ops.carol", view.FinalizedBy)

	// Finalization folded the total into the counterparty exposure.
	var exposure contractdomain.CounterpartyExposure
	require.NoError(t, f.db.First(&exposure, "counterparty_id = ?", f.contract.CounterpartyID).Error)
	assert.True(t, exposure.OpenExposure.Equal(view.TotalAmount), "exposure %s", exposure.OpenExposure)

	// Every step is on the history stream, in order.
	history, err := f.svc.History(ctx, view.ID)
	require.NoError(t, err)
	var statuses []domain.Status
	for _, record := range history {
		statuses = append(statuses, record.ToStatus)
	}
	assert.Equal(t, []domain.Status{
		domain.StatusDraft,
		domain.StatusDataEntered,
		domain.StatusCalculated,
		domain.StatusReviewed,
		domain.StatusApproved,
		domain.StatusFinalized,
	}, statuses)
}

func TestTransitionCannotSkipSteps(t *testing.T) {
	f := setup(t)
	view := f.create(t)

	_, err := f.svc.Transition(context.Background(), domain.TransitionRequest{
		SettlementID: view.ID,
		Target:       domain.StatusReviewed,
		ActorID:      "ops.alice",
		Version:      view.Version,
	})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}

// Entry into DATA_ENTERED is gated on the external document plus a quantity,
// whether the move comes from a bare transition or from keying data.
func TestDataEntryRequiresDocumentAndQuantity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	view := f.create(t)

	// A bare transition on an empty settlement is refused.
	_, err := f.svc.Transition(ctx, domain.TransitionRequest{
		SettlementID: view.ID,
		Target:       domain.StatusDataEntered,
		ActorID:      "ops.alice",
		Version:      view.Version,
	})
	assert.ErrorIs(t, err, domain.ErrIncompleteInput)

	// A quantity alone keeps the settlement in DRAFT.
	volume := decimal.RequireFromString("36650")
	view, err = f.svc.SetQuantities(ctx, domain.SetQuantitiesRequest{
		SettlementID:   view.ID,
		QuantityVolume: &volume,
		ActorID:        "ops.alice",
		Version:        view.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, view.Status)

	// Keying the document number completes the entry criteria.
	docNumber := "BL-2024-0611"
	view, err = f.svc.SetQuantities(ctx, domain.SetQuantitiesRequest{
		SettlementID:   view.ID,
		DocumentNumber: &docNumber,
		ActorID:        "ops.alice",
		Version:        view.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDataEntered, view.Status)
}

func TestCalculatedOnlyThroughCalculate(t *testing.T) {
	f := setup(t)
	view := f.enterData(t, f.create(t))

	_, err := f.svc.Transition(context.Background(), domain.TransitionRequest{
		SettlementID: view.ID,
		Target:       domain.StatusCalculated,
		ActorID:      "ops.alice",
		Version:      view.Version,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

// A rejected settlement sits in DRAFT with its data intact; recalculating it
// passes through DATA_ENTERED again and both steps land on the history stream.
func TestCalculateFromDraftRecordsBothSteps(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	view := f.calculated(t)
	rejected, err := f.svc.Transition(ctx, domain.TransitionRequest{
		SettlementID: view.ID,
		Target:       domain.StatusDraft,
		Reason:       "wrong benchmark month",
		ActorID:      "ops.bob",
		Version:      view.Version,
	})
	require.NoError(t, err)

	calculated, err := f.svc.Calculate(ctx, domain.CalculateRequest{
		SettlementID: rejected.ID,
		ActorID:      "ops.alice",
		Version:      rejected.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCalculated, calculated.Status)

	history, err := f.svc.History(ctx, calculated.ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(history), 2)
	last := history[len(history)-1]
	beforeLast := history[len(history)-2]
	assert.Equal(t, domain.StatusDataEntered, beforeLast.ToStatus)
	assert.Equal(t, domain.StatusCalculated, last.ToStatus)
}

func TestCalculateIncompleteInput(t *testing.T) {
	f := setup(t)
	view := f.create(t)

	_, err := f.svc.Calculate(context.Background(), domain.CalculateRequest{
		SettlementID: view.ID,
		ActorID:      "ops.alice",
		Version:      view.Version,
	})
	assert.ErrorIs(t, err, domain.ErrIncompleteInput)
}

func TestStaleVersionRejected(t *testing.T) {
	f := setup(t)
	view := f.create(t)
	f.enterData(t, view)

	// Re-submitting against the pre-update version must fail.
	volume := decimal.RequireFromString("40000")
	_, err := f.svc.SetQuantities(context.Background(), domain.SetQuantitiesRequest{
		SettlementID:   view.ID,
		QuantityVolume: &volume,
		ActorID:        "ops.dave",
		Version:        view.Version,
	})
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
}

func TestSegregationOfDuties(t *testing.T) {
	f := setup(t)
	view := f.calculated(t)

	view = f.transition(t, view, domain.StatusReviewed, "ops.bob")

	_, err := f.svc.Transition(context.Background(), domain.TransitionRequest{
		SettlementID: view.ID,
		Target:       domain.StatusApproved,
		ActorID:      "ops.bob",
		Version:      view.Version,
	})
	assert.ErrorIs(t, err, domain.ErrSameActor)
}

func TestRejectionPreservesDataAndForcesRecalc(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	view := f.calculated(t)

	// Rejection without a reason is refused.
	_, err := f.svc.Transition(ctx, domain.TransitionRequest{
		SettlementID: view.ID,
		Target:       domain.StatusDraft,
		ActorID:      "ops.bob",
		Version:      view.Version,
	})
	assert.ErrorIs(t, err, domain.ErrMissingReason)

	rejected, err := f.svc.Transition(ctx, domain.TransitionRequest{
		SettlementID: view.ID,
		Target:       domain.StatusDraft,
		Reason:       "benchmark source disputed",
		ActorID:      "ops.bob",
		Version:      view.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, rejected.Status)
	assert.True(t, rejected.RequiresRecalculation)
	assert.NotNil(t, rejected.QuantityVolume, "entered data must survive rejection")
	assert.NotNil(t, rejected.BenchmarkAmount)

	// Recalculating clears the flag and the settlement can move on again.
	recalculated, err := f.svc.Calculate(ctx, domain.CalculateRequest{
		SettlementID: rejected.ID,
		ActorID:      "ops.alice",
		Version:      rejected.Version,
	})
	require.NoError(t, err)
	assert.False(t, recalculated.RequiresRecalculation)
	f.transition(t, recalculated, domain.StatusReviewed, "ops.bob")
}

func TestChargeEditAfterCalculationFlagsRecalc(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	view := f.calculated(t)

	view, err := f.svc.AddCharge(ctx, domain.AddChargeRequest{
		SettlementID: view.ID,
		Description:  "demurrage at discharge port",
		Amount:       decimal.RequireFromString("-2500"),
		Category:     domain.ChargeDemurrage,
		ActorID:      "ops.alice",
	})
	require.NoError(t, err)
	assert.True(t, view.RequiresRecalculation)

	// Review is blocked while totals are stale.
	_, err = f.svc.Transition(ctx, domain.TransitionRequest{
		SettlementID: view.ID,
		Target:       domain.StatusReviewed,
		ActorID:      "ops.bob",
		Version:      view.Version,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	view, err = f.svc.Calculate(ctx, domain.CalculateRequest{
		SettlementID: view.ID,
		ActorID:      "ops.alice",
		Version:      view.Version,
	})
	require.NoError(t, err)
	assert.False(t, view.RequiresRecalculation)
	assert.True(t, view.NetCharges.Equal(decimal.RequireFromString("-2500")))
}

func TestChargeCurrencyMismatch(t *testing.T) {
	f := setup(t)
	view := f.create(t)

	_, err := f.svc.AddCharge(context.Background(), domain.AddChargeRequest{
		SettlementID: view.ID,
		Description:  "inspection fee",
		Amount:       decimal.RequireFromString("800"),
		Currency:     "EUR",
		ActorID:      "ops.alice",
	})
	assert.ErrorIs(t, err, domain.ErrCurrencyMismatch)
}

func TestOneLiveSettlementPerContractSide(t *testing.T) {
	f := setup(t)
	f.create(t)

	_, err := f.svc.Create(context.Background(), domain.CreateRequest{
		ContractID:   f.contract.ID.String(),
		ContractKind: domain.ContractKindSale,
		ActorID:      "ops.alice",
	})
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)

	// The purchase side of the same contract id is a different slot.
	_, err = f.svc.Create(context.Background(), domain.CreateRequest{
		ContractID:   f.contract.ID.String(),
		ContractKind: domain.ContractKindPurchase,
		ActorID:      "ops.alice",
	})
	require.NoError(t, err)
}

func TestCorrectionSupersedesFinalized(t *testing.T) {
	f := setup(t)
	view := f.calculated(t)
	view = f.transition(t, view, domain.StatusReviewed, "ops.bob")
	view = f.transition(t, view, domain.StatusApproved, "ops.carol")
	view = f.transition(t, view, domain.StatusFinalized, "ops.carol")

	correction, err := f.svc.Create(context.Background(), domain.CreateRequest{
		ContractID:   f.contract.ID.String(),
		ContractKind: domain.ContractKindSale,
		SupersedesID: view.ID,
		ActorID:      "ops.alice",
	})
	require.NoError(t, err)
	assert.Equal(t, view.ID, correction.SupersedesID)
	assert.Equal(t, domain.StatusDraft, correction.Status)
}

func TestCorrectionRequiresFinalizedOriginal(t *testing.T) {
	f := setup(t)
	view := f.create(t)

	_, err := f.svc.Create(context.Background(), domain.CreateRequest{
		ContractID:   f.contract.ID.String(),
		ContractKind: domain.ContractKindSale,
		SupersedesID: view.ID,
		ActorID:      "ops.alice",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestFinalizedIsImmutableExceptPayment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	view := f.calculated(t)
	view = f.transition(t, view, domain.StatusReviewed, "ops.bob")
	view = f.transition(t, view, domain.StatusApproved, "ops.carol")
	view = f.transition(t, view, domain.StatusFinalized, "ops.carol")

	volume := decimal.RequireFromString("1")
	_, err := f.svc.SetQuantities(ctx, domain.SetQuantitiesRequest{
		SettlementID:   view.ID,
		QuantityVolume: &volume,
		ActorID:        "ops.alice",
		Version:        view.Version,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.svc.AddCharge(ctx, domain.AddChargeRequest{
		SettlementID: view.ID,
		Description:  "late fee",
		Amount:       decimal.RequireFromString("100"),
		ActorID:      "ops.alice",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.svc.Calculate(ctx, domain.CalculateRequest{
		SettlementID: view.ID,
		ActorID:      "ops.alice",
		Version:      view.Version,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.svc.Transition(ctx, domain.TransitionRequest{
		SettlementID: view.ID,
		Target:       domain.StatusCancelled,
		ActorID:      "ops.alice",
		Version:      view.Version,
	})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	// Payment bookkeeping stays open.
	paid := domain.PaymentPaid
	updated, err := f.svc.UpdatePayment(ctx, domain.UpdatePaymentRequest{
		SettlementID:  view.ID,
		PaymentStatus: &paid,
		ActorID:       "ops.finance",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, updated.PaymentStatus)
	assert.Equal(t, domain.StatusFinalized, updated.Status)
}

func TestBulkTransitionPartialFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	calculated := f.calculated(t)

	// A second contract so both settlements are live at once.
	other := f.contract
	other.ID = f.node.Generate()
	require.NoError(t, f.db.Create(&other).Error)

	draft, err := f.svc.Create(ctx, domain.CreateRequest{
		ContractID:   other.ID.String(),
		ContractKind: domain.ContractKindSale,
		ActorID:      "ops.alice",
	})
	require.NoError(t, err)

	resp, err := f.svc.BulkTransition(ctx, domain.BulkTransitionRequest{
		SettlementIDs: []string{calculated.ID, draft.ID},
		Target:        domain.StatusReviewed,
		ActorID:       "ops.bob",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Succeeded)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Outcomes, 2)
	assert.True(t, resp.Outcomes[0].Succeeded)
	assert.False(t, resp.Outcomes[1].Succeeded)

	// The successful transition committed despite the sibling failure.
	reviewed, err := f.svc.GetByID(ctx, calculated.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReviewed, reviewed.Status)
}

func TestCancellationFromDraft(t *testing.T) {
	f := setup(t)
	view := f.create(t)

	cancelled := f.transition(t, view, domain.StatusCancelled, "ops.alice")
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	// A cancelled settlement frees no slot: it still counts as live.
	_, err := f.svc.Create(context.Background(), domain.CreateRequest{
		ContractID:   f.contract.ID.String(),
		ContractKind: domain.ContractKindSale,
		ActorID:      "ops.alice",
	})
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)
}

func TestListFiltersByStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.calculated(t)

	resp, err := f.svc.List(ctx, domain.ListRequest{Status: domain.StatusCalculated})
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, domain.StatusCalculated, resp.Data[0].Status)

	resp, err = f.svc.List(ctx, domain.ListRequest{Status: domain.StatusFinalized})
	require.NoError(t, err)
	assert.Empty(t, resp.Data)
}
