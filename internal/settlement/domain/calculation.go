package domain

import "github.com/shopspring/decimal"

// CalculationResult is the monetary outcome of a pricing run.
type CalculationResult struct {
	CargoValue  decimal.Decimal
	NetCharges  decimal.Decimal
	TotalAmount decimal.Decimal
}

// ComputeTotals prices a settlement from its entered figures. It is pure and
// idempotent: running it twice over unchanged inputs yields identical output.
//
// A benchmark amount and at least one non-zero physical quantity are required;
// a missing adjustment prices as zero.
func ComputeTotals(s *Settlement, charges []*ChargeLineItem) (CalculationResult, error) {
	if s.BenchmarkAmount == nil {
		return CalculationResult{}, ErrIncompleteInput
	}

	hasQuantity := (s.QuantityMass != nil && s.QuantityMass.IsPositive()) ||
		(s.QuantityVolume != nil && s.QuantityVolume.IsPositive())
	if !hasQuantity {
		return CalculationResult{}, ErrIncompleteInput
	}

	cargoValue := *s.BenchmarkAmount
	if s.AdjustmentAmount != nil {
		cargoValue = cargoValue.Add(*s.AdjustmentAmount)
	}

	netCharges := SumCharges(charges)

	return CalculationResult{
		CargoValue:  cargoValue,
		NetCharges:  netCharges,
		TotalAmount: cargoValue.Add(netCharges),
	}, nil
}

// SumCharges totals a settlement's charge ledger. Negative amounts are
// deductions and net against fees.
func SumCharges(charges []*ChargeLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, c := range charges {
		total = total.Add(c.Amount)
	}
	return total
}
