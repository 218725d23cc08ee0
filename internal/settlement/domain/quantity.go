package domain

import "github.com/shopspring/decimal"

// quantityPrecision is the scale used for derived quantity figures.
const quantityPrecision = 6

// quantityTolerance bounds the acceptable drift between an entered quantity
// and the one derived from its counterpart when both units are supplied.
var quantityTolerance = decimal.RequireFromString("0.0001")

// QuantityInput carries the operator-entered physical figures.
type QuantityInput struct {
	Mass   *decimal.Decimal
	Volume *decimal.Decimal
	Ratio  decimal.Decimal
	Mode   CalculationMode
}

// ResolvedQuantities is the outcome of quantity resolution: both units
// populated, with Derived naming which one was computed rather than entered.
type ResolvedQuantities struct {
	Mass    decimal.Decimal
	Volume  decimal.Decimal
	Derived CalculationMode
}

// ResolveQuantities derives the non-authoritative unit from the authoritative
// one using the conversion ratio (volume units per mass unit). In independent
// mode both figures pass through untouched and either may be absent.
//
// When both units are entered alongside an authoritative mode, the
// non-authoritative figure is checked against the derived value and rejected
// if it drifts beyond tolerance.
func ResolveQuantities(in QuantityInput) (ResolvedQuantities, error) {
	if in.Mass != nil && in.Mass.IsNegative() {
		return ResolvedQuantities{}, ErrInvalidQuantity
	}
	if in.Volume != nil && in.Volume.IsNegative() {
		return ResolvedQuantities{}, ErrInvalidQuantity
	}

	if in.Mode == ModeIndependent {
		out := ResolvedQuantities{Derived: ModeIndependent}
		if in.Mass != nil {
			out.Mass = *in.Mass
		}
		if in.Volume != nil {
			out.Volume = *in.Volume
		}
		return out, nil
	}

	if !in.Ratio.IsPositive() {
		return ResolvedQuantities{}, ErrInvalidQuantity
	}

	switch in.Mode {
	case ModeUseMass:
		if in.Mass == nil {
			return ResolvedQuantities{}, ErrIncompleteInput
		}
		derived := in.Mass.Mul(in.Ratio).Round(quantityPrecision)
		if in.Volume != nil && in.Volume.Sub(derived).Abs().GreaterThan(quantityTolerance) {
			return ResolvedQuantities{}, ErrInvalidQuantity
		}
		return ResolvedQuantities{Mass: *in.Mass, Volume: derived, Derived: ModeUseMass}, nil

	case ModeUseVolume:
		if in.Volume == nil {
			return ResolvedQuantities{}, ErrIncompleteInput
		}
		derived := in.Volume.DivRound(in.Ratio, quantityPrecision)
		if in.Mass != nil && in.Mass.Sub(derived).Abs().GreaterThan(quantityTolerance) {
			return ResolvedQuantities{}, ErrInvalidQuantity
		}
		return ResolvedQuantities{Mass: derived, Volume: *in.Volume, Derived: ModeUseVolume}, nil

	default:
		return ResolvedQuantities{}, ErrInvalidQuantity
	}
}
