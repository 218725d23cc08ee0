package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, v string) *decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(v)
	require.NoError(t, err)
	return &d
}

func TestResolveQuantitiesUseVolume(t *testing.T) {
	resolved, err := ResolveQuantities(QuantityInput{
		Volume: dec(t, "36650"),
		Ratio:  decimal.RequireFromString("7.33"),
		Mode:   ModeUseVolume,
	})
	require.NoError(t, err)

	expected := decimal.RequireFromString("36650").DivRound(decimal.RequireFromString("7.33"), 6)
	assert.True(t, resolved.Mass.Equal(expected), "got %s want %s", resolved.Mass, expected)
	assert.True(t, resolved.Volume.Equal(decimal.RequireFromString("36650")))
}

func TestResolveQuantitiesUseMass(t *testing.T) {
	resolved, err := ResolveQuantities(QuantityInput{
		Mass:  dec(t, "5000"),
		Ratio: decimal.RequireFromString("7.33"),
		Mode:  ModeUseMass,
	})
	require.NoError(t, err)

	assert.True(t, resolved.Volume.Equal(decimal.RequireFromString("36650")), "got %s", resolved.Volume)
}

func TestResolveQuantitiesRoundTrip(t *testing.T) {
	ratio := decimal.RequireFromString("7.33")

	fromMass, err := ResolveQuantities(QuantityInput{
		Mass:  dec(t, "5000"),
		Ratio: ratio,
		Mode:  ModeUseMass,
	})
	require.NoError(t, err)

	back, err := ResolveQuantities(QuantityInput{
		Volume: &fromMass.Volume,
		Ratio:  ratio,
		Mode:   ModeUseVolume,
	})
	require.NoError(t, err)

	drift := back.Mass.Sub(decimal.RequireFromString("5000")).Abs()
	assert.True(t, drift.LessThanOrEqual(quantityTolerance), "drift %s exceeds tolerance", drift)
}

func TestResolveQuantitiesRejectsNonPositiveRatio(t *testing.T) {
	for _, ratio := range []string{"0", "-7.33"} {
		_, err := ResolveQuantities(QuantityInput{
			Mass:  dec(t, "5000"),
			Ratio: decimal.RequireFromString(ratio),
			Mode:  ModeUseMass,
		})
		assert.ErrorIs(t, err, ErrInvalidQuantity, "ratio %s", ratio)
	}
}

func TestResolveQuantitiesRejectsNegativeQuantity(t *testing.T) {
	_, err := ResolveQuantities(QuantityInput{
		Mass:  dec(t, "-1"),
		Ratio: decimal.RequireFromString("7.33"),
		Mode:  ModeUseMass,
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestResolveQuantitiesMissingAuthoritative(t *testing.T) {
	_, err := ResolveQuantities(QuantityInput{
		Volume: dec(t, "36650"),
		Ratio:  decimal.RequireFromString("7.33"),
		Mode:   ModeUseMass,
	})
	assert.ErrorIs(t, err, ErrIncompleteInput)
}

func TestResolveQuantitiesConflictingCounterpart(t *testing.T) {
	_, err := ResolveQuantities(QuantityInput{
		Mass:   dec(t, "5000"),
		Volume: dec(t, "40000"),
		Ratio:  decimal.RequireFromString("7.33"),
		Mode:   ModeUseMass,
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestResolveQuantitiesIndependentPassesThrough(t *testing.T) {
	resolved, err := ResolveQuantities(QuantityInput{
		Mass: dec(t, "5000"),
		Mode: ModeIndependent,
	})
	require.NoError(t, err)
	assert.True(t, resolved.Mass.Equal(decimal.RequireFromString("5000")))
	assert.True(t, resolved.Volume.IsZero())
}
