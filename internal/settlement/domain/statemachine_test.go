package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForwardPathIsStrictlyOrdered(t *testing.T) {
	path := []Status{StatusDraft, StatusDataEntered, StatusCalculated, StatusReviewed, StatusApproved, StatusFinalized}
	for i := 0; i < len(path)-1; i++ {
		assert.True(t, CanTransition(path[i], path[i+1]), "%s -> %s", path[i], path[i+1])
	}

	// No skipping steps.
	for i := 0; i < len(path); i++ {
		for j := i + 2; j < len(path); j++ {
			assert.False(t, CanTransition(path[i], path[j]), "%s -> %s must be illegal", path[i], path[j])
		}
	}
}

func TestRejectionPath(t *testing.T) {
	for _, from := range []Status{StatusCalculated, StatusReviewed, StatusApproved} {
		assert.True(t, CanTransition(from, StatusDraft), "%s -> DRAFT", from)
	}
	for _, from := range []Status{StatusDraft, StatusDataEntered, StatusFinalized, StatusCancelled} {
		assert.False(t, CanTransition(from, StatusDraft), "%s -> DRAFT must be illegal", from)
	}
}

func TestCancellation(t *testing.T) {
	for _, from := range []Status{StatusDraft, StatusDataEntered, StatusCalculated, StatusReviewed, StatusApproved} {
		assert.True(t, CanTransition(from, StatusCancelled), "%s -> CANCELLED", from)
	}
	assert.False(t, CanTransition(StatusFinalized, StatusCancelled))
	assert.False(t, CanTransition(StatusCancelled, StatusCancelled))
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	all := []Status{StatusDraft, StatusDataEntered, StatusCalculated, StatusReviewed, StatusApproved, StatusFinalized, StatusCancelled}
	for _, terminal := range []Status{StatusFinalized, StatusCancelled} {
		for _, to := range all {
			assert.False(t, CanTransition(terminal, to), "%s -> %s", terminal, to)
		}
	}
}

func TestValidateTransitionError(t *testing.T) {
	err := ValidateTransition(StatusDraft, StatusFinalized)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	var tErr *TransitionError
	assert.True(t, errors.As(err, &tErr))
	assert.Equal(t, StatusDraft, tErr.From)
	assert.Equal(t, StatusFinalized, tErr.To)
}
