package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuantity            = errors.New("invalid_quantity")
	ErrIncompleteInput            = errors.New("incomplete_input")
	ErrInvalidState               = errors.New("invalid_state")
	ErrIllegalTransition          = errors.New("illegal_transition")
	ErrConcurrentModification     = errors.New("concurrent_modification")
	ErrDuplicateEventNotification = errors.New("duplicate_event_notification")
	ErrInvalidConfiguration       = errors.New("invalid_configuration")

	ErrNotFound         = errors.New("settlement_not_found")
	ErrChargeNotFound   = errors.New("charge_not_found")
	ErrAlreadySettled   = errors.New("contract_already_settled")
	ErrCurrencyMismatch = errors.New("currency_mismatch")
	ErrSameActor        = errors.New("approver_must_differ_from_reviewer")
	ErrMissingReason    = errors.New("rejection_reason_required")
)

// TransitionError names the current and requested state of an illegal move.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

func newTransitionError(from, to Status) error {
	return &TransitionError{From: from, To: to}
}
