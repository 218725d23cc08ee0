package domain

// forwardTransitions is the single-step forward path of the lifecycle.
// Rejection (back to DRAFT) and cancellation are handled separately in
// CanTransition because they apply from ranges of states.
var forwardTransitions = map[Status]Status{
	StatusDraft:       StatusDataEntered,
	StatusDataEntered: StatusCalculated,
	StatusCalculated:  StatusReviewed,
	StatusReviewed:    StatusApproved,
	StatusApproved:    StatusFinalized,
}

// rejectable lists the states from which a settlement can be sent back to
// DRAFT for rework.
var rejectable = map[Status]bool{
	StatusCalculated: true,
	StatusReviewed:   true,
	StatusApproved:   true,
}

// CanTransition reports whether moving from one state to another is legal.
// Forward movement is strictly one step at a time; DRAFT is additionally
// reachable as a rejection from any post-calculation pre-finalization state,
// and CANCELLED from any non-terminal state.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	if to == StatusCancelled {
		return from != StatusFinalized && from != StatusCancelled
	}
	if to == StatusDraft {
		return rejectable[from]
	}
	return forwardTransitions[from] == to
}

// ValidateTransition returns a TransitionError when the move is illegal.
func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return newTransitionError(from, to)
	}
	return nil
}

// IsRejection reports whether the move is a send-back to DRAFT.
func IsRejection(from, to Status) bool {
	return to == StatusDraft && rejectable[from]
}
