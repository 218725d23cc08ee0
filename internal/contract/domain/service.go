package domain

import (
	"context"
	"errors"
)

// ContractCompletedTopic carries completion notifications to settlement
// auto-creation. Delivery is at-least-once; consumers must be idempotent.
const ContractCompletedTopic = "contract.completed"

// ContractCompletedPayload is the wire shape of a completion notification.
type ContractCompletedPayload struct {
	ContractID   string `json:"contract_id"`
	ContractKind string `json:"contract_kind"`
}

type Service interface {
	GetByID(ctx context.Context, id string) (ContractSummary, error)
	Complete(ctx context.Context, id string) (ContractSummary, error)
}

var (
	ErrNotFound          = errors.New("contract_not_found")
	ErrInvalidContractID = errors.New("invalid_contract_id")
)
