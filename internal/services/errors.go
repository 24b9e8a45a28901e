// internal/services/errors.go
package services

import (
	"errors"
	"fmt"
)

// Validation errors: caller-correctable, returned synchronously, never retried.
var (
	ErrCapExceeded        = errors.New("royalty percentages exceed the configured cap")
	ErrInvalidPercentage  = errors.New("royalty percentage must be non-negative")
	ErrDuplicateRecipient = errors.New("duplicate royalty recipient")
	ErrAlreadySealed      = errors.New("contract record already sealed for this artwork")
	ErrContractNotFound   = errors.New("contract record not found")
	ErrArtworkNotFound    = errors.New("artwork not found")
	ErrSwapNotFound       = errors.New("swap transaction not found")
	ErrSaleNotFound       = errors.New("sale not found")
)

// Concurrency errors: a race was lost; callers should re-fetch state and
// retry the whole operation.
var (
	ErrAlreadyLocked      = errors.New("artwork is locked by a concurrent swap")
	ErrChainContinuity    = errors.New("event from-owner does not match current owner")
	ErrSwapNotCancellable = errors.New("swap can no longer be cancelled")
)

// External-system errors: transient, retried with bounded backoff inside the
// gateway; the originating operation can always be retried as a whole.
var (
	ErrGatewayUnavailable = errors.New("blockchain gateway unavailable after retries")
	ErrInsufficientFunds  = errors.New("insufficient token balance")
)

// Invariant-violation errors: fatal to the read that detected them, logged
// for manual reconciliation, never auto-repaired.
var ErrChainCorrupted = errors.New("provenance chain corrupted")

// IneligibleSwapError reports which precondition check failed when a swap
// request is refused.
type IneligibleSwapError struct {
	Reason string
}

func (e *IneligibleSwapError) Error() string {
	return fmt.Sprintf("swap is not eligible: %s", e.Reason)
}

// SwapRejectedError identifies which side of a submitted swap the chain
// rejected.
type SwapRejectedError struct {
	Side string // "initiator", "counterparty" or "payment"
	TxID string
}

func (e *SwapRejectedError) Error() string {
	return fmt.Sprintf("swap rejected on %s side (tx %s)", e.Side, e.TxID)
}
