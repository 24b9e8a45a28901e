// internal/services/swap_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/vortexart/marketplace-backend/internal/models"
)

// SwapService drives the two-party, two-artwork atomic exchange:
// requested -> locked -> submitted -> committed, or aborted before terminal
// success. A committed swap always has symmetric effects; there is no code
// path that transfers one side only.
type SwapService struct {
	db         *gorm.DB
	gateway    Gateway
	provenance *ProvenanceService
	tokens     *TokenService

	confirmTimeout time.Duration
}

func NewSwapService(db *gorm.DB, gateway Gateway, provenance *ProvenanceService, tokens *TokenService, confirmTimeout time.Duration) *SwapService {
	return &SwapService{
		db:             db,
		gateway:        gateway,
		provenance:     provenance,
		tokens:         tokens,
		confirmTimeout: confirmTimeout,
	}
}

type RequestSwapInput struct {
	InitiatorID           uuid.UUID
	InitiatorArtworkID    uuid.UUID
	CounterpartyID        uuid.UUID
	CounterpartyArtworkID uuid.UUID
	PaymentAmount         *float64
	Message               string
}

// RequestSwap checks eligibility and creates the swap in the requested state.
// A failed precondition returns IneligibleSwapError and creates nothing.
func (s *SwapService) RequestSwap(input RequestSwapInput) (*models.SwapTransaction, error) {
	if input.InitiatorArtworkID == input.CounterpartyArtworkID {
		return nil, &IneligibleSwapError{Reason: "both sides reference the same artwork"}
	}
	if input.InitiatorID == input.CounterpartyID {
		return nil, &IneligibleSwapError{Reason: "both sides reference the same owner"}
	}
	if input.PaymentAmount != nil && *input.PaymentAmount <= 0 {
		return nil, &IneligibleSwapError{Reason: "side payment must be positive"}
	}

	if err := s.checkSide(input.InitiatorArtworkID, input.InitiatorID, "initiator"); err != nil {
		return nil, err
	}
	if err := s.checkSide(input.CounterpartyArtworkID, input.CounterpartyID, "counterparty"); err != nil {
		return nil, err
	}

	swap := &models.SwapTransaction{
		InitiatorID:           input.InitiatorID,
		CounterpartyID:        input.CounterpartyID,
		InitiatorArtworkID:    input.InitiatorArtworkID,
		CounterpartyArtworkID: input.CounterpartyArtworkID,
		PaymentAmount:         input.PaymentAmount,
		Message:               input.Message,
		Status:                models.SwapStatusRequested,
	}

	if err := s.db.Create(swap).Error; err != nil {
		return nil, fmt.Errorf("failed to create swap transaction: %w", err)
	}

	return swap, nil
}

func (s *SwapService) checkSide(artworkID, ownerID uuid.UUID, side string) error {
	var artwork models.Artwork
	if err := s.db.First(&artwork, "id = ?", artworkID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &IneligibleSwapError{Reason: fmt.Sprintf("%s artwork not found", side)}
		}
		return fmt.Errorf("database error: %w", err)
	}
	if artwork.Status != models.ArtworkStatusActive {
		return &IneligibleSwapError{Reason: fmt.Sprintf("%s artwork is archived", side)}
	}
	if artwork.LockState != models.LockStateFree {
		return &IneligibleSwapError{Reason: fmt.Sprintf("%s artwork is locked by another swap", side)}
	}
	if artwork.OwnerID != ownerID {
		return &IneligibleSwapError{Reason: fmt.Sprintf("%s does not own the offered artwork", side)}
	}
	return nil
}

// Accept records the counterparty's consent. The swap stays requested; Lock
// performs the actual state transition.
func (s *SwapService) Accept(swapID, userID uuid.UUID) (*models.SwapTransaction, error) {
	swap, err := s.Get(swapID)
	if err != nil {
		return nil, err
	}
	if swap.CounterpartyID != userID {
		return nil, &IneligibleSwapError{Reason: "only the counterparty can accept"}
	}
	if swap.Status != models.SwapStatusRequested {
		return nil, &IneligibleSwapError{Reason: fmt.Sprintf("swap is %s, not requested", swap.Status)}
	}
	if swap.AcceptedAt != nil {
		return swap, nil
	}

	now := time.Now()
	if err := s.db.Model(swap).Update("accepted_at", &now).Error; err != nil {
		return nil, fmt.Errorf("failed to accept swap: %w", err)
	}
	swap.AcceptedAt = &now
	return swap, nil
}

// Lock atomically flips both artworks to locked-for-swap with compare-and-set
// updates. If either side was locked by a concurrent operation in between
// request and lock, the first acquired lock is released and ErrAlreadyLocked
// is returned; the swap stays requested and can be retried.
func (s *SwapService) Lock(swapID uuid.UUID) (*models.SwapTransaction, error) {
	swap, err := s.Get(swapID)
	if err != nil {
		return nil, err
	}
	if swap.Status == models.SwapStatusLocked {
		return swap, nil
	}
	if swap.Status != models.SwapStatusRequested {
		return nil, &IneligibleSwapError{Reason: fmt.Sprintf("swap is %s, not requested", swap.Status)}
	}
	if swap.AcceptedAt == nil {
		return nil, &IneligibleSwapError{Reason: "swap has not been accepted by the counterparty"}
	}

	if err := s.lockArtwork(s.db, swap.InitiatorArtworkID, swap.ID); err != nil {
		return nil, err
	}
	if err := s.lockArtwork(s.db, swap.CounterpartyArtworkID, swap.ID); err != nil {
		s.unlockArtwork(s.db, swap.InitiatorArtworkID, swap.ID)
		return nil, err
	}

	if err := s.db.Model(swap).Update("status", models.SwapStatusLocked).Error; err != nil {
		s.releaseLocks(s.db, swap)
		return nil, fmt.Errorf("failed to update swap status: %w", err)
	}
	swap.Status = models.SwapStatusLocked
	return swap, nil
}

func (s *SwapService) lockArtwork(db *gorm.DB, artworkID, swapID uuid.UUID) error {
	result := db.Model(&models.Artwork{}).
		Where("id = ? AND lock_state = ?", artworkID, models.LockStateFree).
		Updates(map[string]interface{}{
			"lock_state":   models.LockStateLockedForSwap,
			"lock_swap_id": swapID,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to lock artwork: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: artwork %s", ErrAlreadyLocked, artworkID)
	}
	return nil
}

func (s *SwapService) unlockArtwork(db *gorm.DB, artworkID, swapID uuid.UUID) {
	// Only release a lock this swap holds.
	if err := db.Model(&models.Artwork{}).
		Where("id = ? AND lock_swap_id = ?", artworkID, swapID).
		Updates(map[string]interface{}{
			"lock_state":   models.LockStateFree,
			"lock_swap_id": nil,
		}).Error; err != nil {
		logrus.WithError(err).WithField("artwork_id", artworkID).Error("Failed to release artwork lock")
	}
}

func (s *SwapService) releaseLocks(db *gorm.DB, swap *models.SwapTransaction) {
	s.unlockArtwork(db, swap.InitiatorArtworkID, swap.ID)
	s.unlockArtwork(db, swap.CounterpartyArtworkID, swap.ID)
}

// Submit re-validates ownership under the locks, runs the optional token
// side-payment, and submits one transfer instruction per artwork. Both
// pending transaction ids are recorded before the status flips to submitted.
func (s *SwapService) Submit(ctx context.Context, swapID uuid.UUID) (*models.SwapTransaction, error) {
	swap, err := s.Get(swapID)
	if err != nil {
		return nil, err
	}
	if swap.Status == models.SwapStatusSubmitted {
		return swap, nil
	}
	if swap.Status != models.SwapStatusLocked {
		return nil, &IneligibleSwapError{Reason: fmt.Sprintf("swap is %s, not locked", swap.Status)}
	}

	// Ownership may have changed between request and lock via a sale.
	owners := map[string]uuid.UUID{}
	for side, artworkID := range map[string]uuid.UUID{
		"initiator":    swap.InitiatorArtworkID,
		"counterparty": swap.CounterpartyArtworkID,
	} {
		owner, err := s.provenance.CurrentOwner(artworkID)
		if err != nil {
			return nil, err
		}
		owners[side] = owner
	}
	if owners["initiator"] != swap.InitiatorID || owners["counterparty"] != swap.CounterpartyID {
		return s.abort(swap, "ownership changed before submission")
	}

	initiatorWallet, counterpartyWallet, err := s.wallets(swap)
	if err != nil {
		return nil, err
	}

	if swap.PaymentAmount != nil {
		txID, err := s.tokens.TransferTokens(ctx, swap.InitiatorID, swap.CounterpartyID, *swap.PaymentAmount, swap.ID)
		if err != nil {
			if errors.Is(err, ErrInsufficientFunds) {
				return s.abort(swap, "insufficient token balance for side payment")
			}
			// Pre-submission failure: release locks and close the swap;
			// retrying means requesting a fresh one.
			if _, abortErr := s.abort(swap, "side payment submission failed"); abortErr != nil {
				return nil, abortErr
			}
			return nil, err
		}
		swap.PaymentTxID = txID
	}

	initiatorTx, err := s.gateway.Submit(ctx, Instruction{
		Type:       InstructionTransfer,
		ArtworkID:  &swap.InitiatorArtworkID,
		Reference:  swap.ID,
		FromWallet: initiatorWallet,
		ToWallet:   counterpartyWallet,
	})
	if err != nil {
		if _, abortErr := s.abort(swap, "transfer submission failed"); abortErr != nil {
			return nil, abortErr
		}
		return nil, err
	}

	counterpartyTx, err := s.gateway.Submit(ctx, Instruction{
		Type:       InstructionTransfer,
		ArtworkID:  &swap.CounterpartyArtworkID,
		Reference:  swap.ID,
		FromWallet: counterpartyWallet,
		ToWallet:   initiatorWallet,
	})
	if err != nil {
		if _, abortErr := s.abort(swap, "transfer submission failed"); abortErr != nil {
			return nil, abortErr
		}
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":             models.SwapStatusSubmitted,
		"submitted_at":       &now,
		"initiator_tx_id":    initiatorTx.TxID,
		"counterparty_tx_id": counterpartyTx.TxID,
		"payment_tx_id":      swap.PaymentTxID,
	}
	if err := s.db.Model(swap).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to record submission: %w", err)
	}

	swap.Status = models.SwapStatusSubmitted
	swap.SubmittedAt = &now
	swap.InitiatorTxID = initiatorTx.TxID
	swap.CounterpartyTxID = counterpartyTx.TxID
	return swap, nil
}

func (s *SwapService) wallets(swap *models.SwapTransaction) (string, string, error) {
	var initiator, counterparty models.User
	if err := s.db.First(&initiator, "id = ?", swap.InitiatorID).Error; err != nil {
		return "", "", fmt.Errorf("initiator not found: %w", err)
	}
	if err := s.db.First(&counterparty, "id = ?", swap.CounterpartyID).Error; err != nil {
		return "", "", fmt.Errorf("counterparty not found: %w", err)
	}
	return initiator.WalletAddress, counterparty.WalletAddress, nil
}

// Finalize waits for confirmation of everything submitted and either commits
// both sides or aborts both. Calling it on a terminal swap is an idempotent
// no-op that returns the terminal state without touching the gateway. A
// timed-out confirmation leaves the swap submitted; the caller re-polls later.
func (s *SwapService) Finalize(ctx context.Context, swapID uuid.UUID) (*models.SwapTransaction, error) {
	swap, err := s.Get(swapID)
	if err != nil {
		return nil, err
	}
	if swap.IsTerminal() {
		return swap, nil
	}
	if swap.Status != models.SwapStatusSubmitted {
		return nil, &IneligibleSwapError{Reason: fmt.Sprintf("swap is %s, not submitted", swap.Status)}
	}

	sides := []struct {
		name string
		txID string
	}{
		{"initiator", swap.InitiatorTxID},
		{"counterparty", swap.CounterpartyTxID},
	}
	if swap.PaymentTxID != "" {
		sides = append(sides, struct {
			name string
			txID string
		}{"payment", swap.PaymentTxID})
	}

	timedOut := false
	for _, side := range sides {
		confirmation, err := s.gateway.AwaitConfirmation(ctx, side.txID, s.confirmTimeout)
		if err != nil {
			return nil, err
		}
		switch confirmation.Status {
		case ConfirmationRejected:
			// No partial transfer ever reaches the provenance chain: the
			// whole swap aborts and owners stay unchanged.
			aborted, abortErr := s.abort(swap, fmt.Sprintf("chain rejected %s side: %s", side.name, confirmation.RejectReason))
			if abortErr != nil {
				return nil, abortErr
			}
			return aborted, &SwapRejectedError{Side: side.name, TxID: side.txID}
		case ConfirmationTimedOut, ConfirmationPending:
			timedOut = true
		}
	}
	if timedOut {
		// Unknown outcome; never resolved to aborted here. Re-poll later.
		return swap, nil
	}

	return s.commit(swap)
}

func (s *SwapService) commit(swap *models.SwapTransaction) (*models.SwapTransaction, error) {
	now := time.Now()

	err := s.provenance.WithArtworkLocks(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			initiatorEvent, err := s.provenance.AppendTx(tx, swap.InitiatorArtworkID, AppendRequest{
				Kind:        models.EventKindSwap,
				FromOwnerID: &swap.InitiatorID,
				ToOwnerID:   swap.CounterpartyID,
				TxID:        swap.InitiatorTxID,
				Price:       swap.PaymentAmount,
				OccurredAt:  now,
			})
			if err != nil {
				return err
			}

			counterpartyEvent, err := s.provenance.AppendTx(tx, swap.CounterpartyArtworkID, AppendRequest{
				Kind:        models.EventKindSwap,
				FromOwnerID: &swap.CounterpartyID,
				ToOwnerID:   swap.InitiatorID,
				TxID:        swap.CounterpartyTxID,
				OccurredAt:  now,
			})
			if err != nil {
				return err
			}

			s.unlockArtwork(tx, swap.InitiatorArtworkID, swap.ID)
			s.unlockArtwork(tx, swap.CounterpartyArtworkID, swap.ID)

			return tx.Model(swap).Updates(map[string]interface{}{
				"status":                models.SwapStatusCommitted,
				"completed_at":          &now,
				"initiator_event_id":    initiatorEvent.ID,
				"counterparty_event_id": counterpartyEvent.ID,
			}).Error
		})
	}, swap.InitiatorArtworkID, swap.CounterpartyArtworkID)
	if err != nil {
		return nil, err
	}

	return s.Get(swap.ID)
}

func (s *SwapService) abort(swap *models.SwapTransaction, reason string) (*models.SwapTransaction, error) {
	now := time.Now()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		s.releaseLocks(tx, swap)
		return tx.Model(swap).Updates(map[string]interface{}{
			"status":       models.SwapStatusAborted,
			"completed_at": &now,
			"abort_reason": reason,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to abort swap: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"swap_id": swap.ID,
		"reason":  reason,
	}).Info("Swap aborted")

	return s.Get(swap.ID)
}

// Cancel is available to either party while the swap is pre-submission. Once
// submitted, the only outcomes are committed or aborted as determined by the
// chain.
func (s *SwapService) Cancel(swapID, userID uuid.UUID) (*models.SwapTransaction, error) {
	swap, err := s.Get(swapID)
	if err != nil {
		return nil, err
	}
	if userID != swap.InitiatorID && userID != swap.CounterpartyID {
		return nil, &IneligibleSwapError{Reason: "only a swap party can cancel"}
	}

	// The status check and the abort are one compare-and-set: a Submit racing
	// in must not see its swap rolled back and its locks freed.
	now := time.Now()
	reason := fmt.Sprintf("cancelled by %s", userID)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.SwapTransaction{}).
			Where("id = ? AND status IN ?", swap.ID,
				[]models.SwapStatus{models.SwapStatusRequested, models.SwapStatusLocked}).
			Updates(map[string]interface{}{
				"status":       models.SwapStatusAborted,
				"completed_at": &now,
				"abort_reason": reason,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to cancel swap: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrSwapNotCancellable
		}
		s.releaseLocks(tx, swap)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"swap_id": swap.ID,
		"reason":  reason,
	}).Info("Swap aborted")

	return s.Get(swap.ID)
}

func (s *SwapService) Get(swapID uuid.UUID) (*models.SwapTransaction, error) {
	var swap models.SwapTransaction
	if err := s.db.First(&swap, "id = ?", swapID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSwapNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &swap, nil
}

// ListForUser returns swaps where the user is either party, newest first.
func (s *SwapService) ListForUser(userID uuid.UUID, limit int) ([]models.SwapTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var swaps []models.SwapTransaction
	if err := s.db.Where("initiator_id = ? OR counterparty_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&swaps).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch swaps: %w", err)
	}
	return swaps, nil
}
