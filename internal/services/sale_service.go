// internal/services/sale_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"gorm.io/gorm"

	"github.com/vortexart/marketplace-backend/internal/config"
	"github.com/vortexart/marketplace-backend/internal/models"
)

// SaleService handles fiat purchases: a Stripe payment intent up front, then
// on confirmation the royalty breakdown from the sealed contract, a sale
// provenance event, and the ownership transfer - all in one transaction.
type SaleService struct {
	db         *gorm.DB
	config     *config.Config
	contracts  *ContractService
	provenance *ProvenanceService
	policy     *RoyaltyPolicy
}

func NewSaleService(db *gorm.DB, cfg *config.Config, contracts *ContractService, provenance *ProvenanceService, policy *RoyaltyPolicy) *SaleService {
	stripe.Key = cfg.Payment.StripeSecretKey

	return &SaleService{
		db:         db,
		config:     cfg,
		contracts:  contracts,
		provenance: provenance,
		policy:     policy,
	}
}

type CreateSaleRequest struct {
	ArtworkID uuid.UUID `json:"artwork_id" validate:"required"`
	Amount    float64   `json:"amount" validate:"required,min=0.01"`
}

type SaleIntentResponse struct {
	Sale         *models.Sale `json:"sale"`
	ClientSecret string       `json:"client_secret"`
}

// CreateIntent opens a pending sale and the matching Stripe payment intent.
// The artwork must be free and sealed; ownership does not change until the
// payment is confirmed.
func (s *SaleService) CreateIntent(buyerID uuid.UUID, req *CreateSaleRequest) (*SaleIntentResponse, error) {
	var artwork models.Artwork
	if err := s.db.First(&artwork, "id = ?", req.ArtworkID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrArtworkNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if artwork.LockState != models.LockStateFree {
		return nil, ErrAlreadyLocked
	}
	if artwork.OwnerID == buyerID {
		return nil, fmt.Errorf("buyer already owns artwork %s", req.ArtworkID)
	}

	// No sale without a sealed royalty contract.
	if _, err := s.contracts.Get(req.ArtworkID); err != nil {
		return nil, err
	}

	sale := &models.Sale{
		ArtworkID: req.ArtworkID,
		BuyerID:   buyerID,
		SellerID:  artwork.OwnerID,
		Amount:    req.Amount,
		Status:    models.SaleStatusPending,
	}
	if err := s.db.Create(sale).Error; err != nil {
		return nil, fmt.Errorf("failed to create sale: %w", err)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(req.Amount * 100)),
		Currency: stripe.String("usd"),
	}
	params.AddMetadata("sale_id", sale.ID.String())
	params.AddMetadata("artwork_id", req.ArtworkID.String())

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	if err := s.db.Model(sale).Update("payment_reference", pi.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to record payment reference: %w", err)
	}
	sale.PaymentReference = pi.ID

	return &SaleIntentResponse{Sale: sale, ClientSecret: pi.ClientSecret}, nil
}

// Confirm settles a pending sale after the Stripe payment succeeded. It
// computes the payout breakdown from the live contract, appends the sale
// event, and flips ownership. Confirming a completed sale is a no-op.
func (s *SaleService) Confirm(saleID uuid.UUID) (*models.Sale, error) {
	sale, err := s.Get(saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status == models.SaleStatusCompleted {
		return sale, nil
	}
	if sale.Status != models.SaleStatusPending {
		return nil, fmt.Errorf("sale %s is %s, not pending", saleID, sale.Status)
	}

	pi, err := paymentintent.Get(sale.PaymentReference, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, fmt.Errorf("payment intent %s is %s, not succeeded", pi.ID, pi.Status)
	}

	return s.settle(sale)
}

// settle computes the payout breakdown from the live contract, appends the
// sale event, and marks the sale completed. The artwork must still be free: a
// swap that locked it after the intent was created wins, and the sale settles
// only once the lock clears (or fails on continuity when ownership moved).
func (s *SaleService) settle(sale *models.Sale) (*models.Sale, error) {
	record, err := s.contracts.Get(sale.ArtworkID)
	if err != nil {
		return nil, err
	}
	payouts := s.policy.PayoutBreakdown(s.contracts.SplitOf(record), sale.Amount)

	payoutsJSON := make(models.JSONB, len(payouts))
	for recipient, amount := range payouts {
		payoutsJSON[recipient] = amount
	}

	now := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Conditional touch of the artwork row: holds the row lock through
		// the append so a swap cannot flip the lock state underneath us.
		guard := tx.Model(&models.Artwork{}).
			Where("id = ? AND lock_state = ?", sale.ArtworkID, models.LockStateFree).
			Update("lock_state", models.LockStateFree)
		if guard.Error != nil {
			return fmt.Errorf("failed to check artwork lock: %w", guard.Error)
		}
		if guard.RowsAffected == 0 {
			return ErrAlreadyLocked
		}

		event, err := s.provenance.AppendTx(tx, sale.ArtworkID, AppendRequest{
			Kind:        models.EventKindSale,
			FromOwnerID: &sale.SellerID,
			ToOwnerID:   sale.BuyerID,
			TxID:        sale.PaymentReference,
			Price:       &sale.Amount,
			OccurredAt:  now,
		})
		if err != nil {
			return err
		}

		return tx.Model(sale).Updates(map[string]interface{}{
			"status":          models.SaleStatusCompleted,
			"royalty_payouts": payoutsJSON,
			"event_id":        event.ID,
			"processed_at":    &now,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	return s.Get(sale.ID)
}

// Fail marks a pending sale as failed; nothing was transferred.
func (s *SaleService) Fail(saleID uuid.UUID, reason string) error {
	sale, err := s.Get(saleID)
	if err != nil {
		return err
	}
	if sale.Status != models.SaleStatusPending {
		return fmt.Errorf("sale %s is %s, not pending", saleID, sale.Status)
	}

	now := time.Now()
	return s.db.Model(sale).Updates(map[string]interface{}{
		"status":       models.SaleStatusFailed,
		"processed_at": &now,
	}).Error
}

func (s *SaleService) Get(saleID uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	if err := s.db.First(&sale, "id = ?", saleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &sale, nil
}
