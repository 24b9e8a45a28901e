// internal/services/token_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vortexart/marketplace-backend/internal/models"
)

// TokenService moves TOLA between marketplace wallets. Balance is read from
// the chain right before submission; it is a best-effort precheck, the chain
// remains the authority and can still reject the transfer.
type TokenService struct {
	db      *gorm.DB
	gateway Gateway
}

func NewTokenService(db *gorm.DB, gateway Gateway) *TokenService {
	return &TokenService{
		db:      db,
		gateway: gateway,
	}
}

// TransferTokens submits a token transfer between two users and returns the
// pending transaction id. The reference ties the submission back to the
// operation that triggered it (swap, sale) so retries stay traceable.
func (s *TokenService) TransferTokens(ctx context.Context, fromUserID, toUserID uuid.UUID, amount float64, reference uuid.UUID) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("transfer amount must be positive, got %.2f", amount)
	}

	fromWallet, err := s.walletOf(fromUserID)
	if err != nil {
		return "", err
	}
	toWallet, err := s.walletOf(toUserID)
	if err != nil {
		return "", err
	}

	balance, err := s.gateway.TokenBalance(ctx, fromWallet)
	if err != nil {
		return "", err
	}
	if balance < amount {
		return "", fmt.Errorf("%w: balance %.2f, need %.2f", ErrInsufficientFunds, balance, amount)
	}

	pending, err := s.gateway.Submit(ctx, Instruction{
		Type:       InstructionTokenTransfer,
		Reference:  reference,
		FromWallet: fromWallet,
		ToWallet:   toWallet,
		Amount:     amount,
	})
	if err != nil {
		return "", err
	}

	return pending.TxID, nil
}

// Balance reads a user's current TOLA balance from the chain.
func (s *TokenService) Balance(ctx context.Context, userID uuid.UUID) (float64, error) {
	wallet, err := s.walletOf(userID)
	if err != nil {
		return 0, err
	}
	return s.gateway.TokenBalance(ctx, wallet)
}

func (s *TokenService) walletOf(userID uuid.UUID) (string, error) {
	var user models.User
	if err := s.db.Select("wallet_address").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("user %s not found", userID)
		}
		return "", fmt.Errorf("database error: %w", err)
	}
	if user.WalletAddress == "" {
		return "", fmt.Errorf("user %s has no wallet address", userID)
	}
	return user.WalletAddress, nil
}
