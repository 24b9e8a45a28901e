// internal/services/identity_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vortexart/marketplace-backend/internal/models"
)

// IdentityService resolves marketplace accounts. Authentication happens
// upstream; this service only maps ids to display aliases and wallets so
// provenance and contracts can show human-readable attribution.
type IdentityService struct {
	db *gorm.DB
}

func NewIdentityService(db *gorm.DB) *IdentityService {
	return &IdentityService{db: db}
}

type OwnerIdentity struct {
	ID            uuid.UUID       `json:"id"`
	Username      string          `json:"username"`
	DisplayAlias  string          `json:"display_alias"`
	WalletAddress string          `json:"wallet_address"`
	UserType      models.UserType `json:"user_type"`
}

// Resolve returns the public identity of an account.
func (s *IdentityService) Resolve(userID uuid.UUID) (*OwnerIdentity, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s not found", userID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return identityOf(&user), nil
}

// ResolveMany resolves a batch of account ids in one query. Unknown ids are
// simply absent from the result.
func (s *IdentityService) ResolveMany(userIDs []uuid.UUID) (map[uuid.UUID]*OwnerIdentity, error) {
	var users []models.User
	if err := s.db.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	identities := make(map[uuid.UUID]*OwnerIdentity, len(users))
	for i := range users {
		identities[users[i].ID] = identityOf(&users[i])
	}
	return identities, nil
}

// ResolveWallet finds the account linked to a chain wallet.
func (s *IdentityService) ResolveWallet(wallet string) (*OwnerIdentity, error) {
	var user models.User
	if err := s.db.First(&user, "wallet_address = ?", wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no account linked to wallet %s", wallet)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return identityOf(&user), nil
}

func identityOf(user *models.User) *OwnerIdentity {
	alias := user.DisplayAlias
	if alias == "" {
		alias = user.Username
	}
	return &OwnerIdentity{
		ID:            user.ID,
		Username:      user.Username,
		DisplayAlias:  alias,
		WalletAddress: user.WalletAddress,
		UserType:      user.UserType,
	}
}
