// internal/services/artwork_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/vortexart/marketplace-backend/internal/models"
)

// ArtworkService orchestrates minting: royalty validation, the on-chain mint
// submission, the sealed contract record, and the opening creation event of
// the provenance chain.
type ArtworkService struct {
	db         *gorm.DB
	gateway    Gateway
	policy     *RoyaltyPolicy
	contracts  *ContractService
	provenance *ProvenanceService
}

func NewArtworkService(db *gorm.DB, gateway Gateway, policy *RoyaltyPolicy, contracts *ContractService, provenance *ProvenanceService) *ArtworkService {
	return &ArtworkService{
		db:         db,
		gateway:    gateway,
		policy:     policy,
		contracts:  contracts,
		provenance: provenance,
	}
}

type MintRequest struct {
	Title       string                 `json:"title" validate:"required,max=255"`
	Description string                 `json:"description,omitempty"`
	Medium      string                 `json:"medium,omitempty" validate:"max=100"`
	FileURLs    []string               `json:"file_urls,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Royalties   []RoyaltyEntry         `json:"royalties"`
}

type MintResult struct {
	Artwork  *models.Artwork        `json:"artwork"`
	Contract *models.ContractRecord `json:"contract"`
}

// Mint submits the mint instruction and then writes the artwork, the sealed
// contract, and the opening creation event in one transaction. The royalty
// split is validated before anything happens; a failure at any step leaves no
// half-minted rows behind.
func (s *ArtworkService) Mint(ctx context.Context, creatorID uuid.UUID, req *MintRequest) (*MintResult, error) {
	split, err := s.policy.Validate(req.Royalties)
	if err != nil {
		return nil, err
	}

	var creator models.User
	if err := s.db.First(&creator, "id = ?", creatorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("creator %s not found", creatorID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	// The id is assigned up front so the chain instruction can reference the
	// artwork before any row exists.
	artwork := &models.Artwork{
		BaseModel:   models.BaseModel{ID: uuid.New()},
		CreatorID:   creatorID,
		OwnerID:     creatorID,
		Title:       req.Title,
		Description: req.Description,
		Medium:      req.Medium,
		FileURLs:    pq.StringArray(req.FileURLs),
		Metadata:    models.JSONB(req.Metadata),
		LockState:   models.LockStateFree,
		Status:      models.ArtworkStatusActive,
	}

	pending, err := s.gateway.Submit(ctx, Instruction{
		Type:      InstructionMint,
		ArtworkID: &artwork.ID,
		Reference: artwork.ID,
		ToWallet:  creator.WalletAddress,
	})
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(artwork).Error; err != nil {
			return fmt.Errorf("failed to create artwork: %w", err)
		}

		if _, err := s.contracts.SealTx(tx, artwork.ID, creatorID, split, pending.TxID); err != nil {
			return err
		}

		_, err := s.provenance.AppendTx(tx, artwork.ID, AppendRequest{
			Kind:       models.EventKindCreation,
			ToOwnerID:  creatorID,
			TxID:       pending.TxID,
			OccurredAt: time.Now(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	record, err := s.contracts.Get(artwork.ID)
	if err != nil {
		return nil, err
	}

	return &MintResult{Artwork: artwork, Contract: record}, nil
}

func (s *ArtworkService) Get(artworkID uuid.UUID) (*models.Artwork, error) {
	var artwork models.Artwork
	if err := s.db.Preload("Creator").Preload("Owner").First(&artwork, "id = ?", artworkID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrArtworkNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &artwork, nil
}

type ListArtworksParams struct {
	OwnerID   *uuid.UUID
	CreatorID *uuid.UUID
	Status    models.ArtworkStatus
	Page      int
	PerPage   int
}

// List returns artworks matching the filters plus the total match count.
func (s *ArtworkService) List(params ListArtworksParams) ([]models.Artwork, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PerPage < 1 || params.PerPage > 100 {
		params.PerPage = 20
	}

	query := s.db.Model(&models.Artwork{})
	if params.OwnerID != nil {
		query = query.Where("owner_id = ?", *params.OwnerID)
	}
	if params.CreatorID != nil {
		query = query.Where("creator_id = ?", *params.CreatorID)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count artworks: %w", err)
	}

	var artworks []models.Artwork
	if err := query.Order("created_at DESC").
		Offset((params.Page - 1) * params.PerPage).
		Limit(params.PerPage).
		Find(&artworks).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch artworks: %w", err)
	}

	return artworks, total, nil
}

// Archive withdraws an artwork from the marketplace. Only the current owner
// may archive, and never while a swap holds the lock. The provenance chain
// and contract stay readable.
func (s *ArtworkService) Archive(artworkID, ownerID uuid.UUID) error {
	result := s.db.Model(&models.Artwork{}).
		Where("id = ? AND owner_id = ? AND lock_state = ?", artworkID, ownerID, models.LockStateFree).
		Update("status", models.ArtworkStatusArchived)
	if result.Error != nil {
		return fmt.Errorf("failed to archive artwork: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		artwork, err := s.Get(artworkID)
		if err != nil {
			return err
		}
		if artwork.OwnerID != ownerID {
			return fmt.Errorf("only the owner can archive artwork %s", artworkID)
		}
		return ErrAlreadyLocked
	}
	return nil
}

// AttachMedia appends an uploaded media URL to the artwork's file list.
func (s *ArtworkService) AttachMedia(artworkID, ownerID uuid.UUID, url string) error {
	var artwork models.Artwork
	if err := s.db.First(&artwork, "id = ?", artworkID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrArtworkNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}
	if artwork.OwnerID != ownerID {
		return fmt.Errorf("only the owner can attach media to artwork %s", artworkID)
	}

	artwork.FileURLs = append(artwork.FileURLs, url)
	return s.db.Model(&artwork).Update("file_urls", artwork.FileURLs).Error
}
