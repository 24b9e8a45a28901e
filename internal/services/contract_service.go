// internal/services/contract_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vortexart/marketplace-backend/internal/models"
)

// ContractService seals immutable contract records. No update path exists;
// corrections go through Supersede, which writes a new record and links the
// old one to it.
type ContractService struct {
	db      *gorm.DB
	gateway Gateway
}

func NewContractService(db *gorm.DB, gateway Gateway) *ContractService {
	return &ContractService{
		db:      db,
		gateway: gateway,
	}
}

// Seal is one-shot per artwork: a second call fails with ErrAlreadySealed.
// The split must already be validated by the royalty policy.
func (s *ContractService) Seal(artworkID, creatorID uuid.UUID, split *ValidatedSplit, mintTxID string) (*models.ContractRecord, error) {
	var record *models.ContractRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		record, err = s.SealTx(tx, artworkID, creatorID, split, mintTxID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.getByID(record.ID)
}

// SealTx seals inside an existing transaction so callers can make the record
// atomic with related writes (minting seals together with the artwork row and
// the opening provenance event).
func (s *ContractService) SealTx(tx *gorm.DB, artworkID, creatorID uuid.UUID, split *ValidatedSplit, mintTxID string) (*models.ContractRecord, error) {
	var artwork models.Artwork
	if err := tx.First(&artwork, "id = ?", artworkID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrArtworkNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	var creator models.User
	if err := tx.First(&creator, "id = ?", creatorID).Error; err != nil {
		return nil, fmt.Errorf("creator not found: %w", err)
	}

	record := &models.ContractRecord{
		ArtworkID:       artworkID,
		CreatorID:       creatorID,
		CreatorAlias:    creator.DisplayAlias,
		MintTxID:        mintTxID,
		VerificationURL: s.gateway.VerificationURL(mintTxID),
		SealedAt:        time.Now(),
	}

	var existing int64
	if err := tx.Model(&models.ContractRecord{}).
		Where("artwork_id = ? AND superseded_by_id IS NULL", artworkID).
		Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to check existing contract: %w", err)
	}
	if existing > 0 {
		return nil, ErrAlreadySealed
	}

	if err := tx.Create(record).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadySealed
		}
		return nil, fmt.Errorf("failed to create contract record: %w", err)
	}

	if err := s.storeRecipients(tx, record.ID, split); err != nil {
		return nil, err
	}
	return record, nil
}

// Get returns the live (non-superseded) contract record for an artwork.
func (s *ContractService) Get(artworkID uuid.UUID) (*models.ContractRecord, error) {
	var record models.ContractRecord
	if err := s.db.Where("artwork_id = ? AND superseded_by_id IS NULL", artworkID).
		Preload("Recipients", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &record, nil
}

// GetLineage returns all records for an artwork, newest first, so the
// supersession trail stays inspectable.
func (s *ContractService) GetLineage(artworkID uuid.UUID) ([]models.ContractRecord, error) {
	var records []models.ContractRecord
	if err := s.db.Where("artwork_id = ?", artworkID).
		Preload("Recipients", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Order("sealed_at DESC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch contract lineage: %w", err)
	}
	return records, nil
}

// Supersede writes a replacement record with the new split and marks the old
// record as superseded. The old record is never modified beyond the link.
func (s *ContractService) Supersede(oldRecordID uuid.UUID, newSplit *ValidatedSplit) (*models.ContractRecord, error) {
	var replacement *models.ContractRecord

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var old models.ContractRecord
		if err := tx.First(&old, "id = ?", oldRecordID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrContractNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}
		if old.IsSuperseded() {
			return fmt.Errorf("%w: record %s is already superseded", ErrContractNotFound, oldRecordID)
		}

		replacement = &models.ContractRecord{
			ArtworkID:       old.ArtworkID,
			CreatorID:       old.CreatorID,
			CreatorAlias:    old.CreatorAlias,
			MintTxID:        old.MintTxID,
			VerificationURL: old.VerificationURL,
			SealedAt:        time.Now(),
		}
		if err := tx.Create(replacement).Error; err != nil {
			return fmt.Errorf("failed to create superseding record: %w", err)
		}
		if err := s.storeRecipients(tx, replacement.ID, newSplit); err != nil {
			return err
		}

		// The only write an existing record ever receives.
		return tx.Model(&models.ContractRecord{}).
			Where("id = ?", old.ID).
			Update("superseded_by_id", replacement.ID).Error
	})
	if err != nil {
		return nil, err
	}

	return s.getByID(replacement.ID)
}

func (s *ContractService) storeRecipients(tx *gorm.DB, recordID uuid.UUID, split *ValidatedSplit) error {
	for i, entry := range split.Entries {
		recipient := &models.RoyaltyRecipient{
			ContractRecordID: recordID,
			RecipientID:      entry.RecipientID,
			Percentage:       entry.Percentage,
			PayoutWallet:     entry.PayoutWallet,
			Position:         i,
			Baseline:         i == 0,
		}
		if err := tx.Create(recipient).Error; err != nil {
			return fmt.Errorf("failed to store royalty recipient: %w", err)
		}
	}
	return nil
}

func (s *ContractService) getByID(id uuid.UUID) (*models.ContractRecord, error) {
	var record models.ContractRecord
	if err := s.db.Preload("Recipients", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).First(&record, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &record, nil
}

// SplitOf converts a stored contract back into the validated-split form used
// by payout computation.
func (s *ContractService) SplitOf(record *models.ContractRecord) *ValidatedSplit {
	split := &ValidatedSplit{Entries: make([]RoyaltyEntry, 0, len(record.Recipients))}
	for _, r := range record.Recipients {
		split.Entries = append(split.Entries, RoyaltyEntry{
			RecipientID:  r.RecipientID,
			Percentage:   r.Percentage,
			PayoutWallet: r.PayoutWallet,
		})
	}
	return split
}
