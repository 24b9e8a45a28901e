// internal/models/artwork.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Artwork carries the derived ownership cache (OwnerID, HeadSequence). The
// provenance event log is authoritative; both fields can always be rebuilt by
// replaying it.
type Artwork struct {
	BaseModel
	CreatorID    uuid.UUID      `json:"creator_id" gorm:"type:uuid;not null;index"`
	OwnerID      uuid.UUID      `json:"owner_id" gorm:"type:uuid;not null;index"`
	Title        string         `json:"title" gorm:"size:255;not null"`
	Description  string         `json:"description" gorm:"type:text"`
	Medium       string         `json:"medium" gorm:"size:100"`
	FileURLs     pq.StringArray `json:"file_urls" gorm:"type:text[]"`
	Metadata     JSONB          `json:"metadata" gorm:"type:jsonb"`
	LockState    LockState      `json:"lock_state" gorm:"type:varchar(20);default:'free';index"`
	LockSwapID   *uuid.UUID     `json:"lock_swap_id,omitempty" gorm:"type:uuid"`
	HeadSequence int64          `json:"head_sequence" gorm:"default:0"`
	Status       ArtworkStatus  `json:"status" gorm:"type:varchar(20);default:'active';index"`

	// Relationships
	Creator   User             `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
	Owner     User             `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Contracts []ContractRecord `json:"contracts,omitempty" gorm:"foreignKey:ArtworkID"`
	Events    []ProvenanceEvent `json:"events,omitempty" gorm:"foreignKey:ArtworkID"`
}

// ContractRecord is sealed once at mint time and immutable afterwards.
// Corrections create a superseding record; the old one keeps a
// SupersededByID link and is never overwritten.
type ContractRecord struct {
	BaseModel
	ArtworkID       uuid.UUID  `json:"artwork_id" gorm:"type:uuid;not null;index"`
	CreatorID       uuid.UUID  `json:"creator_id" gorm:"type:uuid;not null;index"`
	CreatorAlias    string     `json:"creator_alias" gorm:"size:100"`
	MintTxID        string     `json:"mint_tx_id" gorm:"size:128;not null"`
	VerificationURL string     `json:"verification_url" gorm:"size:255"`
	SealedAt        time.Time  `json:"sealed_at" gorm:"not null"`
	SupersededByID  *uuid.UUID `json:"superseded_by,omitempty" gorm:"type:uuid"`

	// Relationships
	Artwork    Artwork            `json:"artwork,omitempty" gorm:"foreignKey:ArtworkID"`
	Creator    User               `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
	Recipients []RoyaltyRecipient `json:"recipients,omitempty" gorm:"foreignKey:ContractRecordID"`
}

func (c *ContractRecord) IsSuperseded() bool {
	return c.SupersededByID != nil
}

// RoyaltyRecipient is one entry of a sealed royalty split, stored in split
// order (baseline entry first, remaining recipients sorted by recipient id).
type RoyaltyRecipient struct {
	BaseModel
	ContractRecordID uuid.UUID `json:"contract_record_id" gorm:"type:uuid;not null;index"`
	RecipientID      uuid.UUID `json:"recipient_id" gorm:"type:uuid;not null"`
	Percentage       float64   `json:"percentage" gorm:"type:decimal(5,2);not null"`
	PayoutWallet     string    `json:"payout_wallet" gorm:"size:64"`
	Position         int       `json:"position" gorm:"not null"`
	Baseline         bool      `json:"baseline" gorm:"default:false"`
}
