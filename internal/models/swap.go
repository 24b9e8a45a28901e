// internal/models/swap.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// SwapTransaction links two artworks and two owners. All fields except Status
// and the completion bookkeeping are write-once. A committed swap references
// exactly one provenance event per artwork, both carrying the transaction ids
// recorded here.
type SwapTransaction struct {
	BaseModel
	InitiatorID           uuid.UUID  `json:"initiator_id" gorm:"type:uuid;not null;index"`
	CounterpartyID        uuid.UUID  `json:"counterparty_id" gorm:"type:uuid;not null;index"`
	InitiatorArtworkID    uuid.UUID  `json:"initiator_artwork_id" gorm:"type:uuid;not null;index"`
	CounterpartyArtworkID uuid.UUID  `json:"counterparty_artwork_id" gorm:"type:uuid;not null;index"`
	Message               string     `json:"message,omitempty" gorm:"type:text"`
	PaymentAmount         *float64   `json:"payment_amount,omitempty" gorm:"type:decimal(12,2)"`
	Status                SwapStatus `json:"status" gorm:"type:varchar(20);default:'requested';index"`
	AcceptedAt            *time.Time `json:"accepted_at"`
	SubmittedAt           *time.Time `json:"submitted_at"`
	CompletedAt           *time.Time `json:"completed_at"`
	InitiatorTxID         string     `json:"initiator_tx_id" gorm:"size:128"`
	CounterpartyTxID      string     `json:"counterparty_tx_id" gorm:"size:128"`
	PaymentTxID           string     `json:"payment_tx_id" gorm:"size:128"`
	InitiatorEventID      *uuid.UUID `json:"initiator_event_id" gorm:"type:uuid"`
	CounterpartyEventID   *uuid.UUID `json:"counterparty_event_id" gorm:"type:uuid"`
	AbortReason           string     `json:"abort_reason,omitempty" gorm:"type:text"`

	// Relationships
	Initiator           User    `json:"initiator,omitempty" gorm:"foreignKey:InitiatorID"`
	Counterparty        User    `json:"counterparty,omitempty" gorm:"foreignKey:CounterpartyID"`
	InitiatorArtwork    Artwork `json:"initiator_artwork,omitempty" gorm:"foreignKey:InitiatorArtworkID"`
	CounterpartyArtwork Artwork `json:"counterparty_artwork,omitempty" gorm:"foreignKey:CounterpartyArtworkID"`
}

func (s *SwapTransaction) IsTerminal() bool {
	return s.Status == SwapStatusCommitted || s.Status == SwapStatusAborted
}

// Sale records a fiat purchase of a listed artwork. The royalty payout
// breakdown computed from the sealed split is stored on completion.
type Sale struct {
	BaseModel
	ArtworkID        uuid.UUID  `json:"artwork_id" gorm:"type:uuid;not null;index"`
	BuyerID          uuid.UUID  `json:"buyer_id" gorm:"type:uuid;not null;index"`
	SellerID         uuid.UUID  `json:"seller_id" gorm:"type:uuid;not null;index"`
	Amount           float64    `json:"amount" gorm:"type:decimal(12,2);not null"`
	RoyaltyPayouts   JSONB      `json:"royalty_payouts" gorm:"type:jsonb"`
	PaymentReference string     `json:"payment_reference" gorm:"size:255"`
	Status           SaleStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	EventID          *uuid.UUID `json:"event_id" gorm:"type:uuid"`
	ProcessedAt      *time.Time `json:"processed_at"`

	// Relationships
	Artwork Artwork `json:"artwork,omitempty" gorm:"foreignKey:ArtworkID"`
	Buyer   User    `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
	Seller  User    `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
}
