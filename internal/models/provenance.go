// internal/models/provenance.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// ProvenanceEvent is an append-only ownership record. Events for one artwork
// are totally ordered by SequenceNumber; the unique (artwork_id, sequence)
// index is what serializes concurrent appends across processes. Rows are
// never updated or deleted.
type ProvenanceEvent struct {
	BaseModel
	ArtworkID      uuid.UUID  `json:"artwork_id" gorm:"type:uuid;not null;uniqueIndex:idx_provenance_artwork_seq"`
	SequenceNumber int64      `json:"sequence_number" gorm:"not null;uniqueIndex:idx_provenance_artwork_seq"`
	Kind           EventKind  `json:"kind" gorm:"type:varchar(20);not null"`
	FromOwnerID    *uuid.UUID `json:"from_owner_id" gorm:"type:uuid"`
	ToOwnerID      uuid.UUID  `json:"to_owner_id" gorm:"type:uuid;not null"`
	TxID           string     `json:"tx_id" gorm:"size:128;not null"`
	Price          *float64   `json:"price,omitempty" gorm:"type:decimal(12,2)"`
	OccurredAt     time.Time  `json:"occurred_at" gorm:"not null"`

	// Relationships
	Artwork Artwork `json:"artwork,omitempty" gorm:"foreignKey:ArtworkID"`
}
