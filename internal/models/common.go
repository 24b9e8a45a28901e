// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields. The primary key is assigned in BeforeCreate
// rather than by a column default, so the DDL stays portable across postgres
// and the sqlite test databases.
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserType string

const (
	UserTypeArtist    UserType = "artist"
	UserTypeCollector UserType = "collector"
	UserTypeAdmin     UserType = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

type ArtworkStatus string

const (
	ArtworkStatusActive   ArtworkStatus = "active"
	ArtworkStatusArchived ArtworkStatus = "archived"
)

// LockState guards an artwork against concurrent swaps. Transitions only
// happen through the swap orchestrator, via compare-and-set updates.
type LockState string

const (
	LockStateFree          LockState = "free"
	LockStateLockedForSwap LockState = "locked_for_swap"
)

type EventKind string

const (
	EventKindCreation EventKind = "creation"
	EventKindTransfer EventKind = "transfer"
	EventKindSale     EventKind = "sale"
	EventKindSwap     EventKind = "swap"
)

// SwapStatus transitions are monotonic:
// requested -> locked -> submitted -> committed
// requested|locked -> aborted, submitted -> aborted (on-chain rejection only).
type SwapStatus string

const (
	SwapStatusRequested SwapStatus = "requested"
	SwapStatusLocked    SwapStatus = "locked"
	SwapStatusSubmitted SwapStatus = "submitted"
	SwapStatusCommitted SwapStatus = "committed"
	SwapStatusAborted   SwapStatus = "aborted"
)

type SaleStatus string

const (
	SaleStatusPending   SaleStatus = "pending"
	SaleStatusCompleted SaleStatus = "completed"
	SaleStatusFailed    SaleStatus = "failed"
)
