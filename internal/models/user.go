// internal/models/user.go
package models

// User mirrors the external identity provider: the ledger only needs a
// display alias and a payout wallet per opaque owner id. Account provisioning
// and authentication live outside this service.
type User struct {
	BaseModel
	Username      string     `json:"username" gorm:"uniqueIndex;size:50;not null"`
	DisplayAlias  string     `json:"display_alias" gorm:"size:100"`
	WalletAddress string     `json:"wallet_address" gorm:"size:64;index"`
	UserType      UserType   `json:"user_type" gorm:"type:varchar(20);not null"`
	Status        UserStatus `json:"status" gorm:"type:varchar(20);default:'active'"`
	ProfileData   JSONB      `json:"profile_data" gorm:"type:jsonb"`

	// Relationships
	Artworks []Artwork `json:"artworks,omitempty" gorm:"foreignKey:OwnerID"`
}
