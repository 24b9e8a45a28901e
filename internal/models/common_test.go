// internal/models/common_test.go
package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// The model DDL must stay portable: sqlite (used by the service test suites)
// cannot parse function-call column defaults, so primary keys come from the
// BeforeCreate hook instead.
func TestAutoMigrateWorksOnSqlite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&User{},
		&Artwork{},
		&ContractRecord{},
		&RoyaltyRecipient{},
		&ProvenanceEvent{},
		&SwapTransaction{},
		&Sale{},
		&AuditLog{},
	))
}

func TestBeforeCreateAssignsID(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&User{}))

	user := &User{
		Username:      "mara",
		DisplayAlias:  "mara-alias",
		WalletAddress: "wallet-mara",
		UserType:      UserTypeArtist,
		Status:        UserStatusActive,
	}
	require.NoError(t, db.Create(user).Error)
	assert.NotEqual(t, uuid.Nil, user.ID)

	// A caller-supplied id is kept.
	preset := uuid.New()
	second := &User{
		BaseModel:     BaseModel{ID: preset},
		Username:      "nia",
		DisplayAlias:  "nia-alias",
		WalletAddress: "wallet-nia",
		UserType:      UserTypeCollector,
		Status:        UserStatusActive,
	}
	require.NoError(t, db.Create(second).Error)
	assert.Equal(t, preset, second.ID)
}
