// internal/services/testutil_test.go
package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vortexart/marketplace-backend/internal/config"
	"github.com/vortexart/marketplace-backend/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Serialize access; sqlite in-memory shares one connection.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.Artwork{},
		&models.ContractRecord{},
		&models.RoyaltyRecipient{},
		&models.ProvenanceEvent{},
		&models.SwapTransaction{},
		&models.Sale{},
		&models.AuditLog{},
	)
	require.NoError(t, err)

	return db
}

func testRoyaltyConfig() config.RoyaltyConfig {
	return config.RoyaltyConfig{
		BaselinePercent: 5.0,
		CapPercent:      20.0,
	}
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username:      username,
		DisplayAlias:  username + "-alias",
		WalletAddress: "wallet-" + username,
		UserType:      models.UserTypeArtist,
		Status:        models.UserStatusActive,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestArtwork(t *testing.T, db *gorm.DB, owner *models.User, title string) *models.Artwork {
	t.Helper()

	artwork := &models.Artwork{
		CreatorID: owner.ID,
		OwnerID:   owner.ID,
		Title:     title,
		LockState: models.LockStateFree,
		Status:    models.ArtworkStatusActive,
	}
	require.NoError(t, db.Create(artwork).Error)
	return artwork
}

// createMintedArtwork seeds the artwork plus its opening creation event.
func createMintedArtwork(t *testing.T, db *gorm.DB, provenance *ProvenanceService, owner *models.User, title string) *models.Artwork {
	t.Helper()

	artwork := createTestArtwork(t, db, owner, title)
	_, err := provenance.Append(artwork.ID, AppendRequest{
		Kind:      models.EventKindCreation,
		ToOwnerID: owner.ID,
		TxID:      "mint-" + artwork.ID.String()[:8],
	})
	require.NoError(t, err)
	return artwork
}

// fakeGateway is an in-memory Gateway whose confirmation outcomes the test
// scripts per transaction id.
type fakeGateway struct {
	mu         sync.Mutex
	submitted  []Instruction
	submitErr  error
	outcomes   map[string]*Confirmation
	balances   map[string]float64
	nextID     int
	defaultsTo ConfirmationStatus
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		outcomes:   make(map[string]*Confirmation),
		balances:   make(map[string]float64),
		defaultsTo: ConfirmationConfirmed,
	}
}

func (f *fakeGateway) Submit(_ context.Context, instr Instruction) (*PendingTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.nextID++
	f.submitted = append(f.submitted, instr)
	return &PendingTransaction{TxID: fmt.Sprintf("tx-%d", f.nextID)}, nil
}

func (f *fakeGateway) setOutcome(txID string, status ConfirmationStatus, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[txID] = &Confirmation{Status: status, TxID: txID, RejectReason: reason}
}

func (f *fakeGateway) CheckStatus(_ context.Context, txID string) (*Confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.outcomes[txID]; ok {
		return c, nil
	}
	return &Confirmation{Status: f.defaultsTo, TxID: txID}, nil
}

func (f *fakeGateway) AwaitConfirmation(ctx context.Context, txID string, _ time.Duration) (*Confirmation, error) {
	c, err := f.CheckStatus(ctx, txID)
	if err != nil {
		return nil, err
	}
	if c.Status == ConfirmationPending {
		return &Confirmation{Status: ConfirmationTimedOut, TxID: txID}, nil
	}
	return c, nil
}

func (f *fakeGateway) TokenBalance(_ context.Context, wallet string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[wallet], nil
}

func (f *fakeGateway) VerificationURL(txID string) string {
	return "https://explorer.test/tx/" + txID
}

func testUUID(n byte) uuid.UUID {
	var b [16]byte
	b[15] = n
	b[6] = 0x40
	b[8] = 0x80
	return uuid.UUID(b)
}
