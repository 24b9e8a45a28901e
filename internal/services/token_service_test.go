// internal/services/token_service_test.go
package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferTokens(t *testing.T) {
	db := newTestDB(t)
	gateway := newFakeGateway()
	service := NewTokenService(db, gateway)

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	gateway.balances[alice.WalletAddress] = 100

	txID, err := service.TransferTokens(context.Background(), alice.ID, bob.ID, 40, testUUID(1))
	require.NoError(t, err)
	assert.NotEmpty(t, txID)

	require.Len(t, gateway.submitted, 1)
	instr := gateway.submitted[0]
	assert.Equal(t, InstructionTokenTransfer, instr.Type)
	assert.Equal(t, alice.WalletAddress, instr.FromWallet)
	assert.Equal(t, bob.WalletAddress, instr.ToWallet)
	assert.Equal(t, 40.0, instr.Amount)
}

func TestTransferTokensInsufficientBalance(t *testing.T) {
	db := newTestDB(t)
	gateway := newFakeGateway()
	service := NewTokenService(db, gateway)

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	gateway.balances[alice.WalletAddress] = 10

	_, err := service.TransferTokens(context.Background(), alice.ID, bob.ID, 40, testUUID(1))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Empty(t, gateway.submitted)
}

func TestTransferTokensNonPositiveAmount(t *testing.T) {
	db := newTestDB(t)
	service := NewTokenService(db, newFakeGateway())

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	_, err := service.TransferTokens(context.Background(), alice.ID, bob.ID, 0, testUUID(1))
	assert.Error(t, err)
}
