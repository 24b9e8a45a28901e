// internal/services/artwork_service_test.go
package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/vortexart/marketplace-backend/internal/models"
)

type ArtworkTestSuite struct {
	suite.Suite
	db         *gorm.DB
	gateway    *fakeGateway
	provenance *ProvenanceService
	contracts  *ContractService
	service    *ArtworkService
	artist     *models.User
}

func (s *ArtworkTestSuite) SetupTest() {
	s.db = newTestDB(s.T())
	s.gateway = newFakeGateway()
	s.provenance = NewProvenanceService(s.db)
	s.contracts = NewContractService(s.db, s.gateway)
	s.service = NewArtworkService(s.db, s.gateway, newTestPolicy(), s.contracts, s.provenance)
	s.artist = createTestUser(s.T(), s.db, "artist")
}

func (s *ArtworkTestSuite) TestMintSealsAndOpensChain() {
	result, err := s.service.Mint(context.Background(), s.artist.ID, &MintRequest{
		Title: "Tidelines",
		Royalties: []RoyaltyEntry{
			{RecipientID: testUUID(10), Percentage: 10},
		},
	})
	s.Require().NoError(err)

	s.Equal(s.artist.ID, result.Artwork.OwnerID)
	s.Equal(models.LockStateFree, result.Artwork.LockState)
	s.Require().Len(s.gateway.submitted, 1)
	s.Equal(InstructionMint, s.gateway.submitted[0].Type)

	// Contract sealed against the submitted transaction.
	s.Equal("tx-1", result.Contract.MintTxID)
	s.Equal("https://explorer.test/tx/tx-1", result.Contract.VerificationURL)
	s.Len(result.Contract.Recipients, 2)

	// Provenance chain opened with a creation event.
	events, err := s.provenance.History(result.Artwork.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(models.EventKindCreation, events[0].Kind)
	s.Equal("tx-1", events[0].TxID)

	owner, err := s.provenance.CurrentOwner(result.Artwork.ID)
	s.Require().NoError(err)
	s.Equal(s.artist.ID, owner)
}

func (s *ArtworkTestSuite) TestMintInvalidSplitWritesNothing() {
	_, err := s.service.Mint(context.Background(), s.artist.ID, &MintRequest{
		Title: "Tidelines",
		Royalties: []RoyaltyEntry{
			{RecipientID: testUUID(10), Percentage: 30},
		},
	})
	s.ErrorIs(err, ErrCapExceeded)

	var count int64
	s.Require().NoError(s.db.Model(&models.Artwork{}).Count(&count).Error)
	s.Zero(count)
	s.Empty(s.gateway.submitted)
}

func (s *ArtworkTestSuite) TestMintGatewayFailureRollsBack() {
	s.gateway.submitErr = ErrGatewayUnavailable

	_, err := s.service.Mint(context.Background(), s.artist.ID, &MintRequest{Title: "Tidelines"})
	s.ErrorIs(err, ErrGatewayUnavailable)

	var count int64
	s.Require().NoError(s.db.Unscoped().Model(&models.Artwork{}).Count(&count).Error)
	s.Zero(count)
}

func (s *ArtworkTestSuite) TestMintWriteSetRollsBackTogether() {
	// Mirror the mint write-set and fail after the seal: neither the artwork
	// nor the contract rows may survive.
	split, err := newTestPolicy().Validate(nil)
	s.Require().NoError(err)

	boom := errors.New("boom")
	artwork := &models.Artwork{
		BaseModel: models.BaseModel{ID: uuid.New()},
		CreatorID: s.artist.ID,
		OwnerID:   s.artist.ID,
		Title:     "Tidelines",
		LockState: models.LockStateFree,
		Status:    models.ArtworkStatusActive,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(artwork).Error; err != nil {
			return err
		}
		if _, err := s.contracts.SealTx(tx, artwork.ID, s.artist.ID, split, "tx-atomic"); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	var artworks, records, recipients int64
	s.Require().NoError(s.db.Unscoped().Model(&models.Artwork{}).Count(&artworks).Error)
	s.Require().NoError(s.db.Unscoped().Model(&models.ContractRecord{}).Count(&records).Error)
	s.Require().NoError(s.db.Unscoped().Model(&models.RoyaltyRecipient{}).Count(&recipients).Error)
	s.Zero(artworks)
	s.Zero(records)
	s.Zero(recipients)
}

func (s *ArtworkTestSuite) TestArchiveByOwner() {
	result, err := s.service.Mint(context.Background(), s.artist.ID, &MintRequest{Title: "Tidelines"})
	s.Require().NoError(err)

	s.Require().NoError(s.service.Archive(result.Artwork.ID, s.artist.ID))

	artwork, err := s.service.Get(result.Artwork.ID)
	s.Require().NoError(err)
	s.Equal(models.ArtworkStatusArchived, artwork.Status)
}

func (s *ArtworkTestSuite) TestArchiveByStrangerRejected() {
	result, err := s.service.Mint(context.Background(), s.artist.ID, &MintRequest{Title: "Tidelines"})
	s.Require().NoError(err)

	stranger := createTestUser(s.T(), s.db, "stranger")
	s.Error(s.service.Archive(result.Artwork.ID, stranger.ID))
}

func (s *ArtworkTestSuite) TestListFilters() {
	_, err := s.service.Mint(context.Background(), s.artist.ID, &MintRequest{Title: "One"})
	s.Require().NoError(err)
	_, err = s.service.Mint(context.Background(), s.artist.ID, &MintRequest{Title: "Two"})
	s.Require().NoError(err)

	other := createTestUser(s.T(), s.db, "other")
	_, err = s.service.Mint(context.Background(), other.ID, &MintRequest{Title: "Three"})
	s.Require().NoError(err)

	artworks, total, err := s.service.List(ListArtworksParams{OwnerID: &s.artist.ID})
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Len(artworks, 2)
}

func TestArtworkSuite(t *testing.T) {
	suite.Run(t, new(ArtworkTestSuite))
}
