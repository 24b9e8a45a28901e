// internal/services/provenance_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/vortexart/marketplace-backend/internal/models"
)

type ProvenanceTestSuite struct {
	suite.Suite
	service *ProvenanceService
	alice   *models.User
	bob     *models.User
	carol   *models.User
}

func (s *ProvenanceTestSuite) SetupTest() {
	db := newTestDB(s.T())
	s.service = NewProvenanceService(db)
	s.alice = createTestUser(s.T(), db, "alice")
	s.bob = createTestUser(s.T(), db, "bob")
	s.carol = createTestUser(s.T(), db, "carol")
}

func (s *ProvenanceTestSuite) TestCreationOpensChain() {
	artwork := createTestArtwork(s.T(), s.service.db, s.alice, "Dawn")

	seq, err := s.service.Append(artwork.ID, AppendRequest{
		Kind:      models.EventKindCreation,
		ToOwnerID: s.alice.ID,
		TxID:      "mint-1",
	})
	s.Require().NoError(err)
	s.Equal(int64(1), seq)

	owner, err := s.service.CurrentOwner(artwork.ID)
	s.Require().NoError(err)
	s.Equal(s.alice.ID, owner)
}

func (s *ProvenanceTestSuite) TestNonCreationFirstEventRejected() {
	artwork := createTestArtwork(s.T(), s.service.db, s.alice, "Dawn")

	_, err := s.service.Append(artwork.ID, AppendRequest{
		Kind:        models.EventKindTransfer,
		FromOwnerID: &s.alice.ID,
		ToOwnerID:   s.bob.ID,
		TxID:        "tx-1",
	})
	s.ErrorIs(err, ErrChainContinuity)
}

func (s *ProvenanceTestSuite) TestSecondCreationRejected() {
	artwork := createMintedArtwork(s.T(), s.service.db, s.service, s.alice, "Dawn")

	_, err := s.service.Append(artwork.ID, AppendRequest{
		Kind:      models.EventKindCreation,
		ToOwnerID: s.alice.ID,
		TxID:      "mint-2",
	})
	s.ErrorIs(err, ErrChainContinuity)
}

func (s *ProvenanceTestSuite) TestTransferChainAdvancesOwner() {
	artwork := createMintedArtwork(s.T(), s.service.db, s.service, s.alice, "Dawn")

	seq, err := s.service.Append(artwork.ID, AppendRequest{
		Kind:        models.EventKindTransfer,
		FromOwnerID: &s.alice.ID,
		ToOwnerID:   s.bob.ID,
		TxID:        "tx-1",
	})
	s.Require().NoError(err)
	s.Equal(int64(2), seq)

	seq, err = s.service.Append(artwork.ID, AppendRequest{
		Kind:        models.EventKindSale,
		FromOwnerID: &s.bob.ID,
		ToOwnerID:   s.carol.ID,
		TxID:        "tx-2",
	})
	s.Require().NoError(err)
	s.Equal(int64(3), seq)

	owner, err := s.service.CurrentOwner(artwork.ID)
	s.Require().NoError(err)
	s.Equal(s.carol.ID, owner)
}

func (s *ProvenanceTestSuite) TestTransferFromWrongOwnerRejected() {
	artwork := createMintedArtwork(s.T(), s.service.db, s.service, s.alice, "Dawn")

	_, err := s.service.Append(artwork.ID, AppendRequest{
		Kind:        models.EventKindTransfer,
		FromOwnerID: &s.bob.ID,
		ToOwnerID:   s.carol.ID,
		TxID:        "tx-1",
	})
	s.ErrorIs(err, ErrChainContinuity)

	// Owner unchanged, no event written.
	owner, err := s.service.CurrentOwner(artwork.ID)
	s.Require().NoError(err)
	s.Equal(s.alice.ID, owner)

	events, err := s.service.History(artwork.ID)
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *ProvenanceTestSuite) TestHistoryVerifiesContinuity() {
	artwork := createMintedArtwork(s.T(), s.service.db, s.service, s.alice, "Dawn")

	_, err := s.service.Append(artwork.ID, AppendRequest{
		Kind:        models.EventKindTransfer,
		FromOwnerID: &s.alice.ID,
		ToOwnerID:   s.bob.ID,
		TxID:        "tx-1",
	})
	s.Require().NoError(err)

	events, err := s.service.History(artwork.ID)
	s.Require().NoError(err)
	s.Len(events, 2)
	s.Equal(models.EventKindCreation, events[0].Kind)
	s.Equal(events[0].ToOwnerID, *events[1].FromOwnerID)
}

func (s *ProvenanceTestSuite) TestHistoryDetectsCorruption() {
	artwork := createMintedArtwork(s.T(), s.service.db, s.service, s.alice, "Dawn")

	// Tamper directly: an event claiming a transfer from someone who never
	// owned the piece.
	event := &models.ProvenanceEvent{
		ArtworkID:      artwork.ID,
		SequenceNumber: 2,
		Kind:           models.EventKindTransfer,
		FromOwnerID:    &s.bob.ID,
		ToOwnerID:      s.carol.ID,
		TxID:           "tampered",
	}
	s.Require().NoError(s.service.db.Create(event).Error)

	_, err := s.service.History(artwork.ID)
	s.ErrorIs(err, ErrChainCorrupted)
}

func (s *ProvenanceTestSuite) TestRebuildHeadFromLog() {
	artwork := createMintedArtwork(s.T(), s.service.db, s.service, s.alice, "Dawn")

	_, err := s.service.Append(artwork.ID, AppendRequest{
		Kind:        models.EventKindTransfer,
		FromOwnerID: &s.alice.ID,
		ToOwnerID:   s.bob.ID,
		TxID:        "tx-1",
	})
	s.Require().NoError(err)

	// Clobber the cache, then rebuild it from the log.
	s.Require().NoError(s.service.db.Model(&models.Artwork{}).
		Where("id = ?", artwork.ID).
		Updates(map[string]interface{}{"owner_id": s.carol.ID, "head_sequence": 99}).Error)

	owner, err := s.service.RebuildHead(artwork.ID)
	s.Require().NoError(err)
	s.Equal(s.bob.ID, owner)

	owner, err = s.service.CurrentOwner(artwork.ID)
	s.Require().NoError(err)
	s.Equal(s.bob.ID, owner)
}

func (s *ProvenanceTestSuite) TestAppendUnknownArtwork() {
	_, err := s.service.Append(testUUID(9), AppendRequest{
		Kind:      models.EventKindCreation,
		ToOwnerID: s.alice.ID,
	})
	s.ErrorIs(err, ErrArtworkNotFound)
}

func TestProvenanceSuite(t *testing.T) {
	suite.Run(t, new(ProvenanceTestSuite))
}
