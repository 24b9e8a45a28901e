// internal/services/sale_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/vortexart/marketplace-backend/internal/config"
	"github.com/vortexart/marketplace-backend/internal/models"
)

// Settlement is covered here without Stripe: a pending sale row stands in for
// a confirmed payment intent, and settle is exercised directly.
type SaleTestSuite struct {
	suite.Suite
	db         *gorm.DB
	gateway    *fakeGateway
	provenance *ProvenanceService
	contracts  *ContractService
	service    *SaleService
	seller     *models.User
	buyer      *models.User
	artwork    *models.Artwork
}

func (s *SaleTestSuite) SetupTest() {
	s.db = newTestDB(s.T())
	s.gateway = newFakeGateway()
	s.provenance = NewProvenanceService(s.db)
	s.contracts = NewContractService(s.db, s.gateway)
	policy := newTestPolicy()
	s.service = NewSaleService(s.db, &config.Config{}, s.contracts, s.provenance, policy)

	s.seller = createTestUser(s.T(), s.db, "seller")
	s.buyer = createTestUser(s.T(), s.db, "buyer")
	s.artwork = createMintedArtwork(s.T(), s.db, s.provenance, s.seller, "Drift")

	split, err := policy.Validate([]RoyaltyEntry{
		{RecipientID: testUUID(10), Percentage: 10},
	})
	s.Require().NoError(err)
	_, err = s.contracts.Seal(s.artwork.ID, s.seller.ID, split, "mint-drift")
	s.Require().NoError(err)
}

func (s *SaleTestSuite) pendingSale(amount float64) *models.Sale {
	sale := &models.Sale{
		ArtworkID:        s.artwork.ID,
		BuyerID:          s.buyer.ID,
		SellerID:         s.seller.ID,
		Amount:           amount,
		Status:           models.SaleStatusPending,
		PaymentReference: "pi_drift_1",
	}
	s.Require().NoError(s.db.Create(sale).Error)
	return sale
}

func (s *SaleTestSuite) TestSettleTransfersOwnershipAndRecordsPayouts() {
	sale := s.pendingSale(1000)

	settled, err := s.service.settle(sale)
	s.Require().NoError(err)
	s.Equal(models.SaleStatusCompleted, settled.Status)
	s.Require().NotNil(settled.EventID)
	s.NotNil(settled.ProcessedAt)

	// 5% baseline, 10% artist share, remainder to the seller.
	s.InDelta(50.0, settled.RoyaltyPayouts[testUUID(1).String()].(float64), 0.001)
	s.InDelta(100.0, settled.RoyaltyPayouts[testUUID(10).String()].(float64), 0.001)
	s.InDelta(850.0, settled.RoyaltyPayouts["seller"].(float64), 0.001)

	owner, err := s.provenance.CurrentOwner(s.artwork.ID)
	s.Require().NoError(err)
	s.Equal(s.buyer.ID, owner)

	events, err := s.provenance.History(s.artwork.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(models.EventKindSale, events[1].Kind)
	s.Equal("pi_drift_1", events[1].TxID)
	s.Require().NotNil(events[1].Price)
	s.InDelta(1000.0, *events[1].Price, 0.001)
}

func (s *SaleTestSuite) TestSettleLockedArtworkRejected() {
	sale := s.pendingSale(1000)

	// A swap locked the artwork after the intent was created.
	s.Require().NoError(s.db.Model(&models.Artwork{}).
		Where("id = ?", s.artwork.ID).
		Update("lock_state", models.LockStateLockedForSwap).Error)

	_, err := s.service.settle(sale)
	s.ErrorIs(err, ErrAlreadyLocked)

	// Nothing settled: ownership, sale status, and chain are untouched.
	owner, err := s.provenance.CurrentOwner(s.artwork.ID)
	s.Require().NoError(err)
	s.Equal(s.seller.ID, owner)

	stored, err := s.service.Get(sale.ID)
	s.Require().NoError(err)
	s.Equal(models.SaleStatusPending, stored.Status)

	events, err := s.provenance.History(s.artwork.ID)
	s.Require().NoError(err)
	s.Len(events, 1)
}

func TestSaleSuite(t *testing.T) {
	suite.Run(t, new(SaleTestSuite))
}
