// internal/services/swap_service_test.go
package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/vortexart/marketplace-backend/internal/models"
)

type SwapTestSuite struct {
	suite.Suite
	db         *gorm.DB
	gateway    *fakeGateway
	provenance *ProvenanceService
	service    *SwapService
	alice      *models.User
	bob        *models.User
	artworkA   *models.Artwork
	artworkB   *models.Artwork
}

func (s *SwapTestSuite) SetupTest() {
	s.db = newTestDB(s.T())
	s.gateway = newFakeGateway()
	s.provenance = NewProvenanceService(s.db)
	tokens := NewTokenService(s.db, s.gateway)
	s.service = NewSwapService(s.db, s.gateway, s.provenance, tokens, 5*time.Second)

	s.alice = createTestUser(s.T(), s.db, "alice")
	s.bob = createTestUser(s.T(), s.db, "bob")
	s.artworkA = createMintedArtwork(s.T(), s.db, s.provenance, s.alice, "Aurora")
	s.artworkB = createMintedArtwork(s.T(), s.db, s.provenance, s.bob, "Basalt")
}

func (s *SwapTestSuite) request() *models.SwapTransaction {
	swap, err := s.service.RequestSwap(RequestSwapInput{
		InitiatorID:           s.alice.ID,
		InitiatorArtworkID:    s.artworkA.ID,
		CounterpartyID:        s.bob.ID,
		CounterpartyArtworkID: s.artworkB.ID,
	})
	s.Require().NoError(err)
	return swap
}

func (s *SwapTestSuite) submitted() *models.SwapTransaction {
	swap := s.request()
	_, err := s.service.Accept(swap.ID, s.bob.ID)
	s.Require().NoError(err)
	_, err = s.service.Lock(swap.ID)
	s.Require().NoError(err)
	swap, err = s.service.Submit(context.Background(), swap.ID)
	s.Require().NoError(err)
	return swap
}

func (s *SwapTestSuite) lockStateOf(artworkID interface{}) models.LockState {
	var artwork models.Artwork
	s.Require().NoError(s.db.First(&artwork, "id = ?", artworkID).Error)
	return artwork.LockState
}

func (s *SwapTestSuite) TestRequestSameArtworkRejected() {
	_, err := s.service.RequestSwap(RequestSwapInput{
		InitiatorID:           s.alice.ID,
		InitiatorArtworkID:    s.artworkA.ID,
		CounterpartyID:        s.bob.ID,
		CounterpartyArtworkID: s.artworkA.ID,
	})
	var ineligible *IneligibleSwapError
	s.ErrorAs(err, &ineligible)
}

func (s *SwapTestSuite) TestRequestSameOwnerRejected() {
	_, err := s.service.RequestSwap(RequestSwapInput{
		InitiatorID:           s.alice.ID,
		InitiatorArtworkID:    s.artworkA.ID,
		CounterpartyID:        s.alice.ID,
		CounterpartyArtworkID: s.artworkB.ID,
	})
	var ineligible *IneligibleSwapError
	s.ErrorAs(err, &ineligible)
}

func (s *SwapTestSuite) TestRequestWrongOwnerRejected() {
	_, err := s.service.RequestSwap(RequestSwapInput{
		InitiatorID:           s.alice.ID,
		InitiatorArtworkID:    s.artworkB.ID, // bob's piece
		CounterpartyID:        s.bob.ID,
		CounterpartyArtworkID: s.artworkA.ID,
	})
	var ineligible *IneligibleSwapError
	s.ErrorAs(err, &ineligible)
}

func (s *SwapTestSuite) TestAcceptOnlyByCounterparty() {
	swap := s.request()

	_, err := s.service.Accept(swap.ID, s.alice.ID)
	var ineligible *IneligibleSwapError
	s.ErrorAs(err, &ineligible)

	accepted, err := s.service.Accept(swap.ID, s.bob.ID)
	s.Require().NoError(err)
	s.NotNil(accepted.AcceptedAt)
}

func (s *SwapTestSuite) TestLockRequiresAcceptance() {
	swap := s.request()

	_, err := s.service.Lock(swap.ID)
	var ineligible *IneligibleSwapError
	s.ErrorAs(err, &ineligible)
}

func (s *SwapTestSuite) TestLockFlipsBothArtworks() {
	swap := s.request()
	_, err := s.service.Accept(swap.ID, s.bob.ID)
	s.Require().NoError(err)

	locked, err := s.service.Lock(swap.ID)
	s.Require().NoError(err)
	s.Equal(models.SwapStatusLocked, locked.Status)
	s.Equal(models.LockStateLockedForSwap, s.lockStateOf(s.artworkA.ID))
	s.Equal(models.LockStateLockedForSwap, s.lockStateOf(s.artworkB.ID))
}

func (s *SwapTestSuite) TestLockConflictReleasesFirstLock() {
	carol := createTestUser(s.T(), s.db, "carol")
	artworkC := createMintedArtwork(s.T(), s.db, s.provenance, carol, "Cinder")

	// First swap locks artwork B.
	first := s.request()
	_, err := s.service.Accept(first.ID, s.bob.ID)
	s.Require().NoError(err)
	_, err = s.service.Lock(first.ID)
	s.Require().NoError(err)

	// Second swap wants B too; carol offers C.
	second, err := s.service.RequestSwap(RequestSwapInput{
		InitiatorID:           carol.ID,
		InitiatorArtworkID:    artworkC.ID,
		CounterpartyID:        s.bob.ID,
		CounterpartyArtworkID: s.artworkB.ID,
	})
	var ineligible *IneligibleSwapError
	if s.ErrorAs(err, &ineligible) {
		// B is already locked at request time.
		return
	}

	_, err = s.service.Accept(second.ID, s.bob.ID)
	s.Require().NoError(err)
	_, err = s.service.Lock(second.ID)
	s.ErrorIs(err, ErrAlreadyLocked)

	// Carol's piece must not be left locked by the failed attempt.
	s.Equal(models.LockStateFree, s.lockStateOf(artworkC.ID))
}

func (s *SwapTestSuite) TestSubmitRecordsBothTransactions() {
	swap := s.submitted()

	s.Equal(models.SwapStatusSubmitted, swap.Status)
	s.NotEmpty(swap.InitiatorTxID)
	s.NotEmpty(swap.CounterpartyTxID)
	s.NotEqual(swap.InitiatorTxID, swap.CounterpartyTxID)
	s.Len(s.gateway.submitted, 2)
}

func (s *SwapTestSuite) TestFinalizeCommitsBothSides() {
	swap := s.submitted()

	final, err := s.service.Finalize(context.Background(), swap.ID)
	s.Require().NoError(err)
	s.Equal(models.SwapStatusCommitted, final.Status)
	s.NotNil(final.CompletedAt)
	s.NotNil(final.InitiatorEventID)
	s.NotNil(final.CounterpartyEventID)

	// Owners swapped.
	ownerA, err := s.provenance.CurrentOwner(s.artworkA.ID)
	s.Require().NoError(err)
	s.Equal(s.bob.ID, ownerA)
	ownerB, err := s.provenance.CurrentOwner(s.artworkB.ID)
	s.Require().NoError(err)
	s.Equal(s.alice.ID, ownerB)

	// Locks released.
	s.Equal(models.LockStateFree, s.lockStateOf(s.artworkA.ID))
	s.Equal(models.LockStateFree, s.lockStateOf(s.artworkB.ID))

	// One swap event per chain, carrying the recorded transaction ids.
	eventsA, err := s.provenance.History(s.artworkA.ID)
	s.Require().NoError(err)
	s.Require().Len(eventsA, 2)
	s.Equal(models.EventKindSwap, eventsA[1].Kind)
	s.Equal(swap.InitiatorTxID, eventsA[1].TxID)
}

func (s *SwapTestSuite) TestFinalizeIdempotentOnCommitted() {
	swap := s.submitted()

	_, err := s.service.Finalize(context.Background(), swap.ID)
	s.Require().NoError(err)

	again, err := s.service.Finalize(context.Background(), swap.ID)
	s.Require().NoError(err)
	s.Equal(models.SwapStatusCommitted, again.Status)

	// No duplicate events.
	eventsA, err := s.provenance.History(s.artworkA.ID)
	s.Require().NoError(err)
	s.Len(eventsA, 2)
}

func (s *SwapTestSuite) TestFinalizeRejectionAbortsBothSides() {
	swap := s.submitted()
	s.gateway.setOutcome(swap.CounterpartyTxID, ConfirmationRejected, "slippage")

	_, err := s.service.Finalize(context.Background(), swap.ID)
	var rejected *SwapRejectedError
	s.Require().ErrorAs(err, &rejected)
	s.Equal("counterparty", rejected.Side)

	stored, err := s.service.Get(swap.ID)
	s.Require().NoError(err)
	s.Equal(models.SwapStatusAborted, stored.Status)

	// Nothing transferred, locks released.
	ownerA, err := s.provenance.CurrentOwner(s.artworkA.ID)
	s.Require().NoError(err)
	s.Equal(s.alice.ID, ownerA)
	s.Equal(models.LockStateFree, s.lockStateOf(s.artworkA.ID))
	s.Equal(models.LockStateFree, s.lockStateOf(s.artworkB.ID))

	eventsA, err := s.provenance.History(s.artworkA.ID)
	s.Require().NoError(err)
	s.Len(eventsA, 1)
}

func (s *SwapTestSuite) TestFinalizeTimeoutLeavesSubmitted() {
	swap := s.submitted()
	s.gateway.setOutcome(swap.InitiatorTxID, ConfirmationPending, "")

	result, err := s.service.Finalize(context.Background(), swap.ID)
	s.Require().NoError(err)
	s.Equal(models.SwapStatusSubmitted, result.Status)

	// Locks stay held while the outcome is unknown.
	s.Equal(models.LockStateLockedForSwap, s.lockStateOf(s.artworkA.ID))

	// Once the chain confirms, a re-poll commits.
	s.gateway.setOutcome(swap.InitiatorTxID, ConfirmationConfirmed, "")
	final, err := s.service.Finalize(context.Background(), swap.ID)
	s.Require().NoError(err)
	s.Equal(models.SwapStatusCommitted, final.Status)
}

func (s *SwapTestSuite) TestSubmitGatewayFailureAborts() {
	swap := s.request()
	_, err := s.service.Accept(swap.ID, s.bob.ID)
	s.Require().NoError(err)
	_, err = s.service.Lock(swap.ID)
	s.Require().NoError(err)

	s.gateway.submitErr = ErrGatewayUnavailable
	_, err = s.service.Submit(context.Background(), swap.ID)
	s.ErrorIs(err, ErrGatewayUnavailable)

	stored, err := s.service.Get(swap.ID)
	s.Require().NoError(err)
	s.Equal(models.SwapStatusAborted, stored.Status)
	s.Equal(models.LockStateFree, s.lockStateOf(s.artworkA.ID))
	s.Equal(models.LockStateFree, s.lockStateOf(s.artworkB.ID))
}

func (s *SwapTestSuite) TestCancelRequested() {
	swap := s.request()

	cancelled, err := s.service.Cancel(swap.ID, s.alice.ID)
	s.Require().NoError(err)
	s.Equal(models.SwapStatusAborted, cancelled.Status)
}

func (s *SwapTestSuite) TestCancelLockedReleasesLocks() {
	swap := s.request()
	_, err := s.service.Accept(swap.ID, s.bob.ID)
	s.Require().NoError(err)
	_, err = s.service.Lock(swap.ID)
	s.Require().NoError(err)

	cancelled, err := s.service.Cancel(swap.ID, s.bob.ID)
	s.Require().NoError(err)
	s.Equal(models.SwapStatusAborted, cancelled.Status)
	s.Equal(models.LockStateFree, s.lockStateOf(s.artworkA.ID))
	s.Equal(models.LockStateFree, s.lockStateOf(s.artworkB.ID))
}

func (s *SwapTestSuite) TestCancelSubmittedRejected() {
	swap := s.submitted()

	_, err := s.service.Cancel(swap.ID, s.alice.ID)
	s.ErrorIs(err, ErrSwapNotCancellable)
}

func (s *SwapTestSuite) TestCancelLosesRaceWithSubmit() {
	swap := s.request()
	_, err := s.service.Accept(swap.ID, s.bob.ID)
	s.Require().NoError(err)
	_, err = s.service.Lock(swap.ID)
	s.Require().NoError(err)

	// A cancelling worker reads the swap while it is still locked...
	stale, err := s.service.Get(swap.ID)
	s.Require().NoError(err)
	s.Equal(models.SwapStatusLocked, stale.Status)

	// ...and a submit lands before the cancel writes.
	_, err = s.service.Submit(context.Background(), swap.ID)
	s.Require().NoError(err)

	_, err = s.service.Cancel(stale.ID, s.alice.ID)
	s.ErrorIs(err, ErrSwapNotCancellable)

	// The submitted swap keeps its status and both artwork locks.
	stored, err := s.service.Get(swap.ID)
	s.Require().NoError(err)
	s.Equal(models.SwapStatusSubmitted, stored.Status)
	s.Equal(models.LockStateLockedForSwap, s.lockStateOf(s.artworkA.ID))
	s.Equal(models.LockStateLockedForSwap, s.lockStateOf(s.artworkB.ID))
}

func (s *SwapTestSuite) TestConcurrentLocksSingleWinner() {
	carol := createTestUser(s.T(), s.db, "carol")
	artworkC := createMintedArtwork(s.T(), s.db, s.provenance, carol, "Cinder")

	// Both swaps want artwork B; both are requested while B is still free.
	first := s.request()
	second, err := s.service.RequestSwap(RequestSwapInput{
		InitiatorID:           carol.ID,
		InitiatorArtworkID:    artworkC.ID,
		CounterpartyID:        s.bob.ID,
		CounterpartyArtworkID: s.artworkB.ID,
	})
	s.Require().NoError(err)
	_, err = s.service.Accept(first.ID, s.bob.ID)
	s.Require().NoError(err)
	_, err = s.service.Accept(second.ID, s.bob.ID)
	s.Require().NoError(err)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, id := range []uuid.UUID{first.ID, second.ID} {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := s.service.Lock(id)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)

	var wins, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrAlreadyLocked):
			conflicts++
		default:
			s.Failf("unexpected lock error", "%v", err)
		}
	}
	s.Equal(1, wins)
	s.Equal(1, conflicts)

	// The contested artwork is locked exactly once, and the loser's own
	// piece was released.
	s.Equal(models.LockStateLockedForSwap, s.lockStateOf(s.artworkB.ID))
	locked := 0
	for _, id := range []uuid.UUID{s.artworkA.ID, artworkC.ID} {
		if s.lockStateOf(id) == models.LockStateLockedForSwap {
			locked++
		}
	}
	s.Equal(1, locked)
}

func (s *SwapTestSuite) TestCancelByStrangerRejected() {
	swap := s.request()
	carol := createTestUser(s.T(), s.db, "carol")

	_, err := s.service.Cancel(swap.ID, carol.ID)
	var ineligible *IneligibleSwapError
	s.ErrorAs(err, &ineligible)
}

func (s *SwapTestSuite) TestSidePaymentInsufficientFundsAborts() {
	amount := 50.0
	swap, err := s.service.RequestSwap(RequestSwapInput{
		InitiatorID:           s.alice.ID,
		InitiatorArtworkID:    s.artworkA.ID,
		CounterpartyID:        s.bob.ID,
		CounterpartyArtworkID: s.artworkB.ID,
		PaymentAmount:         &amount,
	})
	s.Require().NoError(err)

	_, err = s.service.Accept(swap.ID, s.bob.ID)
	s.Require().NoError(err)
	_, err = s.service.Lock(swap.ID)
	s.Require().NoError(err)

	// Alice's wallet is empty.
	result, err := s.service.Submit(context.Background(), swap.ID)
	s.Require().NoError(err)
	s.Equal(models.SwapStatusAborted, result.Status)
	s.Equal(models.LockStateFree, s.lockStateOf(s.artworkA.ID))
}

func (s *SwapTestSuite) TestSidePaymentSubmitted() {
	amount := 50.0
	s.gateway.balances[s.alice.WalletAddress] = 100

	swap, err := s.service.RequestSwap(RequestSwapInput{
		InitiatorID:           s.alice.ID,
		InitiatorArtworkID:    s.artworkA.ID,
		CounterpartyID:        s.bob.ID,
		CounterpartyArtworkID: s.artworkB.ID,
		PaymentAmount:         &amount,
	})
	s.Require().NoError(err)

	_, err = s.service.Accept(swap.ID, s.bob.ID)
	s.Require().NoError(err)
	_, err = s.service.Lock(swap.ID)
	s.Require().NoError(err)
	result, err := s.service.Submit(context.Background(), swap.ID)
	s.Require().NoError(err)

	s.Equal(models.SwapStatusSubmitted, result.Status)
	s.NotEmpty(result.PaymentTxID)
	s.Len(s.gateway.submitted, 3)

	final, err := s.service.Finalize(context.Background(), swap.ID)
	s.Require().NoError(err)
	s.Equal(models.SwapStatusCommitted, final.Status)
}

func TestSwapSuite(t *testing.T) {
	suite.Run(t, new(SwapTestSuite))
}
