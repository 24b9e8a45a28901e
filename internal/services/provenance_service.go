// internal/services/provenance_service.go
package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/vortexart/marketplace-backend/internal/models"
)

// ProvenanceService owns the append-only ownership log. Appends for the same
// artwork are serialized twice: a per-artwork mutex within the process, and
// the unique (artwork_id, sequence_number) index across processes. The
// artwork row carries a derived head cache (owner + head sequence) that can
// always be rebuilt by replaying the log.
type ProvenanceService struct {
	db *gorm.DB

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewProvenanceService(db *gorm.DB) *ProvenanceService {
	return &ProvenanceService{
		db:    db,
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *ProvenanceService) artworkLock(artworkID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, exists := s.locks[artworkID]
	if !exists {
		lock = &sync.Mutex{}
		s.locks[artworkID] = lock
	}
	return lock
}

// WithArtworkLocks runs fn while holding the per-artwork locks for all given
// artworks, acquired in sorted id order so concurrent multi-artwork callers
// cannot deadlock each other.
func (s *ProvenanceService) WithArtworkLocks(fn func() error, artworkIDs ...uuid.UUID) error {
	sorted := make([]uuid.UUID, len(artworkIDs))
	copy(sorted, artworkIDs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})

	for _, id := range sorted {
		lock := s.artworkLock(id)
		lock.Lock()
		defer lock.Unlock()
	}

	return fn()
}

// AppendRequest describes the event to append. The sequence number is
// assigned by the service, never by the caller.
type AppendRequest struct {
	Kind        models.EventKind
	FromOwnerID *uuid.UUID
	ToOwnerID   uuid.UUID
	TxID        string
	Price       *float64
	OccurredAt  time.Time
}

// Append enforces chain continuity and writes the event plus the head cache
// update in one transaction. Returns the assigned sequence number.
func (s *ProvenanceService) Append(artworkID uuid.UUID, req AppendRequest) (int64, error) {
	lock := s.artworkLock(artworkID)
	lock.Lock()
	defer lock.Unlock()

	var seq int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		seq, _, err = s.appendTx(tx, artworkID, req)
		return err
	})
	return seq, err
}

// AppendTx appends inside a caller-managed transaction. The caller must hold
// the artwork lock for the duration of the transaction (the swap orchestrator
// does this when committing both sides atomically).
func (s *ProvenanceService) AppendTx(tx *gorm.DB, artworkID uuid.UUID, req AppendRequest) (*models.ProvenanceEvent, error) {
	_, event, err := s.appendTx(tx, artworkID, req)
	return event, err
}

func (s *ProvenanceService) appendTx(tx *gorm.DB, artworkID uuid.UUID, req AppendRequest) (int64, *models.ProvenanceEvent, error) {
	var artwork models.Artwork
	if err := tx.First(&artwork, "id = ?", artworkID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil, ErrArtworkNotFound
		}
		return 0, nil, fmt.Errorf("database error: %w", err)
	}

	// Continuity: a creation event opens the chain; anything else must come
	// from the current owner as derived from the last event.
	if artwork.HeadSequence == 0 {
		if req.Kind != models.EventKindCreation || req.FromOwnerID != nil {
			return 0, nil, fmt.Errorf("%w: artwork %s has no events yet", ErrChainContinuity, artworkID)
		}
	} else {
		if req.Kind == models.EventKindCreation {
			return 0, nil, fmt.Errorf("%w: artwork %s already has a creation event", ErrChainContinuity, artworkID)
		}
		if req.FromOwnerID == nil || *req.FromOwnerID != artwork.OwnerID {
			return 0, nil, fmt.Errorf("%w: artwork %s is owned by %s", ErrChainContinuity, artworkID, artwork.OwnerID)
		}
	}

	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	event := &models.ProvenanceEvent{
		ArtworkID:      artworkID,
		SequenceNumber: artwork.HeadSequence + 1,
		Kind:           req.Kind,
		FromOwnerID:    req.FromOwnerID,
		ToOwnerID:      req.ToOwnerID,
		TxID:           req.TxID,
		Price:          req.Price,
		OccurredAt:     occurredAt,
	}

	if err := tx.Create(event).Error; err != nil {
		if isUniqueViolation(err) {
			// A concurrent append won the sequence number.
			return 0, nil, fmt.Errorf("%w: concurrent append on artwork %s", ErrChainContinuity, artworkID)
		}
		return 0, nil, fmt.Errorf("failed to append provenance event: %w", err)
	}

	// Advance the derived head cache with a compare-and-set on the previous
	// head, so an interleaved writer cannot silently clobber it.
	result := tx.Model(&models.Artwork{}).
		Where("id = ? AND head_sequence = ?", artworkID, artwork.HeadSequence).
		Updates(map[string]interface{}{
			"owner_id":      req.ToOwnerID,
			"head_sequence": event.SequenceNumber,
		})
	if result.Error != nil {
		return 0, nil, fmt.Errorf("failed to advance head cache: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, nil, fmt.Errorf("%w: head moved during append on artwork %s", ErrChainContinuity, artworkID)
	}

	return event.SequenceNumber, event, nil
}

// History reconstructs the full ownership lineage, verifying continuity as it
// reads. A broken chain is a corruption condition: it is logged for manual
// reconciliation and surfaced as ErrChainCorrupted, never repaired.
func (s *ProvenanceService) History(artworkID uuid.UUID) ([]models.ProvenanceEvent, error) {
	var events []models.ProvenanceEvent
	if err := s.db.Where("artwork_id = ?", artworkID).
		Order("sequence_number ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch provenance history: %w", err)
	}

	for i := range events {
		if events[i].SequenceNumber != int64(i+1) {
			return nil, s.corrupted(artworkID, "sequence gap at %d", events[i].SequenceNumber)
		}
		if i == 0 {
			if events[0].Kind != models.EventKindCreation || events[0].FromOwnerID != nil {
				return nil, s.corrupted(artworkID, "chain does not start with a creation event")
			}
			continue
		}
		if events[i].FromOwnerID == nil || *events[i].FromOwnerID != events[i-1].ToOwnerID {
			return nil, s.corrupted(artworkID, "broken continuity at sequence %d", events[i].SequenceNumber)
		}
	}

	return events, nil
}

func (s *ProvenanceService) corrupted(artworkID uuid.UUID, format string, args ...interface{}) error {
	detail := fmt.Sprintf(format, args...)
	logrus.WithFields(logrus.Fields{
		"artwork_id": artworkID,
		"detail":     detail,
	}).Error("Provenance chain corruption detected")
	return fmt.Errorf("%w: artwork %s: %s", ErrChainCorrupted, artworkID, detail)
}

// CurrentOwner is an O(1) read of the cached head pointer.
func (s *ProvenanceService) CurrentOwner(artworkID uuid.UUID) (uuid.UUID, error) {
	var artwork models.Artwork
	if err := s.db.Select("owner_id", "head_sequence").First(&artwork, "id = ?", artworkID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, ErrArtworkNotFound
		}
		return uuid.Nil, fmt.Errorf("database error: %w", err)
	}
	return artwork.OwnerID, nil
}

// RebuildHead replays the log and rewrites the derived cache. Used when the
// cache is suspected stale; the log stays authoritative.
func (s *ProvenanceService) RebuildHead(artworkID uuid.UUID) (uuid.UUID, error) {
	lock := s.artworkLock(artworkID)
	lock.Lock()
	defer lock.Unlock()

	events, err := s.History(artworkID)
	if err != nil {
		return uuid.Nil, err
	}
	if len(events) == 0 {
		return uuid.Nil, ErrArtworkNotFound
	}

	head := events[len(events)-1]
	if err := s.db.Model(&models.Artwork{}).
		Where("id = ?", artworkID).
		Updates(map[string]interface{}{
			"owner_id":      head.ToOwnerID,
			"head_sequence": head.SequenceNumber,
		}).Error; err != nil {
		return uuid.Nil, fmt.Errorf("failed to rebuild head cache: %w", err)
	}

	return head.ToOwnerID, nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}
