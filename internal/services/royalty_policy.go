// internal/services/royalty_policy.go
package services

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/vortexart/marketplace-backend/internal/config"
)

// RoyaltyPolicy validates and normalizes royalty splits. It is pure
// computation: no I/O, deterministic for a given input set regardless of the
// order recipients are supplied in.
type RoyaltyPolicy struct {
	baselinePercent float64
	capPercent      float64
	baselineID      uuid.UUID
	baselineWallet  string
}

// RoyaltyEntry is one requested (recipient, percentage, wallet) assignment.
type RoyaltyEntry struct {
	RecipientID  uuid.UUID `json:"recipient_id" validate:"required"`
	Percentage   float64   `json:"percentage"`
	PayoutWallet string    `json:"payout_wallet,omitempty"`
}

// ValidatedSplit is the normalized form of a royalty split: the baseline
// entry first, remaining entries sorted by recipient id, total within the
// cap. It is the only form the contract service will seal.
type ValidatedSplit struct {
	Entries []RoyaltyEntry
}

// Total returns the sum of all percentages including the baseline.
func (v *ValidatedSplit) Total() float64 {
	var total float64
	for _, e := range v.Entries {
		total += e.Percentage
	}
	return total
}

// Baseline returns the fixed platform/creator-of-record entry.
func (v *ValidatedSplit) Baseline() RoyaltyEntry {
	return v.Entries[0]
}

func NewRoyaltyPolicy(cfg config.RoyaltyConfig, baselineID uuid.UUID, baselineWallet string) *RoyaltyPolicy {
	return &RoyaltyPolicy{
		baselinePercent: cfg.BaselinePercent,
		capPercent:      cfg.CapPercent,
		baselineID:      baselineID,
		baselineWallet:  baselineWallet,
	}
}

func (p *RoyaltyPolicy) Baseline() float64 { return p.baselinePercent }
func (p *RoyaltyPolicy) Cap() float64      { return p.capPercent }

// Validate checks the requested recipients against the cap invariant and
// returns the normalized split. The baseline entry is always synthesized
// first; requests cannot override or remove it.
func (p *RoyaltyPolicy) Validate(recipients []RoyaltyEntry) (*ValidatedSplit, error) {
	seen := make(map[uuid.UUID]bool, len(recipients)+1)
	seen[p.baselineID] = true

	total := p.baselinePercent
	entries := make([]RoyaltyEntry, 0, len(recipients))

	for _, r := range recipients {
		if r.Percentage < 0 {
			return nil, fmt.Errorf("%w: recipient %s has %.2f%%", ErrInvalidPercentage, r.RecipientID, r.Percentage)
		}
		if seen[r.RecipientID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRecipient, r.RecipientID)
		}
		seen[r.RecipientID] = true
		total += r.Percentage
		entries = append(entries, r)
	}

	if total > p.capPercent {
		return nil, fmt.Errorf("%w: %.2f%% > %.2f%%", ErrCapExceeded, total, p.capPercent)
	}

	// Sort by recipient id so equal input sets produce identical stored splits.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RecipientID.String() < entries[j].RecipientID.String()
	})

	split := &ValidatedSplit{
		Entries: make([]RoyaltyEntry, 0, len(entries)+1),
	}
	split.Entries = append(split.Entries, RoyaltyEntry{
		RecipientID:  p.baselineID,
		Percentage:   p.baselinePercent,
		PayoutWallet: p.baselineWallet,
	})
	split.Entries = append(split.Entries, entries...)

	return split, nil
}

// Adjust re-validates the whole set with one recipient's percentage changed
// (or the recipient added when absent). The input split is never mutated.
func (p *RoyaltyPolicy) Adjust(split *ValidatedSplit, recipientID uuid.UUID, newPercentage float64) (*ValidatedSplit, error) {
	if recipientID == p.baselineID {
		return nil, fmt.Errorf("%w: baseline entry cannot be adjusted", ErrDuplicateRecipient)
	}

	recipients := make([]RoyaltyEntry, 0, len(split.Entries))
	found := false
	for _, e := range split.Entries[1:] { // skip baseline, Validate re-adds it
		if e.RecipientID == recipientID {
			e.Percentage = newPercentage
			found = true
		}
		recipients = append(recipients, e)
	}
	if !found {
		recipients = append(recipients, RoyaltyEntry{RecipientID: recipientID, Percentage: newPercentage})
	}

	return p.Validate(recipients)
}

// PayoutBreakdown computes per-recipient payout amounts for a sale of the
// given gross amount. The remainder after all royalty shares goes to the
// seller.
func (p *RoyaltyPolicy) PayoutBreakdown(split *ValidatedSplit, amount float64) map[string]float64 {
	payouts := make(map[string]float64, len(split.Entries)+1)
	var royalties float64
	for _, e := range split.Entries {
		share := amount * e.Percentage / 100
		payouts[e.RecipientID.String()] = share
		royalties += share
	}
	payouts["seller"] = amount - royalties
	return payouts
}
