package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"memberpass/internal/pass/models"
	"memberpass/internal/platform/kvstore"
	"memberpass/internal/sentinel"
	id "memberpass/pkg/domain"
)

// PendingClaimTTL is how long an unfinished mint holds a principal's slot
// before another mint may take it over.
const PendingClaimTTL = 2 * time.Minute

type slotState string

const (
	slotPending  slotState = "pending"
	slotActive   slotState = "active"
	slotReleased slotState = "released"
)

// passSlot is the document stored under a principal's pass key.
type passSlot struct {
	State     slotState          `json:"state"`
	ClaimedAt time.Time          `json:"claimed_at"`
	Pass      *models.MemberPass `json:"pass,omitempty"`
}

// reclaimable reports whether a new mint at time at may claim the slot.
func (p passSlot) reclaimable(at time.Time) bool {
	switch p.State {
	case slotReleased:
		return true
	case slotPending:
		return !at.Before(p.ClaimedAt.Add(PendingClaimTTL))
	default:
		return false
	}
}

// CredentialStore keeps at most one MemberPass per principal. A mint claims
// the slot with CreateIfAbsent, then completes or releases the claim with a
// compare-and-swap on the claimed version. Only completed slots are visible
// to readers.
type CredentialStore struct {
	kv kvstore.Store
}

func NewCredentialStore(kv kvstore.Store) *CredentialStore {
	return &CredentialStore{kv: kv}
}

// Claim reserves the principal's slot for a mint starting at at. Returns
// sentinel.ErrAlreadyUsed while a pass exists or another mint holds a live
// claim, whether or not the existing pass has expired.
func (s *CredentialStore) Claim(ctx context.Context, principal id.PrincipalID, at time.Time) (models.PassClaim, error) {
	key := PassKey(principal)
	raw, err := json.Marshal(passSlot{State: slotPending, ClaimedAt: at})
	if err != nil {
		return models.PassClaim{}, fmt.Errorf("encode pass claim: %w", err)
	}

	entry, err := s.kv.CreateIfAbsent(ctx, key, raw)
	if err == nil {
		return models.PassClaim{Principal: principal, ClaimedAt: at, Version: entry.Version}, nil
	}
	if !errors.Is(err, sentinel.ErrAlreadyUsed) {
		return models.PassClaim{}, fmt.Errorf("claim pass slot: %w", err)
	}

	existing, err := s.kv.Get(ctx, key)
	if err != nil {
		return models.PassClaim{}, fmt.Errorf("read pass slot: %w", err)
	}
	slot, err := decodeSlot(existing.Value)
	if err != nil {
		return models.PassClaim{}, err
	}
	if !slot.reclaimable(at) {
		return models.PassClaim{}, fmt.Errorf("claim pass slot: %w", sentinel.ErrAlreadyUsed)
	}
	entry, err = s.kv.CompareAndSwap(ctx, key, existing.Version, raw)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.PassClaim{}, fmt.Errorf("claim pass slot: %w", sentinel.ErrAlreadyUsed)
		}
		return models.PassClaim{}, fmt.Errorf("reclaim pass slot: %w", err)
	}
	return models.PassClaim{Principal: principal, ClaimedAt: at, Version: entry.Version}, nil
}

// Complete stores pass in the claimed slot. Returns sentinel.ErrAlreadyUsed
// if the claim was taken over.
func (s *CredentialStore) Complete(ctx context.Context, claim models.PassClaim, pass *models.MemberPass) error {
	raw, err := json.Marshal(passSlot{State: slotActive, ClaimedAt: claim.ClaimedAt, Pass: pass})
	if err != nil {
		return fmt.Errorf("encode member pass: %w", err)
	}
	if _, err := s.kv.CompareAndSwap(ctx, PassKey(claim.Principal), claim.Version, raw); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return fmt.Errorf("complete member pass: claim lost: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("complete member pass: %w", err)
	}
	return nil
}

// Release frees a claim that will not be completed. A claim that was already
// taken over is left alone.
func (s *CredentialStore) Release(ctx context.Context, claim models.PassClaim) error {
	raw, err := json.Marshal(passSlot{State: slotReleased, ClaimedAt: claim.ClaimedAt})
	if err != nil {
		return fmt.Errorf("encode pass release: %w", err)
	}
	_, err = s.kv.CompareAndSwap(ctx, PassKey(claim.Principal), claim.Version, raw)
	if err != nil && !errors.Is(err, sentinel.ErrConflict) {
		return fmt.Errorf("release pass slot: %w", err)
	}
	return nil
}

// Create claims and completes the owner's slot in one step.
func (s *CredentialStore) Create(ctx context.Context, pass *models.MemberPass) error {
	claim, err := s.Claim(ctx, pass.Owner, pass.MintedAt)
	if err != nil {
		return fmt.Errorf("create member pass: %w", err)
	}
	return s.Complete(ctx, claim, pass)
}

// FindByPrincipal returns sentinel.ErrNotFound for an empty, pending or
// released slot.
func (s *CredentialStore) FindByPrincipal(ctx context.Context, principal id.PrincipalID) (*models.MemberPass, error) {
	entry, err := s.kv.Get(ctx, PassKey(principal))
	if err != nil {
		return nil, fmt.Errorf("find member pass: %w", err)
	}
	slot, err := decodeSlot(entry.Value)
	if err != nil {
		return nil, err
	}
	if slot.State != slotActive || slot.Pass == nil {
		return nil, fmt.Errorf("find member pass: %s slot: %w", slot.State, sentinel.ErrNotFound)
	}
	return slot.Pass, nil
}

func decodeSlot(raw []byte) (passSlot, error) {
	var slot passSlot
	if err := json.Unmarshal(raw, &slot); err != nil {
		return passSlot{}, fmt.Errorf("decode pass slot: %w", err)
	}
	return slot, nil
}
