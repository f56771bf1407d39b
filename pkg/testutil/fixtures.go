package testutil

import (
	"time"

	"github.com/blocto/solana-go-sdk/types"

	"memberpass/internal/pass/models"
	id "memberpass/pkg/domain"
)

// T0 is a fixed mint-window start for deterministic tests.
var T0 = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

// NewPrincipal returns a fresh random principal identity.
func NewPrincipal() id.PrincipalID {
	return id.PrincipalID(types.NewAccount().PublicKey)
}

// NewPrincipals returns n distinct principals.
func NewPrincipals(n int) []id.PrincipalID {
	out := make([]id.PrincipalID, n)
	for i := range out {
		out[i] = NewPrincipal()
	}
	return out
}

// MemberPassBuilder provides a fluent interface for building test passes.
type MemberPassBuilder struct {
	owner   id.PrincipalID
	tier    models.Tier
	edition uint64
	asset   id.AssetID
	minted  time.Time
}

// NewMemberPassBuilder defaults to a Bronze pass minted at T0.
func NewMemberPassBuilder() *MemberPassBuilder {
	return &MemberPassBuilder{
		owner:  NewPrincipal(),
		tier:   models.TierBronze,
		asset:  id.NewAssetID(),
		minted: T0,
	}
}

func (b *MemberPassBuilder) WithOwner(owner id.PrincipalID) *MemberPassBuilder {
	b.owner = owner
	return b
}

func (b *MemberPassBuilder) WithTier(tier models.Tier) *MemberPassBuilder {
	b.tier = tier
	return b
}

func (b *MemberPassBuilder) WithEdition(edition uint64) *MemberPassBuilder {
	b.edition = edition
	return b
}

func (b *MemberPassBuilder) MintedAt(t time.Time) *MemberPassBuilder {
	b.minted = t
	return b
}

func (b *MemberPassBuilder) Build() *models.MemberPass {
	return models.NewMemberPass(b.owner, b.tier, b.edition, b.asset, b.minted)
}
