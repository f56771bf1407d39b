package models

import (
	"math"
	"time"

	id "memberpass/pkg/domain"
	dErrors "memberpass/pkg/domain-errors"
)

const (
	// PassValidity is the fixed lifetime of a member pass.
	PassValidity = 30 * 24 * time.Hour

	// MaxMetadataURILength bounds asset metadata URIs.
	MaxMetadataURILength = 256

	// MaxEdition is the last edition number a tier can hand out; the counter
	// can never advance past it.
	MaxEdition = math.MaxUint64
)

// MintClosedSentinel is the far-future instant (3000-01-01T00:00:00Z) a fresh
// platform uses as its mint window so minting stays closed until opened.
var MintClosedSentinel = time.Unix(32503680000, 0).UTC()

// TierSettings is the per-tier slice of the platform configuration.
type TierSettings struct {
	Price       uint64          `json:"price"`
	AssetGroup  id.AssetGroupID `json:"asset_group"`
	MetadataURI string          `json:"metadata_uri"`
	// NextEdition is persisted in its own counter record and filled in on read.
	NextEdition uint64 `json:"-"`
}

// PlatformConfig is the deployment-wide singleton.
type PlatformConfig struct {
	Authority      id.PrincipalID          `json:"authority"`
	Treasury       id.PrincipalID          `json:"treasury"`
	Tiers          [TierCount]TierSettings `json:"tiers"`
	MintOpenAt     time.Time               `json:"mint_open_at"`
	FirstEditionAt time.Time               `json:"first_edition_at"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`

	// Version is the store version this value was read at; writes are
	// compare-and-swapped against it.
	Version uint64 `json:"-"`
}

// NewPlatformConfig builds a fresh configuration with the mint window closed
// and no asset groups registered.
func NewPlatformConfig(authority, treasury id.PrincipalID, prices [TierCount]uint64, now time.Time) (*PlatformConfig, error) {
	if authority.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "platform authority is required")
	}
	if treasury.IsNil() {
		treasury = authority
	}
	cfg := &PlatformConfig{
		Authority:  authority,
		Treasury:   treasury,
		MintOpenAt: MintClosedSentinel,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, t := range Tiers {
		cfg.Tiers[t].Price = prices[t]
	}
	return cfg, nil
}

// Tier returns the settings for a validated tier.
func (c *PlatformConfig) Tier(t Tier) TierSettings {
	return c.Tiers[t]
}

// IsAuthority reports whether the caller administers the platform.
func (c *PlatformConfig) IsAuthority(caller id.PrincipalID) bool {
	return !caller.IsNil() && c.Authority == caller
}

// MintOpen reports whether the mint window has opened at now.
func (c *PlatformConfig) MintOpen(now time.Time) bool {
	return !now.Before(c.MintOpenAt)
}

// OpenMint moves the mint window. It overwrites any previous window, so an
// authority can also re-close minting by passing a future instant.
func (c *PlatformConfig) OpenMint(at, now time.Time) {
	c.MintOpenAt = at
	c.FirstEditionAt = at
	c.UpdatedAt = now
}

// AssignAssetGroup points a tier at its asset group and metadata URI.
func (c *PlatformConfig) AssignAssetGroup(t Tier, group id.AssetGroupID, uri string, now time.Time) error {
	if group.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "asset group is required")
	}
	if err := ValidateMetadataURI(uri); err != nil {
		return err
	}
	c.Tiers[t].AssetGroup = group
	c.Tiers[t].MetadataURI = uri
	c.UpdatedAt = now
	return nil
}

func ValidateMetadataURI(uri string) error {
	if uri == "" {
		return dErrors.New(dErrors.CodeValidation, "metadata URI is required")
	}
	if len(uri) > MaxMetadataURILength {
		return dErrors.New(dErrors.CodeValidation, "metadata URI must be 256 characters or less")
	}
	return nil
}

// EditionCounter is the versioned next-edition value for one tier.
type EditionCounter struct {
	Tier    Tier
	Next    uint64
	Version uint64
}

// Advance returns the counter after handing out edition c.Next, using
// overflow-checked arithmetic.
func (c EditionCounter) Advance() (EditionCounter, error) {
	if c.Next == MaxEdition {
		return c, ErrEditionOverflow(c.Tier)
	}
	next := c
	next.Next = c.Next + 1
	return next, nil
}

// MemberPass is the per-principal credential. It is written once at mint time
// and never mutated; expiry is evaluated on read.
type MemberPass struct {
	Owner      id.PrincipalID `json:"owner"`
	Tier       Tier           `json:"tier"`
	MintedAt   time.Time      `json:"minted_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
	Edition    uint64         `json:"edition"`
	BoundAsset id.AssetID     `json:"bound_asset"`
}

// PassClaim holds a principal's credential slot while a mint is in flight.
// Version is the slot version the claim was written at.
type PassClaim struct {
	Principal id.PrincipalID
	ClaimedAt time.Time
	Version   uint64
}

// NewMemberPass builds the credential for a completed mint.
func NewMemberPass(owner id.PrincipalID, tier Tier, edition uint64, asset id.AssetID, now time.Time) *MemberPass {
	return &MemberPass{
		Owner:      owner,
		Tier:       tier,
		MintedAt:   now,
		ExpiresAt:  now.Add(PassValidity),
		Edition:    edition,
		BoundAsset: asset,
	}
}

// IsExpired reports whether the pass is no longer valid at now. The expiry
// instant itself is already expired.
func (p *MemberPass) IsExpired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
