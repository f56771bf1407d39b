package models

import (
	"fmt"
	"strings"

	dErrors "memberpass/pkg/domain-errors"
)

// Tier is the membership level. It is a closed enumeration: the only valid
// values are the three constants below, and every switch over a Tier covers them.
type Tier uint8

const (
	TierBronze Tier = iota
	TierSilver
	TierGold
)

// TierCount is the number of tiers; per-tier settings are indexed by Tier.
const TierCount = 3

// Tiers lists every tier in ascending order.
var Tiers = [TierCount]Tier{TierBronze, TierSilver, TierGold}

// ParseTier validates a raw tier number received at a trust boundary.
func ParseTier(raw int) (Tier, error) {
	if raw < 0 || raw >= TierCount {
		return 0, ErrInvalidTier(raw)
	}
	return Tier(raw), nil
}

// ParseTierName accepts either the numeric form ("1") or the name ("silver").
func ParseTierName(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "bronze":
		return TierBronze, nil
	case "1", "silver":
		return TierSilver, nil
	case "2", "gold":
		return TierGold, nil
	}
	return 0, dErrors.New(dErrors.CodeInvalidTier, fmt.Sprintf("invalid tier %q, must be 0, 1 or 2", s))
}

func (t Tier) IsValid() bool {
	return t < TierCount
}

// String returns the display name used in asset labels and group names.
func (t Tier) String() string {
	switch t {
	case TierBronze:
		return "Bronze"
	case TierSilver:
		return "Silver"
	case TierGold:
		return "Gold"
	default:
		return fmt.Sprintf("Tier(%d)", uint8(t))
	}
}

// AtLeast reports whether t meets the minimum tier.
func (t Tier) AtLeast(min Tier) bool {
	return t >= min
}

// EditionLabel is the human-readable name of the asset minted for an edition,
// e.g. "Silver #12".
func (t Tier) EditionLabel(edition uint64) string {
	return fmt.Sprintf("%s #%d", t, edition)
}

// GroupName is the display name of the tier's asset group.
func (t Tier) GroupName(platform string) string {
	return fmt.Sprintf("%s %s Pass", platform, t)
}
