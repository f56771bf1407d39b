package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "memberpass/pkg/domain"
	dErrors "memberpass/pkg/domain-errors"
)

type PassModelSuite struct {
	suite.Suite
	authority id.PrincipalID
	now       time.Time
}

func TestPassModelSuite(t *testing.T) {
	suite.Run(t, new(PassModelSuite))
}

func (s *PassModelSuite) SetupTest() {
	s.authority = id.PrincipalID(id.NewAssetID())
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *PassModelSuite) TestParseTier() {
	for raw, want := range map[int]Tier{0: TierBronze, 1: TierSilver, 2: TierGold} {
		got, err := ParseTier(raw)
		s.Require().NoError(err)
		s.Equal(want, got)
	}

	for _, raw := range []int{-1, 3, 5, 255} {
		_, err := ParseTier(raw)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTier), "raw=%d", raw)
	}
}

func (s *PassModelSuite) TestParseTierName() {
	got, err := ParseTierName("Gold")
	s.Require().NoError(err)
	s.Equal(TierGold, got)

	got, err = ParseTierName("1")
	s.Require().NoError(err)
	s.Equal(TierSilver, got)

	_, err = ParseTierName("platinum")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTier))
}

func (s *PassModelSuite) TestLabels() {
	s.Equal("Bronze #0", TierBronze.EditionLabel(0))
	s.Equal("Gold #41", TierGold.EditionLabel(41))
	s.Equal("Movie Silver Pass", TierSilver.GroupName("Movie"))
	s.True(TierGold.AtLeast(TierSilver))
	s.False(TierBronze.AtLeast(TierSilver))
	s.False(Tier(7).IsValid())
}

func (s *PassModelSuite) TestNewPlatformConfig() {
	s.Run("starts with minting closed and no groups", func() {
		cfg, err := NewPlatformConfig(s.authority, id.PrincipalID{}, [TierCount]uint64{10, 20, 30}, s.now)
		s.Require().NoError(err)
		s.Equal(s.authority, cfg.Treasury, "treasury defaults to the authority")
		s.Equal(MintClosedSentinel, cfg.MintOpenAt)
		s.True(cfg.FirstEditionAt.IsZero())
		s.False(cfg.MintOpen(s.now))
		for _, t := range Tiers {
			s.True(cfg.Tier(t).AssetGroup.IsNil())
			s.Zero(cfg.Tier(t).NextEdition)
		}
		s.Equal(uint64(20), cfg.Tier(TierSilver).Price)
	})

	s.Run("requires an authority", func() {
		_, err := NewPlatformConfig(id.PrincipalID{}, id.PrincipalID{}, [TierCount]uint64{}, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *PassModelSuite) TestMintWindow() {
	cfg, err := NewPlatformConfig(s.authority, s.authority, [TierCount]uint64{}, s.now)
	s.Require().NoError(err)

	cfg.OpenMint(s.now, s.now)
	s.True(cfg.MintOpen(s.now), "window opens at the timestamp itself")
	s.False(cfg.MintOpen(s.now.Add(-time.Second)))
	s.Equal(s.now, cfg.FirstEditionAt)

	cfg.OpenMint(s.now.Add(time.Hour), s.now)
	s.False(cfg.MintOpen(s.now), "a later timestamp re-closes the window")
}

func (s *PassModelSuite) TestAssignAssetGroup() {
	cfg, err := NewPlatformConfig(s.authority, s.authority, [TierCount]uint64{}, s.now)
	s.Require().NoError(err)
	group := id.NewAssetGroupID()

	s.Require().NoError(cfg.AssignAssetGroup(TierGold, group, "https://example.com/gold.json", s.now))
	s.Equal(group, cfg.Tier(TierGold).AssetGroup)

	err = cfg.AssignAssetGroup(TierGold, group, "", s.now)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	long := make([]byte, MaxMetadataURILength+1)
	for i := range long {
		long[i] = 'a'
	}
	err = cfg.AssignAssetGroup(TierGold, group, string(long), s.now)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	err = cfg.AssignAssetGroup(TierGold, id.AssetGroupID{}, "uri", s.now)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *PassModelSuite) TestEditionCounterAdvance() {
	next, err := EditionCounter{Tier: TierBronze, Next: 4, Version: 9}.Advance()
	s.Require().NoError(err)
	s.Equal(uint64(5), next.Next)
	s.Equal(uint64(9), next.Version, "version is owned by the store")

	_, err = EditionCounter{Tier: TierGold, Next: MaxEdition}.Advance()
	s.True(dErrors.HasCode(err, dErrors.CodeEditionOverflow))
}

func (s *PassModelSuite) TestPassExpiry() {
	pass := NewMemberPass(s.authority, TierSilver, 3, id.NewAssetID(), s.now)
	s.Equal(s.now.Add(2592000*time.Second), pass.ExpiresAt)

	s.False(pass.IsExpired(s.now))
	s.False(pass.IsExpired(pass.ExpiresAt.Add(-time.Nanosecond)))
	s.True(pass.IsExpired(pass.ExpiresAt), "the expiry instant is already expired")
	s.True(pass.IsExpired(pass.ExpiresAt.Add(time.Second)))
}
