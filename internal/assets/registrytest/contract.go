// Package registrytest holds the behavioral contract for assets.Registry
// implementations.
package registrytest

import (
	"context"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/suite"

	"memberpass/internal/assets"
	"memberpass/internal/sentinel"
	id "memberpass/pkg/domain"
)

type ContractSuite struct {
	suite.Suite
	NewRegistry func() assets.Registry

	registry assets.Registry
	ctx      context.Context
	admin    id.PrincipalID
	owner    id.PrincipalID
}

func (s *ContractSuite) SetupTest() {
	s.ctx = context.Background()
	s.registry = s.NewRegistry()
	s.admin = id.PrincipalID(types.NewAccount().PublicKey)
	s.owner = id.PrincipalID(types.NewAccount().PublicKey)
}

func (s *ContractSuite) TestCreateAndMint() {
	groupID, err := s.registry.CreateAssetGroup(s.ctx, s.admin, "Movie Gold Pass", "https://example.com/gold.json")
	s.Require().NoError(err)
	s.False(groupID.IsNil())

	first, err := s.registry.MintAsset(s.ctx, groupID, s.owner, "Gold #0", "https://example.com/gold.json")
	s.Require().NoError(err)
	second, err := s.registry.MintAsset(s.ctx, groupID, s.owner, "Gold #1", "https://example.com/gold.json")
	s.Require().NoError(err)
	s.NotEqual(first, second, "every minted asset is uniquely identified")

	asset, err := s.registry.Asset(s.ctx, first)
	s.Require().NoError(err)
	s.Equal(groupID, asset.Group)
	s.Equal(s.owner, asset.Owner)
	s.Equal("Gold #0", asset.Label)
	s.False(asset.Burned)

	group, err := s.registry.Group(s.ctx, groupID)
	s.Require().NoError(err)
	s.Equal("Movie Gold Pass", group.Name)
	s.Equal(s.admin, group.Admin)
	s.Equal(uint64(2), group.Minted)
}

func (s *ContractSuite) TestMintIntoUnknownGroup() {
	_, err := s.registry.MintAsset(s.ctx, id.NewAssetGroupID(), s.owner, "Bronze #0", "uri")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ContractSuite) TestBurn() {
	groupID, err := s.registry.CreateAssetGroup(s.ctx, s.admin, "Movie Bronze Pass", "uri")
	s.Require().NoError(err)
	assetID, err := s.registry.MintAsset(s.ctx, groupID, s.owner, "Bronze #0", "uri")
	s.Require().NoError(err)

	s.Require().NoError(s.registry.BurnAsset(s.ctx, assetID))
	s.Require().NoError(s.registry.BurnAsset(s.ctx, assetID), "burning twice is a no-op")

	asset, err := s.registry.Asset(s.ctx, assetID)
	s.Require().NoError(err)
	s.True(asset.Burned)

	group, err := s.registry.Group(s.ctx, groupID)
	s.Require().NoError(err)
	s.Zero(group.Minted)

	s.ErrorIs(s.registry.BurnAsset(s.ctx, id.NewAssetID()), sentinel.ErrNotFound)
}

