// Package assets is the registry collaborator that issues unique collectible
// assets into per-tier asset groups.
package assets

import (
	"context"
	"time"

	id "memberpass/pkg/domain"
)

// Group is a collection minted assets belong to.
type Group struct {
	ID          id.AssetGroupID
	Admin       id.PrincipalID
	Name        string
	MetadataURI string
	Minted      uint64
	CreatedAt   time.Time
}

// Asset is a single issued, uniquely identified asset.
type Asset struct {
	ID          id.AssetID
	Group       id.AssetGroupID
	Owner       id.PrincipalID
	Label       string
	MetadataURI string
	MintedAt    time.Time
	Burned      bool
}

// Registry creates groups and mints assets into them. A minted asset ID is
// never reused, even after the asset is burned. Lookups of unknown IDs fail
// with sentinel.ErrNotFound.
type Registry interface {
	CreateAssetGroup(ctx context.Context, admin id.PrincipalID, name, metadataURI string) (id.AssetGroupID, error)
	MintAsset(ctx context.Context, group id.AssetGroupID, owner id.PrincipalID, label, metadataURI string) (id.AssetID, error)
	// BurnAsset retires an asset. Burning twice is a no-op.
	BurnAsset(ctx context.Context, asset id.AssetID) error
	Group(ctx context.Context, group id.AssetGroupID) (*Group, error)
	Asset(ctx context.Context, asset id.AssetID) (*Asset, error)
}
