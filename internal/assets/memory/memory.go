package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"memberpass/internal/assets"
	"memberpass/internal/sentinel"
	id "memberpass/pkg/domain"
)

type InMemory struct {
	mu     sync.RWMutex
	groups map[id.AssetGroupID]*assets.Group
	assets map[id.AssetID]*assets.Asset
	now    func() time.Time
}

func New() *InMemory {
	return &InMemory{
		groups: make(map[id.AssetGroupID]*assets.Group),
		assets: make(map[id.AssetID]*assets.Asset),
		now:    time.Now,
	}
}

func (r *InMemory) CreateAssetGroup(_ context.Context, admin id.PrincipalID, name, metadataURI string) (id.AssetGroupID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	groupID := id.NewAssetGroupID()
	r.groups[groupID] = &assets.Group{
		ID:          groupID,
		Admin:       admin,
		Name:        name,
		MetadataURI: metadataURI,
		CreatedAt:   r.now(),
	}
	return groupID, nil
}

func (r *InMemory) MintAsset(_ context.Context, group id.AssetGroupID, owner id.PrincipalID, label, metadataURI string) (id.AssetID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[group]
	if !ok {
		return id.AssetID{}, fmt.Errorf("asset group %s: %w", group, sentinel.ErrNotFound)
	}
	assetID := id.NewAssetID()
	r.assets[assetID] = &assets.Asset{
		ID:          assetID,
		Group:       group,
		Owner:       owner,
		Label:       label,
		MetadataURI: metadataURI,
		MintedAt:    r.now(),
	}
	g.Minted++
	return assetID, nil
}

func (r *InMemory) BurnAsset(_ context.Context, asset id.AssetID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[asset]
	if !ok {
		return fmt.Errorf("asset %s: %w", asset, sentinel.ErrNotFound)
	}
	if a.Burned {
		return nil
	}
	a.Burned = true
	if g, ok := r.groups[a.Group]; ok && g.Minted > 0 {
		g.Minted--
	}
	return nil
}

func (r *InMemory) Group(_ context.Context, group id.AssetGroupID) (*assets.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[group]
	if !ok {
		return nil, fmt.Errorf("asset group %s: %w", group, sentinel.ErrNotFound)
	}
	cp := *g
	return &cp, nil
}

func (r *InMemory) Asset(_ context.Context, asset id.AssetID) (*assets.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[asset]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", asset, sentinel.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}
