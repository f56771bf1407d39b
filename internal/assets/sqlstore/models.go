package sqlstore

import (
	"time"

	"memberpass/internal/assets"
	id "memberpass/pkg/domain"
)

type groupRecord struct {
	ID          string `gorm:"primarykey;size:44"`
	Admin       string `gorm:"index;size:44"`
	Name        string
	MetadataURI string `gorm:"size:256"`
	Minted      int64
	CreatedAt   time.Time
}

func (groupRecord) TableName() string {
	return "asset_group"
}

type assetRecord struct {
	ID          string `gorm:"primarykey;size:44"`
	GroupID     string `gorm:"index;size:44"`
	Owner       string `gorm:"index;size:44"`
	Label       string
	MetadataURI string `gorm:"size:256"`
	MintedAt    time.Time
	Burned      bool `gorm:"default:false"`
}

func (assetRecord) TableName() string {
	return "asset"
}

func (r *groupRecord) toDomain() (*assets.Group, error) {
	groupID, err := id.ParseAssetGroupID(r.ID)
	if err != nil {
		return nil, err
	}
	admin, err := id.ParsePrincipalID(r.Admin)
	if err != nil {
		return nil, err
	}
	return &assets.Group{
		ID:          groupID,
		Admin:       admin,
		Name:        r.Name,
		MetadataURI: r.MetadataURI,
		Minted:      uint64(r.Minted),
		CreatedAt:   r.CreatedAt,
	}, nil
}

func (r *assetRecord) toDomain() (*assets.Asset, error) {
	assetID, err := id.ParseAssetID(r.ID)
	if err != nil {
		return nil, err
	}
	groupID, err := id.ParseAssetGroupID(r.GroupID)
	if err != nil {
		return nil, err
	}
	owner, err := id.ParsePrincipalID(r.Owner)
	if err != nil {
		return nil, err
	}
	return &assets.Asset{
		ID:          assetID,
		Group:       groupID,
		Owner:       owner,
		Label:       r.Label,
		MetadataURI: r.MetadataURI,
		MintedAt:    r.MintedAt,
		Burned:      r.Burned,
	}, nil
}
