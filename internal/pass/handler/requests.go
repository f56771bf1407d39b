package handler

import (
	"strings"

	id "memberpass/pkg/domain"
	dErrors "memberpass/pkg/domain-errors"
	"memberpass/pkg/platform/validation"
)

type InitializePlatformRequest struct {
	BronzePrice uint64 `json:"bronze_price"`
	SilverPrice uint64 `json:"silver_price"`
	GoldPrice   uint64 `json:"gold_price"`
}

type RegisterAssetGroupsRequest struct {
	BronzeURI string `json:"bronze_uri" validate:"required,max=256"`
	SilverURI string `json:"silver_uri" validate:"required,max=256"`
	GoldURI   string `json:"gold_uri" validate:"required,max=256"`
}

func (r *RegisterAssetGroupsRequest) Normalize() {
	if r == nil {
		return
	}
	r.BronzeURI = strings.TrimSpace(r.BronzeURI)
	r.SilverURI = strings.TrimSpace(r.SilverURI)
	r.GoldURI = strings.TrimSpace(r.GoldURI)
}

func (r *RegisterAssetGroupsRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}

type OpenMintRequest struct {
	MintOpenTimestamp *int64 `json:"mint_open_timestamp,omitempty" validate:"omitempty,min=0"`
}

func (r *OpenMintRequest) Validate() error {
	if r == nil {
		return nil
	}
	return validation.Validate(r)
}

type MintPassRequest struct {
	Tier       *int   `json:"tier" validate:"required"`
	AssetGroup string `json:"asset_group" validate:"required"`

	assetGroup id.AssetGroupID
}

func (r *MintPassRequest) Normalize() {
	if r == nil {
		return
	}
	r.AssetGroup = strings.TrimSpace(r.AssetGroup)
}

// Validate requires both fields and parses the asset group. The tier's range
// is checked by the service so that an out-of-range value reports
// invalid_tier.
func (r *MintPassRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.Validate(r); err != nil {
		return err
	}
	group, err := id.ParseAssetGroupID(r.AssetGroup)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "asset_group is not a valid address")
	}
	r.assetGroup = group
	return nil
}
