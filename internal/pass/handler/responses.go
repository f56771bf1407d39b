package handler

import (
	"memberpass/internal/pass/models"
)

type TierResponse struct {
	Tier        int    `json:"tier"`
	Name        string `json:"name"`
	Price       uint64 `json:"price"`
	AssetGroup  string `json:"asset_group,omitempty"`
	MetadataURI string `json:"metadata_uri,omitempty"`
	NextEdition uint64 `json:"next_edition"`
}

type PlatformResponse struct {
	Authority             string         `json:"authority"`
	Treasury              string         `json:"treasury"`
	MintOpenTimestamp     int64          `json:"mint_open_timestamp"`
	FirstEditionTimestamp int64          `json:"first_edition_timestamp"`
	Tiers                 []TierResponse `json:"tiers"`
}

type PassResponse struct {
	Owner      string `json:"owner"`
	Tier       int    `json:"tier"`
	TierName   string `json:"tier_name"`
	Edition    uint64 `json:"edition"`
	Label      string `json:"label"`
	BoundAsset string `json:"bound_asset"`
	MintedAt   int64  `json:"minted_at"`
	ExpiresAt  int64  `json:"expires_at"`
	Expired    bool   `json:"expired"`
}

type VerifyResponse struct {
	Principal string `json:"principal"`
	Tier      int    `json:"tier"`
	TierName  string `json:"tier_name"`
	Valid     bool   `json:"valid"`
}

type AccessResponse struct {
	Principal    string `json:"principal"`
	Tier         string `json:"tier"`
	RequiredTier string `json:"required_tier"`
	Granted      bool   `json:"granted"`
}

func toPlatformResponse(cfg *models.PlatformConfig) *PlatformResponse {
	resp := &PlatformResponse{
		Authority:         cfg.Authority.String(),
		Treasury:          cfg.Treasury.String(),
		MintOpenTimestamp: cfg.MintOpenAt.Unix(),
		Tiers:             make([]TierResponse, 0, models.TierCount),
	}
	if !cfg.FirstEditionAt.IsZero() {
		resp.FirstEditionTimestamp = cfg.FirstEditionAt.Unix()
	}
	for _, t := range models.Tiers {
		settings := cfg.Tier(t)
		tr := TierResponse{
			Tier:        int(t),
			Name:        t.String(),
			Price:       settings.Price,
			MetadataURI: settings.MetadataURI,
			NextEdition: settings.NextEdition,
		}
		if !settings.AssetGroup.IsNil() {
			tr.AssetGroup = settings.AssetGroup.String()
		}
		resp.Tiers = append(resp.Tiers, tr)
	}
	return resp
}

func toPassResponse(pass *models.MemberPass) *PassResponse {
	return &PassResponse{
		Owner:      pass.Owner.String(),
		Tier:       int(pass.Tier),
		TierName:   pass.Tier.String(),
		Edition:    pass.Edition,
		Label:      pass.Tier.EditionLabel(pass.Edition),
		BoundAsset: pass.BoundAsset.String(),
		MintedAt:   pass.MintedAt.Unix(),
		ExpiresAt:  pass.ExpiresAt.Unix(),
	}
}
