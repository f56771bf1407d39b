package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"memberpass/internal/audit"
	"memberpass/internal/pass/models"
	"memberpass/internal/sentinel"
	id "memberpass/pkg/domain"
	dErrors "memberpass/pkg/domain-errors"
	"memberpass/pkg/platform/middleware/requesttime"
	"memberpass/pkg/platform/tracer"
)

// InitializePlatform creates the platform configuration with zeroed asset
// groups, edition counters at 0 and minting closed.
func (s *Service) InitializePlatform(ctx context.Context, authority id.PrincipalID, bronzePrice, silverPrice, goldPrice uint64) (cfg *models.PlatformConfig, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanInitializePlatform,
		tracer.String(tracer.AttrPrincipal, authority.String()),
	)
	defer func() {
		span.End(err)
		s.incrementAdmin("initialize_platform", err)
	}()

	treasury := s.treasury
	if treasury.IsNil() {
		treasury = authority
	}
	cfg, err = models.NewPlatformConfig(authority, treasury,
		[models.TierCount]uint64{bronzePrice, silverPrice, goldPrice},
		requesttime.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.config.Create(ctx, cfg); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "platform already initialized")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create platform config")
	}

	s.logAudit(ctx, audit.EventPlatformInitialized,
		"principal", authority,
		"treasury", treasury,
		"bronze_price", bronzePrice,
		"silver_price", silverPrice,
		"gold_price", goldPrice,
	)
	return cfg, nil
}

// RegisterAssetGroups creates one asset group per tier and points the
// configuration at them. The configuration changes only when all three groups
// were created. Calling it again re-points the tiers; counters are untouched.
func (s *Service) RegisterAssetGroups(ctx context.Context, authority id.PrincipalID, bronzeURI, silverURI, goldURI string) (cfg *models.PlatformConfig, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanRegisterAssetGroups,
		tracer.String(tracer.AttrPrincipal, authority.String()),
	)
	defer func() {
		span.End(err)
		s.incrementAdmin("register_asset_groups", err)
	}()

	uris := [models.TierCount]string{bronzeURI, silverURI, goldURI}
	for _, uri := range uris {
		if err := models.ValidateMetadataURI(uri); err != nil {
			return nil, err
		}
	}

	// fail before creating groups nobody can use
	current, err := s.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	if !current.IsAuthority(authority) {
		s.logAudit(ctx, audit.EventAdminDenied, "principal", authority, "operation", "register_asset_groups")
		return nil, models.ErrUnauthorized()
	}

	var groups [models.TierCount]id.AssetGroupID
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range models.Tiers {
		g.Go(func() error {
			group, err := s.assets.CreateAssetGroup(gctx, authority, t.GroupName(s.platformName), uris[t])
			if err != nil {
				return fmt.Errorf("create %s asset group: %w", t, err)
			}
			groups[t] = group
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create asset groups")
	}

	cfg, err = s.updateConfig(ctx, span, authority, "register_asset_groups", func(cfg *models.PlatformConfig, now time.Time) error {
		for _, t := range models.Tiers {
			if err := cfg.AssignAssetGroup(t, groups[t], uris[t], now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventAssetGroupsRegistered,
		"principal", authority,
		"bronze_group", groups[models.TierBronze],
		"silver_group", groups[models.TierSilver],
		"gold_group", groups[models.TierGold],
	)
	return cfg, nil
}

// OpenMint sets the mint window start. A future timestamp closes minting
// again until that time.
func (s *Service) OpenMint(ctx context.Context, authority id.PrincipalID, at time.Time) (cfg *models.PlatformConfig, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanOpenMint,
		tracer.String(tracer.AttrPrincipal, authority.String()),
	)
	defer func() {
		span.End(err)
		s.incrementAdmin("open_mint", err)
	}()

	at = at.UTC()
	cfg, err = s.updateConfig(ctx, span, authority, "open_mint", func(cfg *models.PlatformConfig, now time.Time) error {
		cfg.OpenMint(at, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventMintOpened,
		"principal", authority,
		"mint_open_at", at.Format(time.RFC3339),
	)
	return cfg, nil
}

// Platform returns the configuration with current edition counters.
func (s *Service) Platform(ctx context.Context) (*models.PlatformConfig, error) {
	return s.loadConfig(ctx)
}

// updateConfig runs a read-modify-write against the configuration, retrying
// on a version conflict. Authority is checked against every read.
func (s *Service) updateConfig(ctx context.Context, span tracer.Span, authority id.PrincipalID, operation string, mutate func(cfg *models.PlatformConfig, now time.Time) error) (*models.PlatformConfig, error) {
	now := requesttime.Now(ctx)
	for attempt := 1; attempt <= maxConfigAttempts; attempt++ {
		cfg, err := s.loadConfig(ctx)
		if err != nil {
			return nil, err
		}
		if !cfg.IsAuthority(authority) {
			s.logAudit(ctx, audit.EventAdminDenied, "principal", authority, "operation", operation)
			return nil, models.ErrUnauthorized()
		}
		if err := mutate(cfg, now); err != nil {
			return nil, err
		}

		err = s.config.Save(ctx, cfg)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save platform config")
		}
		span.AddEvent(tracer.EventConfigConflict, tracer.Int64(tracer.AttrAttempts, int64(attempt)))
		if s.logger != nil {
			s.logger.DebugContext(ctx, "platform config changed concurrently, retrying",
				"operation", operation,
				"attempt", attempt,
			)
		}
	}
	return nil, dErrors.New(dErrors.CodeConflict, "platform config is being modified concurrently, try again")
}
