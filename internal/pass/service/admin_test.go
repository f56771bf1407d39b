package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/mock/gomock"

	"memberpass/internal/audit"
	"memberpass/internal/pass/models"
	id "memberpass/pkg/domain"
	dErrors "memberpass/pkg/domain-errors"
	"memberpass/pkg/testutil"
)

func (s *ServiceSuite) TestInitializePlatform() {
	s.Run("creates a closed platform with zeroed groups and counters", func() {
		cfg := s.initialize()

		s.Equal(s.authority, cfg.Authority)
		s.Equal(s.authority, cfg.Treasury, "treasury defaults to the authority")
		s.Equal(models.MintClosedSentinel, cfg.MintOpenAt)
		s.True(cfg.FirstEditionAt.IsZero())
		for _, t := range models.Tiers {
			s.True(cfg.Tiers[t].AssetGroup.IsNil())
			s.Zero(s.counter(t))
		}
		s.Equal(uint64(20), cfg.Tier(models.TierSilver).Price)
		s.Contains(s.auditActions(), string(audit.EventPlatformInitialized))
	})

	s.Run("second initialization conflicts", func() {
		_, err := s.service.InitializePlatform(context.Background(), testutil.NewPrincipal(), 1, 2, 3)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		cfg, err := s.service.Platform(context.Background())
		s.Require().NoError(err)
		s.Equal(s.authority, cfg.Authority, "original authority kept")
	})
}

func (s *ServiceSuite) TestInitializePlatformWithTreasury() {
	treasury := testutil.NewPrincipal()
	svc := s.newService(s.configs, s.credentials, s.registry, WithTreasury(treasury))

	cfg, err := svc.InitializePlatform(context.Background(), s.authority, 10, 20, 30)
	s.Require().NoError(err)
	s.Equal(treasury, cfg.Treasury)
}

func (s *ServiceSuite) TestInitializePlatformRequiresAuthority() {
	_, err := s.service.InitializePlatform(context.Background(), id.PrincipalID{}, 10, 20, 30)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *ServiceSuite) TestPlatformNotInitialized() {
	_, err := s.service.Platform(context.Background())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.OpenMint(context.Background(), s.authority, testutil.T0)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestRegisterAssetGroups() {
	s.initialize()

	s.Run("records all three groups", func() {
		s.expectGroupCreation()

		cfg, err := s.service.RegisterAssetGroups(context.Background(), s.authority, testURIs[0], testURIs[1], testURIs[2])
		s.Require().NoError(err)
		for _, t := range models.Tiers {
			s.Equal(s.groups[t], cfg.Tiers[t].AssetGroup)
			s.Equal(testURIs[t], cfg.Tiers[t].MetadataURI)
		}
		s.Contains(s.auditActions(), string(audit.EventAssetGroupsRegistered))
	})

	s.Run("re-registration re-points tiers and keeps counters", func() {
		s.Require().NoError(s.bumpCounter(models.TierGold, 7))
		newGold := id.NewAssetGroupID()
		s.registry.EXPECT().CreateAssetGroup(gomock.Any(), s.authority, gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.PrincipalID, name, _ string) (id.AssetGroupID, error) {
				if strings.Contains(name, "Gold") {
					return newGold, nil
				}
				return id.NewAssetGroupID(), nil
			}).Times(3)

		cfg, err := s.service.RegisterAssetGroups(context.Background(), s.authority, "a", "b", "c")
		s.Require().NoError(err)
		s.Equal(newGold, cfg.Tiers[models.TierGold].AssetGroup)
		s.Equal(uint64(7), cfg.Tiers[models.TierGold].NextEdition)
	})
}

func (s *ServiceSuite) TestRegisterAssetGroupsRejectsNonAuthority() {
	s.initialize()
	intruder := testutil.NewPrincipal()

	_, err := s.service.RegisterAssetGroups(context.Background(), intruder, "a", "b", "c")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.Contains(s.auditActions(), string(audit.EventAdminDenied))
}

func (s *ServiceSuite) TestRegisterAssetGroupsIsAllOrNothing() {
	before := s.initialize()
	s.registry.EXPECT().CreateAssetGroup(gomock.Any(), s.authority, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ id.PrincipalID, name, _ string) (id.AssetGroupID, error) {
			if strings.Contains(name, "Silver") {
				return id.AssetGroupID{}, errors.New("registry unavailable")
			}
			return id.NewAssetGroupID(), nil
		}).MaxTimes(3)

	_, err := s.service.RegisterAssetGroups(context.Background(), s.authority, "a", "b", "c")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	after, err := s.service.Platform(context.Background())
	s.Require().NoError(err)
	s.Equal(before.Version, after.Version, "config untouched")
	for _, t := range models.Tiers {
		s.True(after.Tiers[t].AssetGroup.IsNil())
	}
}

func (s *ServiceSuite) TestRegisterAssetGroupsValidatesURIs() {
	s.initialize()

	_, err := s.service.RegisterAssetGroups(context.Background(), s.authority, "a", "", "c")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.RegisterAssetGroups(context.Background(), s.authority, "a", "b", strings.Repeat("x", models.MaxMetadataURILength+1))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestOpenMint() {
	s.initialize()

	s.Run("authority opens the window", func() {
		cfg, err := s.service.OpenMint(context.Background(), s.authority, testutil.T0)
		s.Require().NoError(err)
		s.Equal(testutil.T0, cfg.MintOpenAt)
		s.Equal(testutil.T0, cfg.FirstEditionAt)
	})

	s.Run("a later call can close it again", func() {
		future := testutil.T0.Add(365 * 24 * time.Hour)
		cfg, err := s.service.OpenMint(context.Background(), s.authority, future)
		s.Require().NoError(err)
		s.False(cfg.MintOpen(testutil.T0.Add(time.Hour)))
	})

	s.Run("non-authority fails and leaves config unchanged", func() {
		before, err := s.service.Platform(context.Background())
		s.Require().NoError(err)

		_, err = s.service.OpenMint(context.Background(), testutil.NewPrincipal(), testutil.T0)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		after, err := s.service.Platform(context.Background())
		s.Require().NoError(err)
		s.Equal(before, after)
	})
}

func (s *ServiceSuite) TestOpenMintRetriesOnConfigConflict() {
	s.initialize()
	racy := &conflictingConfigs{ConfigStore: s.configs, saveConflicts: 2}
	svc := s.newService(racy, s.credentials, s.registry)

	cfg, err := svc.OpenMint(context.Background(), s.authority, testutil.T0)
	s.Require().NoError(err)
	s.Equal(testutil.T0, cfg.MintOpenAt)
	s.Equal(3, racy.saves)
}

func (s *ServiceSuite) TestOpenMintGivesUpAfterPersistentConflicts() {
	s.initialize()
	racy := &conflictingConfigs{ConfigStore: s.configs, saveConflicts: maxConfigAttempts}
	svc := s.newService(racy, s.credentials, s.registry)

	_, err := svc.OpenMint(context.Background(), s.authority, testutil.T0)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

// bumpCounter moves a tier's counter to next.
func (s *ServiceSuite) bumpCounter(t models.Tier, next uint64) error {
	current, err := s.configs.Counter(context.Background(), t)
	if err != nil {
		return err
	}
	_, err = s.configs.SwapCounter(context.Background(), current, models.EditionCounter{Tier: t, Next: next})
	return err
}
