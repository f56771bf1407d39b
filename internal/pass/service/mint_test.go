package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"memberpass/internal/audit"
	"memberpass/internal/pass/models"
	"memberpass/internal/pass/service/mocks"
	"memberpass/internal/sentinel"
	id "memberpass/pkg/domain"
	dErrors "memberpass/pkg/domain-errors"
	"memberpass/pkg/testutil"
)

func (s *ServiceSuite) TestMintPassSuccess() {
	s.ready()
	alice := testutil.NewPrincipal()
	asset := id.NewAssetID()
	mintAt := testutil.T0.Add(time.Second)

	gomock.InOrder(
		s.ledger.EXPECT().Transfer(gomock.Any(), alice, s.authority, uint64(30)).Return(nil),
		s.registry.EXPECT().MintAsset(gomock.Any(), s.groups[models.TierGold], alice, "Gold #0", testURIs[models.TierGold]).Return(asset, nil),
	)

	pass, err := s.service.MintPass(at(mintAt), alice, int(models.TierGold), s.groups[models.TierGold])
	s.Require().NoError(err)

	s.Equal(alice, pass.Owner)
	s.Equal(models.TierGold, pass.Tier)
	s.Equal(uint64(0), pass.Edition)
	s.Equal(asset, pass.BoundAsset)
	s.Equal(mintAt, pass.MintedAt)
	s.Equal(mintAt.Add(models.PassValidity), pass.ExpiresAt)
	s.Equal(uint64(1), s.counter(models.TierGold))
	s.Zero(s.counter(models.TierBronze), "other tiers untouched")

	stored, err := s.service.GetPass(context.Background(), alice)
	s.Require().NoError(err)
	s.Equal(pass, stored)

	s.Contains(s.auditActions(), string(audit.EventPassMinted))
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.PassesMinted.WithLabelValues("Gold")))
}

func (s *ServiceSuite) TestMintPassPaysTreasury() {
	treasury := testutil.NewPrincipal()
	s.service = s.newService(s.configs, s.credentials, s.registry, WithTreasury(treasury))
	s.ready()
	alice := testutil.NewPrincipal()

	s.ledger.EXPECT().Transfer(gomock.Any(), alice, treasury, uint64(10)).Return(nil)
	s.registry.EXPECT().MintAsset(gomock.Any(), gomock.Any(), alice, "Bronze #0", gomock.Any()).Return(id.NewAssetID(), nil)

	_, err := s.service.MintPass(at(testutil.T0), alice, int(models.TierBronze), s.groups[models.TierBronze])
	s.Require().NoError(err)
}

// Validation failures happen before payment: the mocks expect no calls, so
// any ledger or registry interaction fails the test.
func (s *ServiceSuite) TestMintPassValidationHasNoSideEffects() {
	s.ready()
	alice := testutil.NewPrincipal()
	open := at(testutil.T0.Add(time.Minute))

	cases := []struct {
		name  string
		ctx   context.Context
		tier  int
		group id.AssetGroupID
		code  dErrors.Code
	}{
		{"tier above range", open, 5, s.groups[0], dErrors.CodeInvalidTier},
		{"negative tier", open, -1, s.groups[0], dErrors.CodeInvalidTier},
		{"before mint window", at(testutil.T0.Add(-time.Second)), 0, s.groups[0], dErrors.CodeMintingNotOpen},
		{"group of another tier", open, 0, s.groups[models.TierGold], dErrors.CodeInvalidCollection},
		{"unknown group", open, 1, id.NewAssetGroupID(), dErrors.CodeInvalidCollection},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.service.MintPass(tc.ctx, alice, tc.tier, tc.group)
			s.Require().Error(err)
			s.Equal(tc.code, dErrors.CodeOf(err))
		})
	}

	for _, t := range models.Tiers {
		s.Zero(s.counter(t))
	}
	_, err := s.service.GetPass(context.Background(), alice)
	s.True(dErrors.HasCode(err, dErrors.CodePassNotFound))
	s.Equal(2.0, promtestutil.ToFloat64(s.metrics.MintFailures.WithLabelValues("invalid_collection")))
	s.Equal(2.0, promtestutil.ToFloat64(s.metrics.MintFailures.WithLabelValues("invalid_tier")))
}

func (s *ServiceSuite) TestMintPassBeforeGroupsRegistered() {
	s.initialize()
	_, err := s.service.OpenMint(context.Background(), s.authority, testutil.T0)
	s.Require().NoError(err)

	_, err = s.service.MintPass(at(testutil.T0), testutil.NewPrincipal(), 0, id.AssetGroupID{})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidCollection))
}

func (s *ServiceSuite) TestMintPassRejectsExistingPass() {
	s.ready()
	alice := testutil.NewPrincipal()
	existing := testutil.NewMemberPassBuilder().WithOwner(alice).MintedAt(testutil.T0.Add(-60 * 24 * time.Hour)).Build()
	s.Require().NoError(s.credentials.Create(context.Background(), existing))

	// the slot stays occupied after expiry
	_, err := s.service.MintPass(at(testutil.T0), alice, 0, s.groups[0])
	s.True(dErrors.HasCode(err, dErrors.CodePassAlreadyActive))
	s.Zero(s.counter(models.TierBronze))
}

func (s *ServiceSuite) TestMintPassInsufficientFunds() {
	s.ready()
	alice := testutil.NewPrincipal()
	s.ledger.EXPECT().Transfer(gomock.Any(), alice, s.authority, uint64(20)).
		Return(fmt.Errorf("transfer 20: %w", sentinel.ErrInsufficientFunds))

	_, err := s.service.MintPass(at(testutil.T0), alice, int(models.TierSilver), s.groups[models.TierSilver])
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
	s.Zero(s.counter(models.TierSilver))
	_, err = s.service.GetPass(context.Background(), alice)
	s.True(dErrors.HasCode(err, dErrors.CodePassNotFound))
}

func (s *ServiceSuite) TestMintPassEditionOverflowIsCheckedBeforePayment() {
	s.ready()
	s.Require().NoError(s.bumpCounter(models.TierBronze, models.MaxEdition))

	_, err := s.service.MintPass(at(testutil.T0), testutil.NewPrincipal(), 0, s.groups[0])
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeEditionOverflow))
	s.Equal(uint64(models.MaxEdition), s.counter(models.TierBronze))
}

func (s *ServiceSuite) TestMintPassCompensatesFailedAssetMint() {
	s.ready()
	alice := testutil.NewPrincipal()

	gomock.InOrder(
		s.ledger.EXPECT().Transfer(gomock.Any(), alice, s.authority, uint64(10)).Return(nil),
		s.registry.EXPECT().MintAsset(gomock.Any(), s.groups[0], alice, "Bronze #0", gomock.Any()).
			Return(id.AssetID{}, errors.New("registry down")),
		s.ledger.EXPECT().Transfer(gomock.Any(), s.authority, alice, uint64(10)).Return(nil),
	)

	_, err := s.service.MintPass(at(testutil.T0), alice, 0, s.groups[0])
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Zero(s.counter(models.TierBronze), "edition released")
	_, err = s.service.GetPass(context.Background(), alice)
	s.True(dErrors.HasCode(err, dErrors.CodePassNotFound), "pending slot is not visible")
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.Compensations.WithLabelValues("release_slot")))
	s.Contains(s.auditActions(), string(audit.EventMintCompensated))
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.Compensations.WithLabelValues("refund")))
	s.Equal(0.0, promtestutil.ToFloat64(s.metrics.CompensationFailures.WithLabelValues("refund")))
}

func (s *ServiceSuite) TestMintPassLostSlotRaceOnlyRefunds() {
	s.ready()
	alice := testutil.NewPrincipal()
	svc := s.newService(s.configs, &racingCredentials{CredentialStore: s.credentials}, s.registry)

	gomock.InOrder(
		s.ledger.EXPECT().Transfer(gomock.Any(), alice, s.authority, uint64(10)).Return(nil),
		s.ledger.EXPECT().Transfer(gomock.Any(), s.authority, alice, uint64(10)).Return(nil),
	)

	_, err := svc.MintPass(at(testutil.T0), alice, 0, s.groups[0])
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePassAlreadyActive))
	s.Zero(s.counter(models.TierBronze), "the losing request never reserves an edition")
	s.Equal(0.0, promtestutil.ToFloat64(s.metrics.Compensations.WithLabelValues("release_edition")))
}

func (s *ServiceSuite) TestMintPassCompensatesFailedCompletion() {
	s.ready()
	alice := testutil.NewPrincipal()
	asset := id.NewAssetID()
	broken := &failingCompletion{CredentialStore: s.credentials, err: errors.New("store down")}
	svc := s.newService(s.configs, broken, s.registry)

	gomock.InOrder(
		s.ledger.EXPECT().Transfer(gomock.Any(), alice, s.authority, uint64(10)).Return(nil),
		s.registry.EXPECT().MintAsset(gomock.Any(), s.groups[0], alice, "Bronze #0", gomock.Any()).Return(asset, nil),
		s.registry.EXPECT().BurnAsset(gomock.Any(), asset).Return(nil),
		s.ledger.EXPECT().Transfer(gomock.Any(), s.authority, alice, uint64(10)).Return(nil),
	)

	_, err := svc.MintPass(at(testutil.T0), alice, 0, s.groups[0])
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Zero(s.counter(models.TierBronze), "edition released")
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.Compensations.WithLabelValues("release_slot")))

	_, err = s.credentials.Claim(context.Background(), alice, testutil.T0)
	s.NoError(err, "released slot can be claimed again")
}

func (s *ServiceSuite) TestMintPassTakenOverClaimIsAlreadyActive() {
	s.ready()
	alice := testutil.NewPrincipal()
	asset := id.NewAssetID()
	svc := s.newService(s.configs, &failingCompletion{CredentialStore: s.credentials, err: sentinel.ErrAlreadyUsed}, s.registry)

	gomock.InOrder(
		s.ledger.EXPECT().Transfer(gomock.Any(), alice, s.authority, uint64(10)).Return(nil),
		s.registry.EXPECT().MintAsset(gomock.Any(), s.groups[0], alice, "Bronze #0", gomock.Any()).Return(asset, nil),
		s.registry.EXPECT().BurnAsset(gomock.Any(), asset).Return(nil),
		s.ledger.EXPECT().Transfer(gomock.Any(), s.authority, alice, uint64(10)).Return(nil),
	)

	_, err := svc.MintPass(at(testutil.T0), alice, 0, s.groups[0])
	s.True(dErrors.HasCode(err, dErrors.CodePassAlreadyActive))
	s.Zero(s.counter(models.TierBronze))
}

func (s *ServiceSuite) TestMintPassWithoutBurnerLeavesAsset() {
	s.ready()
	alice := testutil.NewPrincipal()
	plain := mocks.NewMockAssetRegistry(s.ctrl)
	svc := s.newService(s.configs, &failingCompletion{CredentialStore: s.credentials, err: errors.New("store down")}, plain)

	s.ledger.EXPECT().Transfer(gomock.Any(), alice, s.authority, uint64(10)).Return(nil)
	plain.EXPECT().MintAsset(gomock.Any(), gomock.Any(), alice, gomock.Any(), gomock.Any()).Return(id.NewAssetID(), nil)
	s.ledger.EXPECT().Transfer(gomock.Any(), s.authority, alice, uint64(10)).Return(nil)

	_, err := svc.MintPass(at(testutil.T0), alice, 0, s.groups[0])
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Zero(s.counter(models.TierBronze))
}

func (s *ServiceSuite) TestMintPassCompensationFailureKeepsOriginalError() {
	s.ready()
	alice := testutil.NewPrincipal()

	s.ledger.EXPECT().Transfer(gomock.Any(), alice, s.authority, uint64(10)).Return(nil)
	s.registry.EXPECT().MintAsset(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(id.AssetID{}, errors.New("registry down"))
	s.ledger.EXPECT().Transfer(gomock.Any(), s.authority, alice, uint64(10)).Return(errors.New("ledger down"))

	_, err := s.service.MintPass(at(testutil.T0), alice, 0, s.groups[0])
	s.Require().Error(err)
	s.Contains(err.Error(), "failed to mint asset")
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.CompensationFailures.WithLabelValues("refund")))
	s.Contains(s.auditActions(), string(audit.EventCompensationFailed))
}

func (s *ServiceSuite) TestMintPassRetriesEditionConflicts() {
	s.ready()
	alice := testutil.NewPrincipal()
	racy := &conflictingConfigs{ConfigStore: s.configs, swapConflicts: 2, competing: true}
	svc := s.newService(racy, s.credentials, s.registry)

	s.ledger.EXPECT().Transfer(gomock.Any(), alice, s.authority, uint64(10)).Return(nil)
	s.registry.EXPECT().MintAsset(gomock.Any(), gomock.Any(), alice, "Bronze #2", gomock.Any()).Return(id.NewAssetID(), nil)

	pass, err := svc.MintPass(at(testutil.T0), alice, 0, s.groups[0])
	s.Require().NoError(err)
	s.Equal(uint64(2), pass.Edition, "competing mints took 0 and 1")
	s.Equal(uint64(3), s.counter(models.TierBronze))
	s.Equal(2.0, promtestutil.ToFloat64(s.metrics.EditionConflicts.WithLabelValues("Bronze")))
}

func (s *ServiceSuite) TestMintPassGivesUpOnPersistentEditionConflicts() {
	s.ready()
	alice := testutil.NewPrincipal()
	racy := &conflictingConfigs{ConfigStore: s.configs, swapConflicts: -1}
	svc := s.newService(racy, s.credentials, s.registry, WithMaxEditionAttempts(3))

	s.ledger.EXPECT().Transfer(gomock.Any(), alice, s.authority, uint64(10)).Return(nil)
	s.ledger.EXPECT().Transfer(gomock.Any(), s.authority, alice, uint64(10)).Return(nil)

	_, err := svc.MintPass(at(testutil.T0), alice, 0, s.groups[0])
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Equal(3, racy.swaps)
	s.Zero(s.counter(models.TierBronze))
}

// racingCredentials reports an empty slot on read but loses the claim, as
// when a concurrent mint for the same principal holds it.
type racingCredentials struct {
	CredentialStore
}

func (r *racingCredentials) FindByPrincipal(context.Context, id.PrincipalID) (*models.MemberPass, error) {
	return nil, sentinel.ErrNotFound
}

func (r *racingCredentials) Claim(context.Context, id.PrincipalID, time.Time) (models.PassClaim, error) {
	return models.PassClaim{}, fmt.Errorf("claim pass slot: %w", sentinel.ErrAlreadyUsed)
}

// failingCompletion claims for real but fails the final write with err.
type failingCompletion struct {
	CredentialStore
	err error
}

func (f *failingCompletion) Complete(context.Context, models.PassClaim, *models.MemberPass) error {
	return fmt.Errorf("complete member pass: %w", f.err)
}

// conflictingConfigs injects version conflicts. With competing set, each
// injected counter conflict is caused by a real competing increment.
// A negative swapConflicts conflicts forever.
type conflictingConfigs struct {
	ConfigStore
	saveConflicts int
	swapConflicts int
	competing     bool
	saves         int
	swaps         int
}

func (c *conflictingConfigs) Save(ctx context.Context, cfg *models.PlatformConfig) error {
	c.saves++
	if c.saveConflicts > 0 {
		c.saveConflicts--
		return fmt.Errorf("save platform config: %w", sentinel.ErrConflict)
	}
	return c.ConfigStore.Save(ctx, cfg)
}

func (c *conflictingConfigs) SwapCounter(ctx context.Context, from, next models.EditionCounter) (models.EditionCounter, error) {
	c.swaps++
	if c.swapConflicts == 0 {
		return c.ConfigStore.SwapCounter(ctx, from, next)
	}
	if c.swapConflicts > 0 {
		c.swapConflicts--
	}
	if c.competing {
		current, err := c.ConfigStore.Counter(ctx, from.Tier)
		if err != nil {
			return models.EditionCounter{}, err
		}
		advanced, err := current.Advance()
		if err != nil {
			return models.EditionCounter{}, err
		}
		if _, err := c.ConfigStore.SwapCounter(ctx, current, advanced); err != nil {
			return models.EditionCounter{}, err
		}
	}
	return models.EditionCounter{}, fmt.Errorf("swap counter: %w", sentinel.ErrConflict)
}
