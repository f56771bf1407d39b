package service

import (
	"context"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"memberpass/internal/pass/models"
	"memberpass/internal/pass/store"
	kvmemory "memberpass/internal/platform/kvstore/memory"
	dErrors "memberpass/pkg/domain-errors"
	"memberpass/pkg/testutil"
)

func (s *ServiceSuite) TestVerifyPass() {
	alice := testutil.NewPrincipal()
	pass := testutil.NewMemberPassBuilder().WithOwner(alice).WithTier(models.TierSilver).MintedAt(testutil.T0).Build()
	s.Require().NoError(s.credentials.Create(context.Background(), pass))

	s.Run("valid until just before expiry", func() {
		tier, err := s.service.VerifyPass(at(pass.ExpiresAt.Add(-time.Second)), alice)
		s.Require().NoError(err)
		s.Equal(models.TierSilver, tier)
	})

	s.Run("expired at the expiry instant", func() {
		_, err := s.service.VerifyPass(at(pass.ExpiresAt), alice)
		s.True(dErrors.HasCode(err, dErrors.CodePassExpired))
	})

	s.Run("no pass", func() {
		_, err := s.service.VerifyPass(at(testutil.T0), testutil.NewPrincipal())
		s.True(dErrors.HasCode(err, dErrors.CodePassNotFound))
	})

	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.Verifications.WithLabelValues("ok")))
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.Verifications.WithLabelValues("pass_expired")))
}

func (s *ServiceSuite) TestVerifyPassRejectsForeignOwner() {
	kv := kvmemory.New()
	credentials := store.NewCredentialStore(kv)
	svc := s.newService(s.configs, credentials, s.registry)

	alice, bob := testutil.NewPrincipal(), testutil.NewPrincipal()
	claim, err := credentials.Claim(context.Background(), alice, testutil.T0)
	s.Require().NoError(err)
	foreign := testutil.NewMemberPassBuilder().WithOwner(bob).MintedAt(testutil.T0).Build()
	s.Require().NoError(credentials.Complete(context.Background(), claim, foreign))

	_, err = svc.VerifyPass(at(testutil.T0), alice)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.ErrorIs(err, models.ErrPassNotOwned())
	s.Contains(err.Error(), "not owned by the caller")
}

func (s *ServiceSuite) TestRequireTier() {
	alice := testutil.NewPrincipal()
	pass := testutil.NewMemberPassBuilder().WithOwner(alice).WithTier(models.TierSilver).MintedAt(testutil.T0).Build()
	s.Require().NoError(s.credentials.Create(context.Background(), pass))
	now := at(testutil.T0.Add(time.Hour))

	for _, min := range []models.Tier{models.TierBronze, models.TierSilver} {
		tier, err := s.service.RequireTier(now, alice, min)
		s.Require().NoError(err, "min %s", min)
		s.Equal(models.TierSilver, tier)
	}

	tier, err := s.service.RequireTier(now, alice, models.TierGold)
	s.True(dErrors.HasCode(err, dErrors.CodeTierTooLow))
	s.Equal(models.TierSilver, tier, "held tier is still reported")

	_, err = s.service.RequireTier(now, alice, models.Tier(9))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTier))

	_, err = s.service.RequireTier(at(pass.ExpiresAt), alice, models.TierBronze)
	s.True(dErrors.HasCode(err, dErrors.CodePassExpired))
}
