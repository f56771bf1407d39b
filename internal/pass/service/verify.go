package service

import (
	"context"

	"memberpass/internal/pass/models"
	id "memberpass/pkg/domain"
	"memberpass/pkg/platform/middleware/requesttime"
	"memberpass/pkg/platform/tracer"
)

// VerifyPass returns the tier of principal's pass if it is present, unexpired
// and owned by principal.
func (s *Service) VerifyPass(ctx context.Context, principal id.PrincipalID) (tier models.Tier, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanVerifyPass,
		tracer.String(tracer.AttrPrincipal, principal.String()),
	)
	defer func() {
		span.End(err)
		s.incrementVerification(err)
	}()

	pass, err := s.credentials.FindByPrincipal(ctx, principal)
	if err != nil {
		return 0, wrapPassErr(err, "failed to load member pass")
	}
	if pass.IsExpired(requesttime.Now(ctx)) {
		return 0, models.ErrPassExpired()
	}
	if pass.Owner != principal {
		return 0, models.ErrPassNotOwned()
	}
	span.SetAttributes(tracer.String(tracer.AttrTier, pass.Tier.String()))
	return pass.Tier, nil
}

// RequireTier gates tier-restricted actions.
func (s *Service) RequireTier(ctx context.Context, principal id.PrincipalID, minTier models.Tier) (models.Tier, error) {
	if !minTier.IsValid() {
		return 0, models.ErrInvalidTier(int(minTier))
	}
	tier, err := s.VerifyPass(ctx, principal)
	if err != nil {
		return 0, err
	}
	if !tier.AtLeast(minTier) {
		return tier, models.ErrTierTooLow(tier, minTier)
	}
	return tier, nil
}

// GetPass returns the stored pass regardless of expiry.
func (s *Service) GetPass(ctx context.Context, principal id.PrincipalID) (*models.MemberPass, error) {
	pass, err := s.credentials.FindByPrincipal(ctx, principal)
	if err != nil {
		return nil, wrapPassErr(err, "failed to load member pass")
	}
	return pass, nil
}
