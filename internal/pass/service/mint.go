package service

import (
	"context"
	"errors"
	"time"

	"memberpass/internal/audit"
	"memberpass/internal/pass/models"
	"memberpass/internal/sentinel"
	id "memberpass/pkg/domain"
	dErrors "memberpass/pkg/domain-errors"
	"memberpass/pkg/platform/middleware/requesttime"
	"memberpass/pkg/platform/tracer"
)

// MintPass sells principal a pass of the given tier. All local checks run
// before payment; the ledger transfer is the commit point. After payment the
// principal's slot is claimed before an edition is reserved, so a request that
// loses a same-principal race never advances the counter. A failure after
// payment is compensated in reverse order (burn asset, release edition,
// release slot, refund) and the original error is returned.
func (s *Service) MintPass(ctx context.Context, principal id.PrincipalID, rawTier int, assetGroup id.AssetGroupID) (pass *models.MemberPass, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanMintPass,
		tracer.String(tracer.AttrPrincipal, principal.String()),
		tracer.Int64(tracer.AttrTier, int64(rawTier)),
	)
	defer func() {
		span.End(err)
		s.observeMint(start, pass, err)
	}()

	if principal.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "principal required")
	}
	tier, err := models.ParseTier(rawTier)
	if err != nil {
		return nil, err
	}
	now := requesttime.Now(ctx)

	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.MintOpen(now) {
		return nil, models.ErrMintingNotOpen()
	}
	settings := cfg.Tier(tier)
	if settings.AssetGroup.IsNil() || settings.AssetGroup != assetGroup {
		return nil, models.ErrInvalidCollection()
	}
	price := settings.Price

	if _, err := s.credentials.FindByPrincipal(ctx, principal); err == nil {
		return nil, models.ErrPassAlreadyActive()
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing pass")
	}
	if settings.NextEdition == models.MaxEdition {
		return nil, models.ErrEditionOverflow(tier)
	}

	span.SetAttributes(tracer.Uint64(tracer.AttrPrice, price))
	if err := s.settle(ctx, principal, cfg.Treasury, price); err != nil {
		return nil, err
	}

	tx := &mintTx{principal: principal, treasury: cfg.Treasury, tier: tier, price: price}
	pass, err = s.completeMint(ctx, tx, settings, now)
	if err != nil {
		s.compensate(ctx, tx, err)
		return nil, err
	}

	s.logAudit(ctx, audit.EventPassMinted,
		"principal", principal,
		"tier", tier.String(),
		"edition", pass.Edition,
		"asset", pass.BoundAsset,
		"price", price,
		"expires_at", pass.ExpiresAt.Format(time.RFC3339),
	)
	return pass, nil
}

// mintTx records the effects a mint has produced so far.
type mintTx struct {
	principal id.PrincipalID
	treasury  id.PrincipalID
	tier      models.Tier
	price     uint64

	claim           models.PassClaim
	slotClaimed     bool
	edition         uint64
	editionReserved bool
	asset           id.AssetID
}

func (s *Service) settle(ctx context.Context, principal, treasury id.PrincipalID, price uint64) (err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanMintSettle, tracer.Uint64(tracer.AttrPrice, price))
	defer func() { span.End(err) }()

	if err := s.ledger.Transfer(ctx, principal, treasury, price); err != nil {
		return wrapLedgerErr(err, "failed to settle payment")
	}
	return nil
}

func (s *Service) completeMint(ctx context.Context, tx *mintTx, settings models.TierSettings, now time.Time) (*models.MemberPass, error) {
	claim, err := s.credentials.Claim(ctx, tx.principal, now)
	if err != nil {
		return nil, wrapSlotErr(err, "failed to claim pass slot")
	}
	tx.claim, tx.slotClaimed = claim, true

	edition, err := s.reserveEdition(ctx, tx.tier)
	if err != nil {
		return nil, err
	}
	tx.edition, tx.editionReserved = edition, true

	asset, err := s.issueAsset(ctx, tx, settings)
	if err != nil {
		return nil, err
	}
	tx.asset = asset

	pass := models.NewMemberPass(tx.principal, tx.tier, edition, asset, now)
	if err := s.credentials.Complete(ctx, claim, pass); err != nil {
		return nil, wrapSlotErr(err, "failed to store member pass")
	}
	return pass, nil
}

func wrapSlotErr(err error, msg string) error {
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		return models.ErrPassAlreadyActive()
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

// reserveEdition claims the tier's next edition number with a
// compare-and-swap, retrying from the read on conflict.
func (s *Service) reserveEdition(ctx context.Context, tier models.Tier) (edition uint64, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanMintReserveEdition,
		tracer.String(tracer.AttrTier, tier.String()),
	)
	defer func() { span.End(err) }()

	for attempt := 1; attempt <= s.maxEditionAttempts; attempt++ {
		current, err := s.config.Counter(ctx, tier)
		if err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read edition counter")
		}
		next, err := current.Advance()
		if err != nil {
			return 0, err
		}
		_, err = s.config.SwapCounter(ctx, current, next)
		if err == nil {
			span.SetAttributes(
				tracer.Uint64(tracer.AttrEdition, current.Next),
				tracer.Int64(tracer.AttrAttempts, int64(attempt)),
			)
			return current.Next, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to advance edition counter")
		}
		span.AddEvent(tracer.EventEditionConflict, tracer.Int64(tracer.AttrAttempts, int64(attempt)))
		s.incrementEditionConflict(tier)
	}
	return 0, dErrors.New(dErrors.CodeConflict, "edition counter is contended, try again")
}

func (s *Service) issueAsset(ctx context.Context, tx *mintTx, settings models.TierSettings) (asset id.AssetID, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanMintIssueAsset,
		tracer.String(tracer.AttrAssetGroup, settings.AssetGroup.String()),
		tracer.Uint64(tracer.AttrEdition, tx.edition),
	)
	defer func() { span.End(err) }()

	asset, err = s.assets.MintAsset(ctx, settings.AssetGroup, tx.principal,
		tx.tier.EditionLabel(tx.edition), settings.MetadataURI)
	if err != nil {
		return id.AssetID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint asset")
	}
	return asset, nil
}

// compensate undoes a paid mint. Failures are logged and counted; the
// caller still reports the error that triggered compensation.
func (s *Service) compensate(ctx context.Context, tx *mintTx, cause error) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := s.tracer.Start(ctx, tracer.SpanMintCompensate,
		tracer.String(tracer.AttrPrincipal, tx.principal.String()),
		tracer.String(tracer.AttrTier, tx.tier.String()),
	)
	var failed error
	defer func() { span.End(failed) }()

	if !tx.asset.IsNil() {
		if burner, ok := s.assets.(AssetBurner); ok {
			err := burner.BurnAsset(ctx, tx.asset)
			failed = errors.Join(failed, s.recordCompensation(ctx, "burn_asset", tx, err))
		}
	}
	if tx.editionReserved {
		err := s.releaseEdition(ctx, tx.tier, tx.edition)
		failed = errors.Join(failed, s.recordCompensation(ctx, "release_edition", tx, err))
	}
	if tx.slotClaimed {
		err := s.credentials.Release(ctx, tx.claim)
		failed = errors.Join(failed, s.recordCompensation(ctx, "release_slot", tx, err))
	}
	err := s.ledger.Transfer(ctx, tx.treasury, tx.principal, tx.price)
	failed = errors.Join(failed, s.recordCompensation(ctx, "refund", tx, err))

	s.logAudit(ctx, audit.EventMintCompensated,
		"principal", tx.principal,
		"tier", tx.tier.String(),
		"price", tx.price,
		"cause", string(dErrors.CodeOf(cause)),
		"complete", failed == nil,
	)
}

// releaseEdition hands the edition back only if no later mint has claimed
// the following one; otherwise the number stays unused.
func (s *Service) releaseEdition(ctx context.Context, tier models.Tier, edition uint64) error {
	current, err := s.config.Counter(ctx, tier)
	if err != nil {
		return err
	}
	if current.Next != edition+1 {
		return nil
	}
	_, err = s.config.SwapCounter(ctx, current, models.EditionCounter{Tier: tier, Next: edition})
	if errors.Is(err, sentinel.ErrConflict) {
		return nil
	}
	return err
}

func (s *Service) recordCompensation(ctx context.Context, step string, tx *mintTx, err error) error {
	s.incrementCompensation(step, err == nil)
	if err == nil {
		return nil
	}
	if s.logger != nil {
		s.logger.ErrorContext(ctx, "mint compensation step failed",
			"step", step,
			"principal", tx.principal,
			"tier", tx.tier.String(),
			"edition", tx.edition,
			"error", err,
		)
	}
	s.logAudit(ctx, audit.EventCompensationFailed,
		"principal", tx.principal,
		"step", step,
		"error", err.Error(),
	)
	return err
}
