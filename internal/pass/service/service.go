// Package service holds the pass use cases: platform administration, the
// mint transaction and pass verification.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Ledger,AssetRegistry,BurnableAssetRegistry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"memberpass/internal/audit"
	passmetrics "memberpass/internal/pass/metrics"
	"memberpass/internal/pass/models"
	"memberpass/internal/sentinel"
	id "memberpass/pkg/domain"
	dErrors "memberpass/pkg/domain-errors"
	"memberpass/pkg/platform/tracer"
)

const (
	DefaultPlatformName       = "Movie"
	DefaultMaxEditionAttempts = 32
	maxConfigAttempts         = 8
)

// ConfigStore persists the platform configuration and per-tier edition
// counters. Save and SwapCounter fail with sentinel.ErrConflict when the
// stored version moved.
type ConfigStore interface {
	Create(ctx context.Context, cfg *models.PlatformConfig) error
	Load(ctx context.Context) (*models.PlatformConfig, error)
	Save(ctx context.Context, cfg *models.PlatformConfig) error
	Counter(ctx context.Context, t models.Tier) (models.EditionCounter, error)
	SwapCounter(ctx context.Context, from, next models.EditionCounter) (models.EditionCounter, error)
}

// CredentialStore holds one pass slot per principal. A mint claims the slot
// before it reserves an edition, then completes or releases the claim.
// Claim and Complete fail with sentinel.ErrAlreadyUsed when the slot is
// taken by a pass or by another mint.
type CredentialStore interface {
	Claim(ctx context.Context, principal id.PrincipalID, at time.Time) (models.PassClaim, error)
	Complete(ctx context.Context, claim models.PassClaim, pass *models.MemberPass) error
	Release(ctx context.Context, claim models.PassClaim) error
	FindByPrincipal(ctx context.Context, principal id.PrincipalID) (*models.MemberPass, error)
}

type Ledger interface {
	Transfer(ctx context.Context, from, to id.PrincipalID, amount uint64) error
}

type AssetRegistry interface {
	CreateAssetGroup(ctx context.Context, admin id.PrincipalID, name, metadataURI string) (id.AssetGroupID, error)
	MintAsset(ctx context.Context, group id.AssetGroupID, owner id.PrincipalID, label, metadataURI string) (id.AssetID, error)
}

// AssetBurner is implemented by registries that can retire an asset. When the
// registry does not implement it, a failed mint leaves the asset in place.
type AssetBurner interface {
	BurnAsset(ctx context.Context, asset id.AssetID) error
}

// BurnableAssetRegistry is a registry that can also undo a mint.
type BurnableAssetRegistry interface {
	AssetRegistry
	AssetBurner
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service implements the admin, mint and verify operations over shared
// stores. It holds no locks across collaborator calls; contention is
// resolved by the stores' create-if-absent and compare-and-swap primitives.
type Service struct {
	config      ConfigStore
	credentials CredentialStore
	ledger      Ledger
	assets      AssetRegistry

	logger             *slog.Logger
	auditPublisher     AuditPublisher
	auditor            *audit.Logger
	metrics            *passmetrics.Metrics
	tracer             tracer.Tracer
	treasury           id.PrincipalID
	platformName       string
	maxEditionAttempts int
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *passmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithTreasury sets the account mint payments settle into. Defaults to the
// platform authority.
func WithTreasury(treasury id.PrincipalID) Option {
	return func(s *Service) {
		s.treasury = treasury
	}
}

// WithPlatformName sets the prefix of asset group names, e.g. "Movie Gold Pass".
func WithPlatformName(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.platformName = name
		}
	}
}

// WithMaxEditionAttempts bounds the edition compare-and-swap loop.
func WithMaxEditionAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxEditionAttempts = n
		}
	}
}

func New(config ConfigStore, credentials CredentialStore, ledger Ledger, assets AssetRegistry, opts ...Option) *Service {
	s := &Service{
		config:             config,
		credentials:        credentials,
		ledger:             ledger,
		assets:             assets,
		tracer:             tracer.NewNoop(),
		platformName:       DefaultPlatformName,
		maxEditionAttempts: DefaultMaxEditionAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	var emitter audit.Emitter
	if s.auditPublisher != nil {
		emitter = s.auditPublisher
	}
	s.auditor = audit.NewLogger(s.logger, emitter)
	return s
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, attributes ...any) {
	s.auditor.Log(ctx, string(event), attributes...)
}

func (s *Service) loadConfig(ctx context.Context) (*models.PlatformConfig, error) {
	cfg, err := s.config.Load(ctx)
	if err != nil {
		return nil, wrapConfigErr(err, "failed to load platform config")
	}
	return cfg, nil
}

// Error wrapping helpers translate sentinel errors to domain errors.

func wrapConfigErr(err error, action string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "platform not initialized")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}

func wrapPassErr(err error, action string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.ErrPassNotFound()
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}

func wrapLedgerErr(err error, action string) error {
	if errors.Is(err, sentinel.ErrInsufficientFunds) {
		return models.ErrInsufficientFunds()
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(dErrors.CodeOf(err))
}
