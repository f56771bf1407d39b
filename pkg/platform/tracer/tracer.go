// Package tracer is a small tracing abstraction over OpenTelemetry so
// services can emit spans without importing OTel APIs directly.
//
// Implementations:
//   - NoopTracer: for tests and when tracing is disabled
//   - OTelTracer: OpenTelemetry adapter
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span, recording err when non-nil. It must be called
	// exactly once, typically via defer.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
//
//	ctx, span := tr.Start(ctx, tracer.SpanMintPass,
//	    tracer.String(tracer.AttrTier, tier.String()),
//	)
//	defer func() { span.End(err) }()
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Uint64 records values above MaxInt64 as strings; OTel has no unsigned type.
func Uint64(key string, value uint64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanMintPass            = "pass.mint"
	SpanMintSettle          = "pass.mint.settle"
	SpanMintReserveEdition  = "pass.mint.reserve_edition"
	SpanMintIssueAsset      = "pass.mint.issue_asset"
	SpanMintCompensate      = "pass.mint.compensate"
	SpanVerifyPass          = "pass.verify"
	SpanInitializePlatform  = "platform.initialize"
	SpanRegisterAssetGroups = "platform.register_asset_groups"
	SpanOpenMint            = "platform.open_mint"
)

// Attribute keys.
const (
	AttrPrincipal  = "principal"
	AttrTier       = "tier"
	AttrEdition    = "edition"
	AttrAttempts   = "attempts"
	AttrPrice      = "price"
	AttrAssetGroup = "asset_group"
	AttrCacheHit   = "cache.hit"
)

// Event names.
const (
	EventEditionConflict = "edition.conflict"
	EventConfigConflict  = "config.conflict"
)
