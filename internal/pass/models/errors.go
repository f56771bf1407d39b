package models

import (
	"fmt"

	dErrors "memberpass/pkg/domain-errors"
)

// Error kinds of the pass service. Each constructor returns a fresh domain
// error; errors.Is matches any two errors of the same kind.

func ErrInvalidTier(raw int) error {
	return dErrors.New(dErrors.CodeInvalidTier, fmt.Sprintf("invalid tier %d, must be 0, 1 or 2", raw))
}

func ErrInsufficientFunds() error {
	return dErrors.New(dErrors.CodeInsufficientFunds, "insufficient balance to pay for the pass")
}

func ErrInvalidScore() error {
	return dErrors.New(dErrors.CodeInvalidScore, "rating score must be between 1 and 5")
}

func ErrInvalidCollection() error {
	return dErrors.New(dErrors.CodeInvalidCollection, "asset group does not match the tier's collection")
}

func ErrPassAlreadyActive() error {
	return dErrors.New(dErrors.CodePassAlreadyActive, "pass already active, cannot re-mint")
}

func ErrPassExpired() error {
	return dErrors.New(dErrors.CodePassExpired, "member pass has expired")
}

func ErrPassNotFound() error {
	return dErrors.New(dErrors.CodePassNotFound, "member pass not found, mint one first")
}

func ErrPassNotOwned() error {
	return dErrors.New(dErrors.CodeUnauthorized, "member pass is not owned by the caller")
}

func ErrTierTooLow(have, want Tier) error {
	return dErrors.New(dErrors.CodeTierTooLow, fmt.Sprintf("tier too low: %s pass held, %s or higher required", have, want))
}

func ErrContentTooLong(limit int) error {
	return dErrors.New(dErrors.CodeContentTooLong, fmt.Sprintf("content exceeds %d characters", limit))
}

func ErrMintingNotOpen() error {
	return dErrors.New(dErrors.CodeMintingNotOpen, "minting is not open yet")
}

func ErrUnauthorized() error {
	return dErrors.New(dErrors.CodeUnauthorized, "only the platform authority can perform this action")
}

func ErrEditionOverflow(tier Tier) error {
	return dErrors.New(dErrors.CodeEditionOverflow, fmt.Sprintf("%s edition counter overflow", tier))
}
