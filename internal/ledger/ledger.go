// Package ledger is the funds collaborator the mint flow settles payments
// through. Balances are integers in the smallest currency unit.
package ledger

import (
	"context"

	id "memberpass/pkg/domain"
)

// Ledger moves funds between principal accounts. Transfer is atomic: either
// the whole amount moves or nothing does, and a short balance fails with
// sentinel.ErrInsufficientFunds.
type Ledger interface {
	Transfer(ctx context.Context, from, to id.PrincipalID, amount uint64) error
	Balance(ctx context.Context, account id.PrincipalID) (uint64, error)
	// Credit mints funds into an account. Used by seeding and dev tooling.
	Credit(ctx context.Context, account id.PrincipalID, amount uint64) error
}
