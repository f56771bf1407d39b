// Package postgres keeps ledger balances and a transfer journal in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"memberpass/internal/sentinel"
	id "memberpass/pkg/domain"
	dErrors "memberpass/pkg/domain-errors"
)

const defaultTxTimeout = 5 * time.Second

// PostgresLedger debits with a guarded UPDATE so a short balance never goes
// negative, then credits and journals inside the same transaction.
type PostgresLedger struct {
	db      *sql.DB
	timeout time.Duration
}

func New(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db, timeout: defaultTxTimeout}
}

func (l *PostgresLedger) Transfer(ctx context.Context, from, to id.PrincipalID, amount uint64) error {
	if amount > math.MaxInt64 {
		return fmt.Errorf("transfer amount %d: %w", amount, sentinel.ErrInvalidInput)
	}
	return l.runInTx(ctx, func(tx *sql.Tx) error {
		// lock both rows in key order; a refund runs in the opposite direction of a payment
		if _, err := tx.ExecContext(ctx, `
			SELECT account FROM ledger_accounts
			WHERE account IN ($1, $2)
			ORDER BY account
			FOR UPDATE
		`, from.String(), to.String()); err != nil {
			return fmt.Errorf("lock accounts: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE ledger_accounts
			SET balance = balance - $2, updated_at = NOW()
			WHERE account = $1 AND balance >= $2
		`, from.String(), int64(amount))
		if err != nil {
			return fmt.Errorf("debit %s: %w", from, err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("debit %s rows: %w", from, err)
		}
		if rows == 0 {
			if amount == 0 {
				// a zero transfer from an account that was never credited
				return nil
			}
			return fmt.Errorf("transfer %d from %s: %w", amount, from, sentinel.ErrInsufficientFunds)
		}
		if err := credit(ctx, tx, to, amount); err != nil {
			return err
		}
		return journal(ctx, tx, from.String(), to, amount)
	})
}

func (l *PostgresLedger) Credit(ctx context.Context, account id.PrincipalID, amount uint64) error {
	if amount > math.MaxInt64 {
		return fmt.Errorf("credit amount %d: %w", amount, sentinel.ErrInvalidInput)
	}
	return l.runInTx(ctx, func(tx *sql.Tx) error {
		if err := credit(ctx, tx, account, amount); err != nil {
			return err
		}
		return journal(ctx, tx, "", account, amount)
	})
}

func (l *PostgresLedger) Balance(ctx context.Context, account id.PrincipalID) (uint64, error) {
	var balance int64
	err := l.db.QueryRowContext(ctx, `SELECT balance FROM ledger_accounts WHERE account = $1`, account.String()).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("balance %s: %w", account, err)
	}
	return uint64(balance), nil
}

func credit(ctx context.Context, tx *sql.Tx, account id.PrincipalID, amount uint64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_accounts (account, balance, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (account) DO UPDATE
		SET balance = ledger_accounts.balance + EXCLUDED.balance, updated_at = NOW()
	`, account.String(), int64(amount))
	if err != nil {
		return fmt.Errorf("credit %s: %w", account, err)
	}
	return nil
}

func journal(ctx context.Context, tx *sql.Tx, from string, to id.PrincipalID, amount uint64) error {
	var fromAccount sql.NullString
	if from != "" {
		fromAccount = sql.NullString{String: from, Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_transfers (id, from_account, to_account, amount, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, uuid.New(), fromAccount, to.String(), int64(amount))
	if err != nil {
		return fmt.Errorf("journal transfer: %w", err)
	}
	return nil
}

func (l *PostgresLedger) runInTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is no-op
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
