package memory

import (
	"context"
	"fmt"
	"math"
	"sync"

	"memberpass/internal/sentinel"
	id "memberpass/pkg/domain"
	psync "memberpass/pkg/platform/sync"
)

// InMemory keeps balances per account. Transfers lock both account shards so
// debit and credit land together.
type InMemory struct {
	balances sync.Map // id.PrincipalID -> uint64
	locks    *psync.ShardedMutex
}

func New() *InMemory {
	return &InMemory{locks: psync.NewShardedMutex()}
}

func (l *InMemory) Transfer(_ context.Context, from, to id.PrincipalID, amount uint64) error {
	unlock := l.locks.LockPair(from.String(), to.String())
	defer unlock()

	fromBalance := l.load(from)
	if fromBalance < amount {
		return fmt.Errorf("transfer %d from %s: %w", amount, from, sentinel.ErrInsufficientFunds)
	}
	if from == to {
		return nil
	}
	toBalance := l.load(to)
	if toBalance > math.MaxUint64-amount {
		return fmt.Errorf("transfer %d to %s overflows balance: %w", amount, to, sentinel.ErrInvalidInput)
	}
	l.balances.Store(from, fromBalance-amount)
	l.balances.Store(to, toBalance+amount)
	return nil
}

func (l *InMemory) Balance(_ context.Context, account id.PrincipalID) (uint64, error) {
	return l.load(account), nil
}

func (l *InMemory) Credit(_ context.Context, account id.PrincipalID, amount uint64) error {
	key := account.String()
	l.locks.Lock(key)
	defer l.locks.Unlock(key)

	balance := l.load(account)
	if balance > math.MaxUint64-amount {
		return fmt.Errorf("credit %d to %s overflows balance: %w", amount, account, sentinel.ErrInvalidInput)
	}
	l.balances.Store(account, balance+amount)
	return nil
}

func (l *InMemory) load(account id.PrincipalID) uint64 {
	v, ok := l.balances.Load(account)
	if !ok {
		return 0
	}
	return v.(uint64)
}
