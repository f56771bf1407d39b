// Package storetest holds the behavioral contract every kvstore backend runs.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"memberpass/internal/platform/kvstore"
	"memberpass/internal/sentinel"
	"memberpass/pkg/testutil"
)

// ContractSuite exercises Get, CreateIfAbsent and CompareAndSwap against a
// backend. NewStore is called once per test.
type ContractSuite struct {
	suite.Suite
	NewStore func() kvstore.Store

	store kvstore.Store
	ctx   context.Context
}

func (s *ContractSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.NewStore()
}

// key isolates tests that share a backend (containers are reused per package).
func (s *ContractSuite) key(name string) string {
	return name + ":" + uuid.NewString()
}

func (s *ContractSuite) TestGetMissing() {
	_, err := s.store.Get(s.ctx, s.key("missing"))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ContractSuite) TestCreateIfAbsent() {
	key := s.key("member_pass")

	created, err := s.store.CreateIfAbsent(s.ctx, key, []byte(`{"tier":1}`))
	s.Require().NoError(err)
	s.Equal(kvstore.InitialVersion, created.Version)

	got, err := s.store.Get(s.ctx, key)
	s.Require().NoError(err)
	s.JSONEq(`{"tier":1}`, string(got.Value))
	s.Equal(kvstore.InitialVersion, got.Version)

	s.Run("second create is rejected and leaves the value alone", func() {
		_, err := s.store.CreateIfAbsent(s.ctx, key, []byte(`{"tier":2}`))
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)

		got, err := s.store.Get(s.ctx, key)
		s.Require().NoError(err)
		s.JSONEq(`{"tier":1}`, string(got.Value))
	})
}

func (s *ContractSuite) TestCompareAndSwap() {
	key := s.key("platform-edition")
	_, err := s.store.CreateIfAbsent(s.ctx, key, []byte(`0`))
	s.Require().NoError(err)

	swapped, err := s.store.CompareAndSwap(s.ctx, key, 1, []byte(`1`))
	s.Require().NoError(err)
	s.Equal(uint64(2), swapped.Version)

	s.Run("stale version conflicts", func() {
		_, err := s.store.CompareAndSwap(s.ctx, key, 1, []byte(`99`))
		s.ErrorIs(err, sentinel.ErrConflict)

		got, err := s.store.Get(s.ctx, key)
		s.Require().NoError(err)
		s.Equal("1", string(got.Value))
		s.Equal(uint64(2), got.Version)
	})

	s.Run("missing key is not found", func() {
		_, err := s.store.CompareAndSwap(s.ctx, s.key("absent"), 1, []byte(`1`))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *ContractSuite) TestConcurrentCreateSingleWinner() {
	key := s.key("member_pass")

	result := testutil.RunConcurrent(16, func(i int) error {
		_, err := s.store.CreateIfAbsent(s.ctx, key, fmt.Appendf(nil, `{"writer":%d}`, i))
		return err
	})

	s.Equal(int32(1), result.Successes)
	s.Equal(int32(15), result.AlreadyUsed)
}

// TestConcurrentIncrement drives a CAS retry loop from many goroutines; no
// increment may be lost.
func (s *ContractSuite) TestConcurrentIncrement() {
	key := s.key("counter")
	_, err := s.store.CreateIfAbsent(s.ctx, key, []byte("0"))
	s.Require().NoError(err)

	var retries atomic.Int32
	const workers = 12
	result := testutil.RunConcurrent(workers, func(int) error {
		for {
			entry, err := s.store.Get(s.ctx, key)
			if err != nil {
				return err
			}
			var n int
			if _, err := fmt.Sscan(string(entry.Value), &n); err != nil {
				return err
			}
			_, err = s.store.CompareAndSwap(s.ctx, key, entry.Version, fmt.Appendf(nil, "%d", n+1))
			if errors.Is(err, sentinel.ErrConflict) {
				retries.Add(1)
				continue
			}
			return err
		}
	})
	s.Equal(int32(workers), result.Successes)

	got, err := s.store.Get(s.ctx, key)
	s.Require().NoError(err)
	s.Equal(fmt.Sprint(workers), string(got.Value))
	s.Equal(uint64(workers)+kvstore.InitialVersion, got.Version)
}
