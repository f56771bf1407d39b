package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite tests the domain error primitives every service and
// handler relies on to report a specific error kind.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorInterface() {
	s.Run("returns message when present", func() {
		err := &Error{Code: CodePassNotFound, Message: "member pass not found"}
		s.Equal("member pass not found", err.Error())
	})

	s.Run("returns code when message is empty", func() {
		err := &Error{Code: CodePassExpired}
		s.Equal("pass_expired", err.Error())
	})
}

func (s *DomainErrorsSuite) TestUnwrap() {
	inner := errors.New("ledger unreachable")
	err := &Error{Code: CodeInternal, Message: "settle payment", Err: inner}
	s.Equal(inner, errors.Unwrap(err))
	s.Nil((&Error{Code: CodeNotFound}).Unwrap())
}

func (s *DomainErrorsSuite) TestIsMatchesByCode() {
	s.Run("same kind with different messages match", func() {
		s.True(errors.Is(New(CodeInvalidTier, "tier 5"), New(CodeInvalidTier, "tier 9")))
	})

	s.Run("different kinds do not match", func() {
		s.False(errors.Is(New(CodePassExpired, ""), New(CodePassNotFound, "")))
	})

	s.Run("plain errors do not match", func() {
		s.False((&Error{Code: CodeNotFound}).Is(errors.New("not found")))
	})

	s.Run("matches through fmt wrapping", func() {
		err := fmt.Errorf("mint: %w", New(CodeMintingNotOpen, "closed"))
		s.True(errors.Is(err, &Error{Code: CodeMintingNotOpen}))
	})
}

func (s *DomainErrorsSuite) TestWrap() {
	s.Run("preserves original domain code", func() {
		wrapped := Wrap(New(CodeInsufficientFunds, "balance too low"), CodeInternal, "settle payment")

		var domainErr *Error
		s.Require().True(errors.As(wrapped, &domainErr))
		s.Equal(CodeInsufficientFunds, domainErr.Code)
		s.Equal("settle payment", domainErr.Message)
	})

	s.Run("uses provided code for non-domain errors", func() {
		root := errors.New("connection reset")
		wrapped := Wrap(root, CodeInternal, "load config")

		s.True(HasCode(wrapped, CodeInternal))
		s.True(errors.Is(wrapped, root))
	})
}

func (s *DomainErrorsSuite) TestHasCode() {
	s.True(HasCode(New(CodeTierTooLow, "silver required"), CodeTierTooLow))
	s.False(HasCode(New(CodeTierTooLow, "silver required"), CodeUnauthorized))
	s.False(HasCode(errors.New("plain"), CodeNotFound))
	s.False(HasCode(nil, CodeNotFound))
}

func (s *DomainErrorsSuite) TestCodeOf() {
	s.Equal(CodeEditionOverflow, CodeOf(Wrap(New(CodeEditionOverflow, "overflow"), CodeInternal, "mint")))
	s.Equal(CodeInternal, CodeOf(errors.New("plain")))
}
