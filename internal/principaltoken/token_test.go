package principaltoken

import (
	"crypto/ed25519"
	"strings"
	"testing"
	"time"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "memberpass/pkg/domain-errors"
	"memberpass/pkg/testutil"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestIssueAndValidate(t *testing.T) {
	account := types.NewAccount()
	token, err := Issue(account.PrivateKey, DefaultAudience, testutil.T0, 5*time.Minute)
	require.NoError(t, err)

	v := NewVerifier(DefaultAudience, DefaultMaxTTL, WithClock(fixedClock(testutil.T0.Add(time.Minute))))
	claims, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, account.PublicKey.ToBase58(), claims.Principal)
	assert.Len(t, claims.JTI, 32)
}

func TestValidateTokenRejections(t *testing.T) {
	account := types.NewAccount()
	valid := func(t *testing.T) string {
		token, err := Issue(account.PrivateKey, DefaultAudience, testutil.T0, 5*time.Minute)
		require.NoError(t, err)
		return token
	}

	t.Run("expired", func(t *testing.T) {
		v := NewVerifier(DefaultAudience, DefaultMaxTTL, WithClock(fixedClock(testutil.T0.Add(10*time.Minute))))
		_, err := v.ValidateToken(valid(t))
		require.ErrorContains(t, err, "token expired")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong audience", func(t *testing.T) {
		v := NewVerifier("other", DefaultMaxTTL, WithClock(fixedClock(testutil.T0)))
		_, err := v.ValidateToken(valid(t))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("lifetime above limit", func(t *testing.T) {
		token, err := Issue(account.PrivateKey, DefaultAudience, testutil.T0, time.Hour)
		require.NoError(t, err)
		v := NewVerifier(DefaultAudience, DefaultMaxTTL, WithClock(fixedClock(testutil.T0)))
		_, err = v.ValidateToken(token)
		require.ErrorContains(t, err, "lifetime exceeds limit")
	})

	t.Run("subject signed by another key", func(t *testing.T) {
		other := types.NewAccount()
		forged := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.RegisteredClaims{
			Subject:   account.PublicKey.ToBase58(),
			Audience:  jwt.ClaimStrings{DefaultAudience},
			IssuedAt:  jwt.NewNumericDate(testutil.T0),
			ExpiresAt: jwt.NewNumericDate(testutil.T0.Add(time.Minute)),
		})
		token, err := forged.SignedString(other.PrivateKey)
		require.NoError(t, err)

		v := NewVerifier(DefaultAudience, DefaultMaxTTL, WithClock(fixedClock(testutil.T0)))
		_, err = v.ValidateToken(token)
		require.ErrorContains(t, err, "invalid token signature")
	})

	t.Run("symmetric algorithm", func(t *testing.T) {
		hs := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   account.PublicKey.ToBase58(),
			Audience:  jwt.ClaimStrings{DefaultAudience},
			IssuedAt:  jwt.NewNumericDate(testutil.T0),
			ExpiresAt: jwt.NewNumericDate(testutil.T0.Add(time.Minute)),
		})
		token, err := hs.SignedString([]byte("secret"))
		require.NoError(t, err)

		v := NewVerifier(DefaultAudience, DefaultMaxTTL, WithClock(fixedClock(testutil.T0)))
		_, err = v.ValidateToken(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(valid(t), ".")
		require.Len(t, parts, 3)
		parts[1] = parts[1][:len(parts[1])-2] + "AA"
		v := NewVerifier(DefaultAudience, DefaultMaxTTL, WithClock(fixedClock(testutil.T0)))
		_, err := v.ValidateToken(strings.Join(parts, "."))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := NewVerifier(DefaultAudience, DefaultMaxTTL).ValidateToken("")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestIssueRejectsBadInput(t *testing.T) {
	_, err := Issue(ed25519.PrivateKey{1, 2, 3}, DefaultAudience, testutil.T0, time.Minute)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = Issue(types.NewAccount().PrivateKey, DefaultAudience, testutil.T0, 0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
