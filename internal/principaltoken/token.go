// Package principaltoken issues and verifies self-signed principal tokens.
//
// A principal token is an EdDSA JWT whose subject is the base58 public key of
// the principal and whose signature is made with the matching private key.
// Verification needs no shared secret: the key comes from the subject.
package principaltoken

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "memberpass/pkg/domain"
	dErrors "memberpass/pkg/domain-errors"
	"memberpass/pkg/platform/middleware/auth"
)

const (
	DefaultAudience = "memberpass"
	DefaultMaxTTL   = 15 * time.Minute
	defaultLeeway   = 30 * time.Second
)

// Issue signs a token for the principal owning key.
func Issue(key ed25519.PrivateKey, audience string, now time.Time, ttl time.Duration) (string, error) {
	if len(key) != ed25519.PrivateKeySize {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid ed25519 private key")
	}
	if ttl <= 0 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "token ttl must be positive")
	}
	pub, ok := key.Public().(ed25519.PublicKey)
	if !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid ed25519 private key")
	}
	var principal id.PrincipalID
	copy(principal[:], pub)

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.RegisteredClaims{
		Subject:   principal.String(),
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        hex.EncodeToString(b),
	})
	return token.SignedString(key)
}

// Verifier validates principal tokens for one audience.
type Verifier struct {
	audience string
	maxTTL   time.Duration
	now      func() time.Time
}

type Option func(*Verifier)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

func NewVerifier(audience string, maxTTL time.Duration, opts ...Option) *Verifier {
	v := &Verifier{
		audience: audience,
		maxTTL:   maxTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateToken checks signature, audience, expiry and lifetime, and returns
// the principal named by the subject.
func (v *Verifier) ValidateToken(tokenString string) (*auth.Claims, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "empty token")
	}

	claims := new(jwt.RegisteredClaims)
	_, err := jwt.ParseWithClaims(tokenString, claims, keyFromSubject,
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(defaultLeeway),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token expired")
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token signature")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
		}
	}

	if claims.IssuedAt == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token missing iat")
	}
	if v.maxTTL > 0 && claims.ExpiresAt.Sub(claims.IssuedAt.Time) > v.maxTTL {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token lifetime exceeds limit")
	}

	return &auth.Claims{
		Principal: claims.Subject,
		JTI:       claims.ID,
	}, nil
}

func keyFromSubject(token *jwt.Token) (any, error) {
	subject, err := token.Claims.GetSubject()
	if err != nil {
		return nil, err
	}
	principal, err := id.ParsePrincipalID(subject)
	if err != nil {
		return nil, err
	}
	return ed25519.PublicKey(principal[:]), nil
}
