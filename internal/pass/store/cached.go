package store

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"memberpass/internal/pass/models"
	id "memberpass/pkg/domain"
)

const (
	DefaultCacheTTL      = 5 * time.Minute
	cacheCleanupInterval = time.Minute
)

// Credentials is the persistence contract the cache wraps.
type Credentials interface {
	Claim(ctx context.Context, principal id.PrincipalID, at time.Time) (models.PassClaim, error)
	Complete(ctx context.Context, claim models.PassClaim, pass *models.MemberPass) error
	Release(ctx context.Context, claim models.PassClaim) error
	Create(ctx context.Context, pass *models.MemberPass) error
	FindByPrincipal(ctx context.Context, principal id.PrincipalID) (*models.MemberPass, error)
}

// CachedCredentials fronts a credential store for the verify path. A pass is
// immutable once written, so only hits are cached; a miss always goes to the
// store so a fresh mint is visible immediately. Concurrent misses for one
// principal share a single store read.
type CachedCredentials struct {
	inner Credentials
	cache *gocache.Cache
	ttl   time.Duration
	sf    singleflight.Group
}

func NewCachedCredentials(inner Credentials, ttl time.Duration) *CachedCredentials {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedCredentials{
		inner: inner,
		cache: gocache.New(ttl, cacheCleanupInterval),
		ttl:   ttl,
	}
}

func (c *CachedCredentials) Claim(ctx context.Context, principal id.PrincipalID, at time.Time) (models.PassClaim, error) {
	return c.inner.Claim(ctx, principal, at)
}

func (c *CachedCredentials) Complete(ctx context.Context, claim models.PassClaim, pass *models.MemberPass) error {
	if err := c.inner.Complete(ctx, claim, pass); err != nil {
		return err
	}
	c.cache.Set(PassKey(claim.Principal), copyPass(pass), c.ttl)
	return nil
}

func (c *CachedCredentials) Release(ctx context.Context, claim models.PassClaim) error {
	return c.inner.Release(ctx, claim)
}

func (c *CachedCredentials) Create(ctx context.Context, pass *models.MemberPass) error {
	if err := c.inner.Create(ctx, pass); err != nil {
		return err
	}
	c.store(pass)
	return nil
}

func (c *CachedCredentials) FindByPrincipal(ctx context.Context, principal id.PrincipalID) (*models.MemberPass, error) {
	key := PassKey(principal)
	if v, ok := c.cache.Get(key); ok {
		pass := *v.(*models.MemberPass)
		return &pass, nil
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		pass, err := c.inner.FindByPrincipal(ctx, principal)
		if err != nil {
			return nil, err
		}
		c.store(pass)
		return pass, nil
	})
	if err != nil {
		return nil, err
	}
	pass := *v.(*models.MemberPass)
	return &pass, nil
}

// Len reports the number of cached passes.
func (c *CachedCredentials) Len() int {
	return c.cache.ItemCount()
}

func (c *CachedCredentials) store(pass *models.MemberPass) {
	c.cache.Set(PassKey(pass.Owner), copyPass(pass), c.ttl)
}

func copyPass(pass *models.MemberPass) *models.MemberPass {
	cp := *pass
	return &cp
}
