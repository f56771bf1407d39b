package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"memberpass/internal/audit"
	assetsmemory "memberpass/internal/assets/memory"
	ledgermemory "memberpass/internal/ledger/memory"
	"memberpass/internal/pass/models"
	"memberpass/internal/pass/store"
	kvmemory "memberpass/internal/platform/kvstore/memory"
	id "memberpass/pkg/domain"
	dErrors "memberpass/pkg/domain-errors"
	"memberpass/pkg/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type harness struct {
	svc       *Service
	ledger    *ledgermemory.InMemory
	assets    *assetsmemory.InMemory
	configs   *store.ConfigStore
	creds     *store.CredentialStore
	authority id.PrincipalID
	groups    [models.TierCount]id.AssetGroupID
}

// newHarness wires the service to the in-memory collaborators, with the
// platform initialized at prices 10/20/30 and minting open from T0.
func newHarness(t *testing.T) *harness {
	t.Helper()
	kv := kvmemory.New()
	h := &harness{
		ledger:    ledgermemory.New(),
		assets:    assetsmemory.New(),
		configs:   store.NewConfigStore(kv),
		creds:     store.NewCredentialStore(kv),
		authority: testutil.NewPrincipal(),
	}
	publisher := audit.NewPublisher(audit.NewInMemoryStore(), audit.WithAsyncBuffer(1024))
	t.Cleanup(publisher.Close)
	h.svc = New(h.configs, h.creds, h.ledger, h.assets,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(publisher),
	)

	setup := at(testutil.T0.Add(-time.Hour))
	_, err := h.svc.InitializePlatform(setup, h.authority, 10, 20, 30)
	require.NoError(t, err)
	cfg, err := h.svc.RegisterAssetGroups(setup, h.authority, testURIs[0], testURIs[1], testURIs[2])
	require.NoError(t, err)
	for _, tier := range models.Tiers {
		h.groups[tier] = cfg.Tiers[tier].AssetGroup
	}
	_, err = h.svc.OpenMint(setup, h.authority, testutil.T0)
	require.NoError(t, err)
	return h
}

func (h *harness) fund(t *testing.T, p id.PrincipalID, amount uint64) {
	t.Helper()
	require.NoError(t, h.ledger.Credit(context.Background(), p, amount))
}

func (h *harness) balance(t *testing.T, p id.PrincipalID) uint64 {
	t.Helper()
	b, err := h.ledger.Balance(context.Background(), p)
	require.NoError(t, err)
	return b
}

func TestMintAndVerifyScenario(t *testing.T) {
	h := newHarness(t)
	alice, bob, carol := testutil.NewPrincipal(), testutil.NewPrincipal(), testutil.NewPrincipal()
	h.fund(t, alice, 15)
	h.fund(t, bob, 10)
	bronze := h.groups[models.TierBronze]
	t0 := testutil.T0

	pass, err := h.svc.MintPass(at(t0.Add(time.Second)), alice, 0, bronze)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), pass.Edition)
	assert.Equal(t, t0.Add(time.Second+models.PassValidity), pass.ExpiresAt)
	assert.Equal(t, uint64(5), h.balance(t, alice))
	assert.Equal(t, uint64(10), h.balance(t, h.authority))

	asset, err := h.assets.Asset(context.Background(), pass.BoundAsset)
	require.NoError(t, err)
	assert.Equal(t, "Bronze #0", asset.Label)
	assert.Equal(t, alice, asset.Owner)

	_, err = h.svc.MintPass(at(t0.Add(2*time.Second)), alice, 0, bronze)
	assert.True(t, dErrors.HasCode(err, dErrors.CodePassAlreadyActive))
	counter, err := h.configs.Counter(context.Background(), models.TierBronze)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), counter.Next)

	pass, err = h.svc.MintPass(at(t0.Add(3*time.Second)), bob, 0, bronze)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), pass.Edition)

	_, err = h.svc.VerifyPass(at(t0.Add(time.Second+models.PassValidity+time.Second)), alice)
	assert.True(t, dErrors.HasCode(err, dErrors.CodePassExpired))

	_, err = h.svc.MintPass(at(t0.Add(4*time.Second)), carol, 5, bronze)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTier))
	assert.Zero(t, h.balance(t, carol))
}

func TestMintInsufficientBalanceLeavesNoTrace(t *testing.T) {
	h := newHarness(t)
	dave := testutil.NewPrincipal()
	h.fund(t, dave, 29)

	_, err := h.svc.MintPass(at(testutil.T0), dave, int(models.TierGold), h.groups[models.TierGold])
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
	assert.Equal(t, uint64(29), h.balance(t, dave))

	group, err := h.assets.Group(context.Background(), h.groups[models.TierGold])
	require.NoError(t, err)
	assert.Zero(t, group.Minted)
}

func TestConcurrentMintsGetDistinctGapFreeEditions(t *testing.T) {
	h := newHarness(t)
	const buyers = 24
	principals := testutil.NewPrincipals(buyers)
	for _, p := range principals {
		h.fund(t, p, 30)
	}

	editions := make([]uint64, buyers)
	result := testutil.RunConcurrent(buyers, func(i int) error {
		pass, err := h.svc.MintPass(at(testutil.T0), principals[i], int(models.TierGold), h.groups[models.TierGold])
		if err != nil {
			return err
		}
		editions[i] = pass.Edition
		return nil
	})
	require.EqualValues(t, buyers, result.Successes, "errors: %v", result.Errors)

	sort.Slice(editions, func(i, j int) bool { return editions[i] < editions[j] })
	for i, e := range editions {
		assert.Equal(t, uint64(i), e)
	}
	counter, err := h.configs.Counter(context.Background(), models.TierGold)
	require.NoError(t, err)
	assert.Equal(t, uint64(buyers), counter.Next)
	assert.Equal(t, uint64(buyers*30), h.balance(t, h.authority))
}

func TestConcurrentMintsBySamePrincipalSucceedOnce(t *testing.T) {
	h := newHarness(t)
	const attempts = 12
	eve := testutil.NewPrincipal()
	h.fund(t, eve, attempts*20)

	passes := make([]*models.MemberPass, attempts)
	result := testutil.RunConcurrent(attempts, func(i int) error {
		pass, err := h.svc.MintPass(at(testutil.T0), eve, int(models.TierSilver), h.groups[models.TierSilver])
		passes[i] = pass
		return err
	})
	require.EqualValues(t, 1, result.Successes)
	assert.EqualValues(t, attempts-1, result.AlreadyUsed)

	for _, pass := range passes {
		if pass != nil {
			assert.Equal(t, uint64(0), pass.Edition)
		}
	}
	counter, err := h.configs.Counter(context.Background(), models.TierSilver)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), counter.Next, "losing requests never advance the counter")

	assert.Equal(t, uint64((attempts-1)*20), h.balance(t, eve), "losers were refunded")
	assert.Equal(t, uint64(20), h.balance(t, h.authority))

	tier, err := h.svc.VerifyPass(at(testutil.T0.Add(time.Minute)), eve)
	require.NoError(t, err)
	assert.Equal(t, models.TierSilver, tier)
}

// slowLabel delays minting one label so a later request can overtake it.
type slowLabel struct {
	*assetsmemory.InMemory
	label string
	delay time.Duration
}

func (r *slowLabel) MintAsset(ctx context.Context, group id.AssetGroupID, owner id.PrincipalID, label, metadataURI string) (id.AssetID, error) {
	if label == r.label {
		time.Sleep(r.delay)
	}
	return r.InMemory.MintAsset(ctx, group, owner, label, metadataURI)
}

func TestSamePrincipalRaceKeepsEditionsGapFree(t *testing.T) {
	h := newHarness(t)
	svc := New(h.configs, h.creds, h.ledger,
		&slowLabel{InMemory: h.assets, label: "Bronze #0", delay: 200 * time.Millisecond},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	eve, bob := testutil.NewPrincipal(), testutil.NewPrincipal()
	h.fund(t, eve, 20)
	h.fund(t, bob, 10)
	bronze := h.groups[models.TierBronze]

	passes := make([]*models.MemberPass, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range 2 {
		wg.Go(func() {
			time.Sleep(time.Duration(i) * 30 * time.Millisecond)
			passes[i], errs[i] = svc.MintPass(at(testutil.T0), eve, 0, bronze)
		})
	}
	wg.Wait()

	bobPass, err := svc.MintPass(at(testutil.T0), bob, 0, bronze)
	require.NoError(t, err)

	editions := []uint64{bobPass.Edition}
	for i := range passes {
		if errs[i] != nil {
			assert.True(t, dErrors.HasCode(errs[i], dErrors.CodePassAlreadyActive), "unexpected error: %v", errs[i])
			continue
		}
		editions = append(editions, passes[i].Edition)
	}
	sort.Slice(editions, func(i, j int) bool { return editions[i] < editions[j] })
	assert.Equal(t, []uint64{0, 1}, editions)

	counter, err := h.configs.Counter(context.Background(), models.TierBronze)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), counter.Next)
	assert.Equal(t, uint64(10), h.balance(t, eve), "the losing request was refunded")
	assert.Equal(t, uint64(20), h.balance(t, h.authority))
}

func TestOpenMintByNonAuthorityLeavesWindowClosed(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.OpenMint(at(testutil.T0), h.authority, testutil.T0.Add(24*time.Hour))
	require.NoError(t, err)

	_, err = h.svc.OpenMint(at(testutil.T0), testutil.NewPrincipal(), testutil.T0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	frank := testutil.NewPrincipal()
	h.fund(t, frank, 10)
	_, err = h.svc.MintPass(at(testutil.T0.Add(time.Hour)), frank, 0, h.groups[0])
	assert.True(t, dErrors.HasCode(err, dErrors.CodeMintingNotOpen))
}
