package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberpass/internal/platform/config"
	"memberpass/internal/principaltoken"
	id "memberpass/pkg/domain"
	adminmw "memberpass/pkg/platform/middleware/admin"
)

const testAdminToken = "admin-secret"

func newTestApp(t *testing.T, mutate func(*config.Config)) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.AdminAPIToken = testAdminToken
	cfg.Storage.DataDir = t.TempDir()
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, cfg.Validate())

	a, err := New(context.Background(), &cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })
	return a
}

type client struct {
	t      *testing.T
	server *httptest.Server
}

func (c client) call(method, path string, signer *types.Account, admin bool, body any) (*http.Response, map[string]any) {
	c.t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.server.URL+path, payload)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if signer != nil {
		token, err := principaltoken.Issue(signer.PrivateKey, principaltoken.DefaultAudience, time.Now(), time.Minute)
		require.NoError(c.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if admin {
		req.Header.Set(adminmw.HeaderAdminToken, testAdminToken)
	}
	resp, err := c.server.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(c.t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func TestEndToEndMint(t *testing.T) {
	a := newTestApp(t, nil)
	srv := httptest.NewServer(a.Router())
	defer srv.Close()
	c := client{t: t, server: srv}
	authority := types.NewAccount()

	resp, _ := c.call(http.MethodPost, "/admin/platform", &authority, false, map[string]uint64{"bronze_price": 10})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "admin token required")

	resp, _ = c.call(http.MethodPost, "/admin/platform", &authority, true, map[string]uint64{
		"bronze_price": 10, "silver_price": 20, "gold_price": 30,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, platform := c.call(http.MethodPost, "/admin/platform/asset-groups", &authority, true, map[string]string{
		"bronze_uri": "ipfs://bronze", "silver_uri": "ipfs://silver", "gold_uri": "ipfs://gold",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tiers := platform["tiers"].([]any)
	silverGroup := tiers[1].(map[string]any)["asset_group"].(string)

	resp, _ = c.call(http.MethodPost, "/admin/platform/open-mint", &authority, true, map[string]any{
		"mint_open_timestamp": time.Now().Add(-time.Minute).Unix(),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	buyer := types.NewAccount()
	require.NoError(t, a.Ledger.Credit(context.Background(), id.PrincipalID(buyer.PublicKey), 25))

	resp, pass := c.call(http.MethodPost, "/passes", &buyer, false, map[string]any{"tier": 1, "asset_group": silverGroup})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Silver #0", pass["label"])

	balance, err := a.Ledger.Balance(context.Background(), id.PrincipalID(buyer.PublicKey))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), balance)
	treasury, err := a.Ledger.Balance(context.Background(), id.PrincipalID(authority.PublicKey))
	require.NoError(t, err)
	assert.Equal(t, uint64(20), treasury, "treasury defaults to the authority")

	resp, verified := c.call(http.MethodGet, "/passes/me/verify", &buyer, false, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Silver", verified["tier_name"])

	resp, _ = c.call(http.MethodGet, "/passes/me/access/gold", &buyer, false, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = c.call(http.MethodGet, "/health/ready", nil, false, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	metrics, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(metrics.Body)
	require.NoError(t, err)
	require.NoError(t, metrics.Body.Close())
	assert.Contains(t, string(body), `memberpass_passes_minted_total{tier="Silver"} 1`)
	assert.Contains(t, string(body), "memberpass_http_request_duration_seconds")

	require.Eventually(t, func() bool {
		events, err := a.Audit.ListAll(context.Background())
		if err != nil {
			return false
		}
		for _, e := range events {
			if e.Action == "pass_minted" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond, "mint reaches the audit store")
}

func TestBadgerAndSQLiteBackends(t *testing.T) {
	a := newTestApp(t, func(c *config.Config) {
		c.Storage.StoreBackend = config.BackendBadger
		c.Storage.AssetBackend = config.BackendSQLite
	})
	authority := id.PrincipalID(types.NewAccount().PublicKey)

	_, err := a.Service.InitializePlatform(context.Background(), authority, 1, 2, 3)
	require.NoError(t, err)
	cfg, err := a.Service.RegisterAssetGroups(context.Background(), authority, "ipfs://b", "ipfs://s", "ipfs://g")
	require.NoError(t, err)
	assert.False(t, cfg.Tiers[2].AssetGroup.IsNil())

	srv := httptest.NewServer(a.Router())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewRejectsInvalidTreasury(t *testing.T) {
	cfg := config.Default()
	cfg.Pass.Treasury = "not-base58-0OIl"
	_, err := New(context.Background(), &cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "parse TREASURY")
}
