package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/blocto/solana-go-sdk/types"

	"memberpass/internal/app"
	"memberpass/internal/platform/config"
	"memberpass/internal/principaltoken"
	id "memberpass/pkg/domain"
	adminmw "memberpass/pkg/platform/middleware/admin"
)

const adminToken = "e2e-admin-token"

// TestContext holds state between the steps of one scenario. Every scenario
// gets its own server with in-memory backends.
type TestContext struct {
	app        *app.App
	server     *httptest.Server
	dataDir    string
	HTTPClient *http.Client

	accounts map[string]types.Account

	LastResponse     *http.Response
	LastResponseBody []byte
}

func NewTestContext() *TestContext {
	return &TestContext{accounts: make(map[string]types.Account)}
}

func (tc *TestContext) start(ctx context.Context) error {
	dir, err := os.MkdirTemp("", "memberpass-e2e-")
	if err != nil {
		return err
	}
	tc.dataDir = dir

	cfg := config.Default()
	cfg.Auth.AdminAPIToken = adminToken
	cfg.Storage.DataDir = dir
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, err := app.New(ctx, &cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return fmt.Errorf("start memberpass: %w", err)
	}
	tc.app = a
	tc.server = httptest.NewServer(a.Router())
	tc.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	return nil
}

func (tc *TestContext) stop() error {
	if tc.server != nil {
		tc.server.Close()
	}
	var err error
	if tc.app != nil {
		err = tc.app.Close()
	}
	if tc.dataDir != "" {
		_ = os.RemoveAll(tc.dataDir)
	}
	return err
}

// account returns the key pair behind a scenario name, creating it on first use.
func (tc *TestContext) account(name string) types.Account {
	acc, ok := tc.accounts[name]
	if !ok {
		acc = types.NewAccount()
		tc.accounts[name] = acc
	}
	return acc
}

func (tc *TestContext) principal(name string) id.PrincipalID {
	return id.PrincipalID(tc.account(name).PublicKey)
}

// Do sends a request signed as who; an empty who sends it anonymously.
// Admin requests also carry the admin token.
func (tc *TestContext) Do(method, path, who string, admin bool, body any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, tc.server.URL+path, payload)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if who != "" {
		acc := tc.account(who)
		token, err := principaltoken.Issue(acc.PrivateKey, principaltoken.DefaultAudience, time.Now(), time.Minute)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if admin {
		req.Header.Set(adminmw.HeaderAdminToken, adminToken)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// GetResponseField extracts a top-level field from the JSON response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	value, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %s not found in response: %s", field, tc.LastResponseBody)
	}
	return value, nil
}

func (tc *TestContext) logFailure(scenario string) {
	fmt.Fprintf(os.Stderr, "scenario %q failed, last response %d: %s\n", scenario, tc.status(), tc.LastResponseBody)
}

func (tc *TestContext) status() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

// assetGroup reads the platform and returns the asset group bound to tier.
func (tc *TestContext) assetGroup(tier string) (string, error) {
	if err := tc.Do(http.MethodGet, "/platform", "", false, nil); err != nil {
		return "", err
	}
	var platform struct {
		Tiers []struct {
			Name       string `json:"name"`
			AssetGroup string `json:"asset_group"`
		} `json:"tiers"`
	}
	if err := json.Unmarshal(tc.LastResponseBody, &platform); err != nil {
		return "", err
	}
	for _, t := range platform.Tiers {
		if strings.EqualFold(t.Name, tier) {
			return t.AssetGroup, nil
		}
	}
	return "", fmt.Errorf("tier %q not found in platform", tier)
}
