package e2e

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"

	"memberpass/internal/pass/models"
)

// RegisterSteps registers all step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Background
	ctx.Step(`^the membership service is running$`, tc.serviceIsRunning)

	// Administration
	ctx.Step(`^"([^"]*)" initializes the platform with prices (\d+), (\d+) and (\d+)$`, tc.initializePlatform)
	ctx.Step(`^"([^"]*)" registers the tier asset groups$`, tc.registerAssetGroups)
	ctx.Step(`^"([^"]*)" opens minting$`, tc.openMint)

	// Funds
	ctx.Step(`^"([^"]*)" has a balance of (\d+)$`, tc.creditAccount)
	ctx.Step(`^"([^"]*)" should have a balance of (\d+)$`, tc.balanceShouldBe)

	// Members
	ctx.Step(`^"([^"]*)" mints a "([^"]*)" pass$`, tc.mintPass)
	ctx.Step(`^"([^"]*)" mints a "([^"]*)" pass from the "([^"]*)" asset group$`, tc.mintPassFromGroup)
	ctx.Step(`^"([^"]*)" verifies their pass$`, tc.verifyPass)
	ctx.Step(`^"([^"]*)" requests "([^"]*)" access$`, tc.requestAccess)
	ctx.Step(`^anyone looks up the pass of "([^"]*)"$`, tc.lookUpPass)

	// Assertions
	ctx.Step(`^the response status should be (\d+)$`, tc.responseStatusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, tc.responseFieldShouldEqual)
}

func (tc *TestContext) serviceIsRunning(ctx context.Context) error {
	if tc.server == nil {
		return fmt.Errorf("server not started")
	}
	return nil
}

func (tc *TestContext) initializePlatform(ctx context.Context, who string, bronze, silver, gold int) error {
	return tc.Do(http.MethodPost, "/admin/platform", who, true, map[string]int{
		"bronze_price": bronze,
		"silver_price": silver,
		"gold_price":   gold,
	})
}

func (tc *TestContext) registerAssetGroups(ctx context.Context, who string) error {
	return tc.Do(http.MethodPost, "/admin/platform/asset-groups", who, true, map[string]string{
		"bronze_uri": "ipfs://memberpass/bronze.json",
		"silver_uri": "ipfs://memberpass/silver.json",
		"gold_uri":   "ipfs://memberpass/gold.json",
	})
}

func (tc *TestContext) openMint(ctx context.Context, who string) error {
	return tc.Do(http.MethodPost, "/admin/platform/open-mint", who, true, map[string]any{})
}

func (tc *TestContext) creditAccount(ctx context.Context, who string, amount int) error {
	return tc.app.Ledger.Credit(ctx, tc.principal(who), uint64(amount))
}

func (tc *TestContext) balanceShouldBe(ctx context.Context, who string, expected int) error {
	balance, err := tc.app.Ledger.Balance(ctx, tc.principal(who))
	if err != nil {
		return err
	}
	if balance != uint64(expected) {
		return fmt.Errorf("expected %s to hold %d but has %d", who, expected, balance)
	}
	return nil
}

func (tc *TestContext) mintPass(ctx context.Context, who, tier string) error {
	return tc.mintPassFromGroup(ctx, who, tier, tier)
}

func (tc *TestContext) mintPassFromGroup(ctx context.Context, who, tier, groupTier string) error {
	t, err := models.ParseTierName(tier)
	if err != nil {
		return err
	}
	group, err := tc.assetGroup(groupTier)
	if err != nil {
		return err
	}
	return tc.Do(http.MethodPost, "/passes", who, false, map[string]any{
		"tier":        int(t),
		"asset_group": group,
	})
}

func (tc *TestContext) verifyPass(ctx context.Context, who string) error {
	return tc.Do(http.MethodGet, "/passes/me/verify", who, false, nil)
}

func (tc *TestContext) requestAccess(ctx context.Context, who, tier string) error {
	return tc.Do(http.MethodGet, "/passes/me/access/"+tier, who, false, nil)
}

func (tc *TestContext) lookUpPass(ctx context.Context, who string) error {
	return tc.Do(http.MethodGet, "/passes/"+tc.principal(who).String(), "", false, nil)
}

func (tc *TestContext) responseStatusShouldBe(ctx context.Context, expected int) error {
	if actual := tc.status(); actual != expected {
		return fmt.Errorf("expected status %d but got %d: %s", expected, actual, tc.LastResponseBody)
	}
	return nil
}

func (tc *TestContext) responseFieldShouldEqual(ctx context.Context, field, expected string) error {
	value, err := tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if actual := fmt.Sprint(value); actual != expected {
		return fmt.Errorf("expected %s to be %q but got %q", field, expected, actual)
	}
	return nil
}
