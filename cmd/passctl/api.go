package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	adminmw "memberpass/pkg/platform/middleware/admin"
)

const requestTimeout = 30 * time.Second

// call sends an authenticated request and pretty-prints the JSON response.
// Non-2xx responses become errors carrying the server's error code.
func call(cmd *cobra.Command, method, path string, admin bool, body any) error {
	account, err := readKey(globalFlags.keyFile)
	if err != nil {
		return err
	}
	token, err := issueToken(account, time.Minute)
	if err != nil {
		return err
	}

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(globalFlags.server, "/")+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin && globalFlags.adminToken != "" {
		req.Header.Set(adminmw.HeaderAdminToken, globalFlags.adminToken)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %d %s: %s", method, path, resp.StatusCode, apiErr.Error, apiErr.Description)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}

	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		_, err = cmd.OutOrStdout().Write(raw)
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.String())
	return nil
}

func initCommand() *cobra.Command {
	var bronze, silver, gold uint64
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the platform with the key file as authority",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, http.MethodPost, "/admin/platform", true, map[string]uint64{
				"bronze_price": bronze,
				"silver_price": silver,
				"gold_price":   gold,
			})
		},
	}
	cmd.Flags().Uint64Var(&bronze, "bronze-price", 0, "bronze tier price")
	cmd.Flags().Uint64Var(&silver, "silver-price", 0, "silver tier price")
	cmd.Flags().Uint64Var(&gold, "gold-price", 0, "gold tier price")
	return cmd
}

func registerGroupsCommand() *cobra.Command {
	var bronze, silver, gold string
	cmd := &cobra.Command{
		Use:   "register-groups",
		Short: "Create the three tier asset groups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, http.MethodPost, "/admin/platform/asset-groups", true, map[string]string{
				"bronze_uri": bronze,
				"silver_uri": silver,
				"gold_uri":   gold,
			})
		},
	}
	cmd.Flags().StringVar(&bronze, "bronze-uri", "", "bronze metadata URI")
	cmd.Flags().StringVar(&silver, "silver-uri", "", "silver metadata URI")
	cmd.Flags().StringVar(&gold, "gold-uri", "", "gold metadata URI")
	return cmd
}

func openMintCommand() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "open-mint",
		Short: "Open minting now or at an RFC 3339 time",
		RunE: func(cmd *cobra.Command, _ []string) error {
			body := map[string]int64{}
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("parse --at: %w", err)
				}
				body["mint_open_timestamp"] = t.Unix()
			}
			return call(cmd, http.MethodPost, "/admin/platform/open-mint", true, body)
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "opening time, e.g. 2026-01-01T00:00:00Z (default now)")
	return cmd
}

func mintCommand() *cobra.Command {
	var tier int
	var group string
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint a pass for the key file's principal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, http.MethodPost, "/passes", false, map[string]any{
				"tier":        tier,
				"asset_group": group,
			})
		},
	}
	cmd.Flags().IntVar(&tier, "tier", 0, "tier number: 0 bronze, 1 silver, 2 gold")
	cmd.Flags().StringVar(&group, "asset-group", "", "asset group address of the tier")
	_ = cmd.MarkFlagRequired("asset-group")
	return cmd
}

func verifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the key file's principal holds a live pass",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, http.MethodGet, "/passes/me/verify", false, nil)
		},
	}
}
