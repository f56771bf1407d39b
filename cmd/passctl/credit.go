package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"memberpass/internal/app"
	"memberpass/internal/platform/config"
	id "memberpass/pkg/domain"
)

// creditCommand funds an account directly in the configured ledger. It needs
// a shared ledger backend; the memory ledger lives and dies with this process.
func creditCommand() *cobra.Command {
	var configFile, envFile, account string
	var amount uint64
	cmd := &cobra.Command{
		Use:   "credit",
		Short: "Credit an account in the configured ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, envFile)
			if err != nil {
				return err
			}
			if cfg.Storage.LedgerBackend == config.BackendMemory {
				return fmt.Errorf("LEDGER_BACKEND=memory is private to the server process")
			}

			var principal id.PrincipalID
			if account != "" {
				if principal, err = id.ParsePrincipalID(account); err != nil {
					return err
				}
			} else {
				key, err := readKey(globalFlags.keyFile)
				if err != nil {
					return err
				}
				principal = principalOf(key)
			}

			a, err := app.New(cmd.Context(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Ledger.Credit(cmd.Context(), principal, amount); err != nil {
				return err
			}
			balance, err := a.Ledger.Balance(cmd.Context(), principal)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s balance %d\n", principal, balance)
			return nil
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "server YAML config file")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "server .env file")
	cmd.Flags().StringVar(&account, "account", "", "account to credit (default: key file principal)")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "amount to credit")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
