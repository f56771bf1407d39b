// Command passctl is the operator CLI for memberpass: key and token
// generation, platform administration over HTTP, and direct ledger funding.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const programName = "passctl"

var globalFlags = struct {
	server     string
	keyFile    string
	adminToken string
	audience   string
}{}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           programName,
		Short:         "Operate a memberpass server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&globalFlags.server, "server", envOr("MEMBERPASS_SERVER", "http://localhost:8080"), "server base URL")
	root.PersistentFlags().StringVar(&globalFlags.keyFile, "key", envOr("MEMBERPASS_KEY", "passctl-key.json"), "principal key file")
	root.PersistentFlags().StringVar(&globalFlags.adminToken, "admin-token", os.Getenv("ADMIN_API_TOKEN"), "value for the X-Admin-Token header")
	root.PersistentFlags().StringVar(&globalFlags.audience, "audience", envOr("TOKEN_AUDIENCE", "memberpass"), "principal token audience")

	root.AddCommand(
		keygenCommand(),
		tokenCommand(),
		initCommand(),
		registerGroupsCommand(),
		openMintCommand(),
		mintCommand(),
		verifyCommand(),
		creditCommand(),
		auditCommand(),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", programName, err)
		os.Exit(1)
	}
}
