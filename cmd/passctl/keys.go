package main

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"memberpass/internal/principaltoken"
	id "memberpass/pkg/domain"
)

// keyFile is the on-disk form of a principal key pair, both halves base58.
type keyFile struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

func writeKey(path string, account types.Account) error {
	raw, err := json.MarshalIndent(keyFile{
		PublicKey:  account.PublicKey.ToBase58(),
		PrivateKey: base58.Encode(account.PrivateKey),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(raw, '\n'), 0o600)
}

func readKey(path string) (types.Account, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.Account{}, fmt.Errorf("read key file: %w", err)
	}
	var kf keyFile
	if err := json.Unmarshal(raw, &kf); err != nil {
		return types.Account{}, fmt.Errorf("parse key file: %w", err)
	}
	priv, err := base58.Decode(kf.PrivateKey)
	if err != nil {
		return types.Account{}, fmt.Errorf("decode private key: %w", err)
	}
	if len(priv) != ed25519.PrivateKeySize {
		return types.Account{}, errors.New("private key must be 64 bytes")
	}
	account, err := types.AccountFromBytes(priv)
	if err != nil {
		return types.Account{}, err
	}
	if kf.PublicKey != "" && kf.PublicKey != account.PublicKey.ToBase58() {
		return types.Account{}, errors.New("public key does not match private key")
	}
	return account, nil
}

func principalOf(account types.Account) id.PrincipalID {
	return id.PrincipalID(account.PublicKey)
}

func issueToken(account types.Account, ttl time.Duration) (string, error) {
	return principaltoken.Issue(account.PrivateKey, globalFlags.audience, time.Now(), ttl)
}

func keygenCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a principal key pair into the key file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(globalFlags.keyFile); err == nil && !force {
				return fmt.Errorf("%s exists, pass --force to overwrite", globalFlags.keyFile)
			}
			account := types.NewAccount()
			if err := writeKey(globalFlags.keyFile, account); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), account.PublicKey.ToBase58())
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key file")
	return cmd
}

func tokenCommand() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token signed by the key file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, err := readKey(globalFlags.keyFile)
			if err != nil {
				return err
			}
			token, err := issueToken(account, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 5*time.Minute, "token lifetime")
	return cmd
}
