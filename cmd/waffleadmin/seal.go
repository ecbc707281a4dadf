package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/waffle/internal/cryptox"
	"github.com/spf13/cobra"
)

// tokenEnv lets scripts pass the store token without putting it on the
// command line.
const tokenEnv = "WAFFLE_TOKEN"

func newSealCmd(opts *options) *cobra.Command {
	var storeID, token string

	cmd := &cobra.Command{
		Use:   "seal",
		Short: "Encrypt a store ID and token into a bootstrap blob",
		Long: `Seal encrypts "{storeId}|{token}" with the group passphrase. Put the
printed blob into the client config as "encrypted_bootstrap".

The token is taken from --token, then $WAFFLE_TOKEN, then prompted for.

Example:
  waffleadmin seal --store-id 0f3c9a...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv(tokenEnv)
			}
			if token == "" {
				t, err := opts.readSecret(cmd, "Store token")
				if err != nil {
					return err
				}
				token = t
			}

			pass, err := opts.readSecret(cmd, "Group passphrase")
			if err != nil {
				return err
			}
			again, err := opts.readSecret(cmd, "Repeat passphrase")
			if err != nil {
				return err
			}
			if pass != again {
				return errors.New("passphrases do not match")
			}

			blob, err := cryptox.SealBootstrap(storeID, token, pass)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), blob)
			return nil
		},
	}

	cmd.Flags().StringVar(&storeID, "store-id", "", "gist ID, bucket or other store identifier")
	cmd.Flags().StringVar(&token, "token", "", "store access token (prefer $"+tokenEnv+")")
	_ = cmd.MarkFlagRequired("store-id")
	return cmd
}
