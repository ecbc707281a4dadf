package main

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/waffle/internal/client/services"
	"github.com/dmitrijs2005/waffle/internal/common"
	"github.com/dmitrijs2005/waffle/internal/cryptox"
	"github.com/spf13/cobra"
)

func newOpenCmd(opts *options) *cobra.Command {
	var showToken bool

	cmd := &cobra.Command{
		Use:   "open [blob]",
		Short: "Decrypt a bootstrap blob and print what it addresses",
		Long: `Open checks a passphrase against a bootstrap blob. Without an argument
the blob from the config file is used. The token is masked unless
--show-token is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := opts.unlock(cmd, args)
			if err != nil {
				return err
			}
			token := creds.Token
			if !showToken {
				token = mask(token)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "store: %s\ntoken: %s\n", creds.StoreID, token)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showToken, "show-token", false, "print the token in full")
	return cmd
}

// unlock opens the blob given in args, or the configured one, with a
// prompted passphrase.
func (o *options) unlock(cmd *cobra.Command, args []string) (*services.Credentials, error) {
	blob := o.cfg.EncryptedBootstrap
	if len(args) > 0 {
		blob = args[0]
	}
	if blob == "" {
		return nil, errors.New("no bootstrap blob: pass one or set encrypted_bootstrap in the config")
	}

	pass, err := o.readSecret(cmd, "Group passphrase")
	if err != nil {
		return nil, err
	}

	id, token, err := cryptox.OpenBootstrap(blob, pass)
	switch {
	case errors.Is(err, common.ErrMalformedBootstrap):
		return nil, fmt.Errorf("bootstrap blob is damaged: %w", err)
	case errors.Is(err, common.ErrAuthenticationFailed):
		return nil, errors.New("wrong passphrase")
	case err != nil:
		return nil, err
	}
	return &services.Credentials{StoreID: id, Token: token}, nil
}

func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
