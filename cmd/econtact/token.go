package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

type TokenCommand struct {
	runtime *runtime
}

func NewTokenCommand(rt *runtime) *TokenCommand {
	return &TokenCommand{runtime: rt}
}

func (c *TokenCommand) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Operate on the revocation denylist",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:           "revoke <token>",
			Short:         "Deny a token until it expires",
			Args:          cobra.ExactArgs(1),
			SilenceErrors: true,
			SilenceUsage:  true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.apply(cmd, args[0], true)
			},
		},
		&cobra.Command{
			Use:           "unrevoke <token>",
			Short:         "Remove a token from the denylist",
			Args:          cobra.ExactArgs(1),
			SilenceErrors: true,
			SilenceUsage:  true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.apply(cmd, args[0], false)
			},
		},
	)
	return cmd
}

func (c *TokenCommand) apply(cmd *cobra.Command, token string, revoke bool) error {
	b, err := c.runtime.openBackend(cmd.Context())
	if err != nil {
		return err
	}
	if revoke {
		err = b.engine.Revoke(cmd.Context(), token)
	} else {
		err = b.engine.Unrevoke(cmd.Context(), token)
	}
	if err == nil {
		verb := "revoked"
		if !revoke {
			verb = "unrevoked"
		}
		fmt.Fprintln(cmd.OutOrStdout(), verb)
	}
	return multierr.Append(err, b.Close())
}
