package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/client"
)

// SessionCommands are the client side of the API. The access token is
// never written to disk, so every invocation restores the session from
// the stored refresh token first.
type SessionCommands struct {
	runtime *runtime
}

func NewSessionCommands(rt *runtime) *SessionCommands {
	return &SessionCommands{runtime: rt}
}

func (c *SessionCommands) Commands() []*cobra.Command {
	return []*cobra.Command{c.login(), c.get(), c.logout(), c.status()}
}

func (c *SessionCommands) login() *cobra.Command {
	var username, pass string
	cmd := &cobra.Command{
		Use:           "login",
		Short:         "Log in and store the session",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := c.runtime.newClient()
			if err != nil {
				return err
			}
			if pass == "" {
				pass = os.Getenv("ECONTACT_PASSWORD")
			}
			if err := cl.Login(cmd.Context(), username, pass); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged in as", username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "login name")
	cmd.Flags().StringVarP(&pass, "password", "p", "", "password (default $ECONTACT_PASSWORD)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func (c *SessionCommands) get() *cobra.Command {
	return &cobra.Command{
		Use:           "get <path>",
		Short:         "GET an API path with the stored session",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.restore(cmd)
			if err != nil {
				return err
			}
			req, err := cl.NewRequest(cmd.Context(), http.MethodGet, args[0], nil)
			if err != nil {
				return err
			}
			resp, err := cl.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			fmt.Fprintln(cmd.ErrOrStderr(), resp.Status)
			_, err = io.Copy(cmd.OutOrStdout(), resp.Body)
			return err
		},
	}
}

func (c *SessionCommands) logout() *cobra.Command {
	return &cobra.Command{
		Use:           "logout",
		Short:         "Revoke the stored session",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := c.restore(cmd)
			if err != nil {
				return err
			}
			if err := cl.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func (c *SessionCommands) status() *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show whether a stored session can be restored",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := c.restore(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cl.State() != client.StateAuthenticated {
				fmt.Fprintln(out, client.StateUnauthenticated)
				return nil
			}
			id, err := cl.Me(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s as %s (%s) at %s\n", client.StateAuthenticated, id.UserID, id.Role, strings.TrimRight(cl.BaseURL(), "/"))
			return nil
		},
	}
}

func (c *SessionCommands) restore(cmd *cobra.Command) (*client.Client, error) {
	cl, err := c.runtime.newClient()
	if err != nil {
		return nil, err
	}
	cl.Bootstrap(cmd.Context())
	return cl, nil
}
