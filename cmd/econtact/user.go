package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	econtact "github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/password"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/users"
)

type UserCommand struct {
	runtime *runtime
}

func NewUserCommand(rt *runtime) *UserCommand {
	return &UserCommand{runtime: rt}
}

func (c *UserCommand) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(c.addCommand(), c.activeCommand("enable", true), c.activeCommand("disable", false))
	return cmd
}

func (c *UserCommand) addCommand() *cobra.Command {
	var username, pass, role string
	cmd := &cobra.Command{
		Use:           "add",
		Short:         "Create an account",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withDirectory(cmd.Context(), func(dir *users.GormDirectory) error {
				hasher, err := password.NewArgon2(passwordConfig(c.runtime.cfg.Auth.Password))
				if err != nil {
					return err
				}
				hash, err := hasher.Hash(pass)
				if err != nil {
					return err
				}
				rec, err := dir.CreateUser(cmd.Context(), users.NewUser{
					Username:     username,
					PasswordHash: hash,
					Role:         econtact.Role(role),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s, %s)\n", rec.Username, rec.UserID, rec.Role)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "login name")
	cmd.Flags().StringVarP(&pass, "password", "p", "", "initial password")
	cmd.Flags().StringVarP(&role, "role", "r", string(econtact.RoleParent), "admin, teacher, parent or student")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *UserCommand) activeCommand(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:           use + " <username>",
		Short:         "Set whether an account may log in and refresh",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDirectory(cmd.Context(), func(dir *users.GormDirectory) error {
				if err := dir.SetActive(cmd.Context(), args[0], active); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %sd\n", args[0], use)
				return nil
			})
		},
	}
}

func (c *UserCommand) withDirectory(ctx context.Context, fn func(*users.GormDirectory) error) error {
	dir, closeDB, err := c.runtime.openDirectory(ctx)
	if err != nil {
		return err
	}
	return multierr.Append(fn(dir), closeDB())
}

func passwordConfig(p econtact.PasswordConfig) password.Config {
	return password.Config{
		Memory:      p.Memory,
		Time:        p.Time,
		Parallelism: p.Parallelism,
		SaltLength:  p.SaltLength,
		KeyLength:   p.KeyLength,
	}
}
