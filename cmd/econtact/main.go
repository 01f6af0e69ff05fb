// Command econtact runs the E-Contact authentication service and provides
// operator and client subcommands against it.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rt := &runtime{}
	root := &cobra.Command{
		Use:               "econtact",
		Short:             "E-Contact session and token service",
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: rt.prepare,
		PersistentPostRun: func(*cobra.Command, []string) { rt.sync() },
	}
	root.PersistentFlags().StringVarP(&rt.configPath, "config", "c", "", "config file (yaml, toml or json)")

	root.AddCommand(
		NewServeCommand(rt).Command(),
		NewUserCommand(rt).Command(),
		NewTokenCommand(rt).Command(),
		NewLoadtestCommand(rt).Command(),
	)
	root.AddCommand(NewSessionCommands(rt).Commands()...)
	return root
}
