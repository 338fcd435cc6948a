package main

import (
	"github.com/spf13/cobra"

	"github.com/aa-schnorr/schnorrkel/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the configuration after file and environment overrides",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				shown := *a.cfg
				if shown.Mailbox.Redis.Password != "" {
					shown.Mailbox.Redis.Password = "********"
				}
				data, err := shown.Marshal()
				if err != nil {
					return err
				}
				a.printf("%s", data)
				return nil
			},
		},
		&cobra.Command{
			Use:   "env",
			Short: "List the supported environment variables",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				config.PrintEnvUsage(a.out)
				return nil
			},
		},
	)
	return cmd
}
