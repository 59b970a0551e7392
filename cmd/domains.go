package main

import (
	"chatrelay/internal/config"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func domainsCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "Prints the trusted media domains as a domains file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			trusted, err := trustedDomains(cmd.Context(), cfg.Content.TrustedDomainsFile)
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(trusted)
			if err != nil {
				return fmt.Errorf("could not encode trusted domains: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)

			return err
		},
	}
}
