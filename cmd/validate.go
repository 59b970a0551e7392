package main

import (
	"chatrelay/internal/config"
	"chatrelay/pkg/content"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func validateCommand(cfg *config.Config) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "validate [payload]",
		Short: "Runs the message pipeline on a payload and prints what would be broadcast",
		Long: "Runs the message pipeline on a JSON payload given as argument, or read from " +
			"stdin when no argument is given, and prints the payload that would be broadcast.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			raw := ""
			if len(args) == 1 {
				raw = args[0]
			} else {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("could not read payload: %w", err)
				}
				raw = strings.TrimSuffix(string(b), "\n")
			}

			trusted, err := trustedDomains(ctx, cfg.Content.TrustedDomainsFile)
			if err != nil {
				return err
			}

			res := content.NewPipeline(trusted).Validate(ctx, raw)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), res.Payload)
			if verbose {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "kind: %s\n", res.Kind)
				if res.Err != nil {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "reason: %v\n", res.Err)
				}
			}

			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print the classification and rejection reason to stderr")

	return cmd
}
