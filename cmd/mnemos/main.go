// Package main is the entry point for the mnemos CLI.
package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mnemos [type:content ...]",
		Short: "mnemos: findings log for long-running investigations",
		Long: `mnemos keeps an append-only log of observations, insights, discoveries
and issues, compresses it as it grows, and surfaces what is relevant again.

Run without arguments for an overview of the current investigation, or log
several findings at once:

  mnemos o:"pool exhausted at 09:00" i:"idle connections never close"`,
		Version:      version,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("output")
			if !slices.Contains(outputFormats, format) {
				return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return showOverview(cmd)
			}
			return logChain(cmd, args)
		},
	}

	root.PersistentFlags().String("output", formatText, "output format: text, json or yaml")
	root.PersistentFlags().BoolP("verbose", "v", false, "debug logging on stderr and the store location")

	root.AddCommand(commands()...)
	return root
}
