// Package main provides the cropwise CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts globalOpts

	rootCmd := &cobra.Command{
		Use:   "cropwise",
		Short: "Crop suitability scoring and recommendations",
		Long: `Cropwise scores soil and climate readings against a catalog of crop
profiles, recommends the best-suited crops, and diagnoses plant disease
from leaf images.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file (default: discover .cropwise/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(
		newRecommendCmd(&opts),
		newCropsCmd(&opts),
		newScoreCmd(&opts),
		newDetectCmd(&opts),
		newServeCmd(&opts),
	)
	return rootCmd
}
