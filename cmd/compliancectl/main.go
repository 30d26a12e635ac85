// Package main provides compliancectl, the operator CLI for the compliance engine.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	Version   = "1.0.0"
	BuildTime = "dev"
	appName   = "compliancectl"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Operate the RTO compliance engine",
		Long: `compliancectl runs the compliance engine's batch jobs against the same
database, Redis and NATS configuration as the API server.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", formatJSON, "Output format (json, yaml, csv for scan)")

	cmd.AddCommand(
		escalateCmd(opts),
		scanCmd(opts),
		syncAlertsCmd(opts),
		snapshotCmd(opts),
		migrateCmd(),
		tokenCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)
	return cmd
}
