package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via
// -ldflags "-X github.com/fleetobserver/fleetobserver/cmd.Version=v1.0.0"
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "fleetobserver",
	Short: "Fleet Observer — session observability server for AI coding agents",
	Long: "Fleet Observer watches a fleet of long-running AI coding agent sessions, " +
		"parses their JSONL transcripts, and serves the live, enriched state of every " +
		"session over a small HTTP/WebSocket API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.json or $FLEET_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(doctorCmd())
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("FLEET_CONFIG"); v != "" {
		return v
	}
	return "config.json"
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
