package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/brightwire/knxlogic/pkg/log"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "knxlogic",
	Short:   "KNX Logic Runtime - data-flow execution engine for a KNX/IP home-automation bridge",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"knxlogic version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "./knxlogic.yaml", "Path to the daemon config file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reloadCustomBlocksCmd)
	rootCmd.AddCommand(exportBackupCmd)
	rootCmd.AddCommand(importBackupCmd)
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(instantiateCmd)
	rootCmd.AddCommand(bindCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
