package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brightwire/knxlogic/pkg/backup"
	"github.com/brightwire/knxlogic/pkg/config"
	"github.com/brightwire/knxlogic/pkg/types"
)

// withRuntime loads the config from the --config flag, bootstraps a
// runtime, runs fn, and always tears the runtime back down afterwards.
// The one-shot commands below are daemons for the duration of a single
// action: there is no separate admin RPC surface in scope, so they pay the
// full bootstrap/shutdown cost rather than talking to a running serve
// process.
func withRuntime(cmd *cobra.Command, fn func(rt *runtime) error) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rt, err := bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	runErr := fn(rt)
	if shutErr := rt.shutdown(); shutErr != nil && runErr == nil {
		return shutErr
	}
	return runErr
}

var reloadCustomBlocksCmd = &cobra.Command{
	Use:   "reload-custom-blocks",
	Short: "Rescan the custom blocks directory and register any new plugin block types",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(rt *runtime) error {
			if rt.cfg.CustomBlocksDir == "" {
				return fmt.Errorf("customBlocksDir is not set")
			}
			return rt.reg.LoadFromPath(rt.cfg.CustomBlocksDir)
		})
	},
}

var exportBackupOutput string

var exportBackupCmd = &cobra.Command{
	Use:   "export-backup",
	Short: "Write a self-contained JSON backup of addresses, instances, bindings, pages, and custom blocks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(rt *runtime) error {
			doc, err := backup.Export(rt.addrStore, rt.cfgStore, rt.cfg.CustomBlocksDir)
			if err != nil {
				return err
			}
			return doc.WriteTo(exportBackupOutput)
		})
	},
}

var importBackupCmd = &cobra.Command{
	Use:   "import-backup [path]",
	Short: "Merge a backup file's addresses, instances, bindings, pages, and custom blocks into the live stores",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := backup.Load(args[0])
		if err != nil {
			return err
		}
		return withRuntime(cmd, func(rt *runtime) error {
			return doc.Import(rt.addrStore, rt.cfgStore, rt.cfg.CustomBlocksDir)
		})
	},
}

var triggerCmd = &cobra.Command{
	Use:   "trigger [instance-id]",
	Short: "Force an instance to execute regardless of input change detection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(rt *runtime) error {
			return rt.sched.Trigger(args[0])
		})
	},
}

var instantiateTypeKey, instantiatePageID, instantiateName string

var instantiateCmd = &cobra.Command{
	Use:   "instantiate [instance-id]",
	Short: "Create and persist a new block instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if instantiateTypeKey == "" {
			return fmt.Errorf("--type is required")
		}
		return withRuntime(cmd, func(rt *runtime) error {
			_, err := rt.sched.Instantiate(instantiateTypeKey, args[0], instantiatePageID, instantiateName)
			return err
		})
	},
}

var bindDirection string

var bindCmd = &cobra.Command{
	Use:   "bind [instance-id] [port] [address]",
	Short: "Bind an instance's port to a bus address (or BLOCK:instance:port shorthand)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := types.Direction(bindDirection)
		if dir != types.DirectionInput && dir != types.DirectionOutput {
			return fmt.Errorf("--direction must be %q or %q", types.DirectionInput, types.DirectionOutput)
		}
		return withRuntime(cmd, func(rt *runtime) error {
			return rt.bindings.Bind(args[0], args[1], dir, args[2])
		})
	},
}

func init() {
	exportBackupCmd.Flags().StringVar(&exportBackupOutput, "output", "./backup.json", "Path to write the backup JSON to")

	instantiateCmd.Flags().StringVar(&instantiateTypeKey, "type", "", "Block type key to instantiate (required)")
	instantiateCmd.Flags().StringVar(&instantiatePageID, "page", "", "Page ID the instance belongs to")
	instantiateCmd.Flags().StringVar(&instantiateName, "name", "", "Display name for the instance")

	bindCmd.Flags().StringVar(&bindDirection, "direction", string(types.DirectionInput), "Binding direction: input or output")
}
