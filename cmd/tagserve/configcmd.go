package main

import (
	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/bastiangx/tagserve/pkg/config"
)

var configReset bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the active config, or recreate the default file with --reset",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configReset {
			if err := config.RebuildConfigFile(); err != nil {
				return err
			}
			path, _ := config.GetDefaultConfigPath()
			cmd.Printf("wrote defaults to %s\n", path)
			return nil
		}
		cmd.Printf("# %s\n", config.GetActiveConfigPath(configPath))
		return toml.NewEncoder(cmd.OutOrStdout()).Encode(appConfig)
	},
}

func init() {
	configCmd.Flags().BoolVar(&configReset, "reset", false, "overwrite the default config.toml with built-in defaults")
	rootCmd.AddCommand(configCmd)
}
