package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/walletnet/walletd/internal/daemon"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage walletd configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config.toml",
	Long:  `Write the default configuration to the config path. Refuses to overwrite an existing file.`,
	RunE:  runConfigInit,
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists; edit it or remove it first", path)
	}
	if err := daemon.DefaultConfig().Save(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
	return nil
}
