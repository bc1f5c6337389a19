// Package cli wires the walletd commands: serve, config init, version.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/walletnet/walletd/internal/daemon"
)

var rootCmd = &cobra.Command{
	Use:   "walletd",
	Short: "Customer wallet service",
	Long: `walletd is a customer wallet with two-step payments. Customers register,
top up a balance, and pay in two steps: initiating a payment issues a
one-time six-digit code delivered out-of-band, and confirming it with that
code debits the balance. Sessions expire after a configurable window.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config.toml (default $WALLETD_HOME/config.toml)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func configPath(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path
	}
	return daemon.DefaultPath()
}
