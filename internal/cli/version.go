package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/walletnet/walletd/internal/api"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the walletd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "walletd", api.Version)
	},
}
