package main

import (
	"os"

	"github.com/walletnet/walletd/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
