package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "flatlease",
		Short:        "Flat rental contracts, monthly dues and payments",
		SilenceUsage: true,
	}
	addGlobalFlags(rootCmd)

	rootCmd.AddCommand(
		serveCmd(),
		sweepCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
