package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "ratewatch",
		Short:         "Exchange-rate watchlist service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config.yaml")

	root.AddCommand(
		serveCmd(&cfgPath),
		fetchCmd(&cfgPath),
		providersCmd(&cfgPath),
	)
	return root
}
