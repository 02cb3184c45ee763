package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ratewatch/internal/config"
	"ratewatch/internal/httpx"
	"ratewatch/internal/provider"
)

// fetchCmd performs one live fetch against a provider, bypassing the
// store. Useful for checking credentials and source health.
func fetchCmd(cfgPath *string) *cobra.Command {
	var providerID, symbol string
	var timeoutSec int

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch one rate live from a provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}

			hc := httpx.New(time.Duration(timeoutSec) * time.Second)
			registry := provider.Build(cfg.Providers, hc)

			p, err := registry.Resolve(providerID)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeoutSec)*time.Second)
			defer cancel()

			r, err := p.Fetch(ctx, symbol)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(r)
		},
	}
	cmd.Flags().StringVar(&providerID, "provider", "", "provider id (see `ratewatch providers`)")
	cmd.Flags().StringVar(&symbol, "symbol", "", "symbol code, e.g. USD/RUB")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 15, "fetch timeout in seconds")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.MarkFlagRequired("symbol")
	return cmd
}

func providersCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured providers and their symbols",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			registry := provider.Build(cfg.Providers, httpx.New(15*time.Second))
			for _, p := range registry.All() {
				fmt.Println(p.Name())
				for _, s := range p.Symbols() {
					fmt.Printf("  %-14s %s\n", s.Code, s.Label)
				}
			}
			return nil
		},
	}
}
