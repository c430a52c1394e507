package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mphinancial/terminal/internal/data/cache"
	"github.com/mphinancial/terminal/internal/telemetry"
)

// newHealthCmd queries a running serve instance and prints its provider and
// cache state.
func newHealthCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show provider health and cache stats from a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base := serverBase(addr, cfg.Server.Listen)
			client := &http.Client{Timeout: 5 * time.Second}

			var providers []telemetry.HealthSnapshot
			if err := fetchJSON(client, base+"/api/v1/providers", &providers); err != nil {
				return err
			}
			var stats []cache.KindStats
			if err := fetchJSON(client, base+"/api/v1/cache", &stats); err != nil {
				return err
			}

			fmt.Println("providers:")
			for _, p := range providers {
				fmt.Printf("  %-16s requests %-6d failures %-5d error-rate %.2f  latency %s\n",
					p.Provider, p.Requests, p.Failures, p.ErrorRate, p.AvgLatency)
			}
			fmt.Println("cache:")
			for _, s := range stats {
				fmt.Printf("  %-16s entries %-5d live %d\n", s.Kind, s.Entries, s.Live)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "server address (defaults to the configured listen address)")
	return cmd
}

func serverBase(addr, listen string) string {
	if addr == "" {
		addr = listen
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return strings.TrimSuffix(addr, "/")
}

func fetchJSON(client *http.Client, url string, out any) error {
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("query %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("query %s: unexpected status %s", url, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
