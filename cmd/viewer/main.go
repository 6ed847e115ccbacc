// Command viewer is the standalone reader process: it opens the
// collector's file-mode SQLite database (through the ordinary store.Open,
// which also ensures the schema exists) and renders the live flow table
// from a separate OS process, reading only through the query surface.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"netflow9-collector/internal/config"
	"netflow9-collector/internal/display"
	"netflow9-collector/internal/resolver"
	"netflow9-collector/internal/store"
)

func main() {
	var (
		configPath   string
		once         bool
		filterString string
	)

	root := &cobra.Command{
		Use:   "viewer",
		Short: "standalone reader for a running collector's row store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, once, filterString)
		},
	}
	root.Flags().StringVar(&configPath, "config", "netflow9.conf", "path to the collector's configuration file")
	root.Flags().BoolVar(&once, "once", false, "render a single snapshot and exit, instead of the interactive display")
	root.Flags().StringVar(&filterString, "filter", "", "Wireshark-like filter expression restricting the displayed rows, e.g. \"proto=tcp && port=443\"")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, once bool, filterString string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	filter := store.ParseFilter(filterString)
	if !filter.IsValid() {
		return fmt.Errorf("invalid --filter: %s", filter.Error)
	}

	if cfg.ConnType == config.ConnMemory {
		return fmt.Errorf("viewer: collector is configured for in-memory storage, which a separate " +
			"process cannot attach to; run collector without --headless to view its table in-process instead")
	}

	st, err := store.Open(store.ModeFile, store.DefaultFilePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	sort := store.SortBytes
	if cfg.SortBy == config.SortPackets {
		sort = store.SortPackets
	}

	cli := display.New(st, resolver.New(), cfg.FlowsToShow, sort, cfg.UnicastOnly, filter, 2*time.Second)
	if once {
		return cli.RenderOnce(os.Stdout)
	}
	cli.Start()
	return nil
}
