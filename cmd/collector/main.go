// Command collector runs the ingest context (UDP listener, decoder,
// flow aggregator, persistence gateway) and, unless --headless is given,
// an embedded display context in the same process.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"netflow9-collector/internal/config"
	"netflow9-collector/internal/display"
	"netflow9-collector/internal/ingest"
	"netflow9-collector/internal/listener"
	"netflow9-collector/internal/resolver"
	"netflow9-collector/internal/store"
)

func main() {
	var (
		configPath   string
		headless     bool
		simple       bool
		filterString string
	)

	root := &cobra.Command{
		Use:   "collector",
		Short: "NetFlow v9 collector",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, headless, simple, filterString)
		},
	}
	root.Flags().StringVar(&configPath, "config", "netflow9.conf", "path to the key-value configuration file")
	root.Flags().BoolVar(&headless, "headless", false, "run ingest only, without an embedded display")
	root.Flags().BoolVar(&simple, "simple", false, "use the plain CLI table instead of the interactive TUI")
	root.Flags().StringVar(&filterString, "filter", "", "Wireshark-like filter expression restricting the displayed rows, e.g. \"proto=tcp && port=443\"")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, headless, simple bool, filterString string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	filter := store.ParseFilter(filterString)
	if !filter.IsValid() {
		return fmt.Errorf("invalid --filter: %s", filter.Error)
	}

	mode := store.ModeFile
	path := store.DefaultFilePath
	if cfg.ConnType == config.ConnMemory {
		mode = store.ModeMemory
		path = ""
	}
	st, err := store.Open(mode, path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	ctx := ingest.New(listener.New(cfg.Address, cfg.Port), st)

	sort := store.SortBytes
	if cfg.SortBy == config.SortPackets {
		sort = store.SortPackets
	}

	errCh := make(chan error, 1)
	go func() {
		if err := ctx.Run(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	if headless {
		select {
		case err := <-errCh:
			return err
		case <-sigCh:
		}
		ctx.Stop()
		for _, ip := range ctx.Registry().SenderIPs() {
			if sender, ok := ctx.Registry().Sender(ip); ok {
				sender.LogSummary(os.Stdout)
			}
		}
		return nil
	}

	const refreshRate = 2 * time.Second
	res := resolver.New()
	if simple {
		cli := display.New(st, res, cfg.FlowsToShow, sort, cfg.UnicastOnly, filter, refreshRate)
		go cli.Start()
		select {
		case err := <-errCh:
			return err
		case <-sigCh:
		}
		cli.Stop()
	} else {
		tui := display.NewTUI(st, res, cfg.FlowsToShow, sort, cfg.UnicastOnly, filter, refreshRate)
		go func() {
			select {
			case <-errCh:
			case <-sigCh:
			}
		}()
		if err := tui.Run(); err != nil {
			ctx.Stop()
			return err
		}
	}

	ctx.Stop()
	return nil
}
