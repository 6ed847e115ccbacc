package display

import (
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"netflow9-collector/internal/resolver"
	"netflow9-collector/internal/store"
)

// CLI is the reader context's display loop (spec.md §5): on each tick it
// queries the row store's top_flows surface and redraws an adaptive-width
// table, the way the teacher's simple mode renders its in-memory store.
type CLI struct {
	store       *store.Store
	resolver    *resolver.Resolver
	limit       int
	sort        store.SortKey
	unicastOnly bool
	filter      store.Filter
	refreshRate time.Duration
	stopChan    chan struct{}
}

// New creates a display loop reading limit rows from st every refreshRate,
// sorted by sort and optionally restricted to unicast traffic and to rows
// matching filter (a zero-value Filter matches everything). res may be nil,
// in which case endpoints are shown as bare IPs.
func New(st *store.Store, res *resolver.Resolver, limit int, sort store.SortKey, unicastOnly bool, filter store.Filter, refreshRate time.Duration) *CLI {
	if refreshRate == 0 {
		refreshRate = 5 * time.Second
	}
	return &CLI{
		store:       st,
		resolver:    res,
		limit:       limit,
		sort:        sort,
		unicastOnly: unicastOnly,
		filter:      filter,
		refreshRate: refreshRate,
		stopChan:    make(chan struct{}),
	}
}

// Start runs the display loop until Stop is called. It blocks.
func (c *CLI) Start() {
	ticker := time.NewTicker(c.refreshRate)
	defer ticker.Stop()

	c.render()
	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.render()
		}
	}
}

// Stop ends the display loop.
func (c *CLI) Stop() {
	close(c.stopChan)
}

func getTerminalSize() (width, height int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 100, 24
	}
	return width, height
}

func (c *CLI) render() {
	width, _ := getTerminalSize()
	fmt.Print("\033[2J\033[H")
	c.renderHeader(width)

	rows, err := c.store.TopFlowsFiltered(c.limit, c.sort, c.unicastOnly, c.filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "display: query top flows: %v\n", err)
		return
	}
	c.renderFlows(rows, width)
	c.renderFooter(width)
}

func (c *CLI) renderHeader(width int) {
	title := "NetFlow v9 Collector"
	if width < 40 {
		fmt.Println("=== " + title + " ===")
		return
	}
	innerWidth := width - 2
	if innerWidth < len(title) {
		innerWidth = len(title)
	}
	padding := (innerWidth - len(title)) / 2
	paddingRight := innerWidth - len(title) - padding

	fmt.Println("╔" + strings.Repeat("═", innerWidth) + "╗")
	fmt.Println("║" + strings.Repeat(" ", padding) + title + strings.Repeat(" ", paddingRight) + "║")
	fmt.Println("╚" + strings.Repeat("═", innerWidth) + "╝")
}

func (c *CLI) renderFlows(rows []store.FlowRow, width int) {
	if len(rows) == 0 {
		fmt.Println("\nNo flows received yet. Waiting for data...")
		return
	}

	wide := width >= 110
	srcWidth, dstWidth := 21, 21
	if wide {
		srcWidth, dstWidth = 27, 27
	}

	fmt.Println()
	fmt.Printf("%-*s %-*s %-6s %12s %10s %-10s\n",
		srcWidth, "Source", dstWidth, "Destination", "Proto", "Bytes", "Packets", "Type")
	fmt.Println(strings.Repeat("─", width-1))

	for _, r := range rows {
		src := truncateEndpoint(formatEndpoint(c.host(r.SrcAddr), r.SrcPort), srcWidth)
		dst := truncateEndpoint(formatEndpoint(c.host(r.DstAddr), r.DstPort), dstWidth)
		fmt.Printf("%-*s %-*s %-6d %12s %10s %-10s\n",
			srcWidth, src, dstWidth, dst, r.Protocol,
			formatBytes(r.InOctets), formatNumber(r.InPkts), r.TrafficType)
	}
}

// host returns a reverse-resolved hostname for ip when a resolver is
// configured, falling back to the bare IP otherwise.
func (c *CLI) host(ip string) string {
	if c.resolver == nil {
		return ip
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ip
	}
	return c.resolver.Resolve(parsed)
}

func (c *CLI) renderFooter(width int) {
	fmt.Println()
	fmt.Println(strings.Repeat("─", width-1))
	if !c.filter.IsEmpty() {
		fmt.Printf("Filter: %s │ Press Ctrl+C to exit │ Updated: %s\n", c.filter.Raw, time.Now().Format("15:04:05"))
		return
	}
	fmt.Printf("Press Ctrl+C to exit │ Updated: %s\n", time.Now().Format("15:04:05"))
}

// RenderOnce writes a single non-interactive render to out, used by the
// viewer's --once mode.
func (c *CLI) RenderOnce(out io.Writer) error {
	rows, err := c.store.TopFlowsFiltered(c.limit, c.sort, c.unicastOnly, c.filter)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%-21s %-21s %-6s %12s %10s %-10s\n",
		"Source", "Destination", "Proto", "Bytes", "Packets", "Type")
	for _, r := range rows {
		fmt.Fprintf(out, "%-21s %-21s %-6d %12s %10s %-10s\n",
			truncateEndpoint(formatEndpoint(c.host(r.SrcAddr), r.SrcPort), 21),
			truncateEndpoint(formatEndpoint(c.host(r.DstAddr), r.DstPort), 21),
			r.Protocol, formatBytes(r.InOctets), formatNumber(r.InPkts), r.TrafficType)
	}
	return nil
}
