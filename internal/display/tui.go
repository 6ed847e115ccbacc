package display

import (
	"fmt"
	"net"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"netflow9-collector/internal/resolver"
	"netflow9-collector/internal/store"
)

// TUI is an interactive, scrolling live table over the reader query surface
// (spec.md §4.8, §5), built with tview/tcell — the teacher's interactive
// display stack, trimmed to the one view spec.md's reader context needs.
type TUI struct {
	app         *tview.Application
	table       *tview.Table
	status      *tview.TextView
	store       *store.Store
	resolver    *resolver.Resolver
	limit       int
	sort        store.SortKey
	unicastOnly bool
	filter      store.Filter
	refreshRate time.Duration
}

// NewTUI creates a live table view reading limit rows from st every
// refreshRate, restricted to rows matching filter (a zero-value Filter
// matches everything). res may be nil, in which case endpoints are shown as
// bare IPs.
func NewTUI(st *store.Store, res *resolver.Resolver, limit int, sort store.SortKey, unicastOnly bool, filter store.Filter, refreshRate time.Duration) *TUI {
	if refreshRate == 0 {
		refreshRate = 5 * time.Second
	}

	table := tview.NewTable().SetBorders(false).SetFixed(1, 0)
	status := tview.NewTextView().SetDynamicColors(true)

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(status, 1, 0, false).
		AddItem(table, 0, 1, true)

	app := tview.NewApplication().SetRoot(flex, true).SetFocus(table)

	t := &TUI{
		app:         app,
		table:       table,
		status:      status,
		store:       st,
		resolver:    res,
		limit:       limit,
		sort:        sort,
		unicastOnly: unicastOnly,
		filter:      filter,
		refreshRate: refreshRate,
	}
	t.drawHeader()

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC || event.Rune() == 'q' {
			app.Stop()
			return nil
		}
		return event
	})

	return t
}

func (t *TUI) drawHeader() {
	headers := []string{"Source", "Destination", "Proto", "Bytes", "Packets", "Type"}
	for col, h := range headers {
		t.table.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold))
	}
}

// Run starts the refresh loop and blocks until the user quits.
func (t *TUI) Run() error {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(t.refreshRate)
		defer ticker.Stop()
		t.refresh()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				t.refresh()
			}
		}
	}()
	defer close(stop)

	return t.app.Run()
}

// host returns a reverse-resolved hostname for ip when a resolver is
// configured, falling back to the bare IP otherwise.
func (t *TUI) host(ip string) string {
	if t.resolver == nil {
		return ip
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ip
	}
	return t.resolver.Resolve(parsed)
}

func (t *TUI) refresh() {
	rows, err := t.store.TopFlowsFiltered(t.limit, t.sort, t.unicastOnly, t.filter)
	t.app.QueueUpdateDraw(func() {
		if err != nil {
			t.status.SetText(fmt.Sprintf("[red]query error: %v[white]", err))
			return
		}
		status := fmt.Sprintf("[green]%d flows[white] │ updated %s", len(rows), time.Now().Format("15:04:05"))
		if !t.filter.IsEmpty() {
			status = fmt.Sprintf("[green]%d flows[white] │ filter: %s │ updated %s", len(rows), t.filter.Raw, time.Now().Format("15:04:05"))
		}
		t.status.SetText(status)

		for r := t.table.GetRowCount() - 1; r > 0; r-- {
			t.table.RemoveRow(r)
		}
		for i, row := range rows {
			rn := i + 1
			t.table.SetCell(rn, 0, tview.NewTableCell(truncateEndpoint(formatEndpoint(t.host(row.SrcAddr), row.SrcPort), 27)))
			t.table.SetCell(rn, 1, tview.NewTableCell(truncateEndpoint(formatEndpoint(t.host(row.DstAddr), row.DstPort), 27)))
			t.table.SetCell(rn, 2, tview.NewTableCell(fmt.Sprintf("%d", row.Protocol)))
			t.table.SetCell(rn, 3, tview.NewTableCell(formatBytes(row.InOctets)).SetAlign(tview.AlignRight))
			t.table.SetCell(rn, 4, tview.NewTableCell(formatNumber(row.InPkts)).SetAlign(tview.AlignRight))
			t.table.SetCell(rn, 5, tview.NewTableCell(row.TrafficType))
		}
	})
}
