// Package ingest is the glue for the ingest context of spec.md §5: it owns
// the UDP listener and the sender registry, feeds received datagrams
// through internal/wire, folds the results through internal/flowtable, and
// write-throughs changed flows to the persistence gateway. It is the only
// context that touches the Sender registry; the row store handle it also
// holds is the sole resource shared with the reader context.
package ingest

import (
	"fmt"
	"os"
	"time"

	"netflow9-collector/internal/flowtable"
	"netflow9-collector/internal/listener"
	"netflow9-collector/internal/store"
	"netflow9-collector/internal/wire"
)

// Context runs the ingest loop: receive → decode → aggregate → persist.
type Context struct {
	listener *listener.UDPListener
	registry *flowtable.Registry
	store    *store.Store

	stopCh chan struct{}
	doneCh chan struct{}
}

// New wires a UDP listener, a fresh sender registry, and the shared store
// into one ingest context.
func New(l *listener.UDPListener, st *store.Store) *Context {
	return &Context{
		listener: l,
		registry: flowtable.NewRegistry(),
		store:    st,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Run starts the UDP listener and processes datagrams until Stop is called.
// It blocks; callers typically run it in its own goroutine.
func (c *Context) Run() error {
	if err := c.listener.Start(); err != nil {
		return err
	}
	defer c.listener.Stop()
	defer close(c.doneCh)

	for {
		select {
		case <-c.stopCh:
			return nil
		case pkt := <-c.listener.Packets():
			c.processDatagram(pkt)
		}
	}
}

// Stop signals the ingest loop to exit and waits for it to finish.
func (c *Context) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

// Registry exposes the sender registry for read-only inspection (e.g. a
// headless summary command); it must not be mutated from outside ingest.
func (c *Context) Registry() *flowtable.Registry {
	return c.registry
}

// processDatagram implements one ingest cycle (spec.md §4.2-§4.7) for a
// single received datagram: parse the header and walk every set, installing
// templates or decoding data records, then drain the sender's pending queue
// and write every changed flow through to the store.
func (c *Context) processDatagram(pkt listener.Packet) {
	dg, err := wire.ParseDatagram(pkt.Data)
	if err != nil {
		// Too short or wrong version: drop silently, continue (spec.md §7).
		return
	}

	sender, isNew := c.registry.Resolve(pkt.SourceAddr.IP)
	if isNew {
		if err := c.store.UpsertSender(sender.IP.String()); err != nil {
			fmt.Fprintf(os.Stderr, "ingest: upsert sender %s: %v\n", sender.IP, err)
		}
	}

	for _, set := range dg.Sets {
		switch wire.ClassifySet(set.ID) {
		case wire.SetTemplate:
			templates := wire.DecodeTemplateSet(set.Body)
			sender.InstallTemplates(templates)
		case wire.SetData:
			// Unknown template_id is dropped silently by DecodeDataSet's
			// return value (spec.md §4.5, §7, §8 P3).
			sender.DecodeDataSet(set.ID, set.Body)
		default:
			// Options-templates and reserved set IDs are out of scope
			// (spec.md §4.2, §9 open questions) — skip.
		}
	}

	now := time.Now()
	sender.Drain(now)
	// Re-scan the whole flow table, not just what this cycle's Drain folded:
	// a flow whose previous write failed keeps needs_persist=true and must
	// be retried here even if no new record for it arrived this cycle
	// (spec.md §4.7, §7 "Store write failure").
	for _, flow := range sender.FlowsNeedingPersist() {
		if err := c.store.WriteThrough(flow, sender.IP.String(), now); err != nil {
			// Leave needs_persist set so the next cycle retries (spec.md §7).
			fmt.Fprintf(os.Stderr, "ingest: write-through for sender %s: %v\n", sender.IP, err)
			flow.NeedsPersist = true
		}
	}
}
