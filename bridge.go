package sdi12wsn

import (
	"context"
	"log/slog"
	"time"

	"github.com/jkennedy-usgs/sdi12wsn/pkg/registry"
	"github.com/jkennedy-usgs/sdi12wsn/pkg/sdi12"
	"github.com/jkennedy-usgs/sdi12wsn/pkg/wireless"
)

// Bridge wires the SDI-12 core, the wireless session controller and the
// node registry together, the way the teacher's bus manager wires a CAN
// socket to the protocol stack above it.
type Bridge struct {
	Engine   *sdi12.Engine
	Wireless *wireless.Controller
	Registry *registry.Registry

	log *slog.Logger

	dipToAddr map[uint8]uint8
}

// NewBridge constructs a bridge from its three already-built components.
func NewBridge(engine *sdi12.Engine, wc *wireless.Controller, reg *registry.Registry, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{Engine: engine, Wireless: wc, Registry: reg, log: log}
}

// RunDiscovery runs one wireless discovery pass, bringing newly found
// nodes into the registry.
func (b *Bridge) RunDiscovery(ctx context.Context) error {
	return b.Wireless.Discover(ctx)
}

// Tick is the bridge's cooperative main-loop step (spec.md §5's "no
// pre-emption between handlers" carried into userspace scheduling): if
// the core has an outstanding measurement request, fetch it from the
// wireless side and hand the formatted response back across the one-slot
// mailbox.
//
// Tick never blocks the protocol core: if the wireless fetch is slow, the
// core's own SRQ-window timeout (spec.md §4.3) is what bounds how long
// the host waits, not this call.
func (b *Bridge) Tick(ctx context.Context) {
	addr, ok := b.Engine.PendingAddress()
	if !ok {
		return
	}

	values, err := b.Wireless.RefreshNode(ctx, addr)
	if err != nil {
		b.log.Warn("bridge: wireless refresh failed", "addr", addr, "error", err)
		return
	}

	buf := make([]byte, 1+len(values)+6)
	copy(buf[1:], values)
	b.Engine.ProvideData(addr, buf)
}

// Run loops Tick at the given poll interval until ctx is cancelled. A
// short interval keeps the SRQ window responsive; it does not need to be
// faster than the wireless round trip itself.
func (b *Bridge) Run(ctx context.Context, pollInterval time.Duration) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Tick(ctx)
		}
	}
}
