// Package wireless implements the session controller that bridges the
// SDI-12 core to the wireless soil-moisture node network (spec.md §4.5).
package wireless

import (
	"context"
	"time"

	"github.com/jkennedy-usgs/sdi12wsn/pkg/registry"
)

// NodeTransport abstracts the radio link so the controller's state
// machine can be driven and tested without real radio framing (the wire
// format of that link is a Non-goal; see SPEC_FULL.md §4.9).
type NodeTransport interface {
	// Discover broadcasts a discovery request and returns every node that
	// answered within the configured window.
	Discover(ctx context.Context) ([]registry.Identifier, error)
	// ConfigureIO pushes the fixed I/O configuration (probe power,
	// sleep/wake schedule) to a newly discovered node.
	ConfigureIO(ctx context.Context, id registry.Identifier) error
	// ReadDIPAddress reads the node's own DIP-switch address.
	ReadDIPAddress(ctx context.Context, id registry.Identifier) (uint8, error)
	// ProgramSleep instructs the node to sleep until the next sample
	// window.
	ProgramSleep(ctx context.Context, id registry.Identifier, d time.Duration) error
	// WaitNetworkAwake blocks until the node reports it is awake and
	// ready to sample, or ctx is cancelled.
	WaitNetworkAwake(ctx context.Context, id registry.Identifier) error
	// PowerProbe energizes or de-energizes one of the node's probes.
	PowerProbe(ctx context.Context, id registry.Identifier, probe int, on bool) error
	// Sample reads one raw ADC value from a probe.
	Sample(ctx context.Context, id registry.Identifier, probe int) (uint16, error)
	// WaitNetworkAsleep blocks until the node confirms it has returned to
	// sleep.
	WaitNetworkAsleep(ctx context.Context, id registry.Identifier) error
}
