package wireless

import (
	"context"
	"log/slog"
	"time"

	"github.com/jkennedy-usgs/sdi12wsn/pkg/registry"
)

// Phase is one of the session controller's states (spec.md §4.5).
type Phase uint8

const (
	NodeDiscovery Phase = iota
	IoUninit
	AddrUninit
	AddrInitialized
	Operational
)

var phaseNames = map[Phase]string{
	NodeDiscovery:    "NodeDiscovery",
	IoUninit:         "IoUninit",
	AddrUninit:       "AddrUninit",
	AddrInitialized:  "AddrInitialized",
	Operational:      "Operational",
}

func (p Phase) String() string {
	if n, ok := phaseNames[p]; ok {
		return n
	}
	return "Unknown"
}

// Config carries the knobs the controller needs from pkg/config without
// importing it directly (keeps the package dependency graph a DAG the
// way the teacher's pkg/network avoids importing pkg/od).
type Config struct {
	DiscoveryWindow   time.Duration
	SentinelFullScale uint16
	SentinelZero      uint16
	// AddressForDIP maps a node's DIP-switch address to the numeric
	// SDI-12 address the core should raise msg_signal with for it.
	AddressForDIP map[uint8]uint8
}

// Controller drives one node at a time through NodeDiscovery -> IoUninit
// -> AddrUninit -> AddrInitialized -> Operational (spec.md §4.5), handing
// validated samples to the registry.
type Controller struct {
	transport NodeTransport
	registry  *registry.Registry
	cfg       Config
	log       *slog.Logger

	phase Phase
}

// New constructs a controller bound to a transport and the shared
// registry.
func New(transport NodeTransport, reg *registry.Registry, cfg Config, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		transport: transport,
		registry:  reg,
		cfg:       cfg,
		log:       log,
		phase:     NodeDiscovery,
	}
}

// Phase returns the controller's current phase.
func (c *Controller) Phase() Phase {
	return c.phase
}

// Discover runs the NodeDiscovery -> IoUninit -> AddrUninit ->
// AddrInitialized pipeline once per newly found node, registering each in
// the registry. It does not sample; call RefreshNode for that.
func (c *Controller) Discover(ctx context.Context) error {
	c.phase = NodeDiscovery
	dctx, cancel := context.WithTimeout(ctx, c.cfg.DiscoveryWindow)
	defer cancel()

	ids, err := c.transport.Discover(dctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := c.bringUp(ctx, id); err != nil {
			c.log.Warn("wireless: node bring-up failed", "node", id.String(), "error", err)
		}
	}
	return nil
}

func (c *Controller) bringUp(ctx context.Context, id registry.Identifier) error {
	c.phase = IoUninit
	if err := c.transport.ConfigureIO(ctx, id); err != nil {
		return err
	}

	c.phase = AddrUninit
	dip, err := c.transport.ReadDIPAddress(ctx, id)
	if err != nil {
		return err
	}

	c.phase = AddrInitialized
	addr, ok := c.cfg.AddressForDIP[dip]
	if !ok {
		c.log.Warn("wireless: node DIP address has no SDI-12 mapping", "node", id.String(), "dip", dip)
		return nil
	}

	if err := c.registry.Add(addr, id, dip); err != nil {
		return err
	}

	c.phase = Operational
	return nil
}

// RefreshNode samples both probes of an already-registered node and
// records each sample in the registry, applying the sentinel-based
// validation policy (spec.md §4.5 "sample validation"; DESIGN.md Open
// Question resolution).
func (c *Controller) RefreshNode(ctx context.Context, addr uint8) ([]byte, error) {
	n := c.registry.Lookup(addr)
	if n == nil {
		return nil, registry.ErrNodeNotFound
	}

	if err := c.transport.WaitNetworkAwake(ctx, n.ID); err != nil {
		c.registry.RecordError(addr, registry.ErrorUART)
		return nil, err
	}

	values := make([]uint16, registry.ProbeCount)
	for p := 0; p < registry.ProbeCount; p++ {
		if err := c.transport.PowerProbe(ctx, n.ID, p, true); err != nil {
			c.registry.RecordError(addr, registry.ErrorPacket)
			return nil, err
		}
		raw, err := c.transport.Sample(ctx, n.ID, p)
		if err != nil {
			c.registry.RecordError(addr, registry.ErrorPacket)
			return nil, err
		}
		_ = c.transport.PowerProbe(ctx, n.ID, p, false)

		good := c.isGoodSample(raw)
		if err := c.registry.RecordSample(addr, p, raw, good); err != nil {
			return nil, err
		}
		values[p] = raw
	}

	if err := c.transport.WaitNetworkAsleep(ctx, n.ID); err != nil {
		c.registry.RecordError(addr, registry.ErrorUART)
	}

	return formatValues(values), nil
}

// isGoodSample implements the sentinel-based validation policy: a reading
// equal to the configured full-scale or zero sentinel is rejected as a
// sensor fault rather than a real measurement.
func (c *Controller) isGoodSample(raw uint16) bool {
	return raw != c.cfg.SentinelFullScale && raw != c.cfg.SentinelZero
}

// formatValues renders raw ADC counts into the `+ddd` value fields the
// SDI-12 data response (spec.md §4.4a) expects, one per probe.
func formatValues(values []uint16) []byte {
	out := make([]byte, 0, len(values)*5)
	for _, v := range values {
		out = append(out, '+')
		out = appendUint(out, uint32(v))
	}
	return out
}

func appendUint(dst []byte, v uint32) []byte {
	if v == 0 {
		return append(dst, '0')
	}
	var digits [10]byte
	n := 0
	for v > 0 {
		digits[n] = byte('0' + v%10)
		v /= 10
		n++
	}
	for i := n - 1; i >= 0; i-- {
		dst = append(dst, digits[i])
	}
	return dst
}
