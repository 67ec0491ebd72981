// Package sdi12wsn wires an SDI-12 line-protocol core to a wireless
// soil-moisture node network. The interfaces in this file are the only
// contact points the core has with real hardware; every concrete adapter
// lives outside the core and is registered the same way a CAN transport
// would be registered with a bus manager.
package sdi12wsn

// CharError carries the per-character error flags the line driver must
// report atomically with the received byte (framing, overrun, parity).
// Reading the byte must never clear these flags — the core depends on
// reading them together.
type CharError struct {
	Framing bool
	Overrun bool
	Parity  bool
}

// Any returns true if at least one character error flag is set.
func (e CharError) Any() bool {
	return e.Framing || e.Overrun || e.Parity
}

// LineDriver is the half-duplex control surface for the SDI-12 wire. The
// core only ever calls these methods; it never touches a UART register.
type LineDriver interface {
	// EnableReceive / DisableReceive gate the receive path.
	EnableReceive()
	DisableReceive()

	// EnableRxInterrupt / DisableRxInterrupt gate the receive-complete
	// interrupt (translated, in this Go rendition, to whether
	// OnCharacterIn is invoked by the adapter at all).
	EnableRxInterrupt()
	DisableRxInterrupt()

	// EnableTxInterrupt / DisableTxInterrupt gate the transmit-complete
	// interrupt in the same sense.
	EnableTxInterrupt()
	DisableTxInterrupt()

	// EnableDriver / DisableDriver gate the output driver IC (the
	// half-duplex transmit-enable line).
	EnableDriver()
	DisableDriver()

	// HoldMark forces the line to the idle/mark level without an active
	// transmitter, used during the inter-character and pre-response gaps.
	HoldMark()

	// EnableEdgeInterrupt / DisableEdgeInterrupt gate edge-change
	// detection on the line.
	EnableEdgeInterrupt()
	DisableEdgeInterrupt()

	// TransmitByte writes one character to the line. The adapter must
	// later call the core's OnCharacterOut once it is actually sent.
	TransmitByte(b byte) error
}

// TimedEventSource is a single-shot deadline, microsecond-addressable
// (the underlying hardware is millisecond-granularity per spec §4.2, but
// the break/mark boundary tests require sub-millisecond classification of
// elapsed time, so the Go interface is expressed in microseconds
// throughout). The core arms/resets/disables it and is notified through
// OnDeadline by whatever goroutine owns the clock.
type TimedEventSource interface {
	// Arm schedules a deadline deadlineUs microseconds from now,
	// replacing any previously armed deadline.
	Arm(deadlineUs uint32)

	// Reset re-arms the most recently requested deadline from now.
	Reset()

	// Disable cancels any pending deadline; no OnDeadline call follows.
	Disable()

	// ElapsedUs returns the number of microseconds since the deadline was
	// last armed or reset. Used from edge classification to tell a
	// "character-long", "too-short", "too-long" or "valid-break"
	// transition apart.
	ElapsedUs() uint32
}
