// Package hw holds the concrete hardware adapters the bridge runs against
// on real deployments: a UART line driver and a GPIO edge-watcher. Tests
// exercise the core and the controller against fakes instead; these
// adapters only need to satisfy the same interfaces.
package hw

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tarm/serial"

	sdi12wsn "github.com/jkennedy-usgs/sdi12wsn"
)

// sdi12Baud and sdi12WordLen are the fixed line parameters spec.md §4.1
// requires: 1200 baud, 7 data bits, even parity, 1 stop bit (the parity
// and stop-bit settings are passed directly to serial.Config below).
const (
	sdi12Baud    = 1200
	sdi12WordLen = 7
)

// CharacterSink receives each complete character the UART reads, along
// with its framing/overrun/parity flags, exactly as [sdi12wsn.LineDriver]
// callers expect to feed [OnCharacterIn].
type CharacterSink interface {
	OnCharacterIn(b byte, cerr sdi12wsn.CharError)
}

// ByteSentSink is notified once a transmitted byte has actually left the
// wire, matching [sdi12wsn.LineDriver]'s OnCharacterOut contract.
type ByteSentSink interface {
	OnCharacterOut()
}

// UART is a [sdi12wsn.LineDriver] backed by a real serial port opened at
// the fixed SDI-12 line parameters. Enable/Disable calls are bookkeeping
// only: the port itself stays open for the adapter's lifetime, matching
// how a single UART peripheral is shared across states in the original
// firmware.
type UART struct {
	mu   sync.Mutex
	port io.ReadWriteCloser

	receiveEnabled bool
	rxIntEnabled   bool
	txIntEnabled   bool
	driverEnabled  bool

	sent ByteSentSink

	log *logrus.Entry
}

// OpenUART opens dev at the fixed SDI-12 line parameters (1200 baud, 7E1).
// The even-parity bit is not modeled by tarm/serial's Parity type beyond
// selecting even parity. Run does not classify framing, overrun or parity
// errors: every byte it delivers carries an empty CharError, and any read
// error ends Run.
func OpenUART(dev string, log *logrus.Entry) (*UART, error) {
	cfg := &serial.Config{
		Name:     dev,
		Baud:     sdi12Baud,
		Size:     sdi12WordLen,
		Parity:   serial.ParityEven,
		StopBits: serial.Stop1,
	}
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &UART{port: port, log: log}, nil
}

func (u *UART) EnableReceive()  { u.mu.Lock(); u.receiveEnabled = true; u.mu.Unlock() }
func (u *UART) DisableReceive() { u.mu.Lock(); u.receiveEnabled = false; u.mu.Unlock() }

func (u *UART) EnableRxInterrupt()  { u.mu.Lock(); u.rxIntEnabled = true; u.mu.Unlock() }
func (u *UART) DisableRxInterrupt() { u.mu.Lock(); u.rxIntEnabled = false; u.mu.Unlock() }

func (u *UART) EnableTxInterrupt()  { u.mu.Lock(); u.txIntEnabled = true; u.mu.Unlock() }
func (u *UART) DisableTxInterrupt() { u.mu.Lock(); u.txIntEnabled = false; u.mu.Unlock() }

func (u *UART) EnableDriver()  { u.mu.Lock(); u.driverEnabled = true; u.mu.Unlock() }
func (u *UART) DisableDriver() { u.mu.Lock(); u.driverEnabled = false; u.mu.Unlock() }

// HoldMark is a no-op on this adapter: holding the line idle is the
// default state of a UART transmitter that isn't actively clocking out a
// byte, so there is no register to set.
func (u *UART) HoldMark() {}

// EnableEdgeInterrupt / DisableEdgeInterrupt are no-ops here: edge
// detection is delegated entirely to the GPIO adapter, which watches the
// same physical line through a separate character-device handle.
func (u *UART) EnableEdgeInterrupt()  {}
func (u *UART) DisableEdgeInterrupt() {}

// TransmitByte writes one character to the port and, once the write
// returns, notifies the sink registered by Run that the byte has left the
// wire — the serial port's Write call is itself the stand-in for a
// transmit-complete interrupt. The notification runs on its own goroutine,
// because the core calls TransmitByte with its own mutex held.
func (u *UART) TransmitByte(b byte) error {
	_, err := u.port.Write([]byte{b})
	if err != nil {
		u.log.WithError(err).Warn("uart: transmit failed")
		return err
	}
	u.mu.Lock()
	sent := u.sent
	u.mu.Unlock()
	if sent != nil {
		go sent.OnCharacterOut()
	}
	return nil
}

// Run reads characters from the port in a loop, delivering each to sink
// until the port is closed or an unrecoverable read error occurs. It also
// registers sent as the recipient of TransmitByte's completion
// notifications. It is meant to run in its own goroutine for the
// lifetime of the bridge.
func (u *UART) Run(sink CharacterSink, sent ByteSentSink) error {
	u.mu.Lock()
	u.sent = sent
	u.mu.Unlock()

	buf := make([]byte, 1)
	for {
		n, err := u.port.Read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		u.mu.Lock()
		rxEnabled := u.receiveEnabled && u.rxIntEnabled
		u.mu.Unlock()
		if rxEnabled {
			sink.OnCharacterIn(buf[0], sdi12wsn.CharError{})
		}
	}
}

// Close releases the underlying port.
func (u *UART) Close() error {
	return u.port.Close()
}

// Port exposes the raw serial connection, for adapters (such as the radio
// transport) that want byte-stream access instead of the SDI-12 character
// timing UART implements LineDriver around.
func (u *UART) Port() io.ReadWriter {
	return u.port
}

var _ sdi12wsn.LineDriver = (*UART)(nil)
