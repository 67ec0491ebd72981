package sdi12

import (
	"log/slog"
	"sync"

	sdi12wsn "github.com/jkennedy-usgs/sdi12wsn"
)

const (
	rxBufCap = 10
	txBufCap = 40
	noSignal = 0xFF
)

// EngineConfig carries the deployment knobs the core needs directly (the
// rest of pkg/config is consumed by the wireless side and the CLI).
type EngineConfig struct {
	// Addresses is the fixed set of SDI-12 addresses this bridge answers
	// for, used both for address filtering and the `?!` round robin.
	Addresses []byte
	// MeasureWaitSeconds is reported in the `M` response and sets the
	// SRQ-window length (spec: integer seconds in [1,4]).
	MeasureWaitSeconds uint8
	// Identity is the fixed identity string returned by `aI!`, in the
	// shape `ccccccccmmmmmmvvv[xxx...]` (allccc... minus the version/addr
	// prefix the engine prepends itself).
	Identity string
}

// Engine is the SDI-12 line-protocol state machine (component C). It is
// driven by the four event methods in transitions.go; the only other
// method that mutates it is ProvideData, which fills data_ptr and clears
// msg_signal.
type Engine struct {
	mu sync.Mutex

	line sdi12wsn.LineDriver
	timer sdi12wsn.TimedEventSource
	log  *slog.Logger
	cfg  EngineConfig

	state   State
	flags   Flags
	meta    rxMeta
	rxBuf   [rxBufCap]byte
	rxIdx   int
	txBuf   [txBufCap]byte
	txLen   int
	sendBuf []byte // the buffer currently being transmitted (a slice of txBuf)
	sendPos int

	rxAddr  byte
	numAddr uint8

	dataPtr []byte // nil means "empty" (spec: empty-value = not yet produced)

	srqTicks      int
	savedSRQTicks int // resumed into srqTicks after a noise candidate in ABrk
	queryCursor   int
	msgSignal     byte // 0xFF ("noSignal") means no request pending

	// awaitingSRQAfterResp is true only when the response currently being
	// sent is a bare M/C/V acknowledge: on completion the engine must wait
	// in WaitSRQ rather than return straight to Idle.
	awaitingSRQAfterResp bool
}

// NewEngine constructs a core state machine. line and timer are the only
// hardware dependencies; cfg supplies what the parser answers with.
func NewEngine(line sdi12wsn.LineDriver, timer sdi12wsn.TimedEventSource, cfg EngineConfig, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		line:      line,
		timer:     timer,
		log:       log,
		cfg:       cfg,
		msgSignal: noSignal,
	}
	e.resetToIdle()
	return e
}

// State returns the current protocol state (read-only, for diagnostics).
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// PendingAddress returns the numeric address the wireless side should
// produce data for, and whether a request is actually pending
// (msg_signal != 0xFF, spec invariant 1).
func (e *Engine) PendingAddress() (addr uint8, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.msgSignal == noSignal {
		return 0, false
	}
	return e.msgSignal, true
}

// AwaitingDataFollowUp reports whether rx_meta's RxD bit is set, i.e.
// whether the engine is currently inside a `Dn!` follow-up exchange
// (spec §3's rx_meta upper bits), for the diagnostics surface.
func (e *Engine) AwaitingDataFollowUp() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.meta.hasRxD()
}

// ProvideData hands a wireless-prepared data buffer to the core and
// clears msg_signal back to "no request pending", atomically. addr must
// match the currently pending address or the call is ignored (the request
// it was meant to satisfy has already timed out and a new one may be
// outstanding for a different node).
//
// buf must already be shaped per spec §4.4a: a placeholder byte, the
// value ASCII characters, and at least six trailing zero bytes of slack
// for CRC + CR/LF + terminator.
func (e *Engine) ProvideData(addr uint8, buf []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.msgSignal == noSignal || e.msgSignal != addr {
		return
	}
	e.dataPtr = buf
	e.msgSignal = noSignal
}

// resetToIdle implements the terminal failure path of spec §4.3/§7: clear
// flags, rx_meta, data_ptr, disable the transmit driver, re-enable edge
// detection, return to Idle. Caller must hold mu.
func (e *Engine) resetToIdle() {
	e.state = Idle
	e.flags = 0
	e.meta = 0
	e.dataPtr = nil
	e.rxIdx = 0
	e.rxBuf = [rxBufCap]byte{}
	e.txLen = 0
	e.sendBuf = nil
	e.sendPos = 0
	e.srqTicks = 0
	e.savedSRQTicks = 0
	e.awaitingSRQAfterResp = false
	e.msgSignal = noSignal
	e.line.DisableDriver()
	e.line.DisableReceive()
	e.line.DisableRxInterrupt()
	e.line.DisableTxInterrupt()
	e.line.EnableEdgeInterrupt()
	e.timer.Disable()
}

func (e *Engine) armUs(us uint32) {
	e.timer.Arm(us)
}
