package sdi12

import sdi12wsn "github.com/jkennedy-usgs/sdi12wsn"

// fakeLine and fakeTimer are the test doubles the scenario tests drive the
// engine with, standing in for a real UART/GPIO adapter (see
// internal/hw for the production equivalents).

type fakeLine struct {
	receiveEnabled bool
	rxIntEnabled   bool
	txIntEnabled   bool
	driverEnabled  bool
	edgeEnabled    bool

	transmitted []byte
	onByteSent  func(b byte)
}

func (f *fakeLine) EnableReceive()        { f.receiveEnabled = true }
func (f *fakeLine) DisableReceive()       { f.receiveEnabled = false }
func (f *fakeLine) EnableRxInterrupt()    { f.rxIntEnabled = true }
func (f *fakeLine) DisableRxInterrupt()   { f.rxIntEnabled = false }
func (f *fakeLine) EnableTxInterrupt()    { f.txIntEnabled = true }
func (f *fakeLine) DisableTxInterrupt()   { f.txIntEnabled = false }
func (f *fakeLine) EnableDriver()         { f.driverEnabled = true }
func (f *fakeLine) DisableDriver()        { f.driverEnabled = false }
func (f *fakeLine) HoldMark()             {}
func (f *fakeLine) EnableEdgeInterrupt()  { f.edgeEnabled = true }
func (f *fakeLine) DisableEdgeInterrupt() { f.edgeEnabled = false }

func (f *fakeLine) TransmitByte(b byte) error {
	f.transmitted = append(f.transmitted, b)
	if f.onByteSent != nil {
		f.onByteSent(b)
	}
	return nil
}

type fakeTimer struct {
	armedUs uint32
	elapsed uint32
	enabled bool
}

func (t *fakeTimer) Arm(deadlineUs uint32) {
	t.armedUs = deadlineUs
	t.elapsed = 0
	t.enabled = true
}

func (t *fakeTimer) Reset() {
	t.elapsed = 0
	t.enabled = true
}

func (t *fakeTimer) Disable() {
	t.enabled = false
}

func (t *fakeTimer) ElapsedUs() uint32 {
	return t.elapsed
}

// advance simulates deadlineUs passing without a real clock: tests set
// elapsed directly before calling an edge or deadline handler.
func (t *fakeTimer) advance(us uint32) {
	t.elapsed += us
}

var _ sdi12wsn.LineDriver = (*fakeLine)(nil)
var _ sdi12wsn.TimedEventSource = (*fakeTimer)(nil)

// sendFrame drives a full valid break+mark+command frame into the engine,
// returning whatever bytes the engine transmitted in response (draining
// OnCharacterOut as it goes).
func sendFrame(e *Engine, line *fakeLine, timer *fakeTimer, cmd []byte) []byte {
	line.transmitted = nil

	e.OnEdge(true) // falling edge: break starts
	timer.advance(breakMinUs)
	e.OnEdge(false) // rising edge: break ends, valid

	timer.advance(markMinUs)
	e.OnDeadline() // TstMrk -> WaitAct

	for _, b := range cmd {
		e.OnCharacterIn(b, sdi12wsn.CharError{})
	}

	// SndMrk mark hold elapses, parser runs, transmission begins.
	e.OnDeadline()

	drainTx(e, line)
	return append([]byte(nil), line.transmitted...)
}

// drainTx walks OnCharacterOut until the transmit buffer is exhausted,
// mirroring what a real UART's transmit-complete interrupt would do.
func drainTx(e *Engine, line *fakeLine) {
	for i := 0; i < txBufCap+1; i++ {
		before := len(line.transmitted)
		e.mu.Lock()
		done := e.state != SndResp && e.state != SendSRQ
		e.mu.Unlock()
		if done {
			return
		}
		e.OnCharacterOut()
		if len(line.transmitted) == before {
			return
		}
	}
}

// advanceToWaitDBrk drives the engine from WaitSRQ, with data already
// provided via ProvideData (possibly an empty-but-non-nil slice), through
// the SRQ transmission and into WaitDBrk — mirroring a service request the
// host is about to follow up on with a D-command.
func advanceToWaitDBrk(e *Engine, line *fakeLine, timer *fakeTimer) {
	timer.advance(srqTickUs)
	e.OnDeadline() // WaitSRQ -> SendSRQ (dataPtr is non-nil)
	drainTx(e, line) // finishes the SRQ transmission -> WaitDBrk
}

// sendFollowUp drives a command frame into the engine starting from
// WaitDBrk, taking the "host starts a new break" branch of the post-SRQ
// D-command acceptance path: the leading edge is classified exactly like a
// fresh break, landing back in the normal mark/command sequence.
func sendFollowUp(e *Engine, line *fakeLine, timer *fakeTimer, cmd []byte) []byte {
	line.transmitted = nil

	e.OnEdge(true) // WaitDBrk -> DTst
	timer.advance(breakMinUs)
	e.OnEdge(false) // DTst: elapsed >= breakMinUs -> TstMrk

	timer.advance(markMinUs)
	e.OnDeadline() // TstMrk -> WaitAct

	for _, b := range cmd {
		e.OnCharacterIn(b, sdi12wsn.CharError{})
	}

	// SndMrk mark hold elapses, parser runs, transmission begins.
	e.OnDeadline()

	drainTx(e, line)
	return append([]byte(nil), line.transmitted...)
}

func newTestEngine(addrs []byte, waitSeconds uint8, identity string) (*Engine, *fakeLine, *fakeTimer) {
	line := &fakeLine{}
	timer := &fakeTimer{}
	cfg := EngineConfig{
		Addresses:          addrs,
		MeasureWaitSeconds: waitSeconds,
		Identity:           identity,
	}
	e := NewEngine(line, timer, cfg, nil)
	return e, line, timer
}
