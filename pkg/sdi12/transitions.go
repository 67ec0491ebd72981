package sdi12

import (
	sdi12wsn "github.com/jkennedy-usgs/sdi12wsn"
)

// This file implements the event handlers that, in the original firmware,
// were the edge-change, character-receive, character-transmit and
// compare-timer interrupt handlers (spec §5, Design Notes §9: "rebuild as
// an explicit state object threaded by reference into each handler").
// Every handler takes the engine mutex for its whole duration; none of
// them block, matching the "no pre-emption between handlers" property of
// the original single-processor model.

// OnEdge is called by the line driver on every level change. low reports
// the new line level (true = line now low, i.e. a falling edge).
func (e *Engine) OnEdge(low bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case Idle:
		if low {
			e.state = TstBrk
			e.armUs(breakFailsafeUs)
		}

	case TstBrk:
		if !low {
			e.classifyBreakEnd()
		}

	case TstMrk:
		if low {
			elapsed := e.timer.ElapsedUs()
			if elapsed < markMinUs {
				// positive-then-negative: a new break is starting.
				e.state = TstBrk
				e.armUs(breakFailsafeUs)
			}
			// elapsed >= markMinUs: the deadline fires OnDeadline and
			// carries us into WaitAct; a late edge here is stale.
		}

	case WaitSRQ:
		if low {
			e.savedSRQTicks = e.srqTicks
			e.state = ABrk
			e.timer.Reset()
		}

	case ABrk:
		if !low {
			e.classifyAbortBreak()
		}

	case WaitDBrk:
		if low {
			e.state = DTst
			e.timer.Reset()
		}

	case DTst:
		if !low {
			e.classifyDTst()
		}

	case WaitDBrk2:
		if low {
			e.state = DBrk
			e.armUs(breakFailsafeUs)
		}

	case DBrk:
		if !low {
			e.classifyDBrkEnd()
		}

	default:
		// WaitAct, WaitChr, SndMrk, SndResp, SendSRQ, DChr: line
		// edges carry no meaning in these states; the character or
		// deadline events drive them instead.
	}
}

func (e *Engine) classifyBreakEnd() {
	elapsed := e.timer.ElapsedUs()
	if elapsed < breakMinUs {
		// too short: noise, not a break. Stay ready for the next attempt.
		e.state = Idle
		e.timer.Disable()
		return
	}
	e.state = TstMrk
	e.armUs(markMinUs)
}

func (e *Engine) classifyAbortBreak() {
	elapsed := e.timer.ElapsedUs()
	if elapsed < abortBreakMinUs {
		// noise: resume the SRQ window where it left off.
		e.state = WaitSRQ
		e.srqTicks = e.savedSRQTicks
		e.armUs(srqTickUs)
		return
	}
	// Valid abort break (spec §7): set Abort, clear the outstanding
	// measurement flags, and transmit a bare <addr><CR><LF> without
	// waiting for any further command characters.
	e.flags = e.flags.Set(FlagAbort).Clear(FlagCmdM).Clear(FlagCmdC).Clear(FlagCmdV)
	resp := []byte{e.rxAddr, '\r', '\n'}
	e.txLen = copy(e.txBuf[:], resp)
	e.sendBuf = e.txBuf[:e.txLen]
	e.awaitingSRQAfterResp = false
	e.state = SndMrk
	e.armUs(markHoldUs)
}

func (e *Engine) classifyDTst() {
	elapsed := e.timer.ElapsedUs()
	switch {
	case elapsed < markMinUs:
		// The brief low was a start bit, not a break attempt: a no-break
		// aD0! is arriving.
		e.state = DChr
		e.line.EnableRxInterrupt()
		e.armUs(dCharFailsafeUs)
	case elapsed < breakMinUs:
		e.resetToIdle()
	default:
		e.state = TstMrk
		e.armUs(markMinUs)
	}
}

func (e *Engine) classifyDBrkEnd() {
	elapsed := e.timer.ElapsedUs()
	if elapsed < breakMinUs {
		e.resetToIdle()
		return
	}
	e.state = TstMrk
	e.armUs(markMinUs)
}

// OnCharacterIn is called once a full character has been received, along
// with its framing/overrun/parity flags read atomically with the byte.
func (e *Engine) OnCharacterIn(b byte, cerr sdi12wsn.CharError) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cerr.Any() {
		if cerr.Framing {
			e.state = TstBrk
			e.armUs(breakFailsafeUs)
		} else {
			e.state = TstMrk
			e.armUs(markMinUs)
		}
		return
	}

	switch e.state {
	case WaitAct:
		if e.acceptFirstChar(b) {
			e.state = WaitChr
			e.armUs(interCharUs)
		} else {
			e.resetToIdle()
		}

	case DChr:
		if e.acceptFirstChar(b) {
			e.state = WaitChr
			e.armUs(interCharUs)
		} else {
			e.resetToIdle()
		}

	case WaitChr:
		if e.rxIdx >= rxBufCap-1 {
			e.resetToIdle()
			return
		}
		e.rxBuf[e.rxIdx] = b
		e.rxIdx++
		if b == '!' {
			e.flags = e.flags.Set(FlagRxCmd).Clear(FlagProcCmd)
			e.state = SndMrk
			e.armUs(markHoldUs)
			return
		}
		e.armUs(interCharUs)

	default:
		// Stray character outside a receive window: ignore.
	}
}

// acceptFirstChar implements the address filter and the post-SRQ
// follow-on filter of spec §4.3 in one place, since both WaitAct and DChr
// consume the first character of a frame the same way. Caller must hold
// mu.
func (e *Engine) acceptFirstChar(b byte) bool {
	outstanding := e.flags&(FlagCmdM|FlagCmdC|FlagCmdV) != 0
	if outstanding {
		// Follow-on filter: only the already-addressed node may continue
		// the conversation; '?' is never acceptable here.
		if b != e.rxAddr {
			return false
		}
		e.rxBuf[0] = b
		e.rxIdx = 1
		return true
	}

	if b == '?' {
		e.rxAddr = '?'
		e.numAddr = 0
		e.rxBuf[0] = b
		e.rxIdx = 1
		return true
	}
	num, ok := addressToNum(b)
	if !ok {
		return false
	}
	configured := false
	for _, a := range e.cfg.Addresses {
		if a == b {
			configured = true
			break
		}
	}
	if !configured {
		return false
	}
	e.rxAddr = b
	e.numAddr = num
	e.rxBuf[0] = b
	e.rxIdx = 1
	return true
}

// addressToNum maps an SDI-12 address character to its numeric value
// (spec §4.3 address filter): '0'-'9' -> 0-9, 'A'-'Z' -> 10-35,
// 'a'-'z' -> 36-61.
func addressToNum(b byte) (uint8, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'A' && b <= 'Z':
		return 10 + (b - 'A'), true
	case b >= 'a' && b <= 'z':
		return 36 + (b - 'a'), true
	default:
		return 0, false
	}
}

// OnCharacterOut is called once a transmitted byte has actually left the
// line.
func (e *Engine) OnCharacterOut() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sendPos++
	if e.sendPos < len(e.sendBuf) {
		e.line.TransmitByte(e.sendBuf[e.sendPos])
		return
	}
	e.finishTransmission()
}

// finishTransmission implements the two distinct destinations a completed
// transmission can have: the unsolicited SRQ goes on to WaitDBrk; every
// other response either waits for the SRQ window (a bare M/C/V
// acknowledge) or returns to Idle. Caller must hold mu.
func (e *Engine) finishTransmission() {
	e.line.DisableDriver()
	e.line.DisableTxInterrupt()

	if e.state == SendSRQ {
		e.state = WaitDBrk
		e.armUs(postSRQWindowUs)
		return
	}

	if e.awaitingSRQAfterResp && !e.flags.Has(FlagProcErr) && !e.flags.Has(FlagAbort) {
		e.state = WaitSRQ
		e.srqTicks = 0
		e.armUs(srqTickUs)
		return
	}
	e.resetToIdle()
}

// OnDeadline is called when the armed deadline is reached.
func (e *Engine) OnDeadline() {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case TstBrk, WaitAct, WaitChr, DChr, WaitDBrk2:
		// Line-fault / inter-character / first-character timeout: spec §7,
		// silent reset to Idle.
		e.resetToIdle()

	case TstMrk:
		e.state = WaitAct
		e.line.EnableReceive()
		e.line.EnableRxInterrupt()
		e.armUs(waitActUs)

	case SndMrk:
		e.applyParseResult()
		e.beginTransmit()

	case WaitSRQ:
		e.tickSRQWindow()

	case WaitDBrk:
		e.state = WaitDBrk2
		e.armUs(postSRQFailsafeUs)

	case DBrk:
		// DBrk's own 100ms failsafe (shared with TstBrk's) expired without
		// a rising edge: line fault.
		e.resetToIdle()

	case DTst:
		// No second edge arrived to classify: treat as a line fault.
		e.resetToIdle()

	case ABrk:
		// No rising edge ended the candidate abort break: line fault,
		// the whole transaction (not just the abort attempt) is lost.
		e.resetToIdle()

	default:
		// Idle, SndResp, SendSRQ: no deadline is armed in these states.
	}
}

// applyParseResult runs the parser (if a command is pending and hasn't
// been processed yet) and applies its (flags, response) pair. A late
// parser — one that hasn't finished by the time this deadline fires — is
// not recovered: whatever is already in txBuf/sendBuf is sent as-is,
// matching spec §4.3's "mark-hold before response" contract. Caller must
// hold mu.
func (e *Engine) applyParseResult() {
	if e.state == SndMrk && e.flags.Has(FlagRxCmd) && !e.flags.Has(FlagProcCmd) {
		cmd := append([]byte(nil), e.rxBuf[1:e.rxIdx]...)
		ctx := ParseContext{
			Cfg:          e.cfg,
			RxAddr:       e.rxAddr,
			NumAddr:      e.numAddr,
			CurrentFlags: e.flags,
			CurrentMeta:  e.meta,
			DataPtr:      e.dataPtr,
			QueryCursor:  e.queryCursor,
		}
		res := ParseCommand(cmd, ctx)

		e.flags = res.Flags.Set(FlagProcCmd)
		e.meta = res.Meta
		e.queryCursor = res.NextQueryCursor
		e.awaitingSRQAfterResp = res.AwaitSRQAfterResponse

		if len(res.Response) > 0 {
			e.txLen = copy(e.txBuf[:], res.Response)
			e.sendBuf = e.txBuf[:e.txLen]
		} else {
			e.txLen = 0
			e.sendBuf = nil
		}
		if res.ConsumeData {
			e.dataPtr = nil
		}
		if res.MsgSignalAddr != noSignal {
			e.msgSignal = res.MsgSignalAddr
		}
	}
}

// beginTransmit moves SndMrk -> SndResp (or straight through finishTransmission
// if the response is empty, e.g. a ProcErr). Caller must hold mu.
func (e *Engine) beginTransmit() {
	e.state = SndResp
	e.sendPos = 0
	if len(e.sendBuf) == 0 {
		e.finishTransmission()
		return
	}
	e.line.EnableDriver()
	e.line.EnableTxInterrupt()
	e.line.TransmitByte(e.sendBuf[0])
}

// tickSRQWindow implements spec §4.3's SRQ window: fire at the first tick
// on which data_ptr is non-empty, else expire after MeasureWait*10 ticks
// of 100ms. Caller must hold mu.
func (e *Engine) tickSRQWindow() {
	if e.dataPtr != nil {
		resp := []byte{e.rxAddr, '\r', '\n'}
		e.txLen = copy(e.txBuf[:], resp)
		e.sendBuf = e.txBuf[:e.txLen]
		e.sendPos = 0
		e.state = SendSRQ
		e.line.EnableDriver()
		e.line.EnableTxInterrupt()
		e.line.TransmitByte(e.sendBuf[0])
		return
	}

	limit := 10 * int(e.cfg.MeasureWaitSeconds)
	e.srqTicks++
	if e.srqTicks >= limit {
		e.resetToIdle()
		return
	}
	e.armUs(srqTickUs)
}
