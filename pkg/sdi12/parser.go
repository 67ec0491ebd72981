package sdi12

import (
	"github.com/jkennedy-usgs/sdi12wsn/internal/crc"
)

// sdi12Version is the two-digit SDI-12 protocol version reported in the
// `aI!` identity response (spec §6: "ll" field).
const sdi12Version = "13"

// numValuesPerNode is the fixed number of values a measurement returns:
// one per probe (spec §3: "two probes each").
const numValuesPerNode = 2

// ParseContext is the read-only snapshot of engine state the parser needs
// to classify and answer a command. It exists so the parser can be a pure
// function, tested without an Engine.
type ParseContext struct {
	Cfg          EngineConfig
	RxAddr       byte // the address byte of this transaction ('?' for a query)
	NumAddr      uint8
	CurrentFlags Flags
	CurrentMeta  rxMeta
	DataPtr      []byte
	QueryCursor  int
}

// ParseResult is the new (flags, response) pair the Design Notes call for:
// the protocol state machine applies it atomically at the SndMrk→SndResp
// transition instead of letting the parser mutate shared state directly.
type ParseResult struct {
	Flags                 Flags
	Meta                  rxMeta
	Response              []byte // nil means ProcErr: no response is sent
	MsgSignalAddr         byte   // noSignal unless a measurement should raise msg_signal
	ConsumeData           bool   // true if Response was built from DataPtr, which the engine must now clear
	NextQueryCursor       int
	AwaitSRQAfterResponse bool // true for a bare M/C/V acknowledge; false for everything else
}

// ParseCommand classifies a buffered command (cmd is everything after the
// address byte, including the trailing '!') and produces the response
// per spec §4.4/§4.4a. It never mutates ctx.
func ParseCommand(cmd []byte, ctx ParseContext) ParseResult {
	isQuery := ctx.RxAddr == '?'
	n := len(cmd) // spec's "Bytes" column: payload bytes between address and trailing '!', inclusive of '!'

	if isQuery {
		if n == 1 && cmd[0] == '!' {
			return parseQuery(ctx)
		}
		return procErr()
	}

	switch n {
	case 1:
		if cmd[0] == '!' {
			return parseAcknowledge(ctx)
		}
	case 2:
		if cmd[1] == '!' {
			switch cmd[0] {
			case 'I':
				return parseIdentify(ctx)
			case 'M':
				return parseMeasure(ctx, FlagCmdM, 0, false)
			case 'C':
				return parseMeasure(ctx, FlagCmdC, 0, false)
			case 'V':
				return parseMeasure(ctx, FlagCmdV, 0, false)
			}
		}
	case 3:
		if cmd[2] == '!' {
			switch {
			case (cmd[0] == 'M' || cmd[0] == 'C') && cmd[1] == 'C':
				flag := FlagCmdM
				if cmd[0] == 'C' {
					flag = FlagCmdC
				}
				return parseMeasure(ctx, flag, 0, true)
			case (cmd[0] == 'M' || cmd[0] == 'C') && isDigit19(cmd[1]):
				flag := FlagCmdM
				if cmd[0] == 'C' {
					flag = FlagCmdC
				}
				return parseMeasure(ctx, flag, cmd[1]-'0', false)
			case cmd[0] == 'D' && isDigit09(cmd[1]):
				return parseData(ctx, cmd[1]-'0')
			}
		}
	case 4:
		if cmd[3] == '!' {
			switch {
			case (cmd[0] == 'M' || cmd[0] == 'C') && cmd[1] == 'C' && isDigit19(cmd[2]):
				flag := FlagCmdM
				if cmd[0] == 'C' {
					flag = FlagCmdC
				}
				return parseMeasure(ctx, flag, cmd[2]-'0', true)
			case cmd[0] == 'R' && cmd[1] == 'C':
				// RCn! (CRC-verified data send) is recognised syntactically
				// and rejected: the spec assumes the bridge never receives
				// CRC'd input from the host (see DESIGN.md Open Questions).
				return procErr()
			}
		}
	}
	// len >= 5, or any combination not matched above: "X..." — recognised
	// syntactically, not implemented.
	return procErr()
}

func procErr() ParseResult {
	return ParseResult{Flags: FlagProcErr, Response: nil}
}

func parseAcknowledge(ctx ParseContext) ParseResult {
	return ParseResult{
		Response: append([]byte{ctx.RxAddr}, '\r', '\n'),
	}
}

func parseIdentify(ctx ParseContext) ParseResult {
	resp := make([]byte, 0, 1+2+len(ctx.Cfg.Identity)+2)
	resp = append(resp, ctx.RxAddr)
	resp = append(resp, sdi12Version...)
	resp = append(resp, ctx.Cfg.Identity...)
	resp = append(resp, '\r', '\n')
	return ParseResult{Response: resp}
}

func parseMeasure(ctx ParseContext, which Flags, n byte, crcReq bool) ParseResult {
	flags := which
	if crcReq {
		flags |= FlagCRCReq
	}
	w := ctx.Cfg.MeasureWaitSeconds
	resp := []byte{ctx.RxAddr, '0', '0', '0' + w, '0' + numValuesPerNode, '\r', '\n'}

	result := ParseResult{
		Flags:                 flags,
		Meta:                  rxMeta(0).withN(n),
		Response:              resp,
		MsgSignalAddr:         noSignal,
		NextQueryCursor:       ctx.QueryCursor,
		AwaitSRQAfterResponse: true,
	}
	// spec: msg_signal is only raised for M; C/V still hold the bus open
	// for a D0 follow-up but never trigger a wireless fetch.
	if which == FlagCmdM {
		result.MsgSignalAddr = ctx.NumAddr
	}
	return result
}

func parseData(ctx ParseContext, n byte) ParseResult {
	outstanding := ctx.CurrentFlags&(FlagCmdM|FlagCmdC|FlagCmdV) != 0
	if !outstanding || ctx.CurrentMeta.n() != n {
		return procErr()
	}

	meta := ctx.CurrentMeta.withRxD(true)

	if len(ctx.DataPtr) == 0 {
		resp := []byte{ctx.RxAddr, '0', '0', '0', '0', '\r', '\n'}
		return ParseResult{Meta: meta, Response: resp, ConsumeData: false}
	}

	resp := composeDataResponse(ctx.RxAddr, ctx.DataPtr, ctx.CurrentFlags.Has(FlagCRCReq))
	return ParseResult{Meta: meta, Response: resp, ConsumeData: true}
}

// composeDataResponse implements spec §4.4a: overwrite the placeholder
// byte with addr, scan to the first zero byte (end of value characters),
// optionally insert the three CRC characters, then append <CR><LF>.
func composeDataResponse(addr byte, dataPtr []byte, crcReq bool) []byte {
	buf := make([]byte, len(dataPtr))
	copy(buf, dataPtr)
	buf[0] = addr

	end := len(buf)
	for i := 1; i < len(buf); i++ {
		if buf[i] == 0 {
			end = i
			break
		}
	}
	values := buf[:end]

	out := make([]byte, 0, end+3+2)
	out = append(out, values...)
	if crcReq {
		sum := crc.Of(values)
		enc := sum.Encode()
		out = append(out, enc[0], enc[1], enc[2])
	}
	out = append(out, '\r', '\n')
	return out
}

func parseQuery(ctx ParseContext) ParseResult {
	addrs := ctx.Cfg.Addresses
	if len(addrs) == 0 {
		return procErr()
	}
	cursor := ctx.QueryCursor % len(addrs)
	resp := []byte{addrs[cursor], '\r', '\n'}
	return ParseResult{
		Response:        resp,
		NextQueryCursor: (cursor + 1) % len(addrs),
	}
}

func isDigit19(b byte) bool { return b >= '1' && b <= '9' }
func isDigit09(b byte) bool { return b >= '0' && b <= '9' }
