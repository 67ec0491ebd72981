// Package sdi12 implements the SDI-12 line-protocol state machine: the
// core of the bridge. It owns receive/transmit buffering, break and mark
// detection timing, address filtering, the marked response delay, the
// service-request window, post-SRQ D-command acceptance, abort-break
// detection and CRC generation. It depends on nothing but the
// [sdi12wsn.LineDriver] and [sdi12wsn.TimedEventSource] interfaces it is
// constructed with, so it can be driven by tests without any hardware.
package sdi12

// State is one of the exhaustive protocol states of the core state
// machine (spec §4.3).
type State uint8

const (
	Idle State = iota
	TstBrk
	TstMrk
	WaitAct
	WaitChr
	SndMrk
	SndResp
	WaitSRQ
	SendSRQ
	WaitDBrk
	DTst
	WaitDBrk2
	DBrk
	DChr
	ABrk
)

var stateNames = map[State]string{
	Idle:      "Idle",
	TstBrk:    "TstBrk",
	TstMrk:    "TstMrk",
	WaitAct:   "WaitAct",
	WaitChr:   "WaitChr",
	SndMrk:    "SndMrk",
	SndResp:   "SndResp",
	WaitSRQ:   "WaitSRQ",
	SendSRQ:   "SendSRQ",
	WaitDBrk:  "WaitDBrk",
	DTst:      "DTst",
	WaitDBrk2: "WaitDBrk2",
	DBrk:      "DBrk",
	DChr:      "DChr",
	ABrk:      "ABrk",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}
