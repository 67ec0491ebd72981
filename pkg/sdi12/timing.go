package sdi12

// Timing constants from spec §4.3, expressed in microseconds throughout
// (Arm/ElapsedUs on [sdi12wsn.TimedEventSource] are microsecond-addressable
// so the break/mark boundary tests can distinguish e.g. 11.999ms from
// 12.000ms).
const (
	breakFailsafeUs   = 100_000 // TstBrk: falling edge failsafe (line-fault timeout)
	breakMinUs        = 12_000  // minimum break duration to be valid
	markMinUs         = 8_190   // minimum post-break mark duration to be valid
	waitActUs         = 100_000 // WaitAct: first command character deadline
	interCharUs       = 12_000  // WaitChr: inter-character limit
	markHoldUs        = 8_450   // SndMrk: exact mark hold before response begins
	srqTickUs         = 100_000 // one SRQ-window tick
	postSRQWindowUs   = 85_000  // WaitDBrk window
	postSRQFailsafeUs = 200_000 // WaitDBrk2 failsafe
	dCharFailsafeUs   = 10_000  // DChr failsafe
	abortBreakMinUs   = 12_000  // ABrk: same break threshold applied to an abort candidate
)

// MaxCounterValue bounds what a 16-bit hardware compare register can hold.
// TimerTicks panics if a caller asks for a deadline that would not fit,
// which is a programming error (a fixed set of deadlines is used
// throughout the core) rather than a runtime condition.
const MaxCounterValue = 0xFFFF

// TimerTicks is the compile-time timer-tick scaling the original firmware
// computed as `constant * F_CPU / 1024000`, applied to a deadline
// expressed in microseconds. There is no hardware compare-timer register
// to program in this Go rendition, but the arithmetic is kept as a pure
// function so a hardware [sdi12wsn.TimedEventSource] implementation that
// does program a real prescaled counter can reuse it.
func TimerTicks(deadlineUs uint32, cpuHz uint32) uint32 {
	ticks := uint64(deadlineUs) * uint64(cpuHz) / 1024000
	if ticks > MaxCounterValue {
		panic("sdi12: requested deadline exceeds compare-timer counter range")
	}
	return uint32(ticks)
}
