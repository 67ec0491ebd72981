package sdi12

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdi12wsn "github.com/jkennedy-usgs/sdi12wsn"
)

func TestAcknowledgeActive(t *testing.T) {
	e, line, timer := newTestEngine([]byte{'0', '1'}, 2, "USGSSM001001")
	resp := sendFrame(e, line, timer, []byte("0!"))
	assert.Equal(t, []byte("0\r\n"), resp)
}

func TestIdentifyReportsVersionAndIdentity(t *testing.T) {
	e, line, timer := newTestEngine([]byte{'0'}, 2, "USGSSM001001")
	resp := sendFrame(e, line, timer, []byte("0I!"))
	assert.Equal(t, []byte("013USGSSM001001\r\n"), resp)
}

func TestMeasureReportsWaitAndValueCount(t *testing.T) {
	e, line, timer := newTestEngine([]byte{'0'}, 3, "ID")
	resp := sendFrame(e, line, timer, []byte("0M!"))
	assert.Equal(t, []byte("00032\r\n"), resp)
}

func TestMeasureRaisesMsgSignalForAddress(t *testing.T) {
	e, line, timer := newTestEngine([]byte{'3'}, 1, "ID")
	sendFrame(e, line, timer, []byte("3M!"))

	addr, ok := e.PendingAddress()
	require.True(t, ok)
	assert.EqualValues(t, 3, addr)
}

func TestConcurrentMeasurementRequestsAreImpossible(t *testing.T) {
	// msg_signal is a one-slot mailbox: once an M raises it, it keeps
	// reporting that same outstanding address on every read until
	// ProvideData clears it.
	e, line, timer := newTestEngine([]byte{'5'}, 1, "ID")
	sendFrame(e, line, timer, []byte("5M!"))

	addr, ok := e.PendingAddress()
	require.True(t, ok)
	assert.EqualValues(t, 5, addr)

	// Until ProvideData clears it, PendingAddress keeps reporting the same
	// outstanding request.
	addr2, ok2 := e.PendingAddress()
	require.True(t, ok2)
	assert.Equal(t, addr, addr2)
}

func TestCCommandDoesNotRaiseMsgSignal(t *testing.T) {
	e, line, timer := newTestEngine([]byte{'0'}, 1, "ID")
	sendFrame(e, line, timer, []byte("0C!"))

	_, ok := e.PendingAddress()
	assert.False(t, ok, "C! must not trigger a wireless fetch")
}

func TestDataFollowUpBeforeDataReadyReturnsZeroFields(t *testing.T) {
	e, line, timer := newTestEngine([]byte{'0'}, 1, "ID")
	sendFrame(e, line, timer, []byte("0M!"))

	addr, _ := e.PendingAddress()
	e.ProvideData(addr, []byte{}) // non-nil but zero values: fires the SRQ with nothing ready
	advanceToWaitDBrk(e, line, timer)

	resp := sendFollowUp(e, line, timer, []byte("0D0!"))
	assert.Equal(t, []byte("00000\r\n"), resp)
}

func TestDataFollowUpAfterDataReadyReturnsValues(t *testing.T) {
	e, line, timer := newTestEngine([]byte{'0'}, 1, "ID")
	sendFrame(e, line, timer, []byte("0M!"))

	addr, _ := e.PendingAddress()
	buf := make([]byte, 16)
	copy(buf[1:], "+512+498")
	e.ProvideData(addr, buf)
	advanceToWaitDBrk(e, line, timer)

	resp := sendFollowUp(e, line, timer, []byte("0D0!"))
	assert.Equal(t, []byte("0+512+498\r\n"), resp)
}

func TestDataFollowUpWithCRCRequest(t *testing.T) {
	e, line, timer := newTestEngine([]byte{'0'}, 1, "ID")
	sendFrame(e, line, timer, []byte("0MC!"))

	addr, _ := e.PendingAddress()
	buf := make([]byte, 16)
	copy(buf[1:], "+512+498")
	e.ProvideData(addr, buf)
	advanceToWaitDBrk(e, line, timer)

	resp := sendFollowUp(e, line, timer, []byte("0D0!"))
	require.Len(t, resp, len("0+512+498")+3+2)
	assert.Equal(t, byte('\r'), resp[len(resp)-2])
	assert.Equal(t, byte('\n'), resp[len(resp)-1])
	for _, b := range resp[len("0+512+498") : len(resp)-2] {
		assert.Equal(t, byte(0x40), b&0xC0)
	}
}

func TestDataFollowUpWrongNIsProcErr(t *testing.T) {
	e, line, timer := newTestEngine([]byte{'0'}, 1, "ID")
	sendFrame(e, line, timer, []byte("0M!"))

	addr, _ := e.PendingAddress()
	e.ProvideData(addr, []byte{})
	advanceToWaitDBrk(e, line, timer)

	resp := sendFollowUp(e, line, timer, []byte("0D1!"))
	assert.Nil(t, resp)
}

func TestFollowOnAddressFilterRejectsOtherAddress(t *testing.T) {
	e, line, timer := newTestEngine([]byte{'0', '1'}, 1, "ID")
	sendFrame(e, line, timer, []byte("0M!"))

	addr, _ := e.PendingAddress()
	e.ProvideData(addr, []byte{})
	advanceToWaitDBrk(e, line, timer)

	// a D0! for a different address must be rejected outright: the
	// acceptFirstChar follow-on filter drops it and the engine resets.
	resp := sendFollowUp(e, line, timer, []byte("1D0!"))
	assert.Nil(t, resp)
}

func TestUnknownCommandIsProcErr(t *testing.T) {
	e, line, timer := newTestEngine([]byte{'0'}, 1, "ID")
	resp := sendFrame(e, line, timer, []byte("0X!"))
	assert.Nil(t, resp)
}

func TestQueryRoundRobinsConfiguredAddresses(t *testing.T) {
	e, line, timer := newTestEngine([]byte{'3', '7'}, 1, "ID")

	first := sendFrame(e, line, timer, []byte("?!"))
	assert.Equal(t, []byte("3\r\n"), first)

	second := sendFrame(e, line, timer, []byte("?!"))
	assert.Equal(t, []byte("7\r\n"), second)

	third := sendFrame(e, line, timer, []byte("?!"))
	assert.Equal(t, []byte("3\r\n"), third)
}

func TestBreakShorterThanMinimumIsRejected(t *testing.T) {
	e, line, timer := newTestEngine([]byte{'0'}, 1, "ID")

	e.OnEdge(true)
	timer.advance(breakMinUs - 1)
	e.OnEdge(false)

	assert.Equal(t, Idle, e.State())
	_ = line
}

func TestBreakAtExactMinimumIsAccepted(t *testing.T) {
	e, line, timer := newTestEngine([]byte{'0'}, 1, "ID")

	e.OnEdge(true)
	timer.advance(breakMinUs)
	e.OnEdge(false)

	assert.Equal(t, TstMrk, e.State())
	_ = line
}

func TestMarkShorterThanMinimumRestartsBreak(t *testing.T) {
	e, _, timer := newTestEngine([]byte{'0'}, 1, "ID")

	e.OnEdge(true)
	timer.advance(breakMinUs)
	e.OnEdge(false)
	require.Equal(t, TstMrk, e.State())

	timer.advance(markMinUs - 1)
	e.OnEdge(true) // falling edge before mark matured
	assert.Equal(t, TstBrk, e.State())
}

func TestMarkAtExactMinimumIsAccepted(t *testing.T) {
	e, _, timer := newTestEngine([]byte{'0'}, 1, "ID")

	e.OnEdge(true)
	timer.advance(breakMinUs)
	e.OnEdge(false)

	timer.advance(markMinUs)
	e.OnDeadline()
	assert.Equal(t, WaitAct, e.State())
}

func TestFramingErrorDuringCharacterDropsToTstBrk(t *testing.T) {
	e, _, timer := newTestEngine([]byte{'0'}, 1, "ID")

	e.OnEdge(true)
	timer.advance(breakMinUs)
	e.OnEdge(false)
	timer.advance(markMinUs)
	e.OnDeadline()
	require.Equal(t, WaitAct, e.State())

	e.OnCharacterIn('0', sdi12wsn.CharError{Framing: true})
	assert.Equal(t, TstBrk, e.State())
}

func TestAbortBreakDuringSRQWindowSendsBareAcknowledge(t *testing.T) {
	e, line, timer := newTestEngine([]byte{'0'}, 1, "ID")
	sendFrame(e, line, timer, []byte("0M!"))
	require.Equal(t, WaitSRQ, e.State())

	line.transmitted = nil
	e.OnEdge(true) // falling edge during WaitSRQ
	require.Equal(t, ABrk, e.State())

	timer.advance(abortBreakMinUs)
	e.OnEdge(false)
	require.Equal(t, SndMrk, e.State())

	e.OnDeadline()
	drainTx(e, line)
	assert.Equal(t, []byte("0\r\n"), line.transmitted)
}

func TestAbortBreakNoiseResumesSRQWindow(t *testing.T) {
	e, line, timer := newTestEngine([]byte{'0'}, 1, "ID")
	sendFrame(e, line, timer, []byte("0M!"))
	require.Equal(t, WaitSRQ, e.State())

	e.OnEdge(true)
	require.Equal(t, ABrk, e.State())

	timer.advance(abortBreakMinUs - 1)
	e.OnEdge(false)
	assert.Equal(t, WaitSRQ, e.State())
}

func TestSRQFiresWhenDataBecomesAvailable(t *testing.T) {
	e, line, timer := newTestEngine([]byte{'0'}, 1, "ID")
	sendFrame(e, line, timer, []byte("0M!"))
	require.Equal(t, WaitSRQ, e.State())

	addr, _ := e.PendingAddress()
	buf := make([]byte, 16)
	copy(buf[1:], "+12")
	e.ProvideData(addr, buf)

	line.transmitted = nil
	timer.advance(srqTickUs)
	e.OnDeadline()
	require.Equal(t, SendSRQ, e.State())
	drainTx(e, line)
	assert.Equal(t, []byte("0\r\n"), line.transmitted)
}

func TestSRQWindowExpiresAfterMeasureWait(t *testing.T) {
	e, line, timer := newTestEngine([]byte{'0'}, 1, "ID")
	sendFrame(e, line, timer, []byte("0M!"))
	require.Equal(t, WaitSRQ, e.State())

	for i := 0; i < 10; i++ {
		timer.advance(srqTickUs)
		e.OnDeadline()
	}
	assert.Equal(t, Idle, e.State())
}
