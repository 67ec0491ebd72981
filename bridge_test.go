package sdi12wsn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkennedy-usgs/sdi12wsn/pkg/registry"
	"github.com/jkennedy-usgs/sdi12wsn/pkg/sdi12"
	"github.com/jkennedy-usgs/sdi12wsn/pkg/wireless"
)

type noopLine struct{}

func (noopLine) EnableReceive()        {}
func (noopLine) DisableReceive()       {}
func (noopLine) EnableRxInterrupt()    {}
func (noopLine) DisableRxInterrupt()   {}
func (noopLine) EnableTxInterrupt()    {}
func (noopLine) DisableTxInterrupt()   {}
func (noopLine) EnableDriver()         {}
func (noopLine) DisableDriver()        {}
func (noopLine) HoldMark()             {}
func (noopLine) EnableEdgeInterrupt()  {}
func (noopLine) DisableEdgeInterrupt() {}
func (noopLine) TransmitByte(b byte) error { return nil }

// sizableTimer always reports an elapsed time comfortably past every
// threshold in pkg/sdi12, so driving the engine through a full
// break/mark/command sequence in a single-threaded test needs no real
// clock.
type sizableTimer struct{}

func (sizableTimer) Arm(uint32)        {}
func (sizableTimer) Reset()            {}
func (sizableTimer) Disable()          {}
func (sizableTimer) ElapsedUs() uint32 { return 1_000_000 }

type fakeNodeTransport struct{}

func (fakeNodeTransport) Discover(ctx context.Context) ([]registry.Identifier, error) {
	return nil, nil
}
func (fakeNodeTransport) ConfigureIO(ctx context.Context, id registry.Identifier) error { return nil }
func (fakeNodeTransport) ReadDIPAddress(ctx context.Context, id registry.Identifier) (uint8, error) {
	return 0, nil
}
func (fakeNodeTransport) ProgramSleep(ctx context.Context, id registry.Identifier, d time.Duration) error {
	return nil
}
func (fakeNodeTransport) WaitNetworkAwake(ctx context.Context, id registry.Identifier) error {
	return nil
}
func (fakeNodeTransport) PowerProbe(ctx context.Context, id registry.Identifier, probe int, on bool) error {
	return nil
}
func (fakeNodeTransport) Sample(ctx context.Context, id registry.Identifier, probe int) (uint16, error) {
	return 777, nil
}
func (fakeNodeTransport) WaitNetworkAsleep(ctx context.Context, id registry.Identifier) error {
	return nil
}

func TestTickFetchesPendingRequestAndProvidesData(t *testing.T) {
	reg := registry.New(4)
	require.NoError(t, reg.Add(9, registry.Identifier{SerialHigh: 1}, 1))

	wc := wireless.New(fakeNodeTransport{}, reg, wireless.Config{
		SentinelFullScale: 0xFFFF,
		SentinelZero:      0,
	}, nil)

	engine := sdi12.NewEngine(noopLine{}, sizableTimer{}, sdi12.EngineConfig{
		Addresses:          []byte{'9'},
		MeasureWaitSeconds: 1,
		Identity:           "ID",
	}, nil)

	_, ok := engine.PendingAddress()
	assert.False(t, ok)

	engine.OnEdge(true)
	engine.OnEdge(false)
	engine.OnDeadline() // TstMrk -> WaitAct
	for _, ch := range []byte("9M!") {
		engine.OnCharacterIn(ch, CharError{})
	}
	engine.OnDeadline() // SndMrk: parses and begins transmitting the ack

	addr, ok := engine.PendingAddress()
	require.True(t, ok)
	assert.EqualValues(t, 9, addr)

	b := NewBridge(engine, wc, reg, nil)
	b.Tick(context.Background())

	_, stillPending := engine.PendingAddress()
	assert.False(t, stillPending, "Tick should have satisfied the outstanding request")
}
