package hw

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jkennedy-usgs/sdi12wsn/pkg/registry"
	"github.com/jkennedy-usgs/sdi12wsn/pkg/wireless"
)

// RadioTransport implements wireless.NodeTransport over a minimal
// byte-oriented request/response framing on a point-to-point radio link.
// The real link's wire framing is a Non-goal (spec.md §1); this is
// intentionally the simplest framing that exercises every operation of
// the wireless session controller (SPEC_FULL.md §4.9).
type RadioTransport struct {
	mu   sync.Mutex
	conn io.ReadWriter
	r    *bufio.Reader
}

const (
	opDiscover    byte = 0x01
	opConfigureIO byte = 0x02
	opReadDIP     byte = 0x03
	opSleep       byte = 0x04
	opWaitAwake   byte = 0x05
	opPowerProbe  byte = 0x06
	opSample      byte = 0x07
	opWaitAsleep  byte = 0x08
)

// NewRadioTransport wraps an already-open radio link.
func NewRadioTransport(conn io.ReadWriter) *RadioTransport {
	return &RadioTransport{conn: conn, r: bufio.NewReader(conn)}
}

func (t *RadioTransport) request(op byte, id registry.Identifier, payload []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	frame := make([]byte, 0, 5+len(payload))
	frame = append(frame, op)
	frame = binary.BigEndian.AppendUint16(frame, id.SerialHigh)
	frame = binary.BigEndian.AppendUint16(frame, id.SerialLow)
	frame = append(frame, payload...)

	if _, err := t.conn.Write(frame); err != nil {
		return nil, fmt.Errorf("hw: radio write: %w", err)
	}

	length, err := t.r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("hw: radio read length: %w", err)
	}
	resp := make([]byte, length)
	if _, err := io.ReadFull(t.r, resp); err != nil {
		return nil, fmt.Errorf("hw: radio read body: %w", err)
	}
	return resp, nil
}

// Discover broadcasts a zero-identifier discovery frame and parses back a
// list of 4-byte SerialHigh/SerialLow pairs.
func (t *RadioTransport) Discover(ctx context.Context) ([]registry.Identifier, error) {
	resp, err := t.request(opDiscover, registry.Identifier{}, nil)
	if err != nil {
		return nil, err
	}
	var ids []registry.Identifier
	for i := 0; i+4 <= len(resp); i += 4 {
		ids = append(ids, registry.Identifier{
			SerialHigh: binary.BigEndian.Uint16(resp[i:]),
			SerialLow:  binary.BigEndian.Uint16(resp[i+2:]),
		})
	}
	return ids, nil
}

func (t *RadioTransport) ConfigureIO(ctx context.Context, id registry.Identifier) error {
	_, err := t.request(opConfigureIO, id, nil)
	return err
}

func (t *RadioTransport) ReadDIPAddress(ctx context.Context, id registry.Identifier) (uint8, error) {
	resp, err := t.request(opReadDIP, id, nil)
	if err != nil {
		return 0, err
	}
	if len(resp) < 1 {
		return 0, fmt.Errorf("hw: radio: short DIP response")
	}
	return resp[0], nil
}

func (t *RadioTransport) ProgramSleep(ctx context.Context, id registry.Identifier, d time.Duration) error {
	payload := make([]byte, 2)
	binary.BigEndian.PutUint16(payload, uint16(d/time.Second))
	_, err := t.request(opSleep, id, payload)
	return err
}

func (t *RadioTransport) WaitNetworkAwake(ctx context.Context, id registry.Identifier) error {
	_, err := t.request(opWaitAwake, id, nil)
	return err
}

func (t *RadioTransport) PowerProbe(ctx context.Context, id registry.Identifier, probe int, on bool) error {
	var onByte byte
	if on {
		onByte = 1
	}
	_, err := t.request(opPowerProbe, id, []byte{byte(probe), onByte})
	return err
}

func (t *RadioTransport) Sample(ctx context.Context, id registry.Identifier, probe int) (uint16, error) {
	resp, err := t.request(opSample, id, []byte{byte(probe)})
	if err != nil {
		return 0, err
	}
	if len(resp) < 2 {
		return 0, fmt.Errorf("hw: radio: short sample response")
	}
	return binary.BigEndian.Uint16(resp), nil
}

func (t *RadioTransport) WaitNetworkAsleep(ctx context.Context, id registry.Identifier) error {
	_, err := t.request(opWaitAsleep, id, nil)
	return err
}

var _ wireless.NodeTransport = (*RadioTransport)(nil)
