package crc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSingleByte(t *testing.T) {
	var c CRC16
	c.Single(10)
	assert.NotEqual(t, CRC16(0), c)
}

func TestBlockMatchesSingle(t *testing.T) {
	var viaBlock CRC16
	viaBlock.Block([]byte("0+512+498"))

	var viaSingle CRC16
	for _, b := range []byte("0+512+498") {
		viaSingle.Single(b)
	}
	assert.Equal(t, viaSingle, viaBlock)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := Of([]byte("0+512+498"))
	enc := c.Encode()
	for _, b := range enc {
		assert.Equal(t, byte(0x40), b&0xC0, "top two bits of every CRC byte must be 01")
	}
	assert.Equal(t, c, Decode(enc))
}

func TestEmptyInputIsZero(t *testing.T) {
	assert.Equal(t, CRC16(0), Of(nil))
}
