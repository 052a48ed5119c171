package protocol2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStuff(t *testing.T) {
	tests := []struct {
		name   string
		params []byte
		want   []byte // stuffed parameter bytes
	}{
		{
			name:   "no header pattern",
			params: []byte{0x84, 0x00, 0x04, 0x00},
			want:   []byte{0x84, 0x00, 0x04, 0x00},
		},
		{
			name:   "false header",
			params: []byte{0xFF, 0xFF, 0xFD},
			want:   []byte{0xFF, 0xFF, 0xFD, 0xFD},
		},
		{
			name:   "false header followed by escape byte",
			params: []byte{0xFF, 0xFF, 0xFD, 0xFD, 0xFD},
			want:   []byte{0xFF, 0xFF, 0xFD, 0xFD, 0xFD, 0xFD},
		},
		{
			name:   "adjacent false headers",
			params: []byte{0xFF, 0xFF, 0xFD, 0xFF, 0xFF, 0xFD, 0x01},
			want:   []byte{0xFF, 0xFF, 0xFD, 0xFD, 0xFF, 0xFF, 0xFD, 0xFD, 0x01},
		},
		{
			name:   "three leading FF",
			params: []byte{0xFF, 0xFF, 0xFF, 0xFD},
			want:   []byte{0xFF, 0xFF, 0xFF, 0xFD, 0xFD},
		},
		{
			name:   "FD without full prefix",
			params: []byte{0x00, 0xFF, 0xFD, 0xFD},
			want:   []byte{0x00, 0xFF, 0xFD, 0xFD},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := buildFrame(1, OpWrite, tt.params)
			rawCopy := append([]byte(nil), raw...)

			out := Stuff(raw)

			assert.Equal(t, rawCopy, raw, "input must not be modified")
			assert.Equal(t, tt.want, out[offInstruction+1:len(out)-crcSize])
			assert.Equal(t, len(out)-headerSize, frameLength(out))
			assert.True(t, validCRC(out))
		})
	}
}

func TestDestuff_InvertsStuff(t *testing.T) {
	payloads := [][]byte{
		nil,
		{0xFF, 0xFF, 0xFD},
		{0xFF, 0xFF, 0xFD, 0xFD},
		{0xFF, 0xFF, 0xFD, 0xFD, 0xFD},
		{0xFF, 0xFF, 0xFF, 0xFD, 0xFF, 0xFF, 0xFD, 0xFD},
		{0xFD, 0xFD, 0xFD},
		{0x01, 0xFF, 0xFF},
		{0xFF, 0xFF},
	}

	for _, p := range payloads {
		raw := buildFrame(7, OpWrite, p)
		got := Destuff(Stuff(raw))
		require.Equal(t, raw[:len(raw)-crcSize], got[:len(got)-crcSize], "payload % X", p)
	}
}

func TestDestuff_TrailingFalseHeaderAtCRC(t *testing.T) {
	// The escape check must not look into the CRC field.
	frame := []byte{0xFF, 0xFF, 0xFD, 0x00, 0x01, 0x06, 0x00, 0x55, 0xFF, 0xFF, 0xFD, 0xFD, 0x00}
	out := Destuff(frame)
	assert.Equal(t, frame, out)
}

func FuzzStuffRoundTrip(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0xFF, 0xFF, 0xFD})
	f.Add([]byte{0xFF, 0xFF, 0xFD, 0xFD, 0xFD})
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0xFD, 0xFF, 0xFF, 0xFD})

	f.Fuzz(func(t *testing.T, params []byte) {
		if len(params) > MaxFrameLength {
			t.Skip()
		}

		raw := buildFrame(1, OpWrite, params)
		stuffed := Stuff(raw)
		if !validCRC(stuffed) {
			t.Fatalf("stuffed frame has bad crc: % X", stuffed)
		}

		got := Destuff(stuffed)
		if string(got[:len(got)-crcSize]) != string(raw[:len(raw)-crcSize]) {
			t.Fatalf("round trip mismatch:\n raw % X\n got % X", raw, got)
		}
	})
}
