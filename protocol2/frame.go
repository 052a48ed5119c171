package protocol2

import (
	"encoding/binary"
	"fmt"
)

// Reserved device identifiers.
const (
	// MaxID is the highest addressable device ID.
	MaxID byte = 0xFC
	// BroadcastID addresses every device on the bus.
	BroadcastID byte = 0xFE
)

// MaxFrameLength is the largest frame, after stuffing, in either direction.
const MaxFrameLength = 1024

// Frame field offsets.
const (
	offHeader0     = 0
	offReserved    = 3
	offID          = 4
	offLengthL     = 5
	offLengthH     = 6
	offInstruction = 7
	offError       = 8
	offStatusParam = 9
)

// Frame sizes.
const (
	// headerSize covers the header, reserved byte, ID and length field.
	headerSize = 7
	crcSize    = 2

	// minInstructionLength is a frame with no parameters.
	minInstructionLength = headerSize + 1 + crcSize
	// minStatusLength is a status frame with no parameters.
	minStatusLength = headerSize + 2 + crcSize
	// pingStatusLength is a status frame answering a ping.
	pingStatusLength = minStatusLength + 3
)

// header is the frame signature.
var header = [...]byte{0xFF, 0xFF, 0xFD}

// stuffByte is the byte that follows a false header inside a stuffed payload.
const stuffByte byte = 0xFD

// Opcode is an instruction code.
type Opcode byte

// Instruction codes.
const (
	OpPing         Opcode = 0x01
	OpRead         Opcode = 0x02
	OpWrite        Opcode = 0x03
	OpRegWrite     Opcode = 0x04
	OpAction       Opcode = 0x05
	OpFactoryReset Opcode = 0x06
	OpReboot       Opcode = 0x08
	OpClear        Opcode = 0x10
	OpStatus       Opcode = 0x55
	OpSyncRead     Opcode = 0x82
	OpSyncWrite    Opcode = 0x83
	OpBulkRead     Opcode = 0x92
	OpBulkWrite    Opcode = 0x93
)

var opcodeNames = map[Opcode]string{
	OpPing:         "Ping",
	OpRead:         "Read",
	OpWrite:        "Write",
	OpRegWrite:     "RegWrite",
	OpAction:       "Action",
	OpFactoryReset: "FactoryReset",
	OpReboot:       "Reboot",
	OpClear:        "Clear",
	OpStatus:       "Status",
	OpSyncRead:     "SyncRead",
	OpSyncWrite:    "SyncWrite",
	OpBulkRead:     "BulkRead",
	OpBulkWrite:    "BulkWrite",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}

	return fmt.Sprintf("Opcode(0x%02X)", byte(op))
}

// frameLength returns the value of the length field.
func frameLength(frame []byte) int {
	return int(binary.LittleEndian.Uint16(frame[offLengthL:]))
}

// setFrameLength writes the length field.
func setFrameLength(frame []byte, length int) {
	binary.LittleEndian.PutUint16(frame[offLengthL:], uint16(length))
}

// hasHeaderAt reports whether buf holds the frame signature at i.
func hasHeaderAt(buf []byte, i int) bool {
	return i+len(header) <= len(buf) &&
		buf[i] == header[0] && buf[i+1] == header[1] && buf[i+2] == header[2]
}

// buildFrame assembles an unstuffed frame with its CRC.
func buildFrame(id byte, op Opcode, params []byte) []byte {
	frame := make([]byte, minInstructionLength+len(params))
	copy(frame, header[:])
	frame[offReserved] = 0x00
	frame[offID] = id
	setFrameLength(frame, len(params)+1+crcSize)
	frame[offInstruction] = byte(op)
	copy(frame[offInstruction+1:], params)
	putCRC(frame)

	return frame
}
