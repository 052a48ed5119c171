package protocol2

import (
	"encoding/binary"
	"fmt"
)

// Status is a decoded status packet.
type Status struct {
	ID     byte
	Error  DeviceError
	Params []byte
}

// parseStatus decodes a validated, destuffed status frame.
func parseStatus(frame []byte) Status {
	return Status{
		ID:     frame[offID],
		Error:  DeviceError(frame[offError]),
		Params: frame[offStatusParam : len(frame)-crcSize],
	}
}

// DecodeStatus validates and decodes a single stuffed status frame.
func DecodeStatus(frame []byte) (Status, error) {
	if len(frame) < minStatusLength || !hasHeaderAt(frame, offHeader0) {
		return Status{}, fmt.Errorf("%w: malformed status frame", RxCorrupt)
	}
	if !validStatusHeader(frame) || frameLength(frame)+headerSize != len(frame) {
		return Status{}, fmt.Errorf("%w: bad status header", RxCorrupt)
	}
	if !validCRC(frame) {
		return Status{}, fmt.Errorf("%w: crc mismatch", RxCorrupt)
	}

	return parseStatus(Destuff(frame)), nil
}

// EncodeStatus builds the stuffed status frame a device with id would send.
func EncodeStatus(id byte, devErr DeviceError, params []byte) []byte {
	body := make([]byte, 0, 1+len(params))
	body = append(body, byte(devErr))
	body = append(body, params...)

	return Stuff(buildFrame(id, OpStatus, body))
}

// validStatusHeader checks the fixed fields following a located header.
func validStatusHeader(buf []byte) bool {
	length := frameLength(buf)

	return buf[offReserved] == 0x00 &&
		buf[offID] <= MaxID &&
		length >= minStatusLength-headerSize &&
		length <= MaxFrameLength &&
		Opcode(buf[offInstruction]) == OpStatus
}

// uint16At decodes a little-endian word at offset i of b.
func uint16At(b []byte, i int) uint16 {
	return binary.LittleEndian.Uint16(b[i:])
}
