package protocol2

import (
	"encoding/binary"

	"github.com/sigurn/crc16"
)

// crcTable is generated once from polynomial 0x8005, initial value 0, no
// reflection and no final XOR (CRC-16/BUYPASS).
var crcTable = crc16.MakeTable(crc16.CRC16_BUYPASS)

// CRC computes the frame checksum of data.
func CRC(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}

// UpdateCRC folds data into a running checksum started at 0.
func UpdateCRC(crc uint16, data []byte) uint16 {
	return crc16.Update(crc, data, crcTable)
}

// putCRC computes the checksum over frame minus its trailing CRC field and
// stores it little-endian in that field.
func putCRC(frame []byte) {
	n := len(frame) - crcSize
	binary.LittleEndian.PutUint16(frame[n:], CRC(frame[:n]))
}

// validCRC reports whether the trailing CRC field of frame matches its content.
func validCRC(frame []byte) bool {
	if len(frame) < crcSize {
		return false
	}
	n := len(frame) - crcSize

	return binary.LittleEndian.Uint16(frame[n:]) == CRC(frame[:n])
}
