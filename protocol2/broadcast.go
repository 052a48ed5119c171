package protocol2

import (
	"bytes"
	"fmt"
	"slices"
)

// PingInfo is a device's answer to a ping.
type PingInfo struct {
	ModelNumber uint16
	Firmware    byte
}

// collectBroadcast reads from src until the packet timeout expires. The read
// loop does not stop when limit bytes are buffered because late devices may
// still be answering; it only stops asking for more.
func collectBroadcast(src byteSource, limit int) ([]byte, error) {
	buf := make([]byte, 0, limit)
	scratch := make([]byte, limit)

	for !src.IsPacketTimeout() {
		room := limit - len(buf)
		if room <= 0 {
			continue
		}

		n, err := src.Read(scratch[:room])
		buf = append(buf, scratch[:n]...)
		if err != nil {
			return buf, resultError(RxFail, err)
		}
	}

	return buf, nil
}

// parseBroadcastReplies splits concatenated ping status frames.
//
// A CRC-valid frame at the head of the buffer is recorded and consumed. A
// header whose frame fails the CRC is skipped, and bytes before a header are
// dropped. Parsing stops once less than one frame remains; the result is
// Success only if every byte was consumed by a valid frame.
func parseBroadcastReplies(buf []byte) (map[byte]PingInfo, int, error) {
	replies := make(map[byte]PingInfo)
	if len(buf) == 0 {
		return replies, 0, RxTimeout
	}

	var err error
	dropped := 0
	for len(buf) >= pingStatusLength {
		idx := bytes.Index(buf, header[:])
		if idx < 0 {
			break
		}
		if idx > 0 {
			dropped += idx
			buf = buf[idx:]
			continue
		}

		frame := buf[:pingStatusLength]
		if !validCRC(frame) {
			err = fmt.Errorf("%w: broadcast reply crc mismatch", RxCorrupt)
			dropped += len(header)
			buf = buf[len(header):]
			continue
		}

		params := frame[offStatusParam:]
		replies[frame[offID]] = PingInfo{
			ModelNumber: uint16At(params, 0),
			Firmware:    params[2],
		}
		buf = buf[pingStatusLength:]
	}

	if len(buf) > 0 {
		dropped += len(buf)
		if err == nil {
			err = fmt.Errorf("%w: %d trailing bytes after broadcast replies", RxCorrupt, len(buf))
		}
	}

	return replies, dropped, err
}

// SortedIDs returns the device IDs of a BroadcastPing result in ascending order.
func SortedIDs(replies map[byte]PingInfo) []byte {
	ids := make([]byte, 0, len(replies))
	for id := range replies {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}
