package group

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/arloliu/go-dxl/protocol2"
)

var (
	// ErrDuplicateID is returned when a device is added to a group twice.
	ErrDuplicateID = errors.New("group: device already in group")
	// ErrUnknownID is returned when changing a device that is not in the group.
	ErrUnknownID = errors.New("group: device not in group")
	// ErrDataLength is returned when data does not match the group length.
	ErrDataLength = errors.New("group: data length mismatch")
	// ErrEmpty is returned when sending a group without devices.
	ErrEmpty = errors.New("group: no devices")
)

// span is a register range read from one device.
type span struct {
	addr   uint16
	length uint16
}

// contains reports whether [addr, addr+length) lies inside s.
func (s span) contains(addr, length uint16) bool {
	return addr >= s.addr && int(addr)+int(length) <= int(s.addr)+int(s.length)
}

// readResult holds the replies of the last multi-device read.
type readResult struct {
	replies map[byte]protocol2.Reply
}

func (r *readResult) reset() {
	r.replies = nil
}

// reply returns the stored reply of id and whether its data covers want.
func (r *readResult) reply(id byte, have span, want span) (protocol2.Reply, bool) {
	rep, ok := r.replies[id]
	if !ok || rep.Data == nil || !have.contains(want.addr, want.length) {
		return protocol2.Reply{}, false
	}

	return rep, true
}

// value decodes length bytes at addr from the data of a reply read at have.
// Lengths of 1, 2 and 4 bytes are decoded little-endian.
func value(rep protocol2.Reply, have span, addr, length uint16) (uint32, error) {
	off := int(addr - have.addr)
	b := rep.Data[off : off+int(length)]

	switch length {
	case 1:
		return uint32(b[0]), nil
	case 2:
		return uint32(binary.LittleEndian.Uint16(b)), nil
	case 4:
		return binary.LittleEndian.Uint32(b), nil
	default:
		return 0, fmt.Errorf("group: cannot decode %d bytes as an integer", length)
	}
}

// removeID deletes id from ids, keeping order.
func removeID(ids []byte, id byte) []byte {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}

	return ids
}
