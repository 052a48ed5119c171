package group

import (
	"fmt"
	"slices"

	"github.com/arloliu/go-dxl/protocol2"
)

// SyncRead reads the same register range from several devices.
type SyncRead struct {
	client *protocol2.Client
	span   span
	ids    []byte
	result readResult
}

// NewSyncRead creates an empty SyncRead of length bytes at addr.
func NewSyncRead(c *protocol2.Client, addr, length uint16) *SyncRead {
	return &SyncRead{client: c, span: span{addr: addr, length: length}}
}

// AddParam adds device id. It fails with ErrDuplicateID if id is present.
func (g *SyncRead) AddParam(id byte) error {
	if slices.Contains(g.ids, id) {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}
	g.ids = append(g.ids, id)

	return nil
}

// RemoveParam removes device id. Removing an absent id is a no-op.
func (g *SyncRead) RemoveParam(id byte) {
	g.ids = removeID(g.ids, id)
}

// ClearParam removes every device and forgets the last result.
func (g *SyncRead) ClearParam() {
	g.ids = g.ids[:0]
	g.result.reset()
}

// IDs returns the devices in the group in insertion order.
func (g *SyncRead) IDs() []byte {
	return slices.Clone(g.ids)
}

// TxRx runs the sync read. Replies received before a failure remain
// available.
func (g *SyncRead) TxRx() error {
	g.result.reset()
	if len(g.ids) == 0 {
		return ErrEmpty
	}

	replies, err := g.client.SyncRead(g.span.addr, g.span.length, g.ids)
	g.result.replies = replies

	return err
}

// IsAvailable reports whether the last TxRx returned data from id covering
// length bytes at addr.
func (g *SyncRead) IsAvailable(id byte, addr, length uint16) bool {
	_, ok := g.result.reply(id, g.span, span{addr, length})
	return ok
}

// GetData decodes a 1, 2 or 4 byte little-endian value at addr from the reply
// of id.
func (g *SyncRead) GetData(id byte, addr, length uint16) (uint32, bool) {
	rep, ok := g.result.reply(id, g.span, span{addr, length})
	if !ok {
		return 0, false
	}

	v, err := value(rep, g.span, addr, length)

	return v, err == nil
}

// Error returns the device error byte reported by id in the last TxRx.
func (g *SyncRead) Error(id byte) (protocol2.DeviceError, bool) {
	rep, ok := g.result.replies[id]
	return rep.Error, ok
}

// SyncWrite writes the same register range on several devices.
type SyncWrite struct {
	client *protocol2.Client
	addr   uint16
	length uint16
	ids    []byte
	data   map[byte][]byte
}

// NewSyncWrite creates an empty SyncWrite of length bytes at addr.
func NewSyncWrite(c *protocol2.Client, addr, length uint16) *SyncWrite {
	return &SyncWrite{client: c, addr: addr, length: length, data: make(map[byte][]byte)}
}

// AddParam adds data for device id.
func (g *SyncWrite) AddParam(id byte, data []byte) error {
	if _, ok := g.data[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}
	if err := g.checkLength(data); err != nil {
		return err
	}

	g.ids = append(g.ids, id)
	g.data[id] = slices.Clone(data)

	return nil
}

// ChangeParam replaces the data of device id.
func (g *SyncWrite) ChangeParam(id byte, data []byte) error {
	if _, ok := g.data[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	if err := g.checkLength(data); err != nil {
		return err
	}
	g.data[id] = slices.Clone(data)

	return nil
}

// RemoveParam removes device id.
func (g *SyncWrite) RemoveParam(id byte) {
	g.ids = removeID(g.ids, id)
	delete(g.data, id)
}

// ClearParam removes every device.
func (g *SyncWrite) ClearParam() {
	g.ids = g.ids[:0]
	clear(g.data)
}

// TxPacket sends the sync write.
func (g *SyncWrite) TxPacket() error {
	if len(g.ids) == 0 {
		return ErrEmpty
	}

	records := make([]protocol2.SyncWriteRecord, len(g.ids))
	for i, id := range g.ids {
		records[i] = protocol2.SyncWriteRecord{ID: id, Data: g.data[id]}
	}

	return g.client.SyncWrite(g.addr, g.length, records)
}

func (g *SyncWrite) checkLength(data []byte) error {
	if len(data) != int(g.length) {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrDataLength, len(data), g.length)
	}

	return nil
}
