package group

import (
	"fmt"
	"slices"

	"github.com/arloliu/go-dxl/protocol2"
)

// BulkRead reads a different register range from each device.
type BulkRead struct {
	client *protocol2.Client
	ids    []byte
	spans  map[byte]span
	result readResult
}

// NewBulkRead creates an empty BulkRead.
func NewBulkRead(c *protocol2.Client) *BulkRead {
	return &BulkRead{client: c, spans: make(map[byte]span)}
}

// AddParam adds a read of length bytes at addr from device id.
func (g *BulkRead) AddParam(id byte, addr, length uint16) error {
	if _, ok := g.spans[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}
	g.ids = append(g.ids, id)
	g.spans[id] = span{addr: addr, length: length}

	return nil
}

// RemoveParam removes device id.
func (g *BulkRead) RemoveParam(id byte) {
	g.ids = removeID(g.ids, id)
	delete(g.spans, id)
}

// ClearParam removes every device and forgets the last result.
func (g *BulkRead) ClearParam() {
	g.ids = g.ids[:0]
	clear(g.spans)
	g.result.reset()
}

// TxRx runs the bulk read. Replies received before a failure remain
// available.
func (g *BulkRead) TxRx() error {
	g.result.reset()
	if len(g.ids) == 0 {
		return ErrEmpty
	}

	records := make([]protocol2.BulkReadRecord, len(g.ids))
	for i, id := range g.ids {
		s := g.spans[id]
		records[i] = protocol2.BulkReadRecord{ID: id, Addr: s.addr, Length: s.length}
	}

	replies, err := g.client.BulkRead(records)
	g.result.replies = replies

	return err
}

// IsAvailable reports whether the last TxRx returned data from id covering
// length bytes at addr.
func (g *BulkRead) IsAvailable(id byte, addr, length uint16) bool {
	s, ok := g.spans[id]
	if !ok {
		return false
	}
	_, ok = g.result.reply(id, s, span{addr, length})

	return ok
}

// GetData decodes a 1, 2 or 4 byte little-endian value at addr from the reply
// of id.
func (g *BulkRead) GetData(id byte, addr, length uint16) (uint32, bool) {
	s, ok := g.spans[id]
	if !ok {
		return 0, false
	}
	rep, ok := g.result.reply(id, s, span{addr, length})
	if !ok {
		return 0, false
	}

	v, err := value(rep, s, addr, length)

	return v, err == nil
}

// Error returns the device error byte reported by id in the last TxRx.
func (g *BulkRead) Error(id byte) (protocol2.DeviceError, bool) {
	rep, ok := g.result.replies[id]
	return rep.Error, ok
}

// BulkWrite writes a different register range on each device.
type BulkWrite struct {
	client  *protocol2.Client
	ids     []byte
	records map[byte]protocol2.BulkWriteRecord
}

// NewBulkWrite creates an empty BulkWrite.
func NewBulkWrite(c *protocol2.Client) *BulkWrite {
	return &BulkWrite{client: c, records: make(map[byte]protocol2.BulkWriteRecord)}
}

// AddParam adds a write of data at addr on device id.
func (g *BulkWrite) AddParam(id byte, addr uint16, data []byte) error {
	if _, ok := g.records[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}
	g.ids = append(g.ids, id)
	g.records[id] = protocol2.BulkWriteRecord{ID: id, Addr: addr, Data: slices.Clone(data)}

	return nil
}

// ChangeParam replaces the write of device id.
func (g *BulkWrite) ChangeParam(id byte, addr uint16, data []byte) error {
	if _, ok := g.records[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	g.records[id] = protocol2.BulkWriteRecord{ID: id, Addr: addr, Data: slices.Clone(data)}

	return nil
}

// RemoveParam removes device id.
func (g *BulkWrite) RemoveParam(id byte) {
	g.ids = removeID(g.ids, id)
	delete(g.records, id)
}

// ClearParam removes every device.
func (g *BulkWrite) ClearParam() {
	g.ids = g.ids[:0]
	clear(g.records)
}

// TxPacket sends the bulk write.
func (g *BulkWrite) TxPacket() error {
	if len(g.ids) == 0 {
		return ErrEmpty
	}

	records := make([]protocol2.BulkWriteRecord, len(g.ids))
	for i, id := range g.ids {
		records[i] = g.records[id]
	}

	return g.client.BulkWrite(records)
}
