package protocol2

import (
	"errors"
	"fmt"
)

// Reply is one device's answer to a multi-device read.
type Reply struct {
	Data  []byte
	Error DeviceError
}

// BroadcastPing pings every device on the bus and returns the answers keyed by
// device ID. It waits for the full broadcast timeout even if every device has
// already answered.
//
// Replies decoded before a corrupt or trailing fragment are returned together
// with the RxCorrupt error.
func (c *Client) BroadcastPing() (map[byte]PingInfo, error) {
	if err := c.acquire(); err != nil {
		return map[byte]PingInfo{}, err
	}
	defer c.port.Release()

	if err := c.transmit(NewPing(BroadcastID)); err != nil {
		return map[byte]PingInfo{}, err
	}

	devices := c.cfg.broadcastMaxID
	c.port.SetPacketTimeoutDuration(c.port.BroadcastTimeout(pingStatusLength, devices))

	buf, err := collectBroadcast(c.port, pingStatusLength*devices)
	if err != nil {
		return map[byte]PingInfo{}, err
	}

	replies, dropped, err := parseBroadcastReplies(buf)
	c.metrics.RxPacketCount.Add(uint64(len(replies)))
	if dropped > 0 {
		c.metrics.addResyncBytes(dropped)
	}
	switch {
	case errors.Is(err, RxTimeout):
		c.metrics.incRxTimeoutCount()
	case err != nil:
		c.metrics.incRxCorruptCount()
		c.logger.Warn("protocol2: broadcast ping replies corrupt", "found", len(replies), "dropped", dropped)
	}

	return replies, err
}

// SyncRead reads length bytes at addr from every device in ids. Devices may
// answer in any order. On failure the replies collected so far are returned
// with the error.
func (c *Client) SyncRead(addr, length uint16, ids []byte) (map[byte]Reply, error) {
	in, err := NewSyncRead(addr, length, ids)
	if err != nil {
		return map[byte]Reply{}, err
	}

	want := make(map[byte]int, len(ids))
	for _, id := range ids {
		want[id] = int(length)
	}

	return c.readMulti(in, want)
}

// SyncWrite writes length bytes at addr on every device in records. Sync
// writes are never answered.
func (c *Client) SyncWrite(addr, length uint16, records []SyncWriteRecord) error {
	in, err := NewSyncWrite(addr, length, records)
	if err != nil {
		return err
	}

	return c.TxOnly(in)
}

// BulkRead reads a different register range from each device in records.
func (c *Client) BulkRead(records []BulkReadRecord) (map[byte]Reply, error) {
	in, err := NewBulkRead(records)
	if err != nil {
		return map[byte]Reply{}, err
	}

	want := make(map[byte]int, len(records))
	for _, rec := range records {
		want[rec.ID] = int(rec.Length)
	}

	return c.readMulti(in, want)
}

// BulkWrite writes a different register range on each device in records.
// Bulk writes are never answered.
func (c *Client) BulkWrite(records []BulkWriteRecord) error {
	in, err := NewBulkWrite(records)
	if err != nil {
		return err
	}

	return c.TxOnly(in)
}

// readMulti transmits in and collects one status frame from every device in
// want, which maps a device ID to its expected data length. All frames share
// one timeout sized for the whole set.
func (c *Client) readMulti(in *Instruction, want map[byte]int) (map[byte]Reply, error) {
	replies := make(map[byte]Reply, len(want))

	if err := c.acquire(); err != nil {
		return replies, err
	}
	defer c.port.Release()

	if err := c.transmit(in); err != nil {
		return replies, err
	}

	c.port.SetPacketTimeout(in.WaitLength())
	rx := newFrameReceiver(c.port, c.logger, &c.metrics)

	var shortErr error
	for len(replies) < len(want) {
		frame, err := rx.receive()
		if err != nil {
			return replies, fmt.Errorf("%s: %d of %d devices answered: %w", in.Opcode, len(replies), len(want), err)
		}

		st := parseStatus(frame)
		length, ok := want[st.ID]
		if !ok {
			c.discardCrossTalk(st, BroadcastID)
			continue
		}
		if _, dup := replies[st.ID]; dup {
			c.discardCrossTalk(st, BroadcastID)
			continue
		}

		data, err := st.data(length)
		if err != nil && shortErr == nil {
			shortErr = err
		}
		replies[st.ID] = Reply{Data: data, Error: st.Error}
	}

	return replies, shortErr
}
