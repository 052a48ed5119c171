package protocol2

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-dxl/logger"
)

func TestNewClient_Options(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)

	c, _ := newTestClient(t)
	assert.Equal(t, DefaultBroadcastMaxID, c.Config().BroadcastMaxID())

	c, _ = newTestClient(t, WithBroadcastMaxID(10))
	assert.Equal(t, 10, c.Config().BroadcastMaxID())

	_, err = NewClient(c.Port(), WithBroadcastMaxID(0))
	require.Error(t, err)
	_, err = NewClient(c.Port(), WithBroadcastMaxID(253))
	require.Error(t, err)
	_, err = NewClient(c.Port(), WithLogger(nil))
	require.Error(t, err)
}

func TestClient_Ping(t *testing.T) {
	c, dev := newTestClient(t)
	dev.OnWrite(reply(pingStatus(1, 0x0406, 0x26)))

	info, devErr, err := c.Ping(1)
	require.NoError(t, err)
	assert.Equal(t, PingInfo{ModelNumber: 0x0406, Firmware: 0x26}, info)
	assert.True(t, devErr.IsZero())

	assert.Equal(t, []byte{0xFF, 0xFF, 0xFD, 0x00, 0x01, 0x03, 0x00, 0x01, 0x19, 0x4E}, dev.LastWrite())
	assert.Equal(t, 1, dev.Resets(), "stale input is cleared before transmit")
	assert.False(t, c.Port().InUse())
	assert.Equal(t, uint64(1), c.Metrics().TxPacketCount.Load())
	assert.Equal(t, uint64(1), c.Metrics().RxPacketCount.Load())
}

func TestClient_PingRejectsBroadcastID(t *testing.T) {
	c, dev := newTestClient(t)

	for _, id := range []byte{BroadcastID, 0xFF} {
		_, _, err := c.Ping(id)
		assert.Equal(t, NotAvailable, ResultOf(err))
		_, _, err = c.Read(id, 0, 1)
		assert.Equal(t, NotAvailable, ResultOf(err))
	}
	assert.Empty(t, dev.Writes())
}

func TestClient_ReadWidths(t *testing.T) {
	c, dev := newTestClient(t)
	dev.OnWrite(func(frame []byte) [][]byte {
		in := frame[offInstruction+1 : len(frame)-crcSize]
		length := int(uint16At(in, 2))
		data := []byte{0x78, 0x56, 0x34, 0x12}[:length]
		return [][]byte{EncodeStatus(frame[offID], 0, data)}
	})

	v1, _, err := c.Read1Byte(1, 64)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x78), v1)

	v2, _, err := c.Read2Byte(1, 84)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x5678), v2)

	v4, _, err := c.Read4Byte(1, 132)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), v4)

	assert.Equal(t, []byte{0xFF, 0xFF, 0xFD, 0x00, 0x01, 0x07, 0x00, 0x02, 0x84, 0x00, 0x04, 0x00, 0x1D, 0x15}, dev.LastWrite())
}

func TestClient_ReadSurfacesDeviceError(t *testing.T) {
	c, dev := newTestClient(t)

	dev.OnWrite(reply(EncodeStatus(1, ErrAlert|ErrDataRange, []byte{0x01, 0x02})))
	data, devErr, err := c.Read(1, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, data)
	assert.True(t, devErr.Alert())
	assert.Equal(t, ErrDataRange, devErr.Kind())

	dev.OnWrite(reply(EncodeStatus(1, ErrAccess, nil)))
	data, devErr, err = c.Read(1, 10, 2)
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.Equal(t, ErrAccess, devErr)

	dev.OnWrite(reply(EncodeStatus(1, 0, []byte{0x01})))
	_, _, err = c.Read(1, 10, 2)
	assert.Equal(t, RxCorrupt, ResultOf(err))
}

func TestClient_DiscardsCrossTalk(t *testing.T) {
	mockLog := logger.NewMockLogger()
	mockLog.On("Warn", "protocol2: discarded status from unaddressed device", mock.Anything).Return().Once()
	mockLog.Quiet()

	c, dev := newTestClient(t, WithLogger(mockLog))
	dev.OnWrite(reply(
		EncodeStatus(2, 0, []byte{0xAA}),
		EncodeStatus(1, 0, []byte{0x55}),
	))

	v, _, err := c.Read1Byte(1, 7)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x55), v)
	assert.Equal(t, uint64(1), c.Metrics().CrossTalkCount.Load())
	mockLog.AssertExpectations(t)
}

func TestClient_CrossTalkDoesNotExtendTimeout(t *testing.T) {
	c, dev, clk := newTestClientClock(t)

	// A chatty neighbour keeps answering with short gaps; the addressed
	// device never does. Every read costs a millisecond of wall time.
	var chatter [][]byte
	for range 200 {
		chatter = append(chatter, EncodeStatus(2, 0, []byte{0x00}), nil)
	}
	dev.OnWrite(reply(chatter...))
	dev.OnRead(func() { clk.Advance(time.Millisecond) })

	_, _, err := c.Read1Byte(1, 7)
	assert.Equal(t, RxTimeout, ResultOf(err))
	assert.Positive(t, dev.Pending(), "timeout must expire while cross-talk is still arriving")
}

func TestClient_Timeouts(t *testing.T) {
	c, dev := newTestClient(t)

	_, _, err := c.Ping(1)
	assert.Equal(t, RxTimeout, ResultOf(err))
	assert.False(t, c.Port().InUse())

	dev.OnWrite(reply(pingStatus(1, 1020, 1)[:8]))
	_, _, err = c.Ping(1)
	assert.Equal(t, RxCorrupt, ResultOf(err))
	assert.False(t, c.Port().InUse())

	assert.Equal(t, uint64(1), c.Metrics().RxTimeoutCount.Load())
	assert.Equal(t, uint64(1), c.Metrics().RxCorruptCount.Load())
}

func TestClient_NoStatusExpected(t *testing.T) {
	c, dev := newTestClient(t)

	devErr, err := c.Write(BroadcastID, 116, []byte{0x00})
	require.NoError(t, err)
	assert.True(t, devErr.IsZero())

	require.NoError(t, c.Action(1))
	require.NoError(t, c.Action(BroadcastID))
	require.NoError(t, c.WriteTxOnly(1, 116, []byte{0x01}))
	require.NoError(t, c.RegWriteTxOnly(1, 116, []byte{0x02}))

	writes := dev.Writes()
	require.Len(t, writes, 5)
	assert.Equal(t, byte(OpAction), writes[1][offInstruction])
	assert.Equal(t, byte(OpRegWrite), writes[4][offInstruction])
	assert.False(t, c.Port().InUse())
}

func TestClient_SimpleCommands(t *testing.T) {
	tests := []struct {
		name string
		op   Opcode
		call func(c *Client) (DeviceError, error)
	}{
		{"write", OpWrite, func(c *Client) (DeviceError, error) { return c.Write(1, 64, []byte{1}) }},
		{"write1", OpWrite, func(c *Client) (DeviceError, error) { return c.Write1Byte(1, 64, 1) }},
		{"write2", OpWrite, func(c *Client) (DeviceError, error) { return c.Write2Byte(1, 64, 0x0102) }},
		{"write4", OpWrite, func(c *Client) (DeviceError, error) { return c.Write4Byte(1, 64, 0x01020304) }},
		{"reg write", OpRegWrite, func(c *Client) (DeviceError, error) { return c.RegWrite(1, 64, []byte{1}) }},
		{"reboot", OpReboot, func(c *Client) (DeviceError, error) { return c.Reboot(1) }},
		{"factory reset", OpFactoryReset, func(c *Client) (DeviceError, error) { return c.FactoryReset(1, ResetAll) }},
		{"clear", OpClear, func(c *Client) (DeviceError, error) { return c.ClearMultiTurn(1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, dev := newTestClient(t)
			dev.OnWrite(reply(EncodeStatus(1, ErrDataLimit, nil)))

			devErr, err := tt.call(c)
			require.NoError(t, err)
			assert.Equal(t, ErrDataLimit, devErr)
			assert.Equal(t, byte(tt.op), dev.LastWrite()[offInstruction])
		})
	}
}

func TestClient_Write4ByteLayout(t *testing.T) {
	c, dev := newTestClient(t)
	dev.OnWrite(reply(EncodeStatus(1, 0, nil)))

	_, err := c.Write4Byte(1, 116, 0x00000800)
	require.NoError(t, err)

	frame := dev.LastWrite()
	assert.Equal(t, []byte{0x74, 0x00, 0x00, 0x08, 0x00, 0x00}, frame[offInstruction+1:len(frame)-crcSize])
}

func TestClient_TxErrors(t *testing.T) {
	c, dev := newTestClient(t)

	_, err := c.Write(1, 0, make([]byte, MaxFrameLength))
	assert.Equal(t, TxError, ResultOf(err))
	assert.Empty(t, dev.Writes(), "oversized frame must not reach the transport")
	assert.False(t, c.Port().InUse())

	boom := errors.New("write failed")
	dev.FailWrite(boom)
	_, err = c.Write(1, 0, []byte{1})
	assert.Equal(t, TxFail, ResultOf(err))
	assert.ErrorIs(t, err, boom)
	assert.False(t, c.Port().InUse())
	dev.FailWrite(nil)

	dev.ShortWrite(4)
	_, err = c.Write(1, 0, []byte{1})
	assert.Equal(t, TxFail, ResultOf(err))
	assert.False(t, c.Port().InUse())
	assert.Equal(t, uint64(2), c.Metrics().TxFailCount.Load())
}

func TestClient_RxFail(t *testing.T) {
	c, dev := newTestClient(t)
	boom := errors.New("read failed")
	dev.FailRead(boom)

	_, _, err := c.Ping(1)
	assert.Equal(t, RxFail, ResultOf(err))
	assert.ErrorIs(t, err, boom)
}

func TestClient_TxRxPacketRejectsMultiReads(t *testing.T) {
	c, dev := newTestClient(t)

	in, err := NewSyncRead(0, 4, []byte{1, 2})
	require.NoError(t, err)
	_, err = c.TxRxPacket(in)
	assert.Equal(t, NotAvailable, ResultOf(err))

	in, err = NewBulkRead([]BulkReadRecord{{ID: 1, Addr: 0, Length: 1}})
	require.NoError(t, err)
	_, err = c.TxRxPacket(in)
	assert.Equal(t, NotAvailable, ResultOf(err))

	assert.Empty(t, dev.Writes())
	assert.False(t, c.Port().InUse())
}

func TestClient_PortBusy(t *testing.T) {
	c, dev := newTestClient(t)
	dev.OnWrite(reply(pingStatus(1, 1020, 52)))

	require.True(t, c.Port().TryAcquire())
	_, _, err := c.Ping(1)
	assert.Equal(t, PortBusy, ResultOf(err))
	assert.Empty(t, dev.Writes())
	c.Port().Release()

	// A call made from inside an in-flight transaction fails without
	// disturbing it.
	var nested []error
	dev.OnRead(func() {
		if len(nested) == 0 {
			_, _, err := c.Ping(2)
			nested = append(nested, err)
			nested = append(nested, c.SyncWrite(0, 1, []SyncWriteRecord{{ID: 1, Data: []byte{1}}}))
			_, err = c.BroadcastPing()
			nested = append(nested, err)
		}
	})

	info, _, err := c.Ping(1)
	require.NoError(t, err)
	assert.Equal(t, uint16(1020), info.ModelNumber)

	require.Len(t, nested, 3)
	for _, err := range nested {
		assert.Equal(t, PortBusy, ResultOf(err))
	}
	assert.Len(t, dev.Writes(), 1)
	assert.Equal(t, uint64(4), c.Metrics().PortBusyCount.Load())
	assert.False(t, c.Port().InUse())
}

func TestClient_BroadcastPing(t *testing.T) {
	c, dev := newTestClient(t)
	dev.OnWrite(reply(concat(pingStatus(1, 1020, 52), pingStatus(2, 1060, 45))))

	replies, err := c.BroadcastPing()
	require.NoError(t, err)
	assert.Equal(t, map[byte]PingInfo{
		1: {ModelNumber: 1020, Firmware: 52},
		2: {ModelNumber: 1060, Firmware: 45},
	}, replies)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFD, 0x00, 0xFE, 0x03, 0x00, 0x01, 0x31, 0x42}, dev.LastWrite())
	assert.False(t, c.Port().InUse())
}

func TestClient_BroadcastPingLateDevice(t *testing.T) {
	c, dev := newTestClient(t, WithBroadcastMaxID(4))

	// The second device answers after a long silence.
	chunks := [][]byte{pingStatus(1, 1020, 52)}
	for range 50 {
		chunks = append(chunks, nil)
	}
	chunks = append(chunks, pingStatus(5, 1200, 46))
	dev.OnWrite(reply(chunks...))

	replies, err := c.BroadcastPing()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 5}, SortedIDs(replies))
}

func TestClient_BroadcastPingNoDevices(t *testing.T) {
	c, _ := newTestClient(t, WithBroadcastMaxID(1))

	replies, err := c.BroadcastPing()
	assert.Equal(t, RxTimeout, ResultOf(err))
	assert.Empty(t, replies)
	assert.Equal(t, uint64(1), c.Metrics().RxTimeoutCount.Load())
}

func TestClient_BroadcastPingCorrupt(t *testing.T) {
	c, dev := newTestClient(t, WithBroadcastMaxID(4))
	dev.OnWrite(reply(concat(pingStatus(1, 1020, 52), []byte{0xFF, 0xFF, 0xFD})))

	replies, err := c.BroadcastPing()
	assert.Equal(t, RxCorrupt, ResultOf(err))
	assert.Equal(t, map[byte]PingInfo{1: {ModelNumber: 1020, Firmware: 52}}, replies)
}

func TestClient_SyncRead(t *testing.T) {
	c, dev := newTestClient(t)
	dev.OnWrite(reply(
		EncodeStatus(3, 0, []byte{0x30, 0x31}),
		EncodeStatus(1, 0, []byte{0x10, 0x11}),
		EncodeStatus(2, ErrAlert, []byte{0x20, 0x21}),
	))

	replies, err := c.SyncRead(132, 2, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, map[byte]Reply{
		1: {Data: []byte{0x10, 0x11}},
		2: {Data: []byte{0x20, 0x21}, Error: ErrAlert},
		3: {Data: []byte{0x30, 0x31}},
	}, replies)

	frame := dev.LastWrite()
	assert.Equal(t, BroadcastID, frame[offID])
	assert.Equal(t, byte(OpSyncRead), frame[offInstruction])
}

func TestClient_SyncReadPartial(t *testing.T) {
	c, dev := newTestClient(t)
	dev.OnWrite(reply(
		EncodeStatus(1, 0, []byte{0x10, 0x11}),
		EncodeStatus(9, 0, []byte{0x90, 0x91}),
	))

	replies, err := c.SyncRead(132, 2, []byte{1, 2})
	assert.Equal(t, RxTimeout, ResultOf(err))
	assert.Equal(t, map[byte]Reply{1: {Data: []byte{0x10, 0x11}}}, replies)
	assert.Equal(t, uint64(1), c.Metrics().CrossTalkCount.Load())
	assert.False(t, c.Port().InUse())
}

func TestClient_SyncReadInvalid(t *testing.T) {
	c, dev := newTestClient(t)

	_, err := c.SyncRead(0, 1, []byte{1, 1})
	assert.Equal(t, TxError, ResultOf(err))
	assert.Empty(t, dev.Writes())
}

func TestClient_BulkRead(t *testing.T) {
	c, dev := newTestClient(t)
	dev.OnWrite(reply(
		EncodeStatus(1, 0, []byte{0x01, 0x02, 0x03, 0x04}),
		EncodeStatus(5, 0, []byte{0x42}),
	))

	replies, err := c.BulkRead([]BulkReadRecord{
		{ID: 1, Addr: 132, Length: 4},
		{ID: 5, Addr: 146, Length: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, replies[1].Data)
	assert.Equal(t, []byte{0x42}, replies[5].Data)
	assert.Equal(t, byte(OpBulkRead), dev.LastWrite()[offInstruction])
}

func TestClient_BulkReadShortReply(t *testing.T) {
	c, dev := newTestClient(t)
	dev.OnWrite(reply(
		EncodeStatus(1, 0, []byte{0x01}),
		EncodeStatus(5, 0, []byte{0x42}),
	))

	replies, err := c.BulkRead([]BulkReadRecord{
		{ID: 1, Addr: 132, Length: 4},
		{ID: 5, Addr: 146, Length: 1},
	})
	assert.Equal(t, RxCorrupt, ResultOf(err))
	assert.Len(t, replies, 2)
	assert.Nil(t, replies[1].Data)
	assert.Equal(t, []byte{0x42}, replies[5].Data)
}

func TestClient_SyncAndBulkWrite(t *testing.T) {
	c, dev := newTestClient(t)

	err := c.SyncWrite(116, 2, []SyncWriteRecord{
		{ID: 1, Data: []byte{0x11, 0x12}},
		{ID: 2, Data: []byte{0x21, 0x22}},
		{ID: 3, Data: []byte{0x31, 0x32}},
	})
	require.NoError(t, err)

	frame := dev.LastWrite()
	assert.Equal(t, BroadcastID, frame[offID])
	assert.Equal(t, []byte{
		0x74, 0x00, 0x02, 0x00,
		0x01, 0x11, 0x12,
		0x02, 0x21, 0x22,
		0x03, 0x31, 0x32,
	}, frame[offInstruction+1:len(frame)-crcSize])

	err = c.BulkWrite([]BulkWriteRecord{{ID: 1, Addr: 64, Data: []byte{1}}})
	require.NoError(t, err)
	assert.Equal(t, byte(OpBulkWrite), dev.LastWrite()[offInstruction])

	assert.Equal(t, TxError, ResultOf(c.SyncWrite(116, 2, nil)))
	assert.Equal(t, TxError, ResultOf(c.BulkWrite(nil)))
	assert.Len(t, dev.Writes(), 2)
}

func TestClient_IndependentPorts(t *testing.T) {
	a, devA := newTestClient(t)
	b, devB := newTestClient(t)
	devA.OnWrite(reply(pingStatus(1, 1020, 52)))
	devB.OnWrite(reply(pingStatus(1, 1060, 45)))

	require.True(t, a.Port().TryAcquire())
	defer a.Port().Release()

	info, _, err := b.Ping(1)
	require.NoError(t, err)
	assert.Equal(t, uint16(1060), info.ModelNumber)
}
