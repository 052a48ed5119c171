package protocol2

import (
	"sync/atomic"
)

// Metrics contains atomic counters for a Client.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// TxPacketCount indicates the number of instruction packets transmitted.
	TxPacketCount atomic.Uint64
	// TxFailCount indicates the number of failed or short transmissions.
	TxFailCount atomic.Uint64
	// RxPacketCount indicates the number of CRC-valid status packets received.
	RxPacketCount atomic.Uint64
	// RxTimeoutCount indicates the number of wait phases that expired with no input.
	RxTimeoutCount atomic.Uint64
	// RxCorruptCount indicates the number of incomplete or CRC-invalid status packets.
	RxCorruptCount atomic.Uint64

	// PortBusyCount indicates the number of transactions rejected because
	// another transaction held the port.
	PortBusyCount atomic.Uint64
	// CrossTalkCount indicates the number of valid status packets discarded
	// because they came from a device that was not addressed.
	CrossTalkCount atomic.Uint64
	// ResyncByteCount indicates the number of bytes dropped while searching
	// for a frame header.
	ResyncByteCount atomic.Uint64
}

func (m *Metrics) incTxPacketCount() {
	m.TxPacketCount.Add(1)
}

func (m *Metrics) incTxFailCount() {
	m.TxFailCount.Add(1)
}

func (m *Metrics) incRxPacketCount() {
	m.RxPacketCount.Add(1)
}

func (m *Metrics) incRxTimeoutCount() {
	m.RxTimeoutCount.Add(1)
}

func (m *Metrics) incRxCorruptCount() {
	m.RxCorruptCount.Add(1)
}

func (m *Metrics) incPortBusyCount() {
	m.PortBusyCount.Add(1)
}

func (m *Metrics) incCrossTalkCount() {
	m.CrossTalkCount.Add(1)
}

func (m *Metrics) addResyncBytes(n int) {
	m.ResyncByteCount.Add(uint64(n))
}
