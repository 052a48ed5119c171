// Package port provides the serial channel a Protocol 2.0 bus runs on.
//
// A Port owns three things that the packet layer relies on:
//
//   - the raw Device (opened through an Opener, by default a go.bug.st/serial port),
//   - the packet TimeoutClock, sized from the baud rate and the number of bytes a
//     reply is expected to carry,
//   - a single-flight guard: exactly one transaction (send plus matching receive)
//     may hold the port at a time.
//
// # Timeouts
//
// The per-byte transmission time is 10 bit-times (start, 8 data, stop bits):
//
//	txTimePerByte = 10s / baudRate
//	packetTimeout = txTimePerByte*length + 2*latencyTimer + 2ms
//
// The latency timer models the USB-serial adapter buffering delay (16ms on
// common FTDI adapters).
//
// Distinct Ports share no state and may be driven from separate goroutines.
package port
