// Package protocol2 implements the host side of the Dynamixel Protocol 2.0
// packet engine.
//
// A frame on the wire is:
//
//	FF FF FD 00 | ID | LEN_L LEN_H | INST/ERR | PARAM... | CRC_L CRC_H
//
// LEN counts the bytes from INST/ERR through the CRC. Instruction frames are
// byte-stuffed before transmission so that no parameter sequence can be
// mistaken for a header, and received status frames are destuffed after their
// CRC has been verified.
//
// The Client type sequences one transaction at a time over a port.Port:
// encode, stuff and transmit the instruction, then, unless the instruction is
// broadcast or an Action, run the resynchronizing frame receiver until the
// addressed device answers or the packet timeout expires. Every operation
// returns an error that is either nil or carries a CommResult; use ResultOf
// to recover the typed result. The device error byte of a status frame is
// returned separately as a DeviceError and is never folded into the error.
//
// Multi-device reads (SyncRead, BulkRead) collect one status frame per
// addressed device under a single timeout. BroadcastPing gathers the fixed
// length replies of every device on the bus.
package protocol2
