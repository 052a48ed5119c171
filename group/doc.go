// Package group collects per-device parameters for the multi-device
// instructions of a protocol2.Client.
//
// SyncRead and BulkRead accumulate the devices to read, run one transaction
// and keep the replies for lookup by register address. SyncWrite and
// BulkWrite accumulate per-device data and send it in one broadcast frame.
//
// A group is not safe for concurrent use. Build one per goroutine, or guard
// it externally.
package group
