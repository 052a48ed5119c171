package protocol2

import (
	"encoding/binary"
	"fmt"
)

// Ping returns the model number and firmware version of device id.
func (c *Client) Ping(id byte) (PingInfo, DeviceError, error) {
	if err := checkUnicastID(id); err != nil {
		return PingInfo{}, 0, err
	}

	st, err := c.TxRxPacket(NewPing(id))
	if err != nil {
		return PingInfo{}, 0, err
	}

	data, err := st.data(3)
	if err != nil || data == nil {
		return PingInfo{}, st.Error, err
	}

	return PingInfo{ModelNumber: uint16At(data, 0), Firmware: data[2]}, st.Error, nil
}

// Read reads length bytes at addr from device id.
//
// A device that reports an error may answer without data; Read then returns
// nil data with the DeviceError and a nil error.
func (c *Client) Read(id byte, addr, length uint16) ([]byte, DeviceError, error) {
	if err := checkUnicastID(id); err != nil {
		return nil, 0, err
	}

	st, err := c.TxRxPacket(NewRead(id, addr, length))
	if err != nil {
		return nil, 0, err
	}

	data, err := st.data(int(length))

	return data, st.Error, err
}

// Read1Byte reads one byte at addr.
func (c *Client) Read1Byte(id byte, addr uint16) (uint8, DeviceError, error) {
	data, devErr, err := c.Read(id, addr, 1)
	if err != nil || data == nil {
		return 0, devErr, err
	}

	return data[0], devErr, nil
}

// Read2Byte reads a little-endian word at addr.
func (c *Client) Read2Byte(id byte, addr uint16) (uint16, DeviceError, error) {
	data, devErr, err := c.Read(id, addr, 2)
	if err != nil || data == nil {
		return 0, devErr, err
	}

	return binary.LittleEndian.Uint16(data), devErr, nil
}

// Read4Byte reads a little-endian double word at addr.
func (c *Client) Read4Byte(id byte, addr uint16) (uint32, DeviceError, error) {
	data, devErr, err := c.Read(id, addr, 4)
	if err != nil || data == nil {
		return 0, devErr, err
	}

	return binary.LittleEndian.Uint32(data), devErr, nil
}

// Write writes data at addr and waits for the device status. Writing to
// BroadcastID returns once the frame is sent.
func (c *Client) Write(id byte, addr uint16, data []byte) (DeviceError, error) {
	st, err := c.TxRxPacket(NewWrite(id, addr, data))
	return st.Error, err
}

// Write1Byte writes one byte at addr.
func (c *Client) Write1Byte(id byte, addr uint16, v uint8) (DeviceError, error) {
	return c.Write(id, addr, []byte{v})
}

// Write2Byte writes a little-endian word at addr.
func (c *Client) Write2Byte(id byte, addr uint16, v uint16) (DeviceError, error) {
	return c.Write(id, addr, binary.LittleEndian.AppendUint16(nil, v))
}

// Write4Byte writes a little-endian double word at addr.
func (c *Client) Write4Byte(id byte, addr uint16, v uint32) (DeviceError, error) {
	return c.Write(id, addr, binary.LittleEndian.AppendUint32(nil, v))
}

// WriteTxOnly sends a Write without waiting for the status.
func (c *Client) WriteTxOnly(id byte, addr uint16, data []byte) error {
	return c.TxOnly(NewWrite(id, addr, data))
}

// RegWrite registers data at addr; the device applies it on Action.
func (c *Client) RegWrite(id byte, addr uint16, data []byte) (DeviceError, error) {
	st, err := c.TxRxPacket(NewRegWrite(id, addr, data))
	return st.Error, err
}

// RegWriteTxOnly sends a RegWrite without waiting for the status.
func (c *Client) RegWriteTxOnly(id byte, addr uint16, data []byte) error {
	return c.TxOnly(NewRegWrite(id, addr, data))
}

// Action triggers registered writes on device id, or on every device with
// BroadcastID. No status is returned.
func (c *Client) Action(id byte) error {
	_, err := c.TxRxPacket(NewAction(id))
	return err
}

// Reboot restarts device id.
func (c *Client) Reboot(id byte) (DeviceError, error) {
	st, err := c.TxRxPacket(NewReboot(id))
	return st.Error, err
}

// FactoryReset restores the control table of device id to factory defaults.
func (c *Client) FactoryReset(id byte, option ResetOption) (DeviceError, error) {
	st, err := c.TxRxPacket(NewFactoryReset(id, option))
	return st.Error, err
}

// ClearMultiTurn resets the multi-turn position of device id.
func (c *Client) ClearMultiTurn(id byte) (DeviceError, error) {
	st, err := c.TxRxPacket(NewClearMultiTurn(id))
	return st.Error, err
}

// data returns the first n parameter bytes. A short answer from a device that
// reported an error yields nil data; otherwise it is RxCorrupt.
func (st Status) data(n int) ([]byte, error) {
	if len(st.Params) >= n {
		return st.Params[:n:n], nil
	}
	if !st.Error.IsZero() {
		return nil, nil
	}

	return nil, fmt.Errorf("%w: id %d returned %d of %d bytes", RxCorrupt, st.ID, len(st.Params), n)
}

// checkUnicastID rejects IDs that cannot be answered by a single device.
func checkUnicastID(id byte) error {
	if id >= BroadcastID {
		return fmt.Errorf("%w: id %d is not a single device", NotAvailable, id)
	}

	return nil
}
