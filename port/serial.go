package port

import (
	"fmt"

	"go.bug.st/serial"
)

// SerialOpener opens name as an 8N1 serial port at mode.BaudRate.
//
// Reads wait at most mode.ReadTimeout for input and return as soon as any
// byte is available, so the receive loop is paced by the device rather than
// by sleeping.
func SerialOpener(name string, mode Mode) (Device, error) {
	sp, err := serial.Open(name, &serial.Mode{
		BaudRate: mode.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("port: open %s: %w", name, err)
	}

	if err := sp.SetReadTimeout(mode.ReadTimeout); err != nil {
		_ = sp.Close()
		return nil, fmt.Errorf("port: set read timeout on %s: %w", name, err)
	}

	if err := sp.ResetInputBuffer(); err != nil {
		_ = sp.Close()
		return nil, fmt.Errorf("port: reset input buffer on %s: %w", name, err)
	}

	return sp, nil
}

// ListSerialPorts returns the serial device names present on the system.
func ListSerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
