package protocol2

import (
	"errors"
	"fmt"
	"strings"
)

// CommResult is the outcome of a packet transaction.
//
// Every value except Success implements error and can be matched with
// errors.Is; transport failures wrap the underlying I/O error as well.
type CommResult int

// Communication results.
const (
	Success      CommResult = 0
	PortBusy     CommResult = -1000
	TxFail       CommResult = -1001
	RxFail       CommResult = -1002
	TxError      CommResult = -2000
	RxWaiting    CommResult = -3000
	RxTimeout    CommResult = -3001
	RxCorrupt    CommResult = -3002
	NotAvailable CommResult = -9000
)

var resultDescriptions = map[CommResult]string{
	Success:      "Communication success",
	PortBusy:     "Port is in use",
	TxFail:       "Failed transmit instruction packet",
	RxFail:       "Failed get status packet",
	TxError:      "Incorrect instruction packet",
	RxWaiting:    "Now receiving status packet",
	RxTimeout:    "There is no status packet",
	RxCorrupt:    "Incorrect status packet",
	NotAvailable: "Protocol does not support this function",
}

// String returns the human readable description of r.
func (r CommResult) String() string {
	if desc, ok := resultDescriptions[r]; ok {
		return desc
	}

	return fmt.Sprintf("unknown communication result %d", int(r))
}

func (r CommResult) Error() string {
	return "protocol2: " + strings.ToLower(r.String())
}

// ResultOf maps an error returned by this package to its CommResult.
// It returns Success for nil and RxFail for errors that carry no CommResult.
func ResultOf(err error) CommResult {
	if err == nil {
		return Success
	}

	var r CommResult
	if errors.As(err, &r) {
		return r
	}

	return RxFail
}

// resultError wraps cause under r so that both errors.Is(err, r) and
// errors.Is(err, cause) hold.
func resultError(r CommResult, cause error) error {
	if cause == nil {
		return r
	}

	return fmt.Errorf("%w: %w", r, cause)
}

// DeviceError is the error byte of a status frame. Bit 7 is the hardware
// alert flag and bits 0-6 hold the error kind.
type DeviceError byte

// Device error kinds.
const (
	ErrNone        DeviceError = 0
	ErrResultFail  DeviceError = 1
	ErrInstruction DeviceError = 2
	ErrCRC         DeviceError = 3
	ErrDataRange   DeviceError = 4
	ErrDataLength  DeviceError = 5
	ErrDataLimit   DeviceError = 6
	ErrAccess      DeviceError = 7

	// ErrAlert is the hardware alert flag.
	ErrAlert DeviceError = 0x80
)

var deviceErrorDescriptions = map[DeviceError]string{
	ErrResultFail:  "Failed to process the instruction packet",
	ErrInstruction: "Undefined instruction or incorrect instruction",
	ErrCRC:         "CRC doesn't match",
	ErrDataRange:   "The data value is out of range",
	ErrDataLength:  "The data length does not match as expected",
	ErrDataLimit:   "The data value exceeds the limit value",
	ErrAccess:      "Writing or Reading is not available to target address",
}

// Alert reports whether the device raised its hardware alert flag.
func (e DeviceError) Alert() bool {
	return e&ErrAlert != 0
}

// Kind returns the error kind without the alert flag.
func (e DeviceError) Kind() DeviceError {
	return e &^ ErrAlert
}

// IsZero reports whether the device reported neither an error nor an alert.
func (e DeviceError) IsZero() bool {
	return e == ErrNone
}

// String describes e. An alert is reported ahead of the error kind.
func (e DeviceError) String() string {
	kind := e.Kind()
	desc, ok := deviceErrorDescriptions[kind]
	if !ok && kind != ErrNone {
		desc = fmt.Sprintf("Unknown error code %d", byte(kind))
	}

	switch {
	case e.Alert() && desc != "":
		return "[Hardware Alert] " + desc
	case e.Alert():
		return "[Hardware Alert]"
	case desc == "":
		return "No error"
	default:
		return desc
	}
}
