package port

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/arloliu/go-dxl/logger"
)

// broadcastExtraPerDevice is the per-device slack added to a broadcast wait.
const broadcastExtraPerDevice = 3 * time.Millisecond

// packetTimeoutSlack is the fixed allowance added to every packet timeout.
const packetTimeoutSlack = 2 * time.Millisecond

var (
	ErrPortNotOpen         = errors.New("port: not open")
	ErrUnsupportedBaudRate = errors.New("port: unsupported baud rate")
	ErrEmptyName           = errors.New("port: device name is empty")
)

// Device is the raw byte channel underneath a Port.
//
// Read must not block longer than the read timeout the device was opened
// with, and returns (0, nil) when no input is available.
type Device interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
}

// Mode carries the line settings an Opener applies.
type Mode struct {
	BaudRate    int
	ReadTimeout time.Duration
}

// Opener creates the Device for a port name.
type Opener func(name string, mode Mode) (Device, error)

// Port is an exclusive-use serial channel with a packet timeout clock.
//
// Read, Write and the clock methods are meant to be called by the holder of
// the port guard; Open, Close and SetBaudRate may be called at any time.
type Port struct {
	name   string
	cfg    *Config
	logger logger.Logger

	mu       sync.RWMutex
	dev      Device
	baudRate int

	clock *TimeoutClock
	guard Guard
}

// New creates a closed Port for the named device.
func New(name string, opts ...Option) (*Port, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	return &Port{
		name:     name,
		cfg:      cfg,
		logger:   cfg.logger.With("port", name),
		baudRate: cfg.baudRate,
		clock:    NewTimeoutClock(cfg.now),
	}, nil
}

// Name returns the device name.
func (p *Port) Name() string { return p.name }

// Config returns the port configuration.
func (p *Port) Config() *Config { return p.cfg }

// Open opens the device at the current baud rate, closing it first if it is
// already open.
func (p *Port) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.openLocked()
}

func (p *Port) openLocked() error {
	if p.dev != nil {
		if err := p.dev.Close(); err != nil {
			p.logger.Warn("port: close before reopen failed", "error", err)
		}
		p.dev = nil
	}

	dev, err := p.cfg.opener(p.name, Mode{BaudRate: p.baudRate, ReadTimeout: p.cfg.pollInterval})
	if err != nil {
		return err
	}
	p.dev = dev

	p.logger.Info("port: opened", "baudRate", p.baudRate)

	return nil
}

// Close closes the device. Closing a closed port is a no-op.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dev == nil {
		return nil
	}

	err := p.dev.Close()
	p.dev = nil
	p.logger.Info("port: closed")

	return err
}

// IsOpen reports whether the device is open.
func (p *Port) IsOpen() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.dev != nil
}

// BaudRate returns the current baud rate.
func (p *Port) BaudRate() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.baudRate
}

// SetBaudRate changes the baud rate, reopening the device if it is open.
func (p *Port) SetBaudRate(baud int) error {
	if !IsSupportedBaudRate(baud) {
		return fmt.Errorf("%w: %d", ErrUnsupportedBaudRate, baud)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.baudRate = baud
	if p.dev == nil {
		return nil
	}

	return p.openLocked()
}

// TxTimePerByte returns the wire time of one byte (10 bit-times).
func (p *Port) TxTimePerByte() time.Duration {
	return 10 * time.Second / time.Duration(p.BaudRate())
}

// LatencyTimer returns the adapter latency allowance.
func (p *Port) LatencyTimer() time.Duration {
	return p.cfg.latencyTimer
}

// Read reads whatever input is available, up to len(b) bytes.
func (p *Port) Read(b []byte) (int, error) {
	p.mu.RLock()
	dev := p.dev
	p.mu.RUnlock()

	if dev == nil {
		return 0, ErrPortNotOpen
	}

	n, err := dev.Read(b)
	if errors.Is(err, io.EOF) {
		// A serial line has no end of stream; treat EOF as no input.
		return n, nil
	}

	return n, err
}

// Write writes b and returns the number of bytes accepted by the device.
func (p *Port) Write(b []byte) (int, error) {
	p.mu.RLock()
	dev := p.dev
	p.mu.RUnlock()

	if dev == nil {
		return 0, ErrPortNotOpen
	}

	return dev.Write(b)
}

// Clear discards any pending input.
func (p *Port) Clear() error {
	p.mu.RLock()
	dev := p.dev
	p.mu.RUnlock()

	if dev == nil {
		return ErrPortNotOpen
	}

	return dev.ResetInputBuffer()
}

// PacketTimeout returns the wait budget for a reply of length bytes.
func (p *Port) PacketTimeout(length int) time.Duration {
	return p.TxTimePerByte()*time.Duration(length) + 2*p.cfg.latencyTimer + packetTimeoutSlack
}

// BroadcastTimeout returns the wait budget for replies of statusLen bytes
// from up to devices devices answering one broadcast.
func (p *Port) BroadcastTimeout(statusLen, devices int) time.Duration {
	return p.TxTimePerByte()*time.Duration(statusLen*devices) +
		broadcastExtraPerDevice*time.Duration(devices) +
		p.cfg.latencyTimer
}

// SetPacketTimeout arms the clock for a reply of length bytes.
func (p *Port) SetPacketTimeout(length int) {
	p.clock.Arm(p.PacketTimeout(length))
}

// SetPacketTimeoutDuration arms the clock for d.
func (p *Port) SetPacketTimeoutDuration(d time.Duration) {
	p.clock.Arm(d)
}

// IsPacketTimeout reports whether the armed wait phase has expired.
func (p *Port) IsPacketTimeout() bool {
	return p.clock.Expired()
}

// TryAcquire takes the single-flight guard for one transaction.
func (p *Port) TryAcquire() bool {
	return p.guard.TryAcquire()
}

// Release frees the single-flight guard.
func (p *Port) Release() {
	p.guard.Release()
}

// InUse reports whether a transaction currently holds the port.
func (p *Port) InUse() bool {
	return p.guard.Busy()
}
