// Package fakeport provides a scripted in-memory serial device and a manual
// clock for exercising the packet engine without hardware.
package fakeport

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/arloliu/go-dxl/port"
)

// ErrClosed is returned by I/O on a closed Device.
var ErrClosed = errors.New("fakeport: device closed")

// Responder produces the chunks a device delivers after the host writes frame.
// Each chunk is returned by one Read call.
type Responder func(frame []byte) [][]byte

// Device is an in-memory port.Device.
//
// Input is a queue of chunks; every Read drains at most one chunk, so tests
// control exactly how bytes trickle in.
type Device struct {
	mu sync.Mutex

	chunks  [][]byte
	writes  [][]byte
	respond Responder
	resets  int
	closed  bool

	readErr    error
	writeErr   error
	shortWrite int

	onRead func()
}

// New creates an open Device with no pending input.
func New() *Device {
	return &Device{}
}

// Feed queues chunks as pending input.
func (d *Device) Feed(chunks ...[]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, c := range chunks {
		d.chunks = append(d.chunks, slices.Clone(c))
	}
}

// OnWrite installs the responder called after every successful write.
func (d *Device) OnWrite(r Responder) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.respond = r
}

// OnRead installs a hook invoked at the start of every Read, outside the
// device lock.
func (d *Device) OnRead(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.onRead = fn
}

// FailRead makes subsequent reads return err. A nil err clears the failure.
func (d *Device) FailRead(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.readErr = err
}

// FailWrite makes subsequent writes return err. A nil err clears the failure.
func (d *Device) FailWrite(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.writeErr = err
}

// ShortWrite makes subsequent writes accept at most n bytes. Zero disables it.
func (d *Device) ShortWrite(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.shortWrite = n
}

// Writes returns a copy of every frame written so far.
func (d *Device) Writes() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([][]byte, len(d.writes))
	for i, w := range d.writes {
		out[i] = slices.Clone(w)
	}

	return out
}

// LastWrite returns the most recent written frame, or nil.
func (d *Device) LastWrite() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.writes) == 0 {
		return nil
	}

	return slices.Clone(d.writes[len(d.writes)-1])
}

// Resets returns how many times the input buffer was reset.
func (d *Device) Resets() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.resets
}

// Pending returns the number of input bytes not yet read.
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, c := range d.chunks {
		n += len(c)
	}

	return n
}

// Closed reports whether Close was called since the last open.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.closed
}

func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()
	hook := d.onRead
	d.mu.Unlock()

	if hook != nil {
		hook()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, ErrClosed
	}
	if d.readErr != nil {
		return 0, d.readErr
	}
	if len(d.chunks) == 0 || len(p) == 0 {
		return 0, nil
	}

	n := copy(p, d.chunks[0])
	if n == len(d.chunks[0]) {
		d.chunks = d.chunks[1:]
	} else {
		d.chunks[0] = d.chunks[0][n:]
	}

	return n, nil
}

func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, ErrClosed
	}
	if d.writeErr != nil {
		return 0, d.writeErr
	}

	n := len(p)
	if d.shortWrite > 0 && d.shortWrite < n {
		n = d.shortWrite
	}
	frame := slices.Clone(p[:n])
	d.writes = append(d.writes, frame)

	if d.respond != nil {
		for _, c := range d.respond(frame) {
			d.chunks = append(d.chunks, slices.Clone(c))
		}
	}

	return n, nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true

	return nil
}

func (d *Device) ResetInputBuffer() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.resets++
	d.chunks = nil

	return nil
}

// Opener returns a port.Opener that always hands out dev, reopening it.
func Opener(dev *Device) port.Opener {
	return func(string, port.Mode) (port.Device, error) {
		dev.mu.Lock()
		dev.closed = false
		dev.mu.Unlock()

		return dev, nil
	}
}

// Clock is a manual time source. Every call to Now advances it by Step, so a
// receive loop polling the clock eventually times out without real waiting.
type Clock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

// NewClock creates a Clock starting at a fixed instant.
func NewClock(step time.Duration) *Clock {
	return &Clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), step: step}
}

// Now returns the current instant and advances the clock by the step.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.t
	c.t = c.t.Add(c.step)

	return now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.t = c.t.Add(d)
}

// NewPort creates an open port.Port backed by dev and clk.
func NewPort(dev *Device, clk *Clock, opts ...port.Option) (*port.Port, error) {
	defaults := []port.Option{port.WithOpener(Opener(dev)), port.WithClock(clk.Now)}

	p, err := port.New("fake0", append(defaults, opts...)...)
	if err != nil {
		return nil, err
	}
	if err := p.Open(); err != nil {
		return nil, err
	}

	return p, nil
}
