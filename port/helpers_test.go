package port

import (
	"sync"
	"testing"
	"time"
)

// stubDevice is a minimal in-memory Device.
type stubDevice struct {
	mu       sync.Mutex
	input    []byte
	written  []byte
	resets   int
	closed   bool
	readErr  error
	writeErr error
}

func (d *stubDevice) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.readErr != nil {
		return 0, d.readErr
	}
	n := copy(p, d.input)
	d.input = d.input[n:]

	return n, nil
}

func (d *stubDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.writeErr != nil {
		return 0, d.writeErr
	}
	d.written = append(d.written, p...)

	return len(p), nil
}

func (d *stubDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true

	return nil
}

func (d *stubDevice) ResetInputBuffer() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.resets++
	d.input = nil

	return nil
}

// manualClock is a time source moved forward explicitly by tests.
type manualClock struct {
	t time.Time
}

func (c *manualClock) now() time.Time { return c.t }

func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// newTestPort creates an open Port backed by a stubDevice and a manual clock.
func newTestPort(t *testing.T, opts ...Option) (*Port, *stubDevice, *manualClock, *[]Mode) {
	t.Helper()

	dev := &stubDevice{}
	clk := &manualClock{t: time.Unix(1700000000, 0)}
	modes := &[]Mode{}

	opener := func(_ string, mode Mode) (Device, error) {
		*modes = append(*modes, mode)
		dev.closed = false

		return dev, nil
	}

	defaults := []Option{WithOpener(opener), WithClock(clk.now)}
	p, err := New("/dev/ttyTEST0", append(defaults, opts...)...)
	if err != nil {
		t.Fatalf("newTestPort: %v", err)
	}
	if err := p.Open(); err != nil {
		t.Fatalf("newTestPort: open: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	return p, dev, clk, modes
}
