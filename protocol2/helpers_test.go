package protocol2

import (
	"io"
	"testing"
	"time"

	"github.com/arloliu/go-dxl/internal/fakeport"
	"github.com/arloliu/go-dxl/logger"
	"github.com/arloliu/go-dxl/port"
)

// clockStep is how far the fake clock moves on every reading. A 1Mbps read
// timeout of ~34ms therefore expires after a few hundred polls.
const clockStep = 100 * time.Microsecond

// quietLogger discards everything below Error.
func quietLogger() logger.Logger {
	return logger.NewSlogWriter(io.Discard, logger.ErrorLevel, false)
}

// newTestClient creates a Client on an open fake port.
func newTestClient(t *testing.T, opts ...ClientOption) (*Client, *fakeport.Device) {
	t.Helper()

	c, dev, _ := newTestClientClock(t, opts...)

	return c, dev
}

// newTestClientClock is newTestClient that also returns the port clock.
func newTestClientClock(t *testing.T, opts ...ClientOption) (*Client, *fakeport.Device, *fakeport.Clock) {
	t.Helper()

	dev := fakeport.New()
	clk := fakeport.NewClock(clockStep)
	p, err := fakeport.NewPort(dev, clk, port.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("newTestClient: port: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	c, err := NewClient(p, append([]ClientOption{WithLogger(quietLogger())}, opts...)...)
	if err != nil {
		t.Fatalf("newTestClient: %v", err)
	}

	return c, dev, clk
}

// reply returns a responder that answers every write with chunks.
func reply(chunks ...[]byte) fakeport.Responder {
	return func([]byte) [][]byte { return chunks }
}

// concat joins frames into one chunk.
func concat(frames ...[]byte) []byte {
	var out []byte
	for _, f := range frames {
		out = append(out, f...)
	}

	return out
}

// scriptSource is a byteSource over a fixed byte stream. Each Read returns at
// most step bytes (all that fit when step is zero). The packet timeout expires
// once the stream is exhausted.
type scriptSource struct {
	data    []byte
	step    int
	err     error
	maxRead int
	reads   int
}

func (s *scriptSource) Read(p []byte) (int, error) {
	s.reads++
	if len(p) > s.maxRead {
		s.maxRead = len(p)
	}
	if s.err != nil && len(s.data) == 0 {
		return 0, s.err
	}

	n := len(p)
	if s.step > 0 && n > s.step {
		n = s.step
	}
	n = copy(p[:n], s.data)
	s.data = s.data[n:]

	return n, nil
}

func (s *scriptSource) IsPacketTimeout() bool {
	return len(s.data) == 0
}

func newTestReceiver(src byteSource) (*frameReceiver, *Metrics) {
	m := &Metrics{}
	return newFrameReceiver(src, quietLogger(), m), m
}

// referenceCRC is the bit-serial form of the frame checksum.
func referenceCRC(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for range 8 {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x8005
			} else {
				crc <<= 1
			}
		}
	}

	return crc
}
