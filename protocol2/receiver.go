package protocol2

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/arloliu/go-dxl/logger"
)

// byteSource is the part of a port the receiver consumes.
type byteSource interface {
	Read(p []byte) (int, error)
	IsPacketTimeout() bool
}

// frameReceiver assembles status frames from a byte stream.
//
// It never reads past the end of the frame it is waiting for, so bytes of a
// following frame stay in the device until the next receive call.
type frameReceiver struct {
	src     byteSource
	logger  logger.Logger
	metrics *Metrics

	buf     []byte
	scratch []byte
}

func newFrameReceiver(src byteSource, l logger.Logger, m *Metrics) *frameReceiver {
	return &frameReceiver{
		src:     src,
		logger:  l,
		metrics: m,
		buf:     make([]byte, 0, MaxFrameLength+headerSize),
		scratch: make([]byte, MaxFrameLength+headerSize),
	}
}

// receive returns the next CRC-valid, destuffed status frame.
//
// It fails with RxTimeout when the packet timeout expires before any byte
// arrives, RxCorrupt when it expires with a partial frame buffered or the
// frame CRC does not match, and RxFail when the source reports an error.
func (r *frameReceiver) receive() ([]byte, error) {
	wait := minStatusLength
	located := false

	for {
		if len(r.buf) < wait {
			if err := r.fill(wait); err != nil {
				return nil, err
			}
			if len(r.buf) < wait {
				if r.src.IsPacketTimeout() {
					return nil, r.expire(wait)
				}
				continue
			}
		}

		if !located {
			idx := findHeader(r.buf)
			if idx != 0 || !validStatusHeader(r.buf) {
				switch {
				case idx < 0:
					r.discard(len(r.buf) - len(header))
				case idx > 0:
					r.discard(idx)
				default:
					r.discard(1)
				}
				// A continuously noisy line must not outlive the timeout.
				if r.src.IsPacketTimeout() {
					return nil, r.expire(wait)
				}

				continue
			}

			wait = frameLength(r.buf) + headerSize
			located = true

			continue
		}

		frame := r.buf[:wait]
		if !validCRC(frame) {
			r.logger.Warn("protocol2: status crc mismatch", "id", frame[offID], "length", wait)
			r.metrics.incRxCorruptCount()
			r.buf = r.buf[:0]

			return nil, fmt.Errorf("%w: crc mismatch from id %d", RxCorrupt, frame[offID])
		}

		out := Destuff(frame)
		r.buf = slices.Delete(r.buf, 0, wait)
		r.metrics.incRxPacketCount()

		return out, nil
	}
}

// fill reads at most the bytes still missing for a wait-byte frame.
func (r *frameReceiver) fill(wait int) error {
	n, err := r.src.Read(r.scratch[:wait-len(r.buf)])
	if n > 0 {
		r.buf = append(r.buf, r.scratch[:n]...)
	}
	if err != nil {
		r.buf = r.buf[:0]
		return resultError(RxFail, err)
	}

	return nil
}

// expire reports a timed-out wait phase and resets the buffer.
func (r *frameReceiver) expire(wait int) error {
	buffered := len(r.buf)
	r.buf = r.buf[:0]

	if buffered == 0 {
		r.metrics.incRxTimeoutCount()
		return RxTimeout
	}

	r.metrics.incRxCorruptCount()
	r.logger.Debug("protocol2: status frame incomplete at timeout", "buffered", buffered, "want", wait)

	return fmt.Errorf("%w: %d of %d bytes received", RxCorrupt, buffered, wait)
}

// discard drops n leading bytes that cannot start a frame.
func (r *frameReceiver) discard(n int) {
	if n <= 0 {
		return
	}

	r.buf = slices.Delete(r.buf, 0, n)
	r.metrics.addResyncBytes(n)
	r.logger.Debug("protocol2: resync dropped bytes", "count", n)
}

// findHeader returns the offset of the first frame signature in buf that is
// not a stuffed false header, or -1. A signature in the last three bytes is
// not reported because the byte after it is not known yet.
func findHeader(buf []byte) int {
	for i := 0; i+len(header) < len(buf); {
		j := bytes.Index(buf[i:len(buf)-1], header[:])
		if j < 0 {
			return -1
		}
		idx := i + j
		if buf[idx+len(header)] != stuffByte {
			return idx
		}
		i = idx + 1
	}

	return -1
}
