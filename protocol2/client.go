package protocol2

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-dxl/logger"
	"github.com/arloliu/go-dxl/port"
)

// Client runs Protocol 2.0 transactions over a port.
//
// Only one transaction runs on a port at a time. A call made while another
// transaction holds the port returns PortBusy immediately; it never waits.
// Clients on distinct ports are independent.
type Client struct {
	port    *port.Port
	cfg     *ClientConfig
	logger  logger.Logger
	metrics Metrics
}

// NewClient creates a Client on p. The port should be open before the first
// transaction.
func NewClient(p *port.Port, opts ...ClientOption) (*Client, error) {
	if p == nil {
		return nil, errors.New("protocol2: port must not be nil")
	}

	cfg, err := newClientConfig(opts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		port:   p,
		cfg:    cfg,
		logger: cfg.logger.With("port", p.Name()),
	}, nil
}

// Port returns the underlying port.
func (c *Client) Port() *port.Port { return c.port }

// Config returns the client configuration.
func (c *Client) Config() *ClientConfig { return c.cfg }

// Metrics returns the client counters.
func (c *Client) Metrics() *Metrics { return &c.metrics }

// TxRxPacket transmits in and, if the instruction is answered, waits for the
// status frame from in.ID. Frames from other devices are discarded without
// extending the timeout.
//
// Broadcast instructions and Action return a zero Status once transmitted.
// SyncRead and BulkRead are answered by several devices and are rejected
// with NotAvailable; use SyncRead or BulkRead instead.
func (c *Client) TxRxPacket(in *Instruction) (Status, error) {
	if in.Opcode == OpSyncRead || in.Opcode == OpBulkRead {
		return Status{}, fmt.Errorf("%w: %s is answered by several devices", NotAvailable, in.Opcode)
	}

	if err := c.acquire(); err != nil {
		return Status{}, err
	}
	defer c.port.Release()

	if err := c.transmit(in); err != nil {
		return Status{}, err
	}
	if !in.ExpectsStatus() {
		return Status{}, nil
	}

	c.port.SetPacketTimeout(in.WaitLength())
	rx := newFrameReceiver(c.port, c.logger, &c.metrics)
	for {
		frame, err := rx.receive()
		if err != nil {
			return Status{}, err
		}

		st := parseStatus(frame)
		if st.ID == in.ID {
			c.logger.Debug("protocol2: rx", "id", st.ID, "error", byte(st.Error), "params", len(st.Params))
			return st, nil
		}
		c.discardCrossTalk(st, in.ID)
	}
}

// TxOnly transmits in without waiting for any status frame.
func (c *Client) TxOnly(in *Instruction) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.port.Release()

	return c.transmit(in)
}

// acquire takes the port for one transaction.
func (c *Client) acquire() error {
	if !c.port.TryAcquire() {
		c.metrics.incPortBusyCount()
		return PortBusy
	}

	return nil
}

// transmit encodes in, clears stale input and writes the frame. The caller
// holds the port.
func (c *Client) transmit(in *Instruction) error {
	frame, err := in.Encode()
	if err != nil {
		return err
	}

	if err := c.port.Clear(); err != nil {
		c.metrics.incTxFailCount()
		return resultError(TxFail, err)
	}

	n, err := c.port.Write(frame)
	if err != nil {
		c.metrics.incTxFailCount()
		return resultError(TxFail, err)
	}
	if n != len(frame) {
		c.metrics.incTxFailCount()
		return fmt.Errorf("%w: wrote %d of %d bytes", TxFail, n, len(frame))
	}

	c.metrics.incTxPacketCount()
	c.logger.Debug("protocol2: tx", "instruction", in.Opcode.String(), "id", in.ID, "bytes", n)

	return nil
}

func (c *Client) discardCrossTalk(st Status, want byte) {
	c.metrics.incCrossTalkCount()
	c.logger.Warn("protocol2: discarded status from unaddressed device", "id", st.ID, "want", want)
}
