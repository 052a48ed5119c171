package protocol2

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-dxl/logger"
)

// DefaultBroadcastMaxID is the highest device ID a broadcast ping waits for.
const DefaultBroadcastMaxID = int(MaxID)

// ClientConfig holds the configuration of a Client.
type ClientConfig struct {
	logger logger.Logger

	// broadcastMaxID sizes the broadcast ping wait: the timeout covers one
	// ping status frame from every ID up to this value.
	broadcastMaxID int
}

func newClientConfig(opts ...ClientOption) (*ClientConfig, error) {
	cfg := &ClientConfig{
		logger:         logger.GetLogger(),
		broadcastMaxID: DefaultBroadcastMaxID,
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// BroadcastMaxID returns the highest device ID a broadcast ping waits for.
func (cfg *ClientConfig) BroadcastMaxID() int { return cfg.broadcastMaxID }

// ClientOption is a functional option for configuring a Client.
type ClientOption interface {
	apply(*ClientConfig) error
}

type clientOptFunc func(*ClientConfig) error

func (f clientOptFunc) apply(cfg *ClientConfig) error { return f(cfg) }

// WithLogger sets the logger for the client.
func WithLogger(l logger.Logger) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		if l == nil {
			return errors.New("protocol2: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

// WithBroadcastMaxID sets the highest device ID a broadcast ping waits for.
// Lower values shorten the scan on small buses. Range: 1-252.
func WithBroadcastMaxID(id int) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		if id < 1 || id > int(MaxID) {
			return fmt.Errorf("protocol2: broadcast max id %d out of range [1, %d]", id, MaxID)
		}
		cfg.broadcastMaxID = id

		return nil
	})
}
