package port

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/arloliu/go-dxl/logger"
)

// Default values for a Port.
const (
	DefaultBaudRate     = 1000000
	DefaultLatencyTimer = 16 * time.Millisecond
	DefaultPollInterval = time.Millisecond
)

// Range limits for Port options.
const (
	MinLatencyTimer = 1 * time.Millisecond
	MaxLatencyTimer = 255 * time.Millisecond

	MaxPollInterval = 10 * time.Millisecond
)

// supportedBaudRates lists the rates accepted by SetBaudRate and WithBaudRate.
var supportedBaudRates = []int{
	9600, 19200, 38400, 57600, 115200, 230400, 460800, 500000, 576000,
	921600, 1000000, 1152000, 2000000, 2500000, 3000000, 3500000, 4000000,
}

// SupportedBaudRates returns a copy of the accepted baud rates in ascending order.
func SupportedBaudRates() []int {
	return slices.Clone(supportedBaudRates)
}

// IsSupportedBaudRate reports whether baud is one of the supported rates.
func IsSupportedBaudRate(baud int) bool {
	_, found := slices.BinarySearch(supportedBaudRates, baud)
	return found
}

// Config holds the configuration of a Port.
type Config struct {
	baudRate     int
	latencyTimer time.Duration

	// pollInterval bounds how long a single Read may wait for input.
	// Zero makes reads non-blocking, so the receive loop spins.
	pollInterval time.Duration

	opener Opener
	now    func() time.Time
	logger logger.Logger
}

func newConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		baudRate:     DefaultBaudRate,
		latencyTimer: DefaultLatencyTimer,
		pollInterval: DefaultPollInterval,
		opener:       SerialOpener,
		now:          time.Now,
		logger:       logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// BaudRate returns the configured baud rate.
func (cfg *Config) BaudRate() int { return cfg.baudRate }

// LatencyTimer returns the adapter latency allowance.
func (cfg *Config) LatencyTimer() time.Duration { return cfg.latencyTimer }

// PollInterval returns the per-read wait bound.
func (cfg *Config) PollInterval() time.Duration { return cfg.pollInterval }

// Option is a functional option for configuring a Port.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithBaudRate sets the initial baud rate. It must be one of SupportedBaudRates.
func WithBaudRate(baud int) Option {
	return optFunc(func(cfg *Config) error {
		if !IsSupportedBaudRate(baud) {
			return fmt.Errorf("%w: %d", ErrUnsupportedBaudRate, baud)
		}
		cfg.baudRate = baud

		return nil
	})
}

// WithLatencyTimer sets the USB-serial adapter latency allowance added twice
// to every packet timeout. Range: 1ms–255ms.
func WithLatencyTimer(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinLatencyTimer || d > MaxLatencyTimer {
			return fmt.Errorf("port: latency timer %v out of range [%v, %v]", d, MinLatencyTimer, MaxLatencyTimer)
		}
		cfg.latencyTimer = d

		return nil
	})
}

// WithPollInterval sets how long a single device read may block waiting for
// input. Zero selects non-blocking reads. Range: 0–10ms.
func WithPollInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 || d > MaxPollInterval {
			return fmt.Errorf("port: poll interval %v out of range [0, %v]", d, MaxPollInterval)
		}
		cfg.pollInterval = d

		return nil
	})
}

// WithOpener replaces the device factory. The default opens a serial port.
func WithOpener(opener Opener) Option {
	return optFunc(func(cfg *Config) error {
		if opener == nil {
			return errors.New("port: opener must not be nil")
		}
		cfg.opener = opener

		return nil
	})
}

// WithClock replaces the time source used by the packet timeout clock.
func WithClock(now func() time.Time) Option {
	return optFunc(func(cfg *Config) error {
		if now == nil {
			return errors.New("port: clock must not be nil")
		}
		cfg.now = now

		return nil
	})
}

// WithLogger sets the logger for the port.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("port: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
