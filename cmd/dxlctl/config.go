package main

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/arloliu/go-dxl/bus"
	"github.com/arloliu/go-dxl/logger"
	"github.com/arloliu/go-dxl/port"
)

const defaultBusName = "default"

type fileConfig struct {
	Port           string          `toml:"port"`
	BaudRate       int             `toml:"baud_rate"`
	LatencyTimerMS int             `toml:"latency_timer_ms"`
	PollIntervalUS int             `toml:"poll_interval_us"`
	LogLevel       string          `toml:"log_level"`
	Buses          []fileBusConfig `toml:"bus"`
}

type fileBusConfig struct {
	Name     string `toml:"name"`
	Port     string `toml:"port"`
	BaudRate int    `toml:"baud_rate"`
}

// busConfig is one serial bus to open at startup.
type busConfig struct {
	Name     string
	Port     string
	BaudRate int
}

type config struct {
	LogLevel     logger.Level
	LatencyTimer time.Duration
	PollInterval time.Duration
	Buses        []busConfig
}

func defaultConfig() config {
	return config{
		LogLevel:     logger.InfoLevel,
		LatencyTimer: port.DefaultLatencyTimer,
		PollInterval: port.DefaultPollInterval,
		Buses: []busConfig{{
			Name:     defaultBusName,
			Port:     defaultPortName(),
			BaudRate: port.DefaultBaudRate,
		}},
	}
}

// loadConfig reads the TOML file at path over the defaults. An empty path
// returns the defaults.
//
// Top-level port and baud_rate describe the default bus. When [[bus]] tables
// are present they replace it, and a bus without its own baud_rate inherits
// the top-level one.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, fmt.Errorf("load dxlctl config: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}

	baud := port.DefaultBaudRate
	if meta.IsDefined("baud_rate") {
		baud = raw.BaudRate
	}

	if meta.IsDefined("port") {
		cfg.Buses[0].Port = strings.TrimSpace(raw.Port)
	}
	cfg.Buses[0].BaudRate = baud

	if meta.IsDefined("latency_timer_ms") {
		cfg.LatencyTimer = time.Duration(raw.LatencyTimerMS) * time.Millisecond
	}

	if meta.IsDefined("poll_interval_us") {
		cfg.PollInterval = time.Duration(raw.PollIntervalUS) * time.Microsecond
	}

	if meta.IsDefined("log_level") {
		level, ok := logger.ParseLevel(strings.TrimSpace(raw.LogLevel))
		if !ok {
			return config{}, fmt.Errorf("parse log_level: unknown level %q", raw.LogLevel)
		}
		cfg.LogLevel = level
	}

	if meta.IsDefined("bus") {
		cfg.Buses = cfg.Buses[:0]
		for i, b := range raw.Buses {
			bc := busConfig{
				Name:     strings.TrimSpace(b.Name),
				Port:     strings.TrimSpace(b.Port),
				BaudRate: b.BaudRate,
			}
			if bc.BaudRate == 0 {
				bc.BaudRate = baud
			}
			if bc.Name == "" {
				return config{}, fmt.Errorf("bus #%d: name is required", i+1)
			}
			cfg.Buses = append(cfg.Buses, bc)
		}
	}

	if err := cfg.validate(); err != nil {
		return config{}, err
	}

	return cfg, nil
}

func (cfg config) validate() error {
	if len(cfg.Buses) == 0 {
		return errors.New("at least one bus is required")
	}

	seen := make(map[string]bool, len(cfg.Buses))
	for _, b := range cfg.Buses {
		if seen[b.Name] {
			return fmt.Errorf("bus %s: %w", b.Name, bus.ErrExists)
		}
		seen[b.Name] = true

		if _, err := cfg.portOptions(b); err != nil {
			return fmt.Errorf("bus %s: %w", b.Name, err)
		}
	}

	return nil
}

// portOptions returns the port options for b. The option values are
// validated here so that a bad file fails before any device is opened.
func (cfg config) portOptions(b busConfig) ([]port.Option, error) {
	opts := []port.Option{
		port.WithBaudRate(b.BaudRate),
		port.WithLatencyTimer(cfg.LatencyTimer),
		port.WithPollInterval(cfg.PollInterval),
	}
	if _, err := port.New(b.Port, opts...); err != nil {
		return nil, err
	}

	return opts, nil
}

// configs converts the configured buses into registry configs.
func (cfg config) busConfigs(extra ...port.Option) ([]bus.Config, error) {
	configs := make([]bus.Config, 0, len(cfg.Buses))
	for _, b := range cfg.Buses {
		opts, err := cfg.portOptions(b)
		if err != nil {
			return nil, fmt.Errorf("bus %s: %w", b.Name, err)
		}
		configs = append(configs, bus.Config{
			Name:        b.Name,
			Device:      b.Port,
			PortOptions: append(opts, extra...),
		})
	}

	return configs, nil
}

func defaultPortName() string {
	if runtime.GOOS == "windows" {
		return "COM1"
	}

	return "/dev/ttyUSB0"
}
