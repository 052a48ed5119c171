// Command dxlctl is an interactive console for Dynamixel Protocol 2.0 buses.
//
// The buses to open come from a TOML file given with -config; without one a
// single bus is opened on -port. Arguments after the flags run one command
// and exit instead of starting the shell:
//
//	dxlctl -port /dev/ttyUSB0 -baud 57600 scan
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/arloliu/go-dxl/bus"
	"github.com/arloliu/go-dxl/logger"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("dxlctl", flag.ContinueOnError)
	configPath := fs.String("config", "", "path of a TOML config file")
	portName := fs.String("port", "", "serial device, overrides the default bus port")
	baud := fs.Int("baud", 0, "baud rate, overrides the default bus baud rate")
	logLevel := fs.String("log", "", "log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := applyFlags(&cfg, *portName, *baud, *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log := logger.NewSlog(cfg.LogLevel, false)
	logger.SetLogger(log)

	configs, err := cfg.busConfigs()
	if err != nil {
		log.Error("invalid bus configuration", "error", err)
		return 1
	}

	reg := bus.NewRegistry(log)
	defer func() {
		if err := reg.CloseAll(); err != nil {
			log.Warn("failed to close buses", "error", err)
		}
	}()

	for _, bc := range configs {
		if _, err := reg.Open(bc); err != nil {
			log.Error("failed to open bus", "bus", bc.Name, "device", bc.Device, "error", err)
			return 1
		}
	}

	s, err := newSession(reg)
	if err != nil {
		log.Error("failed to start session", "error", err)
		return 1
	}

	if rest := fs.Args(); len(rest) > 0 {
		if err := s.exec(rest[0], rest[1:], os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		return 0
	}

	sh := newShell(s)
	sh.Println("dxlctl: type help for the command list")
	sh.Run()
	sh.Close()

	return 0
}

// applyFlags overrides the loaded configuration with command line values.
// The -port and -baud flags apply to the first bus.
func applyFlags(cfg *config, portName string, baud int, logLevel string) error {
	if portName != "" {
		cfg.Buses[0].Port = portName
	}
	if baud != 0 {
		cfg.Buses[0].BaudRate = baud
	}
	if logLevel != "" {
		level, ok := logger.ParseLevel(strings.TrimSpace(logLevel))
		if !ok {
			return fmt.Errorf("unknown log level %q", logLevel)
		}
		cfg.LogLevel = level
	}

	return cfg.validate()
}
