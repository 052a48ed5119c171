// Package bus keeps a set of named serial buses, each with its own port and
// protocol client.
//
// Buses share nothing: a transaction on one bus never makes another bus
// report PortBusy, so independent buses can be driven from separate
// goroutines.
package bus

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-dxl/logger"
	"github.com/arloliu/go-dxl/port"
	"github.com/arloliu/go-dxl/protocol2"
)

var (
	// ErrExists is returned when opening a bus under a name already in use.
	ErrExists = errors.New("bus: name already registered")
	// ErrNotFound is returned for an unknown bus name.
	ErrNotFound = errors.New("bus: not found")
)

// Bus is an open port and the client that drives it.
type Bus struct {
	Name   string
	Port   *port.Port
	Client *protocol2.Client
}

// Config describes a bus to open.
type Config struct {
	Name        string
	Device      string
	PortOptions []port.Option
	// ClientOptions are applied after the registry's logger option.
	ClientOptions []protocol2.ClientOption
}

// Registry holds the open buses by name. It is safe for concurrent use.
type Registry struct {
	buses  *xsync.MapOf[string, *Bus]
	logger logger.Logger
}

// NewRegistry creates an empty registry. A nil logger selects the package
// default.
func NewRegistry(l logger.Logger) *Registry {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Registry{
		buses:  xsync.NewMapOf[string, *Bus](),
		logger: l,
	}
}

// Open opens the device in cfg and registers it under cfg.Name.
func (r *Registry) Open(cfg Config) (*Bus, error) {
	if _, ok := r.buses.Load(cfg.Name); ok {
		return nil, fmt.Errorf("%w: %s", ErrExists, cfg.Name)
	}

	l := r.logger.With("bus", cfg.Name)
	p, err := port.New(cfg.Device, append([]port.Option{port.WithLogger(l)}, cfg.PortOptions...)...)
	if err != nil {
		return nil, err
	}
	if err := p.Open(); err != nil {
		return nil, err
	}

	c, err := protocol2.NewClient(p, append([]protocol2.ClientOption{protocol2.WithLogger(l)}, cfg.ClientOptions...)...)
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	b := &Bus{Name: cfg.Name, Port: p, Client: c}
	if _, loaded := r.buses.LoadOrStore(cfg.Name, b); loaded {
		_ = p.Close()
		return nil, fmt.Errorf("%w: %s", ErrExists, cfg.Name)
	}

	l.Info("bus: registered", "device", cfg.Device, "baudRate", p.BaudRate())

	return b, nil
}

// Get returns the bus registered under name.
func (r *Registry) Get(name string) (*Bus, error) {
	b, ok := r.buses.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return b, nil
}

// Names returns the registered bus names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.buses.Size())
	r.buses.Range(func(name string, _ *Bus) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)

	return names
}

// Len returns the number of registered buses.
func (r *Registry) Len() int {
	return r.buses.Size()
}

// Close closes and unregisters the bus named name.
func (r *Registry) Close(name string) error {
	b, ok := r.buses.LoadAndDelete(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return b.Port.Close()
}

// CloseAll closes and unregisters every bus.
func (r *Registry) CloseAll() error {
	var errs []error
	for _, name := range r.Names() {
		if err := r.Close(name); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, fmt.Errorf("bus %s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// ForEach calls fn for every bus, each in its own goroutine, and waits for
// all of them. The returned error joins the failures, each prefixed with the
// bus name.
func (r *Registry) ForEach(fn func(*Bus) error) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	r.buses.Range(func(name string, b *Bus) bool {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(b); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("bus %s: %w", name, err))
				mu.Unlock()
			}
		}()

		return true
	})
	wg.Wait()

	return errors.Join(errs...)
}
