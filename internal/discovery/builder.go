package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/muurk/onvif-discover/internal/addrs"
)

// DefaultTimeout is the collection window used by the CLI when none is given
const DefaultTimeout = 5 * time.Second

// TargetSource lists the local addresses a run sends from.
// *addrs.Enumerator is the production implementation.
type TargetSource interface {
	Targets() ([]addrs.Target, error)
}

// Config is an immutable run configuration produced by Builder.Build. One
// Config may start any number of independent runs, concurrently.
type Config struct {
	timeout    time.Duration
	mode       Mode
	dialect    Dialect
	interfaces []string
	multicast  bool
	broadcast  bool
	unicast    []string
	listeners  listeners
	observer   Observer
	source     TargetSource
}

// Timeout returns the collection window
func (c *Config) Timeout() time.Duration { return c.timeout }

// Mode returns the discovery mode
func (c *Config) Mode() Mode { return c.mode }

// Dialect returns the dialect runs will use
func (c *Config) Dialect() Dialect { return c.dialect }

// Interfaces returns the interface allowlist; empty means all
func (c *Config) Interfaces() []string { return append([]string(nil), c.interfaces...) }

// Unicast returns the hosts probed directly
func (c *Config) Unicast() []string { return append([]string(nil), c.unicast...) }

// Multicast reports whether probes go to the dialect's multicast group
func (c *Config) Multicast() bool { return c.multicast }

// Broadcast reports whether probes also go to directed broadcast addresses
func (c *Config) Broadcast() bool { return c.broadcast }

// Builder accumulates a run configuration. Methods return the builder for
// chaining; the first error is kept and returned by Build and Discover.
//
// The builder is sealed by the first call to Discover. Later mutations fail
// with ErrSealed, while further Discover calls on an untouched builder each
// start a fresh, independent run.
type Builder struct {
	mu     sync.Mutex
	cfg    Config
	sealed bool
	err    error
}

// New returns a builder for runs collecting responses for timeout, in the
// default mode.
func New(timeout time.Duration) *Builder {
	d, _ := LookupDialect(DefaultMode)
	return &Builder{
		cfg: Config{
			timeout:   timeout,
			mode:      DefaultMode,
			dialect:   d,
			multicast: true,
			observer:  nopObserver{},
		},
	}
}

func (b *Builder) mutate(fn func(c *Config) error) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		b.err = NewConfigurationError("builder modified after Discover", ErrSealed)
		return b
	}
	if b.err != nil {
		return b
	}
	if err := fn(&b.cfg); err != nil {
		b.err = err
	}
	return b
}

// Timeout sets the collection window
func (b *Builder) Timeout(d time.Duration) *Builder {
	return b.mutate(func(c *Config) error {
		c.timeout = d
		return nil
	})
}

// Mode selects a registered dialect
func (b *Builder) Mode(m Mode) *Builder {
	return b.mutate(func(c *Config) error {
		d, ok := LookupDialect(m)
		if !ok {
			return NewConfigurationError(fmt.Sprintf("mode %q", m), ErrUnknownMode)
		}
		c.mode = m
		c.dialect = d
		return nil
	})
}

// ModeName selects a dialect by its identifier, as typed by a user
func (b *Builder) ModeName(name string) *Builder {
	return b.mutate(func(c *Config) error {
		m, err := ParseMode(name)
		if err != nil {
			return err
		}
		c.mode = m
		c.dialect, _ = LookupDialect(m)
		return nil
	})
}

// Dialect uses d for this configuration only, without registering it
func (b *Builder) Dialect(d Dialect) *Builder {
	return b.mutate(func(c *Config) error {
		if d == nil {
			return NewConfigurationError("nil dialect", nil)
		}
		c.mode = d.Mode()
		c.dialect = d
		return nil
	})
}

// OnStarted registers a listener for the start of a run
func (b *Builder) OnStarted(fn StartedListener) *Builder {
	return b.mutate(func(c *Config) error {
		if fn != nil {
			c.listeners.started = append(c.listeners.started, fn)
		}
		return nil
	})
}

// OnHost registers a listener called for every new device at a host
func (b *Builder) OnHost(fn HostListener) *Builder {
	return b.mutate(func(c *Config) error {
		if fn != nil {
			c.listeners.host = append(c.listeners.host, fn)
		}
		return nil
	})
}

// OnAllDevices registers a listener called once with the final device set
func (b *Builder) OnAllDevices(fn AllDevicesListener) *Builder {
	return b.mutate(func(c *Config) error {
		if fn != nil {
			c.listeners.all = append(c.listeners.all, fn)
		}
		return nil
	})
}

// OnFinished registers a listener called last, with the device count
func (b *Builder) OnFinished(fn FinishedListener) *Builder {
	return b.mutate(func(c *Config) error {
		if fn != nil {
			c.listeners.finished = append(c.listeners.finished, fn)
		}
		return nil
	})
}

// OnEvent registers a listener called for every event, after the
// kind-specific listeners of that event
func (b *Builder) OnEvent(fn EventListener) *Builder {
	return b.mutate(func(c *Config) error {
		if fn != nil {
			c.listeners.any = append(c.listeners.any, fn)
		}
		return nil
	})
}

// Interfaces restricts probing to the named interfaces
func (b *Builder) Interfaces(names ...string) *Builder {
	return b.mutate(func(c *Config) error {
		c.interfaces = append([]string(nil), names...)
		return nil
	})
}

// Multicast enables or disables probing the dialect's multicast group
func (b *Builder) Multicast(on bool) *Builder {
	return b.mutate(func(c *Config) error {
		c.multicast = on
		return nil
	})
}

// Broadcast enables probing directed broadcast addresses as well
func (b *Builder) Broadcast(on bool) *Builder {
	return b.mutate(func(c *Config) error {
		c.broadcast = on
		return nil
	})
}

// Unicast adds hosts ("ip" or "ip:port") to probe directly
func (b *Builder) Unicast(hosts ...string) *Builder {
	return b.mutate(func(c *Config) error {
		for _, h := range hosts {
			ip := h
			if host, _, err := net.SplitHostPort(h); err == nil {
				ip = host
			}
			if !addrs.IsIPv4(ip) {
				return NewConfigurationError(fmt.Sprintf("unicast host %q is not an IPv4 address", h), nil)
			}
			c.unicast = append(c.unicast, h)
		}
		return nil
	})
}

// Observer attaches run counters
func (b *Builder) Observer(o Observer) *Builder {
	return b.mutate(func(c *Config) error {
		if o == nil {
			o = nopObserver{}
		}
		c.observer = o
		return nil
	})
}

// Enumerator replaces the OS interface enumeration
func (b *Builder) Enumerator(s TargetSource) *Builder {
	return b.mutate(func(c *Config) error {
		c.source = s
		return nil
	})
}

// Err returns the first error recorded by a builder method
func (b *Builder) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Build validates the configuration and returns an immutable snapshot
func (b *Builder) Build() (*Config, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot()
}

func (b *Builder) snapshot() (*Config, error) {
	if b.err != nil {
		return nil, b.err
	}
	c := b.cfg
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.interfaces = append([]string(nil), c.interfaces...)
	c.unicast = append([]string(nil), c.unicast...)
	c.listeners = c.listeners.clone()
	if c.source == nil {
		c.source = addrs.NewEnumerator(c.interfaces...)
	}
	return &c, nil
}

// Discover seals the builder and starts a run. Configuration and
// enumeration errors are returned before anything is sent and before any
// listener fires.
func (b *Builder) Discover(ctx context.Context) (*Run, error) {
	b.mu.Lock()
	cfg, err := b.snapshot()
	if err == nil {
		b.sealed = true
	}
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return cfg.Discover(ctx)
}

func (c *Config) validate() error {
	if c.timeout <= 0 {
		return NewConfigurationError(fmt.Sprintf("timeout %s", c.timeout), ErrInvalidTimeout)
	}
	if c.dialect == nil {
		return NewConfigurationError(fmt.Sprintf("mode %q", c.mode), ErrUnknownMode)
	}
	if !c.multicast && !c.broadcast && len(c.unicast) == 0 {
		return NewConfigurationError("no probe destinations configured", nil)
	}
	return nil
}
