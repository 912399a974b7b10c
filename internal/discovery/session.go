package discovery

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/muurk/onvif-discover/internal/addrs"
	"github.com/muurk/onvif-discover/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of a completed run
type Result struct {
	RunID string
	Mode  Mode

	// Devices is the final device set in discovery order.
	Devices []Device

	// Count is len(Devices); the value FinishedListener received.
	Count int

	// Hosts lists responding hosts in the order they were first seen.
	Hosts []string

	// Rejected counts datagrams that did not parse into a device.
	Rejected int

	StartedAt  time.Time
	FinishedAt time.Time

	// Errors holds the non-fatal transmission and listener errors.
	Errors []error
}

// Run is one discovery run. Its events are delivered to the listeners of
// the Config that started it.
type Run struct {
	id     string
	token  string
	cfg    *Config
	result *Result
	done   chan struct{}
}

// ID returns the run identifier used in logs and events
func (r *Run) ID() string { return r.id }

// Token returns the probe correlation token
func (r *Run) Token() string { return r.token }

// Done is closed once the finished event has been delivered to every
// listener and all run resources are released
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run completes and returns its result
func (r *Run) Wait() *Result {
	<-r.done
	return r.result
}

// Discover starts an independent run. It returns synchronously with a
// ConfigurationError or EnumerationError; otherwise the started event is
// already queued and the run completes on its own at the timeout. Cancelling
// ctx ends collection early, and the all-devices and finished events still
// fire.
func (c *Config) Discover(ctx context.Context) (*Run, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	unicast := make([]*net.UDPAddr, 0, len(c.unicast))
	for _, h := range c.unicast {
		u, err := resolveUnicast(h, c.dialect.Port())
		if err != nil {
			return nil, NewConfigurationError("unicast host", err)
		}
		unicast = append(unicast, u)
	}

	run := &Run{
		id:    uuid.NewString(),
		token: uuid.NewString(),
		cfg:   c,
		done:  make(chan struct{}),
	}
	probe, err := c.dialect.Probe(run.token)
	if err != nil {
		return nil, NewConfigurationError("cannot build probe", err)
	}

	targets, err := c.source.Targets()
	if err != nil {
		return nil, NewEnumerationError(err)
	}
	infos := make([]logging.InterfaceInfo, 0, len(targets))
	for _, t := range targets {
		infos = append(infos, logging.InterfaceInfo{Name: t.Interface, Local: t.Local, Broadcast: t.Broadcast})
	}
	logging.LogInterfaces(run.id, infos)
	if len(targets) == 0 {
		// no usable interface: fall back to the default route
		targets = []addrs.Target{{Interface: "any", Local: net.IPv4zero}}
	}

	socks, openErrs := openSockets(run.id, targets)

	startedAt := time.Now()
	runCtx, cancel := context.WithDeadline(ctx, startedAt.Add(c.timeout))
	deadline, _ := runCtx.Deadline()

	disp := newDispatcher(run.id, c.listeners)
	disp.emit(Event{Kind: EventStarted})
	c.observer.RunStarted(c.mode, len(socks))

	go c.execute(runCtx, cancel, run, execState{
		socks:     socks,
		unicast:   unicast,
		probe:     probe,
		deadline:  deadline,
		startedAt: startedAt,
		disp:      disp,
		errs:      openErrs,
	})
	return run, nil
}

type execState struct {
	socks     []*socket
	unicast   []*net.UDPAddr
	probe     []byte
	deadline  time.Time
	startedAt time.Time
	disp      *dispatcher
	errs      []error
}

func (c *Config) execute(ctx context.Context, cancel context.CancelFunc, run *Run, st execState) {
	defer cancel()

	parser := NewParser(c.dialect, run.token)
	coll := newCollector(run.id, c.mode, parser, st.disp.emit, c.observer)

	for _, s := range st.socks {
		if err := s.conn.SetReadDeadline(st.deadline); err != nil {
			logging.Warn("Cannot set read deadline",
				zap.String("run_id", run.id),
				zap.String("socket", s.String()),
				zap.Error(err),
			)
		}
	}

	// early cancellation unblocks readers parked in ReadFrom
	stopWatch := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			for _, s := range st.socks {
				_ = s.conn.SetReadDeadline(time.Now())
			}
		case <-stopWatch:
		}
	}()

	in := make(chan datagram, 64)
	var readers sync.WaitGroup
	for _, s := range st.socks {
		readers.Add(1)
		go func() {
			defer readers.Done()
			s.receive(ctx, run.id, st.deadline, in)
		}()
	}

	collected := make(chan struct{})
	go func() {
		defer close(collected)
		coll.run(in)
	}()

	tx := &transmitter{runID: run.id, mode: c.mode, probe: st.probe, observer: c.observer}
	errs := append(st.errs, tx.send(ctx, plan(st.socks, c.dialect, c.multicast, c.broadcast, st.unicast))...)

	if len(st.socks) == 0 {
		// nothing could bind; the run still ends at its deadline
		<-ctx.Done()
	}
	readers.Wait()
	close(stopWatch)
	close(in)
	<-collected

	for _, s := range st.socks {
		if err := s.close(); err != nil {
			logging.Debug("Socket close failed", zap.String("run_id", run.id), zap.Error(err))
		}
	}

	devices := coll.set.devices()
	st.disp.emit(Event{Kind: EventAllDevices, Devices: devices})
	st.disp.emit(Event{Kind: EventFinished, Count: len(devices)})
	st.disp.close()
	st.disp.wait()

	finishedAt := time.Now()
	c.observer.RunCompleted(c.mode, len(devices), finishedAt.Sub(st.startedAt))
	logging.Info("Discovery run finished",
		zap.String("run_id", run.id),
		zap.String("mode", c.mode.String()),
		zap.Int("devices", len(devices)),
		zap.Int("hosts", len(coll.set.hosts)),
		zap.Int("rejected", coll.rejected),
		zap.Duration("elapsed", finishedAt.Sub(st.startedAt)),
	)

	run.result = &Result{
		RunID:      run.id,
		Mode:       c.mode,
		Devices:    devices,
		Count:      len(devices),
		Hosts:      coll.set.hostList(),
		Rejected:   coll.rejected,
		StartedAt:  st.startedAt,
		FinishedAt: finishedAt,
		Errors:     append(errs, st.disp.errors()...),
	}
	close(run.done)
}

// openSockets binds one socket per target in parallel. A target that cannot
// be bound is reported as a TransmissionError and skipped.
func openSockets(runID string, targets []addrs.Target) ([]*socket, []error) {
	socks := make([]*socket, len(targets))
	errs := make([]error, len(targets))

	var g errgroup.Group
	for i, t := range targets {
		g.Go(func() error {
			s, err := openSocket(runID, t)
			if err != nil {
				logging.LogProbeFailure(runID, "", t.String(), "", err)
				errs[i] = NewTransmissionError(t.String(), err)
				return nil
			}
			socks[i] = s
			return nil
		})
	}
	_ = g.Wait()

	var opened []*socket
	var failed []error
	for i := range targets {
		if socks[i] != nil {
			opened = append(opened, socks[i])
		}
		if errs[i] != nil {
			failed = append(failed, errs[i])
		}
	}
	return opened, failed
}
