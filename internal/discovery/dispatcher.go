package discovery

import (
	"fmt"
	"sync"

	"github.com/muurk/onvif-discover/internal/logging"
	"go.uber.org/zap"
)

// EventKind tags a lifecycle notification
type EventKind int

const (
	// EventStarted fires once, after the run's sockets are receiving
	EventStarted EventKind = iota
	// EventHost fires each time a new device is found at a host
	EventHost
	// EventAllDevices fires once with the final device set
	EventAllDevices
	// EventFinished fires once with the device count; always last
	EventFinished
)

// String returns the event name used in logs and on the wire
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventHost:
		return "host"
	case EventAllDevices:
		return "all-devices"
	case EventFinished:
		return "finished"
	default:
		return fmt.Sprintf("EventKind(%d)", k)
	}
}

// Event is one lifecycle notification of a run
type Event struct {
	Kind  EventKind
	RunID string

	// Host is set for EventHost.
	Host string

	// Devices is the host's devices for EventHost and the full set for
	// EventAllDevices. Listeners get their own copy of the slice.
	Devices []Device

	// Count is set for EventFinished.
	Count int
}

// Listener shapes, one per event kind
type (
	StartedListener    func()
	HostListener       func(host string, devices []Device)
	AllDevicesListener func(devices []Device)
	FinishedListener   func(count int)
	EventListener      func(ev Event)
)

type listeners struct {
	started  []StartedListener
	host     []HostListener
	all      []AllDevicesListener
	finished []FinishedListener
	any      []EventListener
}

func (l listeners) clone() listeners {
	return listeners{
		started:  append([]StartedListener(nil), l.started...),
		host:     append([]HostListener(nil), l.host...),
		all:      append([]AllDevicesListener(nil), l.all...),
		finished: append([]FinishedListener(nil), l.finished...),
		any:      append([]EventListener(nil), l.any...),
	}
}

// dispatcher delivers a run's events on one goroutine, in emission order.
// emit never blocks, so a slow listener cannot stall collection.
type dispatcher struct {
	runID     string
	listeners listeners

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool
	errs   []error

	done chan struct{}
}

func newDispatcher(runID string, ls listeners) *dispatcher {
	d := &dispatcher{
		runID:     runID,
		listeners: ls,
		done:      make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.loop()
	return d
}

func (d *dispatcher) emit(ev Event) {
	ev.RunID = d.runID
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.queue = append(d.queue, ev)
	d.cond.Signal()
}

// close stops accepting events. Queued events are still delivered; done is
// closed after the last one.
func (d *dispatcher) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.cond.Signal()
}

func (d *dispatcher) wait() {
	<-d.done
}

// errors returns the listener errors recorded so far
func (d *dispatcher) errors() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]error(nil), d.errs...)
}

func (d *dispatcher) loop() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		ev := d.queue[0]
		d.queue[0] = Event{}
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.deliver(ev)
	}
}

func (d *dispatcher) deliver(ev Event) {
	switch ev.Kind {
	case EventStarted:
		for _, fn := range d.listeners.started {
			d.invoke(ev.Kind, func() { fn() })
		}
	case EventHost:
		for _, fn := range d.listeners.host {
			d.invoke(ev.Kind, func() { fn(ev.Host, copyDevices(ev.Devices)) })
		}
	case EventAllDevices:
		for _, fn := range d.listeners.all {
			d.invoke(ev.Kind, func() { fn(copyDevices(ev.Devices)) })
		}
	case EventFinished:
		for _, fn := range d.listeners.finished {
			d.invoke(ev.Kind, func() { fn(ev.Count) })
		}
	}
	for _, fn := range d.listeners.any {
		d.invoke(ev.Kind, func() {
			c := ev
			c.Devices = copyDevices(ev.Devices)
			fn(c)
		})
	}
}

func (d *dispatcher) invoke(kind EventKind, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			err := NewListenerError(kind, r)
			logging.Warn("Listener panicked",
				zap.String("run_id", d.runID),
				zap.String("event", kind.String()),
				zap.Any("panic", r),
			)
			d.mu.Lock()
			d.errs = append(d.errs, err)
			d.mu.Unlock()
		}
	}()
	fn()
}

func copyDevices(devices []Device) []Device {
	if devices == nil {
		return nil
	}
	return append([]Device(nil), devices...)
}
