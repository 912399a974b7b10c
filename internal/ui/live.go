package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muurk/onvif-discover/internal/discovery"
)

// Run phases shown by the live view
const (
	stepProbe = iota + 1
	stepCollect
	stepDeliver
)

const tickInterval = 100 * time.Millisecond

// EventMsg carries a run event into the live view
type EventMsg discovery.Event

// ResultMsg carries the completed run into the live view and ends it
type ResultMsg struct{ Result *discovery.Result }

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// LiveModel is a Bubble Tea model that follows one discovery run: a
// spinner, a bar tracking elapsed time against the timeout, the run phases
// and each responding host as it arrives.
type LiveModel struct {
	Spinner  spinner.Model
	Progress *Progress

	timeout time.Duration
	started time.Time
	now     func() time.Time
	cancel  context.CancelFunc

	hosts     []string
	perHost   map[string]int
	devices   int
	done      bool
	cancelled bool
}

// NewLiveModel creates the live view for a run of the given timeout.
// cancel is invoked when the user interrupts.
func NewLiveModel(mode discovery.Mode, timeout time.Duration, cancel context.CancelFunc) *LiveModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	p := NewProgress(
		fmt.Sprintf("Searching for %s devices...", mode),
		"Opening sockets and sending probes",
		"Collecting responses",
		"Delivering results",
	)

	return &LiveModel{
		Spinner:  s,
		Progress: p,
		timeout:  timeout,
		now:      time.Now,
		cancel:   cancel,
		perHost:  make(map[string]int),
	}
}

// Init implements tea.Model
func (m *LiveModel) Init() tea.Cmd {
	m.started = m.now()
	m.Progress.StartStep(stepProbe, "")
	return tea.Batch(m.Spinner.Tick, tick())
}

// Update implements tea.Model
func (m *LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			// The run still delivers its final events after cancellation.
			if !m.cancelled && m.cancel != nil {
				m.cancel()
			}
			m.cancelled = true
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.Progress.SetWidth(msg.Width)
		return m, nil

	case EventMsg:
		m.handleEvent(discovery.Event(msg))
		return m, nil

	case ResultMsg:
		m.handleResult(msg.Result)
		return m, tea.Quit

	case tickMsg:
		if m.done {
			return m, nil
		}
		if m.timeout > 0 {
			m.Progress.SetPercent(float64(m.now().Sub(m.started)) / float64(m.timeout))
		}
		return m, tick()

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *LiveModel) handleEvent(ev discovery.Event) {
	switch ev.Kind {
	case discovery.EventStarted:
		m.Progress.CompleteStep(stepProbe, "")
		m.Progress.StartStep(stepCollect, "")

	case discovery.EventHost:
		if _, seen := m.perHost[ev.Host]; !seen {
			m.hosts = append(m.hosts, ev.Host)
		}
		m.perHost[ev.Host] += len(ev.Devices)
		m.devices += len(ev.Devices)
		m.Progress.StartStep(stepCollect, plural(len(m.hosts), "host"))

	case discovery.EventAllDevices:
		m.Progress.CompleteStep(stepProbe, "")
		m.Progress.CompleteStep(stepCollect, plural(len(ev.Devices), "device"))
		m.Progress.StartStep(stepDeliver, "")

	case discovery.EventFinished:
		m.Progress.CompleteStep(stepDeliver, "")
		m.Progress.SetPercent(1)
		m.done = true
	}
}

// handleResult marks the probe phase failed when sends were lost
func (m *LiveModel) handleResult(r *discovery.Result) {
	m.done = true
	if r == nil {
		return
	}
	failed := 0
	for _, err := range r.Errors {
		if discovery.IsTransmissionError(err) {
			failed++
		}
	}
	if failed > 0 {
		m.Progress.FailStep(stepProbe, plural(failed, "send")+" failed")
	}
}

// View implements tea.Model
func (m *LiveModel) View() string {
	var b strings.Builder

	b.WriteString(m.Progress.Render())
	b.WriteString("\n\n")

	for _, host := range m.hosts {
		b.WriteString("  ")
		b.WriteString(StepCompleteStyle.Render(SuccessMarker))
		b.WriteString(" ")
		b.WriteString(HostStyle.Render(host))
		b.WriteString(StepNoteStyle.Render(fmt.Sprintf("  (%s)", plural(m.perHost[host], "device"))))
		b.WriteString("\n")
	}

	switch {
	case m.done:
	case m.cancelled:
		b.WriteString("  " + StepPendingStyle.Render("Cancelling...") + "\n")
	default:
		b.WriteString("  " + m.Spinner.View() + " " + StepPendingStyle.Render("Listening, press q to stop") + "\n")
	}

	return b.String()
}

// Done reports whether the run's finished event has been seen
func (m *LiveModel) Done() bool { return m.done }

// Hosts returns the responding hosts in arrival order
func (m *LiveModel) Hosts() []string { return append([]string(nil), m.hosts...) }

// Devices returns the number of devices seen so far
func (m *LiveModel) Devices() int { return m.devices }

// RunLive starts a run from b and renders its progress to out until the
// run completes. b must not have been used for a run yet.
func RunLive(ctx context.Context, b *discovery.Builder, out io.Writer) (*discovery.Result, error) {
	cfg, err := b.Build()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewLiveModel(cfg.Mode(), cfg.Timeout(), cancel)
	p := tea.NewProgram(model, tea.WithOutput(out))

	// Send blocks until the program starts and is a no-op once it exits.
	b.OnEvent(func(ev discovery.Event) {
		p.Send(EventMsg(ev))
	})

	run, err := b.Discover(ctx)
	if err != nil {
		return nil, err
	}

	go func() {
		p.Send(ResultMsg{Result: run.Wait()})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		run.Wait()
		return nil, fmt.Errorf("live view: %w", err)
	}

	return run.Wait(), nil
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
