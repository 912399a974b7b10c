package discovery

import "time"

// Observer receives counters from a run. Calls come from several goroutines.
type Observer interface {
	RunStarted(mode Mode, sockets int)
	ProbeSent(mode Mode, destination string)
	ProbeFailed(mode Mode, destination string, err error)
	ResponseReceived(mode Mode, size int)
	ResponseRejected(mode Mode)
	DeviceDiscovered(mode Mode)
	RunCompleted(mode Mode, devices int, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) RunStarted(Mode, int)                  {}
func (nopObserver) ProbeSent(Mode, string)                {}
func (nopObserver) ProbeFailed(Mode, string, error)       {}
func (nopObserver) ResponseReceived(Mode, int)            {}
func (nopObserver) ResponseRejected(Mode)                 {}
func (nopObserver) DeviceDiscovered(Mode)                 {}
func (nopObserver) RunCompleted(Mode, int, time.Duration) {}
