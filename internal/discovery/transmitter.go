package discovery

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/muurk/onvif-discover/internal/logging"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentSends bounds the probe fan-out of one run
const maxConcurrentSends = 16

// destination is one probe target reached through one socket
type destination struct {
	sock *socket
	addr *net.UDPAddr
}

// transmitter sends a single probe burst for a run. Every destination is
// attempted independently; failures are reported and never retried.
type transmitter struct {
	runID    string
	mode     Mode
	probe    []byte
	observer Observer
}

// plan expands the run configuration into destinations: the dialect's
// multicast group and optionally the directed broadcast address on every
// socket, plus each unicast host once, through the socket on its subnet.
func plan(socks []*socket, d Dialect, multicast, broadcast bool, unicast []*net.UDPAddr) []destination {
	var out []destination
	for _, s := range socks {
		if multicast && d.Group() != nil {
			out = append(out, destination{sock: s, addr: &net.UDPAddr{IP: d.Group(), Port: d.Port()}})
		}
		if broadcast && s.target.Broadcast != nil {
			out = append(out, destination{sock: s, addr: &net.UDPAddr{IP: s.target.Broadcast, Port: d.Port()}})
		}
	}
	if len(socks) == 0 {
		return out
	}
	for _, u := range unicast {
		via := socks[0]
		for _, s := range socks {
			if s.target.Contains(u.IP) {
				via = s
				break
			}
		}
		out = append(out, destination{sock: via, addr: u})
	}
	return out
}

// send writes the probe to every destination concurrently and returns one
// TransmissionError per failed destination. It returns once every send has
// been attempted.
func (t *transmitter) send(ctx context.Context, dests []destination) []error {
	var (
		mu   sync.Mutex
		errs []error
	)

	var g errgroup.Group
	g.SetLimit(maxConcurrentSends)
	for _, dst := range dests {
		g.Go(func() error {
			to := dst.addr.String()
			from := dst.sock.String()
			if err := ctx.Err(); err != nil {
				t.fail(&mu, &errs, from, to, err)
				return nil
			}
			if _, err := dst.sock.conn.WriteTo(t.probe, dst.addr); err != nil {
				t.fail(&mu, &errs, from, to, err)
				return nil
			}
			t.observer.ProbeSent(t.mode, to)
			logging.LogProbeSent(t.runID, t.mode.String(), from, to, len(t.probe))
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func (t *transmitter) fail(mu *sync.Mutex, errs *[]error, from, to string, err error) {
	t.observer.ProbeFailed(t.mode, to, err)
	logging.LogProbeFailure(t.runID, t.mode.String(), from, to, err)
	mu.Lock()
	*errs = append(*errs, NewTransmissionError(to, err))
	mu.Unlock()
}

// resolveUnicast turns "host" or "host:port" into a UDP address, using the
// dialect port when none is given.
func resolveUnicast(hostport string, defaultPort int) (*net.UDPAddr, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		host, portStr = hostport, strconv.Itoa(defaultPort)
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		return nil, &net.AddrError{Err: "not an IPv4 address", Addr: hostport}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return nil, &net.AddrError{Err: "invalid port", Addr: hostport}
	}
	return &net.UDPAddr{IP: ip.To4(), Port: port}, nil
}
