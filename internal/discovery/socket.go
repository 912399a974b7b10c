package discovery

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"github.com/muurk/onvif-discover/internal/addrs"
	"github.com/muurk/onvif-discover/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/net/ipv4"
)

// maxDatagram is the largest UDP payload a run will read
const maxDatagram = 64 * 1024

// socket is one run-owned UDP socket bound to a local interface address
type socket struct {
	target addrs.Target
	conn   net.PacketConn
}

// openSocket binds an ephemeral UDP port on the target's address. Multicast
// egress is pinned to the target's interface when its index is known; a
// failure there only loses multicast on that interface.
func openSocket(runID string, t addrs.Target) (*socket, error) {
	local := "0.0.0.0"
	if t.Local != nil {
		local = t.Local.String()
	}
	conn, err := net.ListenPacket("udp4", net.JoinHostPort(local, "0"))
	if err != nil {
		return nil, err
	}

	if ifi := t.NetInterface(); ifi != nil {
		p := ipv4.NewPacketConn(conn)
		if err := p.SetMulticastInterface(ifi); err != nil {
			logging.Debug("Cannot select multicast interface",
				zap.String("run_id", runID),
				zap.String("interface", t.Interface),
				zap.Error(err),
			)
		}
		_ = p.SetMulticastTTL(1)
		_ = p.SetMulticastLoopback(false)
	}
	return &socket{target: t, conn: conn}, nil
}

func (s *socket) String() string {
	return s.conn.LocalAddr().String()
}

// receive reads datagrams until the socket's read deadline passes, ctx is
// done or the socket is closed. Datagrams read after deadline are dropped.
func (s *socket) receive(ctx context.Context, runID string, deadline time.Time, out chan<- datagram) {
	buf := make([]byte, maxDatagram)
	for {
		n, from, err := s.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			// ICMP errors surface on some platforms; keep listening
			logging.Debug("Read failed",
				zap.String("run_id", runID),
				zap.String("socket", s.String()),
				zap.Error(err),
			)
			if time.Now().After(deadline) {
				return
			}
			continue
		}
		if !time.Now().Before(deadline) || ctx.Err() != nil {
			return
		}

		udp, ok := from.(*net.UDPAddr)
		if !ok {
			continue
		}
		// accepted before the deadline, so the collector sees it even if
		// the deadline passes while it is queued
		out <- datagram{host: udp.IP.String(), payload: append([]byte(nil), buf[:n]...)}
	}
}

func (s *socket) close() error {
	return s.conn.Close()
}
