package server

import (
	"fmt"
	"net"
	"strconv"

	"github.com/grandcat/zeroconf"
	"github.com/muurk/onvif-discover/internal/logging"
	"github.com/muurk/onvif-discover/internal/version"
	"go.uber.org/zap"
)

const (
	// ServiceType is the DNS-SD service the event feed is announced under
	ServiceType   = "_onvif-discover._tcp"
	serviceDomain = "local."
)

// advertiseTXT lists the TXT records announced with the service.
func (s *Server) advertiseTXT() []string {
	scheme := "http"
	if s.tlsConfig != nil {
		scheme = "https"
	}
	return append(version.Get().TXT(), "path=/ws", "scheme="+scheme)
}

// advertise registers the feed with mDNS so clients can find it.
func (s *Server) advertise() error {
	_, portStr, err := net.SplitHostPort(s.listener.Addr().String())
	if err != nil {
		return fmt.Errorf("failed to read listen port: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid listen port %q: %w", portStr, err)
	}

	instance := s.config.Instance
	if instance == "" {
		instance = "onvif-discover"
	}

	srv, err := zeroconf.Register(instance, ServiceType, serviceDomain, port, s.advertiseTXT(), nil)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}
	s.mdns = srv

	logging.Info("Advertising event feed over mDNS",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)
	return nil
}
