// Package discovery advertises the planner's monitor port over mDNS so bench
// tools can find a vehicle on the local network.
package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/grandcat/zeroconf"

	"github.com/banshee-data/fieldpilot/internal/monitoring"
	"github.com/banshee-data/fieldpilot/internal/version"
)

const (
	// ServiceType is the DNS-SD service type of the monitor.
	ServiceType = "_fieldpilot._tcp"
	// ServiceDomain is the mDNS domain.
	ServiceDomain = "local."
)

// registration is the part of *zeroconf.Server the advertiser uses.
type registration interface {
	Shutdown()
}

// registerFunc publishes a service record.
type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (registration, error)

func zeroconfRegister(instance, service, domain string, port int, text []string, ifaces []net.Interface) (registration, error) {
	return zeroconf.Register(instance, service, domain, port, text, ifaces)
}

// Advertiser publishes the monitor port while the planner runs.
type Advertiser struct {
	instance string
	port     int
	text     []string
	register registerFunc

	mu     sync.Mutex
	server registration
}

// NewAdvertiser returns an advertiser for port. An empty instance defaults to
// "<hostname>-fieldpilot". Extra TXT entries are appended after the version.
func NewAdvertiser(instance string, port int, txt ...string) *Advertiser {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "vehicle"
		}
		instance = host + "-fieldpilot"
	}
	text := append([]string{"version=" + version.Version}, txt...)
	return &Advertiser{instance: instance, port: port, text: text, register: zeroconfRegister}
}

// Instance is the advertised instance name.
func (a *Advertiser) Instance() string { return a.instance }

// Start registers the service record.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		return nil
	}
	srv, err := a.register(a.instance, ServiceType, ServiceDomain, a.port, a.text, nil)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}
	a.server = srv
	monitoring.Logf("advertising %s.%s%s on port %d", a.instance, ServiceType, ServiceDomain, a.port)
	return nil
}

// Stop withdraws the service record. It is safe to call more than once.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	monitoring.Logf("mDNS advertisement stopped")
}

// Running reports whether the record is published.
func (a *Advertiser) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// Run advertises until ctx is cancelled.
func (a *Advertiser) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	a.Stop()
	return nil
}
