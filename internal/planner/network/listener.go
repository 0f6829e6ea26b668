package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/banshee-data/fieldpilot/internal/monitoring"
	"github.com/banshee-data/fieldpilot/internal/planner/l1scan"
)

// ScanHandler receives every decoded scan.
type ScanHandler interface {
	HandleScan(s l1scan.RangeScan)
}

// ScanHandlerFunc adapts a function to ScanHandler.
type ScanHandlerFunc func(s l1scan.RangeScan)

// HandleScan calls f(s).
func (f ScanHandlerFunc) HandleScan(s l1scan.RangeScan) { f(s) }

// UDPListenerConfig configures a UDPListener.
type UDPListenerConfig struct {
	Address     string
	RcvBuf      int
	LogInterval time.Duration
	Handler     ScanHandler
	Stats       *ScanStats
	// SocketFactory defaults to RealUDPSocketFactory.
	SocketFactory UDPSocketFactory
}

// UDPListener receives scan datagrams and hands them to a ScanHandler.
type UDPListener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	handler     ScanHandler
	stats       *ScanStats
	factory     UDPSocketFactory
	warn        *monitoring.Every
}

// NewUDPListener creates a listener from config.
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	stats := config.Stats
	if stats == nil {
		stats = &ScanStats{}
	}
	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}
	factory := config.SocketFactory
	if factory == nil {
		factory = RealUDPSocketFactory{}
	}
	return &UDPListener{
		address:     config.Address,
		rcvBuf:      config.RcvBuf,
		logInterval: logInterval,
		handler:     config.Handler,
		stats:       stats,
		factory:     factory,
		warn:        monitoring.NewEvery(5 * time.Second),
	}
}

// Stats returns the listener's counters.
func (l *UDPListener) Stats() *ScanStats {
	return l.stats
}

// Start receives datagrams until ctx is done. It returns ctx.Err() on
// cancellation.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := l.factory.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			monitoring.Logf("Warning: failed to set UDP receive buffer size to %d: %v", l.rcvBuf, err)
		}
	}
	monitoring.Logf("scan listener started on %s", conn.LocalAddr())

	go l.logStats(ctx)

	buffer := make([]byte, 65536)
	for {
		if ctx.Err() != nil {
			monitoring.Logf("scan listener stopping")
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, from, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			l.warn.Logf("udp-read", "UDP read error: %v", err)
			continue
		}
		if err := l.handlePacket(buffer[:n]); err != nil {
			l.warn.Logf("bad-scan", "dropping datagram from %v: %v", from, err)
		}
	}
}

// handlePacket decodes one datagram. The buffer is reused, so the decoded
// scan owns its own range slice.
func (l *UDPListener) handlePacket(packet []byte) error {
	l.stats.addPacket(len(packet))
	scan, err := DecodeScan(packet)
	if err != nil {
		l.stats.addBad()
		return err
	}
	l.stats.addScan()
	if l.handler != nil {
		l.handler.HandleScan(scan)
	}
	return nil
}

func (l *UDPListener) logStats(ctx context.Context) {
	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.stats.LogStats()
		}
	}
}
