package network

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/banshee-data/fieldpilot/internal/monitoring"
	"github.com/banshee-data/fieldpilot/internal/planner/pipeline"
)

// MarkerForwarder sends the lookahead marker to a visualiser as
// "marker,<x>,<y>,<z>" datagrams. Sends never block the control loop; when
// the queue is full the marker is dropped.
type MarkerForwarder struct {
	conn        io.WriteCloser
	queue       chan []byte
	logInterval time.Duration
	address     string
	dropped     atomic.Uint64
	sent        atomic.Uint64
}

// NewMarkerForwarder dials addr:port over UDP.
func NewMarkerForwarder(addr string, port int, logInterval time.Duration) (*MarkerForwarder, error) {
	address := net.JoinHostPort(addr, strconv.Itoa(port))
	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve marker address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create marker connection: %w", err)
	}
	return NewMarkerForwarderConn(conn, address, logInterval), nil
}

// NewMarkerForwarderConn forwards over an existing connection.
func NewMarkerForwarderConn(conn io.WriteCloser, address string, logInterval time.Duration) *MarkerForwarder {
	if logInterval <= 0 {
		logInterval = time.Minute
	}
	return &MarkerForwarder{
		conn:        conn,
		queue:       make(chan []byte, 64),
		logInterval: logInterval,
		address:     address,
	}
}

// Start runs the send loop until ctx is done.
func (f *MarkerForwarder) Start(ctx context.Context) {
	go func() {
		failed := 0
		var lastErr error
		ticker := time.NewTicker(f.logInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case b := <-f.queue:
				if _, err := f.conn.Write(b); err != nil {
					failed++
					lastErr = err
					f.dropped.Add(1)
					continue
				}
				f.sent.Add(1)
			case <-ticker.C:
				if failed > 0 {
					monitoring.Logf("dropped %d markers to %s (latest: %v)", failed, f.address, lastErr)
					failed = 0
					lastErr = nil
				}
			}
		}
	}()
	monitoring.Logf("forwarding lookahead markers to %s", f.address)
}

// PublishMarker queues m for sending.
func (f *MarkerForwarder) PublishMarker(m pipeline.Marker) error {
	select {
	case f.queue <- FormatMarker(m):
	default:
		f.dropped.Add(1)
	}
	return nil
}

// Dropped returns how many markers were not delivered.
func (f *MarkerForwarder) Dropped() uint64 { return f.dropped.Load() }

// Sent returns how many markers were written.
func (f *MarkerForwarder) Sent() uint64 { return f.sent.Load() }

// Close closes the connection.
func (f *MarkerForwarder) Close() error {
	return f.conn.Close()
}

// FormatMarker renders the datagram payload for m.
func FormatMarker(m pipeline.Marker) []byte {
	b := make([]byte, 0, 48)
	b = append(b, "marker,"...)
	b = strconv.AppendFloat(b, m.X, 'f', 4, 64)
	b = append(b, ',')
	b = strconv.AppendFloat(b, m.Y, 'f', 4, 64)
	b = append(b, ',')
	b = strconv.AppendFloat(b, m.Z, 'f', 4, 64)
	return b
}
