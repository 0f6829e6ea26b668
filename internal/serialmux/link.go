package serialmux

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/banshee-data/fieldpilot/internal/monitoring"
	"github.com/banshee-data/fieldpilot/internal/planner/l4drive"
	"github.com/banshee-data/fieldpilot/internal/planner/pipeline"
)

// OdometryHandler receives decoded odometry reports.
type OdometryHandler interface {
	HandleOdometry(o pipeline.Odometry)
}

// LinkStats counts link traffic.
type LinkStats struct {
	Odometry   uint64 `json:"odometry"`
	BadLines   uint64 `json:"bad_lines"`
	Other      uint64 `json:"other"`
	Sent       uint64 `json:"sent"`
	SendErrors uint64 `json:"send_errors"`
}

// VehicleLink speaks the drive/odometry protocol over a SerialMuxInterface.
// It is the loop's CommandSink and feeds odometry to an OdometryHandler.
type VehicleLink struct {
	mux     SerialMuxInterface
	handler OdometryHandler
	warn    *monitoring.Every

	odometry   atomic.Uint64
	badLines   atomic.Uint64
	other      atomic.Uint64
	sent       atomic.Uint64
	sendErrors atomic.Uint64
}

// NewVehicleLink returns a link over mux. handler may be nil.
func NewVehicleLink(mux SerialMuxInterface, handler OdometryHandler) *VehicleLink {
	return &VehicleLink{
		mux:     mux,
		handler: handler,
		warn:    monitoring.NewEvery(5 * time.Second),
	}
}

// SendDrive writes cmd as a drive line.
func (l *VehicleLink) SendDrive(cmd l4drive.Command) error {
	if err := l.mux.SendCommand(FormatDrive(cmd)); err != nil {
		l.sendErrors.Add(1)
		return fmt.Errorf("failed to send drive command: %w", err)
	}
	l.sent.Add(1)
	return nil
}

// Run consumes link lines until ctx is done or the mux closes.
func (l *VehicleLink) Run(ctx context.Context) error {
	id, lines := l.mux.Subscribe()
	defer l.mux.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			l.HandleLine(line)
		}
	}
}

// HandleLine processes one line read from the link.
func (l *VehicleLink) HandleLine(line string) {
	switch ClassifyLine(line) {
	case LineOdometry:
		o, err := ParseOdometry(line)
		if err != nil {
			l.badLines.Add(1)
			l.warn.Logf("bad-odom", "ODOM ERR: %v: %q", err, line)
			return
		}
		l.odometry.Add(1)
		if l.handler != nil {
			l.handler.HandleOdometry(o)
		}
	default:
		l.other.Add(1)
		monitoring.Debugf("link: ignoring %q", line)
	}
}

// Stats returns the link counters.
func (l *VehicleLink) Stats() LinkStats {
	return LinkStats{
		Odometry:   l.odometry.Load(),
		BadLines:   l.badLines.Load(),
		Other:      l.other.Load(),
		Sent:       l.sent.Load(),
		SendErrors: l.sendErrors.Load(),
	}
}
