package network

import (
	"sync/atomic"

	"github.com/banshee-data/fieldpilot/internal/monitoring"
)

// ScanStats counts traffic on the scan feed. It is safe for concurrent use.
type ScanStats struct {
	packets atomic.Uint64
	bytes   atomic.Uint64
	scans   atomic.Uint64
	bad     atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of ScanStats.
type StatsSnapshot struct {
	Packets uint64 `json:"packets"`
	Bytes   uint64 `json:"bytes"`
	Scans   uint64 `json:"scans"`
	Bad     uint64 `json:"bad"`
}

func (s *ScanStats) addPacket(n int) {
	s.packets.Add(1)
	s.bytes.Add(uint64(n))
}

func (s *ScanStats) addScan() { s.scans.Add(1) }
func (s *ScanStats) addBad()  { s.bad.Add(1) }

// Snapshot returns the current counters.
func (s *ScanStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Packets: s.packets.Load(),
		Bytes:   s.bytes.Load(),
		Scans:   s.scans.Load(),
		Bad:     s.bad.Load(),
	}
}

// LogStats writes the counters to the log.
func (s *ScanStats) LogStats() {
	snap := s.Snapshot()
	monitoring.Logf("scan feed: %d packets (%d bytes), %d scans, %d rejected",
		snap.Packets, snap.Bytes, snap.Scans, snap.Bad)
}
