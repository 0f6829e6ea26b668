//go:build pcap
// +build pcap

package network

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"

	"github.com/banshee-data/fieldpilot/internal/monitoring"
)

// ReadPCAPFile replays the scan datagrams captured in pcapFile.
// This function is only available when building with the 'pcap' build tag.
func ReadPCAPFile(ctx context.Context, pcapFile string, udpPort int, handler ScanHandler, stats *ScanStats) error {
	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", pcapFile, err)
	}
	defer handle.Close()

	filter := fmt.Sprintf("udp port %d", udpPort)
	if err := handle.SetBPFFilter(filter); err != nil {
		return fmt.Errorf("failed to set BPF filter '%s': %w", filter, err)
	}

	start := time.Now()
	source := gopacket.NewPacketSource(handle, handle.LinkType())
	n, err := ReplayPackets(ctx, source.Packets(), udpPort, handler, stats)
	monitoring.Logf("PCAP replay of %s: %d scans in %v", pcapFile, n, time.Since(start))
	return err
}
