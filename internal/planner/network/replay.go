package network

import (
	"context"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/banshee-data/fieldpilot/internal/monitoring"
)

// ReplayPackets feeds the scan datagrams found in packets to handler. Only
// UDP payloads addressed to udpPort are considered; udpPort 0 accepts any
// port. It returns the number of scans delivered when packets is closed or
// ctx is done.
func ReplayPackets(ctx context.Context, packets <-chan gopacket.Packet, udpPort int, handler ScanHandler, stats *ScanStats) (int, error) {
	if stats == nil {
		stats = &ScanStats{}
	}
	delivered := 0
	for {
		select {
		case <-ctx.Done():
			return delivered, ctx.Err()
		case packet, ok := <-packets:
			if !ok || packet == nil {
				return delivered, nil
			}
			udpLayer := packet.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue
			}
			udp, ok := udpLayer.(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}
			if udpPort != 0 && int(udp.DstPort) != udpPort {
				continue
			}
			stats.addPacket(len(udp.Payload))
			scan, err := DecodeScan(udp.Payload)
			if err != nil {
				stats.addBad()
				monitoring.Debugf("replay: skipping packet: %v", err)
				continue
			}
			stats.addScan()
			if md := packet.Metadata(); md != nil && !md.Timestamp.IsZero() && scan.Stamp.IsZero() {
				scan.Stamp = md.Timestamp
			}
			if handler != nil {
				handler.HandleScan(scan)
			}
			delivered++
		}
	}
}
