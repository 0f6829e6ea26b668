//go:build !pcap
// +build !pcap

package network

import (
	"context"
	"errors"
)

// ErrPCAPDisabled is returned when the binary was built without pcap support.
var ErrPCAPDisabled = errors.New("PCAP support not enabled: rebuild with -tags=pcap")

// ReadPCAPFile is a stub when PCAP support is disabled.
func ReadPCAPFile(ctx context.Context, pcapFile string, udpPort int, handler ScanHandler, stats *ScanStats) error {
	return ErrPCAPDisabled
}
