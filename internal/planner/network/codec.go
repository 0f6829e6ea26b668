package network

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/fieldpilot/internal/planner/l1scan"
)

// ErrBadScanPacket is returned for datagrams that are not a valid scan.
var ErrBadScanPacket = errors.New("bad scan packet")

// Scan datagram layout, little-endian:
//
//	0   magic "RSCN"
//	4   version uint16
//	6   reserved uint16
//	8   seq uint32
//	12  stamp int64, unix nanoseconds
//	20  angle min, max, increment float64
//	44  range min, max float64
//	60  count uint32
//	64  count x float32 ranges
const (
	scanMagic      = "RSCN"
	scanVersion    = 1
	scanHeaderSize = 64
	// MaxScanRays keeps a scan inside one UDP datagram.
	MaxScanRays = (65507 - scanHeaderSize) / 4
)

// EncodeScan serialises s into a datagram.
func EncodeScan(s l1scan.RangeScan) ([]byte, error) {
	if len(s.Ranges) > MaxScanRays {
		return nil, fmt.Errorf("scan of %d rays exceeds %d: %w", len(s.Ranges), MaxScanRays, ErrBadScanPacket)
	}
	buf := make([]byte, scanHeaderSize+4*len(s.Ranges))
	copy(buf[0:4], scanMagic)
	le := binary.LittleEndian
	le.PutUint16(buf[4:], scanVersion)
	le.PutUint32(buf[8:], s.Seq)
	var stamp int64
	if !s.Stamp.IsZero() {
		stamp = s.Stamp.UnixNano()
	}
	le.PutUint64(buf[12:], uint64(stamp))
	le.PutUint64(buf[20:], math.Float64bits(s.AngleMin))
	le.PutUint64(buf[28:], math.Float64bits(s.AngleMax))
	le.PutUint64(buf[36:], math.Float64bits(s.AngleIncrement))
	le.PutUint64(buf[44:], math.Float64bits(s.RangeMin))
	le.PutUint64(buf[52:], math.Float64bits(s.RangeMax))
	le.PutUint32(buf[60:], uint32(len(s.Ranges)))

	off := scanHeaderSize
	for _, r := range s.Ranges {
		le.PutUint32(buf[off:], math.Float32bits(float32(r)))
		off += 4
	}
	return buf, nil
}

// DecodeScan parses a datagram produced by EncodeScan. Ranges keep whatever
// the sensor sent, including NaN and Inf; repair is the filter's job.
func DecodeScan(b []byte) (l1scan.RangeScan, error) {
	if len(b) < scanHeaderSize {
		return l1scan.RangeScan{}, fmt.Errorf("short datagram of %d bytes: %w", len(b), ErrBadScanPacket)
	}
	if string(b[0:4]) != scanMagic {
		return l1scan.RangeScan{}, fmt.Errorf("magic %q: %w", b[0:4], ErrBadScanPacket)
	}
	le := binary.LittleEndian
	if v := le.Uint16(b[4:]); v != scanVersion {
		return l1scan.RangeScan{}, fmt.Errorf("unsupported version %d: %w", v, ErrBadScanPacket)
	}
	count := int(le.Uint32(b[60:]))
	if count > MaxScanRays || len(b) != scanHeaderSize+4*count {
		return l1scan.RangeScan{}, fmt.Errorf("count %d does not match %d byte datagram: %w", count, len(b), ErrBadScanPacket)
	}

	s := l1scan.RangeScan{
		Seq:            le.Uint32(b[8:]),
		AngleMin:       math.Float64frombits(le.Uint64(b[20:])),
		AngleMax:       math.Float64frombits(le.Uint64(b[28:])),
		AngleIncrement: math.Float64frombits(le.Uint64(b[36:])),
		RangeMin:       math.Float64frombits(le.Uint64(b[44:])),
		RangeMax:       math.Float64frombits(le.Uint64(b[52:])),
		Ranges:         make([]float64, count),
	}
	if ns := int64(le.Uint64(b[12:])); ns != 0 {
		s.Stamp = time.Unix(0, ns)
	}
	off := scanHeaderSize
	for i := range s.Ranges {
		s.Ranges[i] = float64(math.Float32frombits(le.Uint32(b[off:])))
		off += 4
	}
	return s, nil
}
