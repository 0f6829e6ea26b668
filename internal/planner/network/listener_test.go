package network

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fieldpilot/internal/monitoring"
	"github.com/banshee-data/fieldpilot/internal/planner/l1scan"
)

func muteLogs(t *testing.T) {
	t.Helper()
	orig := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = orig })
}

type scanCollector struct {
	mu    sync.Mutex
	scans []l1scan.RangeScan
}

func (c *scanCollector) HandleScan(s l1scan.RangeScan) {
	c.mu.Lock()
	c.scans = append(c.scans, s)
	c.mu.Unlock()
}

func (c *scanCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.scans)
}

func encode(t *testing.T, seq uint32, ranges ...float64) []byte {
	t.Helper()
	b, err := EncodeScan(l1scan.RangeScan{Seq: seq, AngleIncrement: 0.00435, Ranges: ranges})
	require.NoError(t, err)
	return b
}

func TestUDPListener_DeliversScans(t *testing.T) {
	muteLogs(t)
	sock := NewMockUDPSocket(
		encode(t, 1, 1, 2, 3),
		[]byte("garbage"),
		encode(t, 2, 4, 5, 6),
	)
	sock.ReadError = errors.New("transient")
	factory := &MockUDPSocketFactory{Socket: sock}
	collector := &scanCollector{}

	l := NewUDPListener(UDPListenerConfig{
		Address:       "127.0.0.1:7510",
		RcvBuf:        1 << 20,
		Handler:       collector,
		SocketFactory: factory,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	require.Eventually(t, sock.Drained, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}

	require.Equal(t, 2, collector.count())
	assert.Equal(t, uint32(1), collector.scans[0].Seq)
	assert.Equal(t, []float64{4, 5, 6}, collector.scans[1].Ranges)

	snap := l.Stats().Snapshot()
	assert.Equal(t, uint64(3), snap.Packets)
	assert.Equal(t, uint64(2), snap.Scans)
	assert.Equal(t, uint64(1), snap.Bad)

	assert.True(t, sock.Closed)
	assert.Equal(t, 1<<20, sock.ReadBufferSize)
	require.Len(t, factory.Addrs, 1)
	assert.Equal(t, 7510, factory.Addrs[0].Port)
}

func TestUDPListener_ListenError(t *testing.T) {
	l := NewUDPListener(UDPListenerConfig{
		Address:       "127.0.0.1:7510",
		SocketFactory: &MockUDPSocketFactory{Error: errors.New("address in use")},
	})
	err := l.Start(context.Background())
	assert.ErrorContains(t, err, "address in use")
}

func TestUDPListener_BadAddress(t *testing.T) {
	l := NewUDPListener(UDPListenerConfig{Address: "not an address"})
	assert.Error(t, l.Start(context.Background()))
}

func TestUDPListener_DecodedScanOwnsRanges(t *testing.T) {
	collector := &scanCollector{}
	l := NewUDPListener(UDPListenerConfig{Handler: collector})

	buf := encode(t, 1, 7, 8)
	require.NoError(t, l.handlePacket(buf))
	for i := range buf {
		buf[i] = 0
	}
	assert.Equal(t, []float64{7, 8}, collector.scans[0].Ranges)
}

func TestScanHandlerFunc(t *testing.T) {
	var got uint32
	ScanHandlerFunc(func(s l1scan.RangeScan) { got = s.Seq }).HandleScan(l1scan.RangeScan{Seq: 9})
	assert.Equal(t, uint32(9), got)
}
