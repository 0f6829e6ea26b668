package network

import (
	"net"
	"sync"
	"time"
)

// UDPSocket is the part of *net.UDPConn the listener uses, so tests can run
// without a real socket.
type UDPSocket interface {
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)
	SetReadBuffer(bytes int) error
	SetReadDeadline(t time.Time) error
	Close() error
	LocalAddr() net.Addr
}

// UDPSocketFactory opens UDP sockets.
type UDPSocketFactory interface {
	ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error)
}

// RealUDPSocketFactory opens sockets with net.ListenUDP.
type RealUDPSocketFactory struct{}

// ListenUDP opens a UDP socket on laddr.
func (RealUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// MockUDPSocket replays queued datagrams. Once the queue is drained reads
// time out, like an idle socket with a deadline.
type MockUDPSocket struct {
	mu sync.Mutex

	Packets   [][]byte
	ReadIndex int
	Closed    bool
	// ReadError is returned once by the next read.
	ReadError          error
	ReadBufferSize     int
	SetReadBufferError error
	Deadline           time.Time
	Local              *net.UDPAddr
	From               *net.UDPAddr
}

// NewMockUDPSocket returns a socket that yields packets in order.
func NewMockUDPSocket(packets ...[]byte) *MockUDPSocket {
	return &MockUDPSocket{
		Packets: packets,
		Local:   &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 7510},
		From:    &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000},
	}
}

// Push queues another datagram.
func (m *MockUDPSocket) Push(b []byte) {
	m.mu.Lock()
	m.Packets = append(m.Packets, b)
	m.mu.Unlock()
}

// Drained reports whether every queued datagram has been read.
func (m *MockUDPSocket) Drained() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ReadIndex >= len(m.Packets)
}

func (m *MockUDPSocket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return 0, nil, net.ErrClosed
	}
	if m.ReadError != nil {
		err := m.ReadError
		m.ReadError = nil
		return 0, nil, err
	}
	if m.ReadIndex >= len(m.Packets) {
		// Yield so a polling reader does not spin hot in tests.
		m.mu.Unlock()
		time.Sleep(time.Millisecond)
		m.mu.Lock()
		return 0, nil, &net.OpError{Op: "read", Net: "udp", Err: timeoutError{}}
	}
	n := copy(b, m.Packets[m.ReadIndex])
	m.ReadIndex++
	return n, m.From, nil
}

func (m *MockUDPSocket) SetReadBuffer(bytes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetReadBufferError != nil {
		return m.SetReadBufferError
	}
	m.ReadBufferSize = bytes
	return nil
}

func (m *MockUDPSocket) SetReadDeadline(t time.Time) error {
	m.mu.Lock()
	m.Deadline = t
	m.mu.Unlock()
	return nil
}

func (m *MockUDPSocket) Close() error {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
	return nil
}

func (m *MockUDPSocket) LocalAddr() net.Addr {
	return m.Local
}

// MockUDPSocketFactory hands out one prepared socket.
type MockUDPSocketFactory struct {
	Socket *MockUDPSocket
	Error  error
	// Addrs records every address passed to ListenUDP.
	Addrs []*net.UDPAddr
}

func (f *MockUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	f.Addrs = append(f.Addrs, laddr)
	if f.Error != nil {
		return nil, f.Error
	}
	return f.Socket, nil
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
