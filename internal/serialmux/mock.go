package serialmux

import (
	"bytes"
	"errors"
	"sync"
)

// TestableSerialPort is an in-memory SerialPorter for tests.
type TestableSerialPort struct {
	mu sync.Mutex

	ReadBuffer  *bytes.Buffer
	WriteBuffer *bytes.Buffer
	// ReadError and WriteError are returned once by the next call.
	ReadError  error
	WriteError error
	// ShortWrites makes Write report one byte fewer than it was given.
	ShortWrites bool
	CloseError  error
	Closed      bool
	// BlockReads makes Read wait for data instead of returning EOF.
	BlockReads bool

	readCond *sync.Cond
}

var errPortClosed = errors.New("serial port closed")

// NewTestableSerialPort returns an empty port.
func NewTestableSerialPort() *TestableSerialPort {
	p := &TestableSerialPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

func (p *TestableSerialPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Closed {
		return 0, errPortClosed
	}
	if p.ReadError != nil {
		err := p.ReadError
		p.ReadError = nil
		return 0, err
	}
	for p.BlockReads && !p.Closed && p.ReadBuffer.Len() == 0 {
		p.readCond.Wait()
	}
	if p.Closed {
		return 0, errPortClosed
	}
	return p.ReadBuffer.Read(b)
}

func (p *TestableSerialPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Closed {
		return 0, errPortClosed
	}
	if p.WriteError != nil {
		err := p.WriteError
		p.WriteError = nil
		return 0, err
	}
	n, err := p.WriteBuffer.Write(b)
	if p.ShortWrites && n > 0 {
		n--
	}
	return n, err
}

func (p *TestableSerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	p.readCond.Broadcast()
	return p.CloseError
}

// AddReadData queues data for Read.
func (p *TestableSerialPort) AddReadData(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ReadBuffer.Write(data)
	p.readCond.Broadcast()
}

// Written returns everything written so far.
func (p *TestableSerialPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.WriteBuffer.String()
}
