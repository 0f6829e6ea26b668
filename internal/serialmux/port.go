package serialmux

import "io"

// SerialPorter is the minimal port the mux needs.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}
