package serialmux

import (
	"context"
	"net/http"
	"sync"
)

// DisabledSerialMux stands in for the vehicle link on a bench without
// hardware. Commands are counted and dropped; subscribers never receive a
// line but their channels close on Unsubscribe or Close.
type DisabledSerialMux struct {
	hub  *lineHub
	mu   sync.Mutex
	sent int
	last string
}

func NewDisabledSerialMux() *DisabledSerialMux {
	return &DisabledSerialMux{hub: newLineHub()}
}

func (d *DisabledSerialMux) Subscribe() (string, chan string) { return d.hub.subscribe() }

func (d *DisabledSerialMux) Unsubscribe(id string) { d.hub.unsubscribe(id) }

func (d *DisabledSerialMux) SendCommand(command string) error {
	d.mu.Lock()
	d.sent++
	d.last = command
	d.mu.Unlock()
	return nil
}

// Sent returns the number of dropped commands and the last one.
func (d *DisabledSerialMux) Sent() (int, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sent, d.last
}

func (d *DisabledSerialMux) Monitor(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (d *DisabledSerialMux) Close() error {
	d.hub.close()
	return nil
}

func (d *DisabledSerialMux) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/serial-disabled", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("vehicle link disabled"))
	})
}
