// Package serialmux multiplexes the vehicle's serial link: odometry lines
// read from the port fan out to subscribers, and drive commands from any
// caller are written to the port one at a time.
package serialmux

import (
	"bufio"
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"sync"

	"tailscale.com/tsweb"
)

// ErrWriteFailed is returned when the port accepts only part of a command.
var ErrWriteFailed = errors.New("failed to write to serial port")

//go:embed templates/*
var adminTemplateFS embed.FS

var sendDriveTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/send-drive.html.tmpl"))

// SerialMux fans lines from one serial port out to many subscribers.
type SerialMux[T SerialPorter] struct {
	port    T
	hub     *lineHub
	writeMu sync.Mutex
}

// SerialMuxInterface is what the rest of the program needs from a link.
type SerialMuxInterface interface {
	// Subscribe returns a channel of lines read from the port and the ID to
	// unsubscribe it with.
	Subscribe() (string, chan string)
	Unsubscribe(string)
	// SendCommand writes one newline-terminated line to the port.
	SendCommand(string) error
	// Monitor reads lines until ctx is done or the port fails.
	Monitor(context.Context) error
	// Close closes every subscriber channel and the port.
	Close() error
	// AttachAdminRoutes mounts the /debug/ link tools on mux.
	AttachAdminRoutes(*http.ServeMux)
}

// NewSerialMux wraps port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{port: port, hub: newLineHub()}
}

// Subscribe registers a new line channel. The channel is unbuffered and a
// subscriber that is not ready when a line arrives misses it. After Close
// the channel is returned already closed.
func (s *SerialMux[T]) Subscribe() (string, chan string) { return s.hub.subscribe() }

// Unsubscribe closes and removes a subscriber.
func (s *SerialMux[T]) Unsubscribe(id string) { s.hub.unsubscribe(id) }

// SendCommand writes command to the port, appending a newline if needed.
func (s *SerialMux[T]) SendCommand(command string) error {
	line := []byte(strings.TrimSuffix(command, "\n") + "\n")

	s.writeMu.Lock()
	n, err := s.port.Write(line)
	s.writeMu.Unlock()
	switch {
	case err != nil:
		return err
	case n != len(line):
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads lines from the port and delivers them to subscribers. It
// returns nil when the port reaches EOF or the mux is closed.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go s.readLines(ctx, lines, readErr)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if !s.hub.deliver(line) {
				return nil
			}
		}
	}
}

// readLines owns the blocking scanner so Monitor can always observe ctx.
func (s *SerialMux[T]) readLines(ctx context.Context, lines chan<- string, readErr chan<- error) {
	defer close(lines)
	scan := bufio.NewScanner(s.port)
	for scan.Scan() {
		select {
		case lines <- scan.Text():
		case <-ctx.Done():
			return
		}
	}
	if err := scan.Err(); err != nil {
		select {
		case readErr <- err:
		case <-ctx.Done():
		}
	}
}

// Close closes all subscriber channels and the port.
func (s *SerialMux[T]) Close() error {
	s.hub.close()
	return s.port.Close()
}

// AttachAdminRoutes mounts a manual drive form, a command API and a live
// tail of the link under /debug/. tsweb limits these to loopback and
// tailnet clients.
func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	attachAdminRoutes(mux, s)
}

func attachAdminRoutes(mux *http.ServeMux, link SerialMuxInterface) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("send-drive", "send a manual drive command to the vehicle", serveDriveForm)
	debug.HandleSilentFunc("send-command-api", commandHandler(link))
	debug.HandleSilentFunc("tail", tailHandler(link))
	debug.HandleSilentFunc("tail.js", serveTailScript)
}

func serveDriveForm(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := sendDriveTemplate.Execute(&buf, nil); err != nil {
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// commandHandler writes one posted line to the link. Drive lines are parsed
// first so a malformed manual command never reaches the vehicle.
func commandHandler(link SerialMuxInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		if strings.HasPrefix(command, drivePrefix) {
			if _, err := ParseDrive(command); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		if err := link.SendCommand(command); err != nil {
			http.Error(w, "Failed to write command", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "Wrote command %q to serial port", command)
	}
}

// tailHandler streams link lines as server-sent events until the client
// leaves or the link closes.
func tailHandler(link SerialMuxInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}
		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")

		id, lines := link.Subscribe()
		defer link.Unsubscribe(id)

		_, _ = io.WriteString(w, ": ping\n\n")
		flusher.Flush()
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", line); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	}
}

func serveTailScript(w http.ResponseWriter, r *http.Request) {
	b, err := adminTemplateFS.ReadFile("templates/tail.js")
	if err != nil {
		http.Error(w, "Failed to open tail.js", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(b)
}
