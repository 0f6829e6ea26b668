package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/fieldpilot/internal/monitoring"
	"github.com/banshee-data/fieldpilot/internal/planner/pipeline"
)

const (
	streamWriteWait  = 2 * time.Second
	streamPongWait   = 30 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
	streamQueue      = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Monitoring clients are served from arbitrary origins on the vehicle LAN.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// TickMessage is the compact per-tick record pushed to /ws clients.
type TickMessage struct {
	Time        time.Time `json:"time"`
	Tick        uint64    `json:"tick"`
	Planned     bool      `json:"planned"`
	SkipReason  string    `json:"skip_reason,omitempty"`
	LatencyMs   float64   `json:"latency_ms"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	Heading     float64   `json:"heading"`
	Speed       float64   `json:"speed"`
	Steering    float64   `json:"steering"`
	Commanded   float64   `json:"commanded"`
	GoalOffset  int       `json:"goal_offset"`
	Obstacles   int       `json:"obstacles"`
	Clearance   float64   `json:"clearance"`
	ClearanceOK bool      `json:"clearance_ok"`
	Held        bool      `json:"held"`
	Waypoint    int       `json:"waypoint"`
}

func newTickMessage(r *pipeline.TickResult) TickMessage {
	return TickMessage{
		Time:        r.Time,
		Tick:        r.Tick,
		Planned:     r.Planned,
		SkipReason:  r.SkipReason,
		LatencyMs:   float64(r.Latency) / float64(time.Millisecond),
		X:           r.Pose.X,
		Y:           r.Pose.Y,
		Heading:     r.Pose.Heading,
		Speed:       r.CurrentSpeed,
		Steering:    r.Command.SteeringAngle,
		Commanded:   r.Command.Speed,
		GoalOffset:  r.GoalOffset,
		Obstacles:   len(r.Obstacles),
		Clearance:   r.Clearance,
		ClearanceOK: r.ClearanceOK,
		Held:        r.Held,
		Waypoint:    r.Target.Index,
	}
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Stream fans tick messages out to websocket clients. A client that cannot
// keep up loses messages rather than slowing the loop.
type Stream struct {
	mu      sync.Mutex
	clients map[*streamClient]struct{}
	closed  bool
	dropped atomic.Uint64
}

// NewStream returns a stream with no clients.
func NewStream() *Stream {
	return &Stream{clients: make(map[*streamClient]struct{})}
}

// ObserveTick implements pipeline.TickObserver.
func (s *Stream) ObserveTick(r *pipeline.TickResult) {
	if r == nil {
		return
	}
	s.mu.Lock()
	n := len(s.clients)
	s.mu.Unlock()
	if n == 0 {
		return
	}
	b, err := json.Marshal(newTickMessage(r))
	if err != nil {
		monitoring.Debugf("stream: failed to encode tick %d: %v", r.Tick, err)
		return
	}
	s.broadcast(b)
}

func (s *Stream) broadcast(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- b:
		default:
			s.dropped.Add(1)
		}
	}
}

// Clients is the number of connected clients.
func (s *Stream) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Dropped is the number of messages not delivered to slow clients.
func (s *Stream) Dropped() uint64 { return s.dropped.Load() }

func (s *Stream) add(c *streamClient) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c] = struct{}{}
	return true
}

func (s *Stream) remove(c *streamClient) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
}

// Close disconnects every client and refuses new ones. Hijacked connections
// are not closed by http.Server.Shutdown.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// ServeHTTP upgrades the request and streams ticks until the client goes away.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("stream: websocket upgrade failed: %v", err)
		return
	}
	c := &streamClient{conn: conn, send: make(chan []byte, streamQueue)}
	if !s.add(c) {
		conn.Close()
		return
	}
	monitoring.Debugf("stream: client %s connected", r.RemoteAddr)

	go s.writePump(c)
	s.readPump(c)
}

// readPump discards client messages and unregisters the client on error.
func (s *Stream) readPump(c *streamClient) {
	defer func() {
		s.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Stream) writePump(c *streamClient) {
	ping := time.NewTicker(streamPingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case b, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
