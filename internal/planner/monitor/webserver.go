// Package monitor serves the planner's live state over HTTP: health, the last
// tick as JSON, field and history charts, and a websocket tick stream. It also
// publishes liveness through the gRPC health protocol.
package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/fieldpilot/internal/config"
	"github.com/banshee-data/fieldpilot/internal/httputil"
	"github.com/banshee-data/fieldpilot/internal/monitoring"
	"github.com/banshee-data/fieldpilot/internal/planner/pipeline"
	"github.com/banshee-data/fieldpilot/internal/units"
	"github.com/banshee-data/fieldpilot/internal/version"
)

// LoopView is the read side of the control loop.
type LoopView interface {
	Last() (*pipeline.TickResult, bool)
	State() pipeline.ControllerState
}

// WebServer handles the HTTP monitoring interface.
type WebServer struct {
	address string
	loop    LoopView
	tuning  *config.TuningConfig
	history *History
	stream  *Stream
	health  *Health
	extra   func(mux *http.ServeMux)
	server  *http.Server
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address string
	Loop    LoopView
	Tuning  *config.TuningConfig
	// History, Stream and Health are optional.
	History *History
	Stream  *Stream
	Health  *Health
	// Routes mounts additional handlers, such as the admin debug routes.
	Routes func(mux *http.ServeMux)
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(cfg WebServerConfig) *WebServer {
	ws := &WebServer{
		address: cfg.Address,
		loop:    cfg.Loop,
		tuning:  cfg.Tuning,
		history: cfg.History,
		stream:  cfg.Stream,
		health:  cfg.Health,
		extra:   cfg.Routes,
	}
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws
}

// Handler returns the route table.
func (ws *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/state", ws.handleState)
	mux.HandleFunc("/api/config", ws.handleConfig)
	mux.HandleFunc("/api/history", ws.handleHistory)
	mux.HandleFunc("/debug/field", ws.handleField)
	mux.HandleFunc("/debug/history.png", ws.handleHistoryPlot) // ?units=mps|mph|kph
	if ws.stream != nil {
		mux.Handle("/ws", ws.stream)
	}
	if ws.extra != nil {
		ws.extra(mux)
	}
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", ws.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ws.address, err)
	}
	return ws.serve(ctx, lis)
}

func (ws *WebServer) serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("Starting HTTP server on %s", lis.Addr())
		errCh <- ws.server.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	if ws.stream != nil {
		ws.stream.Close()
	}
	<-errCh
	monitoring.Logf("HTTP server routine stopped")
	return nil
}

// Close shuts down the web server.
func (ws *WebServer) Close() error {
	return ws.server.Close()
}

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Service:   "fieldpilot",
		Version:   version.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if ws.health != nil && !ws.health.Serving() {
		resp.Status = "stale"
		httputil.WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	httputil.WriteJSONOK(w, resp)
}

type stateResponse struct {
	State pipeline.ControllerState `json:"state"`
	Last  *pipeline.TickResult     `json:"last,omitempty"`
}

func (ws *WebServer) handleState(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	resp := stateResponse{State: ws.loop.State()}
	if last, ok := ws.loop.Last(); ok {
		resp.Last = last
	}
	httputil.WriteJSONOK(w, resp)
}

func (ws *WebServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	if ws.tuning == nil {
		httputil.NotFound(w, "no tuning loaded")
		return
	}
	httputil.WriteJSONOK(w, ws.tuning)
}

func (ws *WebServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if ws.history == nil {
		httputil.NotFound(w, "history disabled")
		return
	}
	httputil.WriteJSONOK(w, ws.history.Snapshot())
}

// lastPlanned returns the last tick if it carries a field.
func (ws *WebServer) lastPlanned() (*pipeline.TickResult, bool) {
	last, ok := ws.loop.Last()
	if !ok || !last.Planned || len(last.Field.Total) == 0 {
		return nil, false
	}
	return last, true
}

// handleField renders the repulsive, attractive and total field over the
// detection window of the last planned tick.
func (ws *WebServer) handleField(w http.ResponseWriter, r *http.Request) {
	last, ok := ws.lastPlanned()
	if !ok {
		httputil.NotFound(w, "no planned tick yet")
		return
	}

	win := last.Window
	n := len(last.Field.Total)
	if win.Start < 0 {
		win.Start = 0
	}
	if win.End > n || win.End <= win.Start {
		win.End = n
	}

	xs := make([]int, 0, win.End-win.Start)
	rep := make([]opts.LineData, 0, win.End-win.Start)
	att := make([]opts.LineData, 0, win.End-win.Start)
	tot := make([]opts.LineData, 0, win.End-win.Start)
	for i := win.Start; i < win.End; i++ {
		xs = append(xs, i)
		rep = append(rep, opts.LineData{Value: last.Field.Repulsive[i]})
		att = append(att, opts.LineData{Value: last.Field.Attractive[i]})
		tot = append(tot, opts.LineData{Value: last.Field.Total[i]})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Potential field", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Potential field",
			Subtitle: fmt.Sprintf("tick=%d goal_ray=%d offset=%d obstacles=%d", last.Tick, last.GoalRay, last.GoalOffset, len(last.Obstacles)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "ray", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "field"}),
	)
	line.SetXAxis(xs).
		AddSeries("repulsive", rep).
		AddSeries("attractive", att).
		AddSeries("total", tot)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (ws *WebServer) handleHistoryPlot(w http.ResponseWriter, r *http.Request) {
	if ws.history == nil {
		httputil.NotFound(w, "history disabled")
		return
	}
	unit, err := units.Parse(r.URL.Query().Get("units"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	var buf bytes.Buffer
	if err := RenderHistoryPNG(&buf, ws.history.Snapshot(), unit); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render history: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
