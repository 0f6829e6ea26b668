package monitor

import (
	"sync"

	"github.com/banshee-data/fieldpilot/internal/planner/pipeline"
)

// HistorySize is the number of samples kept per series.
const HistorySize = 750

// ring is a fixed-capacity buffer that overwrites its oldest value.
type ring struct {
	buf  []float64
	next int
	full bool
}

func newRing(n int) ring { return ring{buf: make([]float64, n)} }

func (r *ring) push(v float64) {
	r.buf[r.next] = v
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

// values returns the buffer oldest first.
func (r *ring) values() []float64 {
	if !r.full {
		return append([]float64(nil), r.buf[:r.next]...)
	}
	out := make([]float64, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

// HistorySnapshot holds the sampled series, oldest first.
type HistorySnapshot struct {
	Repulsive    []float64 `json:"repulsive"`
	Attractive   []float64 `json:"attractive"`
	Total        []float64 `json:"total"`
	Commanded    []float64 `json:"commanded"`
	CurrentSpeed []float64 `json:"current_speed"`
}

// Len is the number of samples in the snapshot.
func (s HistorySnapshot) Len() int { return len(s.Total) }

// History keeps rolling series of the field values at the chosen goal ray and
// of the commanded against measured speed. It samples only the ticks the loop
// marks with SampleHistory.
type History struct {
	mu         sync.Mutex
	repulsive  ring
	attractive ring
	total      ring
	commanded  ring
	current    ring
}

// NewHistory returns an empty history of HistorySize samples per series.
func NewHistory() *History {
	return newHistory(HistorySize)
}

func newHistory(n int) *History {
	return &History{
		repulsive:  newRing(n),
		attractive: newRing(n),
		total:      newRing(n),
		commanded:  newRing(n),
		current:    newRing(n),
	}
}

// ObserveTick implements pipeline.TickObserver.
func (h *History) ObserveTick(r *pipeline.TickResult) {
	if r == nil || !r.Planned || !r.SampleHistory {
		return
	}
	g := r.GoalRay
	if g < 0 || g >= len(r.Field.Total) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.repulsive.push(r.Field.Repulsive[g])
	h.attractive.push(r.Field.Attractive[g])
	h.total.push(r.Field.Total[g])
	h.commanded.push(r.Command.Speed)
	h.current.push(r.CurrentSpeed)
}

// Snapshot copies the series.
func (h *History) Snapshot() HistorySnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HistorySnapshot{
		Repulsive:    h.repulsive.values(),
		Attractive:   h.attractive.values(),
		Total:        h.total.values(),
		Commanded:    h.commanded.values(),
		CurrentSpeed: h.current.values(),
	}
}
