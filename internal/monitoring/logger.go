package monitoring

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

var debugEnabled atomic.Bool

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetDebug toggles Debugf output.
func SetDebug(on bool) {
	debugEnabled.Store(on)
}

// DebugEnabled reports whether Debugf currently emits anything.
func DebugEnabled() bool {
	return debugEnabled.Load()
}

// Debugf logs through Logf only when debug output is enabled.
func Debugf(format string, v ...interface{}) {
	if !debugEnabled.Load() {
		return
	}
	Logf("[debug] "+format, v...)
}

// Every rate-limits recurring log lines per key. A control loop running at
// 100 Hz would otherwise flood the log with the same sensor complaint.
type Every struct {
	mu         sync.Mutex
	interval   time.Duration
	now        func() time.Time
	last       map[string]time.Time
	suppressed map[string]int
}

// NewEvery returns a limiter that lets one line per key through per interval.
func NewEvery(interval time.Duration) *Every {
	return &Every{
		interval:   interval,
		now:        time.Now,
		last:       make(map[string]time.Time),
		suppressed: make(map[string]int),
	}
}

// Logf logs the formatted line if the key has not logged within the interval.
// Lines dropped in between are counted and reported with the next one.
// Returns true when the line was emitted.
func (e *Every) Logf(key, format string, v ...interface{}) bool {
	e.mu.Lock()
	now := e.now()
	last, seen := e.last[key]
	if seen && now.Sub(last) < e.interval {
		e.suppressed[key]++
		e.mu.Unlock()
		return false
	}
	dropped := e.suppressed[key]
	e.suppressed[key] = 0
	e.last[key] = now
	e.mu.Unlock()

	msg := fmt.Sprintf(format, v...)
	if dropped > 0 {
		msg = fmt.Sprintf("%s (%d similar suppressed)", msg, dropped)
	}
	Logf("%s", msg)
	return true
}
