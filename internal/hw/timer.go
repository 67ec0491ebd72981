package hw

import (
	"sync"
	"time"

	sdi12wsn "github.com/jkennedy-usgs/sdi12wsn"
)

// DeadlineSink is notified once an armed deadline elapses, matching the
// core's OnDeadline contract.
type DeadlineSink interface {
	OnDeadline()
}

// Timer is a [sdi12wsn.TimedEventSource] backed by a real monotonic
// clock. Go's own timer resolution is well under a microsecond on every
// platform this bridge targets, so ElapsedUs can be read directly from
// time.Since rather than a prescaled hardware counter.
type Timer struct {
	mu      sync.Mutex
	armedAt time.Time
	pending uint32 // microseconds requested, 0 if disabled

	timer *time.Timer
	sink  DeadlineSink
}

// NewTimer constructs a Timer. SetSink must be called before the first
// Arm, since the engine that owns the deadline callback is typically
// constructed with this Timer as one of its own dependencies.
func NewTimer() *Timer {
	return &Timer{}
}

// SetSink assigns the callback invoked when an armed deadline elapses.
func (t *Timer) SetSink(sink DeadlineSink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sink = sink
}

func (t *Timer) Arm(deadlineUs uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.armedAt = time.Now()
	t.pending = deadlineUs
	t.timer = time.AfterFunc(time.Duration(deadlineUs)*time.Microsecond, t.fire)
}

func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending == 0 {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.armedAt = time.Now()
	t.timer = time.AfterFunc(time.Duration(t.pending)*time.Microsecond, t.fire)
}

func (t *Timer) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.pending = 0
}

func (t *Timer) ElapsedUs() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return uint32(time.Since(t.armedAt).Microseconds())
}

func (t *Timer) fire() {
	t.mu.Lock()
	sink := t.sink
	t.mu.Unlock()
	if sink != nil {
		sink.OnDeadline()
	}
}

var _ sdi12wsn.TimedEventSource = (*Timer)(nil)
