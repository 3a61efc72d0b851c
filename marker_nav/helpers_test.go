package marker_nav

import (
	"context"
	"sync"
	"time"
)

// manualClock fires AfterFunc callbacks only when Advance passes their deadline.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock    *manualClock
	deadline time.Time
	f        func()
	done     bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, deadline: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs due callbacks synchronously.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.done && !t.deadline.After(c.now) {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

// Pending counts timers that have neither fired nor been stopped.
func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasPending := !t.done
	t.done = true
	return wasPending
}

// recordingTransport captures every payload written to it.
type recordingTransport struct {
	mu       sync.Mutex
	payloads []string
	sendErr  error
	closed   bool
}

func (r *recordingTransport) Send(payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return r.sendErr
	}
	r.payloads = append(r.payloads, string(payload))
	return nil
}

func (r *recordingTransport) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Tokens returns all payloads concatenated, e.g. "FFS".
func (r *recordingTransport) Tokens() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := ""
	for _, p := range r.payloads {
		out += p
	}
	return out
}

func (r *recordingTransport) Payloads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.payloads...)
}

func (r *recordingTransport) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// recordingSender captures commands handed to it by the arbiter.
type recordingSender struct {
	mu   sync.Mutex
	sent []MotionCommand
}

func (r *recordingSender) Send(cmd MotionCommand) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, cmd)
}

func (r *recordingSender) Sent() []MotionCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MotionCommand(nil), r.sent...)
}

// square builds a marker whose corners form an axis-aligned square.
func square(id, x, y, side int) MarkerObservation {
	fx, fy, fs := float64(x), float64(y), float64(side)
	return MarkerObservation{
		ID: id,
		Corners: []Point{
			{X: fx, Y: fy},
			{X: fx + fs, Y: fy},
			{X: fx + fs, Y: fy + fs},
			{X: fx, Y: fy + fs},
		},
	}
}

// scriptedSource replays detections and then fails with err.
type scriptedSource struct {
	frames []Detection
	next   int
	err    error
}

func (s *scriptedSource) Next(ctx context.Context) (Detection, error) {
	if s.next >= len(s.frames) {
		return Detection{}, s.err
	}
	d := s.frames[s.next]
	s.next++
	return d, nil
}

// idleSource never produces a frame; it waits for cancellation.
type idleSource struct{}

func (idleSource) Next(ctx context.Context) (Detection, error) {
	<-ctx.Done()
	return Detection{}, ctx.Err()
}

// scriptedKeys emits a fixed sequence of key events, then waits.
type scriptedKeys struct {
	events []KeyEvent
}

func (s scriptedKeys) Listen(ctx context.Context, out chan<- KeyEvent) error {
	for _, ev := range s.events {
		select {
		case out <- ev:
		case <-ctx.Done():
			return nil
		}
	}
	<-ctx.Done()
	return nil
}
