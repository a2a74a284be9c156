package stream

import (
	"context"
	"sync"
	"time"

	"github.com/mxw13579/logstream-server/internal/remote"
)

// fakeStream is a scriptable LineStream. send feeds lines, end terminates
// the stream with an optional error, Close records the interrupt and closes
// the line channel the way a torn-down remote channel would.
type fakeStream struct {
	lines chan string

	mu      sync.Mutex
	err     error
	closed  bool
	endOnce sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{lines: make(chan string, 128)}
}

func (f *fakeStream) Lines() <-chan string { return f.lines }

func (f *fakeStream) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.endOnce.Do(func() { close(f.lines) })
	return nil
}

func (f *fakeStream) send(line string) { f.lines <- line }

func (f *fakeStream) end(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
	f.endOnce.Do(func() { close(f.lines) })
}

// closeWithErr simulates an interrupt surfacing as a read error.
func (f *fakeStream) closeWithErr(err error) error {
	f.mu.Lock()
	f.closed = true
	f.err = err
	f.mu.Unlock()
	f.endOnce.Do(func() { close(f.lines) })
	return nil
}

func (f *fakeStream) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeExecutor records every opened stream and scripted one-shot results.
type fakeExecutor struct {
	mu       sync.Mutex
	streams  []*fakeStream
	commands []string
	openErr  error
	runRes   remote.ExecResult
	runErr   error
}

func (e *fakeExecutor) Run(_ context.Context, _ remote.Conn, command string) (remote.ExecResult, error) {
	e.mu.Lock()
	e.commands = append(e.commands, command)
	e.mu.Unlock()
	return e.runRes, e.runErr
}

func (e *fakeExecutor) OpenStream(_ context.Context, _ remote.Conn, command string) (remote.LineStream, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = append(e.commands, command)
	if e.openErr != nil {
		return nil, e.openErr
	}
	s := newFakeStream()
	e.streams = append(e.streams, s)
	return s, nil
}

func (e *fakeExecutor) stream(i int) *fakeStream {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.streams[i]
}

func (e *fakeExecutor) streamCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.streams)
}

func (e *fakeExecutor) lastCommand() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.commands) == 0 {
		return ""
	}
	return e.commands[len(e.commands)-1]
}

func connFixture() remote.Conn {
	return remote.Conn{Host: "10.0.0.7", Port: 22, User: "ops"}
}

// fakeDirectory resolves every session to a static connection.
type fakeDirectory struct {
	err error
}

func (d *fakeDirectory) Resolve(_ context.Context, _ string) (remote.Conn, error) {
	if d.err != nil {
		return remote.Conn{}, d.err
	}
	return remote.Conn{Host: "10.0.0.7", Port: 22, User: "ops"}, nil
}

// recordSink captures emitted events for assertions.
type recordSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordSink) Emit(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordSink) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// waitFor polls until an event matching pred arrives or the timeout expires.
func (r *recordSink) waitFor(pred func(Event) bool, timeout time.Duration) (Event, bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, ev := range r.snapshot() {
			if pred(ev) {
				return ev, true
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	return Event{}, false
}

func (r *recordSink) batches() []*Batch {
	var out []*Batch
	for _, ev := range r.snapshot() {
		if ev.Type == EventBatch {
			out = append(out, ev.Batch)
		}
	}
	return out
}
