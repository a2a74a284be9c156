package stream

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestRegistry(exec *fakeExecutor, dir *fakeDirectory) (*Registry, *recordSink) {
	sink := &recordSink{}
	r := NewRegistry(zap.NewNop(), exec, dir, sink, RegistryOptions{ShutdownGrace: time.Second})
	return r, sink
}

func TestStartLogStreamOpensTailCommand(t *testing.T) {
	exec := &fakeExecutor{}
	r, _ := newTestRegistry(exec, &fakeDirectory{})
	defer r.Shutdown(context.Background())

	if err := r.StartLogStream(context.Background(), "viewer-1", "web-1", 100); err != nil {
		t.Fatalf("start: %v", err)
	}

	cmd := exec.lastCommand()
	if !strings.Contains(cmd, "'logs'") || !strings.Contains(cmd, "'-f'") ||
		!strings.Contains(cmd, "'--tail' '100'") || !strings.Contains(cmd, "'--timestamps'") {
		t.Fatalf("unexpected tail command: %s", cmd)
	}
	if r.Active() != 1 {
		t.Fatalf("expected 1 active session, got %d", r.Active())
	}
}

func TestReplacementLeavesExactlyOneChannel(t *testing.T) {
	exec := &fakeExecutor{}
	r, _ := newTestRegistry(exec, &fakeDirectory{})
	defer r.Shutdown(context.Background())

	if err := r.StartLogStream(context.Background(), "viewer-1", "web-1", 100); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := r.StartLogStream(context.Background(), "viewer-1", "web-2", 100); err != nil {
		t.Fatalf("second start: %v", err)
	}

	if got := exec.streamCount(); got != 2 {
		t.Fatalf("expected 2 opened streams, got %d", got)
	}
	if !exec.stream(0).isClosed() {
		t.Fatal("previous channel must be observably closed before replacement")
	}
	if exec.stream(1).isClosed() {
		t.Fatal("replacement channel must remain open")
	}
	if r.Active() != 1 {
		t.Fatalf("expected exactly one active session, got %d", r.Active())
	}
}

func TestStopLogStreamIsIdempotent(t *testing.T) {
	exec := &fakeExecutor{}
	r, _ := newTestRegistry(exec, &fakeDirectory{})

	r.StopLogStream("never-started") // no-op

	if err := r.StartLogStream(context.Background(), "viewer-1", "web-1", 100); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.StopLogStream("viewer-1")
	r.StopLogStream("viewer-1") // second stop is a no-op

	if !exec.stream(0).isClosed() {
		t.Fatal("stop must close the channel")
	}
	if r.Active() != 0 {
		t.Fatalf("expected 0 active sessions, got %d", r.Active())
	}
}

func TestStartWithUnresolvableSession(t *testing.T) {
	exec := &fakeExecutor{}
	r, sink := newTestRegistry(exec, &fakeDirectory{err: errors.New("no binding")})

	err := r.StartLogStream(context.Background(), "ghost", "web-1", 100)
	if !errors.Is(err, ErrConnectionUnavailable) {
		t.Fatalf("expected ErrConnectionUnavailable, got %v", err)
	}
	if r.Active() != 0 {
		t.Fatal("nothing may be registered on resolution failure")
	}
	if len(sink.snapshot()) != 0 {
		t.Fatal("no subscriber event may be published on resolution failure")
	}
}

func TestCapacityClamping(t *testing.T) {
	exec := &fakeExecutor{}
	r, _ := newTestRegistry(exec, &fakeDirectory{})
	defer r.Shutdown(context.Background())

	if err := r.StartLogStream(context.Background(), "big", "web-1", 1_000_000); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := r.StartLogStream(context.Background(), "default", "web-1", 0); err != nil {
		t.Fatalf("start: %v", err)
	}

	r.mu.Lock()
	bigCap := r.sessions["big"].ring.Cap()
	defCap := r.sessions["default"].ring.Cap()
	r.mu.Unlock()

	if bigCap != MaxBufferLines {
		t.Fatalf("expected ceiling clamp to %d, got %d", MaxBufferLines, bigCap)
	}
	if defCap != DefaultBufferLines {
		t.Fatalf("expected default capacity %d, got %d", DefaultBufferLines, defCap)
	}
}

func TestBufferSnapshot(t *testing.T) {
	exec := &fakeExecutor{}
	r, _ := newTestRegistry(exec, &fakeDirectory{})
	defer r.Shutdown(context.Background())

	if err := r.StartLogStream(context.Background(), "viewer-1", "web-1", 10); err != nil {
		t.Fatalf("start: %v", err)
	}
	exec.stream(0).send("hello")

	deadline := time.Now().Add(2 * time.Second)
	for {
		if snap, ok := r.BufferSnapshot("viewer-1"); ok && len(snap) == 1 {
			if snap[0] != "hello" {
				t.Fatalf("unexpected snapshot: %v", snap)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("snapshot never reflected the buffered line")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, ok := r.BufferSnapshot("missing"); ok {
		t.Fatal("expected miss for unknown session")
	}
}

func TestShutdownStopsEverySession(t *testing.T) {
	exec := &fakeExecutor{}
	r, _ := newTestRegistry(exec, &fakeDirectory{})

	for _, id := range []string{"a", "b", "c"} {
		if err := r.StartLogStream(context.Background(), id, "web-1", 10); err != nil {
			t.Fatalf("start %s: %v", id, err)
		}
	}

	r.Shutdown(context.Background())

	if r.Active() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Active())
	}
	if n := r.pool.count(); n != 0 {
		t.Fatalf("expected drained pool, %d tasks still live", n)
	}
	for i := 0; i < exec.streamCount(); i++ {
		if !exec.stream(i).isClosed() {
			t.Fatalf("stream %d not closed after shutdown", i)
		}
	}
}
