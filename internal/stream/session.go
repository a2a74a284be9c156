package stream

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mxw13579/logstream-server/internal/remote"
	"github.com/mxw13579/logstream-server/pkg/dockercmd"
	"github.com/mxw13579/logstream-server/pkg/ringbuf"
	"go.uber.org/zap"
)

const (
	// batchSize triggers a flush once this many lines accumulate.
	batchSize = 10
	// flushInterval bounds delivery latency for a partial batch.
	flushInterval = 500 * time.Millisecond
	// tailBacklog is the initial history replayed when a tail opens.
	tailBacklog = 100

	// MaxBufferLines is the hard ceiling for replay capacity and for
	// history fetches. The two share one limit deliberately.
	MaxBufferLines = 5000
	// DefaultBufferLines applies when a caller requests no explicit size.
	DefaultBufferLines = 500
)

// SessionState is the lifecycle position of a Session.
type SessionState int32

const (
	StateIdle SessionState = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Session owns one live tail: the remote read loop, its replay buffer and
// its batching state.
//
// Lifecycle: Idle → Running → Stopping → Stopped. Start transitions to
// Running exactly once; Stop is idempotent, safe from any state and returns
// without waiting for the remote side to acknowledge. Once Stop returns, the
// remote channel is closed and no further batches will be published past the
// loop's final flush.
type Session struct {
	log    *zap.Logger
	id     string
	target string
	ring   *ringbuf.Buffer
	exec   remote.Executor
	conn   remote.Conn
	sink   Sink
	pool   *taskPool

	ctx    context.Context
	cancel context.CancelFunc

	state    atomic.Int32
	stopping atomic.Bool

	startOnce  sync.Once
	stopOnce   sync.Once
	finishOnce sync.Once

	mu     sync.Mutex
	stream remote.LineStream

	done chan struct{}
}

func newSession(log *zap.Logger, id, target string, capacity int, exec remote.Executor, conn remote.Conn, sink Sink, pool *taskPool) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		log:    log.With(zap.String("session_id", id), zap.String("target", target)),
		id:     id,
		target: target,
		ring:   ringbuf.New(capacity),
		exec:   exec,
		conn:   conn,
		sink:   sink,
		pool:   pool,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start opens the remote tail channel and spawns the read loop. It runs at
// most once; repeat calls are no-ops. A channel that cannot be established
// is reported to the caller only — no subscriber event is emitted, since
// nothing was ever started.
func (s *Session) Start(ctx context.Context) error {
	var startErr error

	s.startOnce.Do(func() {
		ls, err := s.exec.OpenStream(ctx, s.conn, dockercmd.Tail(s.target, tailBacklog))
		if err != nil {
			s.finish()
			startErr = fmt.Errorf("%w: open tail for %s: %w", ErrConnectionUnavailable, s.target, err)
			return
		}

		if s.stopping.Load() {
			// Stopped while dialing; release the channel immediately.
			_ = ls.Close()
			s.finish()
			return
		}

		s.mu.Lock()
		s.stream = ls
		s.mu.Unlock()

		s.state.Store(int32(StateRunning))
		s.pool.add(s.id)
		s.log.Info("tail started")

		go s.readLoop(ls)
	})

	return startErr
}

// Stop signals termination and closes the remote channel if open. Idempotent
// and safe to call concurrently with an in-flight read loop; a blocked read
// is interrupted by the channel close.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)

		if s.state.CompareAndSwap(int32(StateIdle), int32(StateStopped)) {
			s.cancel()
			s.finishOnce.Do(func() { close(s.done) })
			return
		}

		s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
		s.cancel()

		s.mu.Lock()
		ls := s.stream
		s.mu.Unlock()
		if ls != nil {
			_ = ls.Close()
		}

		s.log.Info("tail stop requested")
	})
}

// Done is closed once the read loop has fully terminated, including its
// final flush.
func (s *Session) Done() <-chan struct{} { return s.done }

// State reports the current lifecycle position.
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

// Buffered returns a snapshot of the replay cache, oldest first.
func (s *Session) Buffered() []string { return s.ring.Snapshot() }

// BufferedCount returns the number of lines currently held for replay.
func (s *Session) BufferedCount() int { return s.ring.Len() }

// readLoop consumes the remote line stream until the channel closes or a
// stop is requested. It is the only writer to the ring buffer and the only
// emitter of this session's events, so per-session ordering holds across
// both flush triggers.
func (s *Session) readLoop(ls remote.LineStream) {
	defer s.pool.done(s.id)
	defer s.finish()

	pending := make([]string, 0, batchSize)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	lines := ls.Lines()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				s.reportStreamEnd(ls.Err())
				s.finalFlush(pending)
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			s.ring.Add(line)
			pending = append(pending, line)
			if len(pending) >= batchSize {
				s.flush(pending, false)
				pending = pending[:0]
				ticker.Reset(flushInterval)
			}

		case <-ticker.C:
			if len(pending) > 0 {
				s.flush(pending, false)
				pending = pending[:0]
			}

		case <-s.ctx.Done():
			s.finalFlush(pending)
			return
		}
	}
}

// reportStreamEnd emits an error event for I/O failures observed while
// running. Errors after a deliberate stop are expected channel-close noise
// and are suppressed.
func (s *Session) reportStreamEnd(err error) {
	if err == nil {
		s.log.Info("tail stream ended")
		return
	}
	if s.stopping.Load() {
		s.log.Debug("post-stop stream error suppressed", zap.Error(err))
		return
	}
	s.log.Warn("tail stream failed", zap.Error(err))
	s.sink.Emit(Event{Type: EventError, SessionID: s.id, Target: s.target, Err: err})
}

func (s *Session) flush(lines []string, final bool) {
	batch := &Batch{
		SessionID: s.id,
		Target:    s.target,
		Lines:     append([]string(nil), lines...),
		Total:     s.ring.Len(),
		Timestamp: time.Now(),
		Realtime:  true,
		Final:     final,
	}
	s.sink.Emit(Event{Type: EventBatch, SessionID: s.id, Target: s.target, Batch: batch})
}

func (s *Session) finalFlush(pending []string) {
	if len(pending) > 0 {
		s.flush(pending, true)
	}
	s.sink.Emit(Event{Type: EventClosed, SessionID: s.id, Target: s.target})
}

func (s *Session) finish() {
	s.state.Store(int32(StateStopped))
	s.finishOnce.Do(func() { close(s.done) })
}
