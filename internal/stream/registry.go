package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mxw13579/logstream-server/internal/remote"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// replaceWait bounds how long a replacement start waits for the previous
// session's loop to fully drain after its channel is closed.
const replaceWait = 2 * time.Second

// RegistryOptions tunes registry behavior.
type RegistryOptions struct {
	// ShutdownGrace bounds how long Shutdown waits for read loops to
	// drain before reporting them as forcibly cancelled.
	ShutdownGrace time.Duration
}

func (o *RegistryOptions) setDefaults() {
	if o.ShutdownGrace <= 0 {
		o.ShutdownGrace = 5 * time.Second
	}
}

// Registry owns every active tail session, keyed by session identifier.
// It guarantees at most one live session per identifier: replacement is
// stop-fully-then-start, never overlapping channels.
type Registry struct {
	log  *zap.Logger
	exec remote.Executor
	dir  remote.Directory
	sink Sink
	pool *taskPool
	opts RegistryOptions

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry wires the session registry to its collaborators.
func NewRegistry(log *zap.Logger, exec remote.Executor, dir remote.Directory, sink Sink, opts RegistryOptions) *Registry {
	opts.setDefaults()
	return &Registry{
		log:      log.Named("registry"),
		exec:     exec,
		dir:      dir,
		sink:     sink,
		pool:     newTaskPool(),
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// StartLogStream starts tailing target for sessionID, replacing any prior
// session with that identifier. maxLines is the replay capacity, clamped to
// [1, MaxBufferLines] with ≤0 meaning DefaultBufferLines.
//
// The map lock is held across stop-and-replace so concurrent starts for the
// same identifier serialize and never leave two channels open.
func (r *Registry) StartLogStream(ctx context.Context, sessionID, target string, maxLines int) error {
	if sessionID == "" || target == "" {
		return fmt.Errorf("session id and target are required")
	}

	if maxLines <= 0 {
		maxLines = DefaultBufferLines
	}
	if maxLines > MaxBufferLines {
		maxLines = MaxBufferLines
	}

	conn, err := r.dir.Resolve(ctx, sessionID)
	if err != nil {
		r.log.Warn("connection resolution failed",
			zap.String("session_id", sessionID), zap.Error(err))
		return fmt.Errorf("%w: resolve %s: %w", ErrConnectionUnavailable, sessionID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.sessions[sessionID]; ok {
		r.stopAndAwait(old)
		delete(r.sessions, sessionID)
	}

	s := newSession(r.log, sessionID, target, maxLines, r.exec, conn, r.sink, r.pool)
	if err := s.Start(ctx); err != nil {
		return err
	}

	r.sessions[sessionID] = s
	r.log.Info("log stream started",
		zap.String("session_id", sessionID),
		zap.String("target", target),
		zap.Int("capacity", maxLines))
	return nil
}

// StopLogStream removes and stops the session for sessionID. No-op if none
// is registered.
func (r *Registry) StopLogStream(sessionID string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	s.Stop()
	r.log.Info("log stream stopped", zap.String("session_id", sessionID))
}

// Active returns the number of registered sessions.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// BufferSnapshot returns the replay cache for a session, oldest first.
// The second result is false when no session is registered for sessionID.
func (r *Registry) BufferSnapshot(sessionID string) ([]string, bool) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	r.mu.Unlock()

	if !ok {
		return nil, false
	}
	return s.Buffered(), true
}

// Shutdown stops every session, then drains the read-loop pool for at most
// the configured grace. Tasks still live past the grace are reported as
// forcibly cancelled; their contexts are already cancelled, so they die with
// the process rather than blocking it.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, s := range sessions {
		s := s
		g.Go(func() error {
			s.Stop()
			return nil
		})
	}
	_ = g.Wait()

	forced := r.pool.drain(r.opts.ShutdownGrace)
	if len(forced) > 0 {
		r.log.Warn("forced cancellation of straggler tasks",
			zap.Int("count", len(forced)),
			zap.Strings("session_ids", forced))
	} else {
		r.log.Info("all stream tasks drained", zap.Int("stopped", len(sessions)))
	}
}

// stopAndAwait stops a session and waits, bounded, for its loop to finish.
// The channel is closed synchronously by Stop, so the bound only covers the
// loop's final flush.
func (r *Registry) stopAndAwait(s *Session) {
	s.Stop()
	select {
	case <-s.Done():
	case <-time.After(replaceWait):
		r.log.Warn("previous session slow to drain; proceeding with replacement",
			zap.String("session_id", s.id))
	}
}
