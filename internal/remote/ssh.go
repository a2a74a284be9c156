package remote

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

// SSHExecutor implements Executor over SSH sessions.
//
// Each call dials its own connection; sessions are short-lived for Run and
// owned by the returned LineStream for OpenStream. Host keys are not pinned:
// targets are ephemeral lab hosts addressed by the directory, the same trust
// model the directory itself encodes.
type SSHExecutor struct {
	log         *zap.Logger
	dialTimeout time.Duration
}

// NewSSHExecutor returns an executor with a bounded dial timeout.
func NewSSHExecutor(log *zap.Logger) *SSHExecutor {
	return &SSHExecutor{
		log:         log.Named("ssh"),
		dialTimeout: 10 * time.Second,
	}
}

// Run executes a one-shot command and collects stdout/stderr separately.
func (e *SSHExecutor) Run(ctx context.Context, conn Conn, command string) (ExecResult, error) {
	client, err := e.dial(ctx, conn)
	if err != nil {
		return ExecResult{}, err
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		return ExecResult{}, fmt.Errorf("new session: %w", err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	res := ExecResult{}
	if err := sess.Run(command); err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitStatus()
		} else {
			return ExecResult{}, fmt.Errorf("run %q: %w", command, err)
		}
	}

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	return res, nil
}

// OpenStream starts command on the remote host and returns its combined
// output as a line stream. The stream owns the SSH client and session;
// Close releases both and interrupts a blocked remote read.
func (e *SSHExecutor) OpenStream(ctx context.Context, conn Conn, command string) (LineStream, error) {
	client, err := e.dial(ctx, conn)
	if err != nil {
		return nil, err
	}

	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("new session: %w", err)
	}

	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	// Fold stderr into the line stream; subscribers see one merged tail.
	if err := sess.Start(command + " 2>&1"); err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("start %q: %w", command, err)
	}

	s := &sshStream{
		log:    e.log,
		client: client,
		sess:   sess,
		lines:  make(chan string),
		closed: make(chan struct{}),
	}

	go func() {
		sc := bufio.NewScanner(stdout)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)

		for sc.Scan() {
			select {
			case s.lines <- sc.Text():
			case <-s.closed:
				close(s.lines)
				return
			}
		}

		err := sc.Err()
		if werr := sess.Wait(); err == nil && werr != nil {
			var exitErr *ssh.ExitError
			if !errors.As(werr, &exitErr) || exitErr.ExitStatus() != 0 {
				err = werr
			}
		}

		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.lines)
	}()

	return s, nil
}

func (e *SSHExecutor) dial(ctx context.Context, conn Conn) (*ssh.Client, error) {
	cfg := &ssh.ClientConfig{
		User:            conn.User,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         e.dialTimeout,
	}
	if len(conn.PrivateKeyPEM) > 0 {
		signer, err := ssh.ParsePrivateKey(conn.PrivateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		cfg.Auth = append(cfg.Auth, ssh.PublicKeys(signer))
	}
	if conn.Password != "" {
		cfg.Auth = append(cfg.Auth, ssh.Password(conn.Password))
	}

	addr := net.JoinHostPort(conn.Host, strconv.Itoa(conn.Port))

	d := net.Dialer{Timeout: e.dialTimeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	sc, chans, reqs, err := ssh.NewClientConn(nc, addr, cfg)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", addr, err)
	}

	e.log.Debug("ssh channel established", zap.String("addr", addr), zap.String("user", conn.User))
	return ssh.NewClient(sc, chans, reqs), nil
}

// sshStream adapts one running SSH session to the LineStream contract.
type sshStream struct {
	log    *zap.Logger
	client *ssh.Client
	sess   *ssh.Session
	lines  chan string
	closed chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

func (s *sshStream) Lines() <-chan string { return s.lines }

func (s *sshStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close interrupts the remote read by tearing down the session and client.
// Safe to call concurrently with an in-flight read; idempotent.
func (s *sshStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.sess.Signal(ssh.SIGTERM)
		_ = s.sess.Close()
		if err := s.client.Close(); err != nil {
			s.log.Debug("ssh client close", zap.Error(err))
		}
	})
	return nil
}
