// Package remote defines the command channel boundary: one-shot execution
// and continuous line-oriented streaming against a resolved host.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound indicates the directory has no connection bound to a session.
var ErrNotFound = errors.New("remote: no connection for session")

// CommandError reports a non-zero exit status from a one-shot remote
// command. It is surfaced to the synchronous caller, never swallowed.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("remote command exited with status %d: %s", e.ExitCode, e.Command)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Conn holds resolved connection details for one remote host.
type Conn struct {
	Host          string
	Port          int
	User          string
	Password      string // optional; key auth preferred
	PrivateKeyPEM []byte // optional PEM-encoded private key
}

// ExecResult is the outcome of a one-shot command.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// LineStream is a live line-oriented output channel.
//
// Lines is closed when the stream ends for any reason; Err reports the
// terminal error, if any, once Lines is closed. Close interrupts a blocked
// read and releases the underlying channel. Close is idempotent.
type LineStream interface {
	Lines() <-chan string
	Err() error
	Close() error
}

// Executor runs commands over an established remote channel.
type Executor interface {
	// Run executes a one-shot command and waits for completion.
	// A non-zero remote exit status is reported via ExecResult.ExitCode,
	// not as an error; errors mean the command could not be run at all.
	Run(ctx context.Context, conn Conn, command string) (ExecResult, error)

	// OpenStream starts a long-lived command and returns its combined
	// output as a line stream.
	OpenStream(ctx context.Context, conn Conn, command string) (LineStream, error)
}

// Directory resolves a session identifier to connection details.
type Directory interface {
	Resolve(ctx context.Context, sessionID string) (Conn, error)
}
