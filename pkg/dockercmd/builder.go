// Package dockercmd builds canonical CLI invocations for the remote `docker`
// binary.
//
// This layer is a pure "command construction" module: no execution, no I/O.
// It normalizes CLI emission semantics and returns either argv (process
// argument vector) or a shell-quoted command string suitable for running
// through a remote shell channel.
//
// Emission policy is deterministic and explicit:
//
//   - Numeric flags are ALWAYS emitted (including 0).
//   - Optional strings are emitted only when non-empty.
//   - argv[0] is always the binary name ("docker"), mirroring POSIX/Go norms.
package dockercmd

import (
	"strconv"
	"strings"
)

// Builder constructs argv and shell-safe command strings for `docker`.
//
// The Builder implements a fluent API; it is NOT concurrency-safe.
// Callers should treat a Builder as single-use, short-lived value objects.
type Builder struct {
	args []string // argv including binary name at index 0
}

// NewBuilder returns a Builder pre-seeded with the binary name ("docker").
func NewBuilder() *Builder {
	return &Builder{args: []string{"docker"}}
}

// WithArg appends a positional argument if non-empty.
func (b *Builder) WithArg(arg string) *Builder {
	if arg != "" {
		b.args = append(b.args, arg)
	}
	return b
}

// WithIntFlag appends a flag with a base-10 int value (always emitted).
func (b *Builder) WithIntFlag(flag string, val int) *Builder {
	b.args = append(b.args, flag, strconv.Itoa(val))
	return b
}

// WithStringFlag appends a flag with a string value if non-empty.
// Empty string is considered invalid and skipped to avoid surprising empties.
func (b *Builder) WithStringFlag(flag, val string) *Builder {
	if val != "" {
		b.args = append(b.args, flag, val)
	}
	return b
}

// WithFlag appends a bare flag (no value).
func (b *Builder) WithFlag(flag string) *Builder {
	b.args = append(b.args, flag)
	return b
}

// BuildArgv returns a defensive copy of the constructed argument vector.
func (b *Builder) BuildArgv() []string {
	out := make([]string, len(b.args))
	copy(out, b.args)
	return out
}

// BuildString returns a single shell-quoted command string.
//
// Quoting strategy: single-quote wrapping with inner single quotes escaped
// as ' -> '\”. Safe for POSIX shells, which is all the remote channel runs.
func (b *Builder) BuildString() string {
	quoted := make([]string, len(b.args))
	for i, a := range b.args {
		quoted[i] = Quote(a)
	}
	return strings.Join(quoted, " ")
}

// Quote returns a POSIX-safe single-quoted token.
//
// Empty strings become "”" to preserve round-trippability.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
