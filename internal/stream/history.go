package stream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mxw13579/logstream-server/internal/remote"
	"github.com/mxw13579/logstream-server/pkg/dockercmd"
	"github.com/mxw13579/logstream-server/pkg/loglevel"
	"go.uber.org/zap"
)

// HistoryFetcher retrieves a bounded backlog of container logs in one shot.
// It is independent of the registry and of any active tail.
type HistoryFetcher struct {
	log  *zap.Logger
	exec remote.Executor
}

// NewHistoryFetcher returns a fetcher over the given executor.
func NewHistoryFetcher(log *zap.Logger, exec remote.Executor) *HistoryFetcher {
	return &HistoryFetcher{log: log.Named("history"), exec: exec}
}

// Fetch runs a bounded-backlog log command for target and returns the
// level-filtered lines. lines shares the MaxBufferLines ceiling with live
// tailing; ≤0 falls back to DefaultBufferLines. A non-zero remote exit
// status is surfaced as a *remote.CommandError, never swallowed.
func (f *HistoryFetcher) Fetch(ctx context.Context, conn remote.Conn, target string, lines int, level string) (*HistoryResult, error) {
	if target == "" {
		return nil, fmt.Errorf("target is required")
	}
	if lines <= 0 {
		lines = DefaultBufferLines
	}
	if lines > MaxBufferLines {
		lines = MaxBufferLines
	}

	command := dockercmd.History(target, lines)
	res, err := f.exec.Run(ctx, conn, command)
	if err != nil {
		return nil, fmt.Errorf("history fetch: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, &remote.CommandError{Command: command, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}

	raw := splitLines(res.Stdout)
	filtered := loglevel.Filter(raw, level)

	f.log.Debug("history fetched",
		zap.String("target", target),
		zap.Int("requested", lines),
		zap.Int("returned", len(filtered)))

	return &HistoryResult{
		Target:    target,
		Lines:     filtered,
		Total:     len(filtered),
		Timestamp: time.Now(),
		Realtime:  false,
	}, nil
}

// splitLines breaks combined output into non-blank lines.
func splitLines(out string) []string {
	lines := make([]string, 0, 64)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
