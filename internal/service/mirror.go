// Package service holds the one-shot orchestration flows: sequential remote
// command pipelines with no state machine of their own.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mxw13579/logstream-server/internal/remote"
	"github.com/mxw13579/logstream-server/pkg/dockercmd"
	"go.uber.org/zap"
)

const daemonConfigPath = "/etc/docker/daemon.json"

// MirrorService configures a Docker registry mirror on a remote host,
// restarts the daemon and verifies the mirror took effect. Each operation
// is a plain sequential pipeline over the remote executor.
type MirrorService struct {
	log  *zap.Logger
	exec remote.Executor
}

// NewMirrorService wires the service to its executor.
func NewMirrorService(log *zap.Logger, exec remote.Executor) *MirrorService {
	return &MirrorService{log: log.Named("mirror"), exec: exec}
}

// Configure writes the registry-mirrors daemon configuration. The previous
// file, if any, is overwritten; Restart must follow for the change to apply.
func (s *MirrorService) Configure(ctx context.Context, conn remote.Conn, mirrors []string) error {
	if len(mirrors) == 0 {
		return fmt.Errorf("at least one mirror is required")
	}

	cfg, err := json.MarshalIndent(map[string][]string{"registry-mirrors": mirrors}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal daemon config: %w", err)
	}

	pipeline := []string{
		"mkdir -p /etc/docker",
		fmt.Sprintf("printf '%%s\\n' %s > %s", dockercmd.Quote(string(cfg)), daemonConfigPath),
	}
	for _, command := range pipeline {
		if err := s.run(ctx, conn, command); err != nil {
			return err
		}
	}

	s.log.Info("registry mirror configured",
		zap.String("host", conn.Host),
		zap.Strings("mirrors", mirrors))
	return nil
}

// Restart restarts the Docker daemon so a new mirror configuration takes
// effect. Blocks until the remote init system acknowledges the restart.
func (s *MirrorService) Restart(ctx context.Context, conn remote.Conn) error {
	if err := s.run(ctx, conn, "systemctl restart docker"); err != nil {
		return err
	}
	s.log.Info("docker daemon restarted", zap.String("host", conn.Host))
	return nil
}

// Verify reads back the effective mirror list from the running daemon.
func (s *MirrorService) Verify(ctx context.Context, conn remote.Conn) ([]string, error) {
	command := dockercmd.Info()
	res, err := s.exec.Run(ctx, conn, command)
	if err != nil {
		return nil, fmt.Errorf("verify mirrors: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, &remote.CommandError{Command: command, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}

	var mirrors []string
	out := strings.TrimSpace(res.Stdout)
	if out == "" || out == "null" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(out), &mirrors); err != nil {
		return nil, fmt.Errorf("parse mirror list %q: %w", out, err)
	}
	return mirrors, nil
}

func (s *MirrorService) run(ctx context.Context, conn remote.Conn, command string) error {
	res, err := s.exec.Run(ctx, conn, command)
	if err != nil {
		return fmt.Errorf("run %q: %w", command, err)
	}
	if res.ExitCode != 0 {
		return &remote.CommandError{Command: command, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return nil
}
