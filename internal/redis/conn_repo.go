package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mxw13579/logstream-server/internal/remote"
	"go.uber.org/zap"
)

// connKeyPrefix namespaces session → connection bindings.
//
// Each binding is a hash:
//
//	HSET logstream:conn:<sessionID> host <h> port <p> user <u> [password <pw>] [private_key <pem>]
const connKeyPrefix = "logstream:conn:"

// ConnRepository resolves session identifiers to SSH connection details.
// It implements remote.Directory.
type ConnRepository struct {
	log    *zap.Logger
	client *Client
}

// NewConnRepository returns a directory backed by the shared Redis client.
func NewConnRepository(log *zap.Logger, client *Client) *ConnRepository {
	return &ConnRepository{
		log:    log.Named("conn-repo"),
		client: client,
	}
}

// Resolve looks up the connection bound to sessionID.
// Returns remote.ErrNotFound when no binding exists.
func (r *ConnRepository) Resolve(ctx context.Context, sessionID string) (remote.Conn, error) {
	key := connKeyPrefix + sessionID

	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return remote.Conn{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(fields) == 0 {
		return remote.Conn{}, fmt.Errorf("%w: %s", remote.ErrNotFound, sessionID)
	}

	conn := remote.Conn{
		Host:     fields["host"],
		User:     fields["user"],
		Password: fields["password"],
		Port:     22,
	}
	if pem := fields["private_key"]; pem != "" {
		conn.PrivateKeyPEM = []byte(pem)
	}
	if raw := fields["port"]; raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return remote.Conn{}, fmt.Errorf("invalid port %q for %s: %w", raw, sessionID, err)
		}
		conn.Port = port
	}

	if conn.Host == "" || conn.User == "" {
		return remote.Conn{}, fmt.Errorf("incomplete connection binding for %s", sessionID)
	}

	return conn, nil
}
