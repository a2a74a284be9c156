// Package handler exposes the streaming core over REST.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mxw13579/logstream-server/internal/remote"
	"github.com/mxw13579/logstream-server/internal/stream"
	"go.uber.org/zap"
)

// StreamController is the registry surface the handler depends on.
type StreamController interface {
	StartLogStream(ctx context.Context, sessionID, target string, maxLines int) error
	StopLogStream(sessionID string)
	BufferSnapshot(sessionID string) ([]string, bool)
}

// HistoryService is the one-shot fetch surface the handler depends on.
type HistoryService interface {
	Fetch(ctx context.Context, conn remote.Conn, target string, lines int, level string) (*stream.HistoryResult, error)
}

// LogsHandler provides HTTP handlers for the log streaming operations:
//
//   - POST /api/logs/stream/start  → begin tailing into the session's topic
//   - POST /api/logs/stream/stop   → stop the tail
//   - GET  /api/logs/buffer        → replay cache snapshot
//   - GET  /api/logs/history       → synchronous bounded backlog fetch
type LogsHandler struct {
	log     *zap.Logger
	streams StreamController
	history HistoryService
	dir     remote.Directory
}

// NewLogsHandler constructs a LogsHandler instance.
func NewLogsHandler(log *zap.Logger, streams StreamController, history HistoryService, dir remote.Directory) *LogsHandler {
	return &LogsHandler{
		log:     log.Named("logs"),
		streams: streams,
		history: history,
		dir:     dir,
	}
}

type startStreamReq struct {
	SessionID string `json:"sessionId" binding:"required"`
	Target    string `json:"target" binding:"required"`
	MaxLines  int    `json:"maxLines"`
}

// StartStream handles POST /api/logs/stream/start.
//
// Status Codes:
//   - 204 No Content → tail running, batches flowing to the session topic
//   - 400 Bad Request → malformed body
//   - 502 Bad Gateway → no remote channel for the session
func (h *LogsHandler) StartStream(c *gin.Context) {
	var req startStreamReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	if err := h.streams.StartLogStream(c.Request.Context(), req.SessionID, req.Target, req.MaxLines); err != nil {
		c.Error(err)
		if errors.Is(err, stream.ErrConnectionUnavailable) {
			c.JSON(http.StatusBadGateway, gin.H{"message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

type stopStreamReq struct {
	SessionID string `json:"sessionId" binding:"required"`
}

// StopStream handles POST /api/logs/stream/stop. Stopping an unknown
// session is a no-op and still succeeds.
func (h *LogsHandler) StopStream(c *gin.Context) {
	var req stopStreamReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	h.streams.StopLogStream(req.SessionID)
	c.Status(http.StatusNoContent)
}

// Buffer handles GET /api/logs/buffer?sessionId=. It returns the replay
// cache of an active session, oldest line first.
func (h *LogsHandler) Buffer(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "sessionId is required"})
		return
	}

	lines, ok := h.streams.BufferSnapshot(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "no active stream for session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessionId": sessionID, "lines": lines, "total": len(lines)})
}

// History handles GET /api/logs/history?sessionId=&target=&lines=&level=.
//
// Status Codes:
//   - 200 OK → HistoryResult
//   - 400 Bad Request → missing/invalid parameters
//   - 404 Not Found → session has no connection binding
//   - 502 Bad Gateway → remote command failed
func (h *LogsHandler) History(c *gin.Context) {
	sessionID := c.Query("sessionId")
	target := c.Query("target")
	if sessionID == "" || target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "sessionId and target are required"})
		return
	}

	lines := 0
	if raw := c.Query("lines"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "lines must be an integer"})
			return
		}
		lines = parsed
	}

	conn, err := h.dir.Resolve(c.Request.Context(), sessionID)
	if err != nil {
		c.Error(err)
		if errors.Is(err, remote.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	res, err := h.history.Fetch(c.Request.Context(), conn, target, lines, c.Query("level"))
	if err != nil {
		c.Error(err)
		var cmdErr *remote.CommandError
		if errors.As(err, &cmdErr) {
			c.JSON(http.StatusBadGateway, gin.H{"message": cmdErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, res)
}
