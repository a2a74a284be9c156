package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mxw13579/logstream-server/internal/remote"
	"go.uber.org/zap"
)

// MirrorOrchestrator is the mirror flow surface the handler depends on.
type MirrorOrchestrator interface {
	Configure(ctx context.Context, conn remote.Conn, mirrors []string) error
	Restart(ctx context.Context, conn remote.Conn) error
	Verify(ctx context.Context, conn remote.Conn) ([]string, error)
}

// MirrorHandler exposes the one-shot mirror orchestration flows:
//
//   - POST /api/mirror/configure
//   - POST /api/mirror/restart
//   - GET  /api/mirror/verify
type MirrorHandler struct {
	log *zap.Logger
	svc MirrorOrchestrator
	dir remote.Directory
}

// NewMirrorHandler constructs a MirrorHandler instance.
func NewMirrorHandler(log *zap.Logger, svc MirrorOrchestrator, dir remote.Directory) *MirrorHandler {
	return &MirrorHandler{log: log.Named("mirror"), svc: svc, dir: dir}
}

type configureReq struct {
	SessionID string   `json:"sessionId" binding:"required"`
	Mirrors   []string `json:"mirrors" binding:"required,min=1"`
}

// Configure handles POST /api/mirror/configure.
func (h *MirrorHandler) Configure(c *gin.Context) {
	var req configureReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	conn, ok := h.resolve(c, req.SessionID)
	if !ok {
		return
	}
	if err := h.svc.Configure(c.Request.Context(), conn, req.Mirrors); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type restartReq struct {
	SessionID string `json:"sessionId" binding:"required"`
}

// Restart handles POST /api/mirror/restart.
func (h *MirrorHandler) Restart(c *gin.Context) {
	var req restartReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	conn, ok := h.resolve(c, req.SessionID)
	if !ok {
		return
	}
	if err := h.svc.Restart(c.Request.Context(), conn); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Verify handles GET /api/mirror/verify?sessionId=.
func (h *MirrorHandler) Verify(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "sessionId is required"})
		return
	}

	conn, ok := h.resolve(c, sessionID)
	if !ok {
		return
	}
	mirrors, err := h.svc.Verify(c.Request.Context(), conn)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mirrors": mirrors})
}

func (h *MirrorHandler) resolve(c *gin.Context, sessionID string) (remote.Conn, bool) {
	conn, err := h.dir.Resolve(c.Request.Context(), sessionID)
	if err != nil {
		c.Error(err)
		if errors.Is(err, remote.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		}
		return remote.Conn{}, false
	}
	return conn, true
}

func (h *MirrorHandler) fail(c *gin.Context, err error) {
	c.Error(err)
	var cmdErr *remote.CommandError
	if errors.As(err, &cmdErr) {
		c.JSON(http.StatusBadGateway, gin.H{"message": cmdErr.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
}
