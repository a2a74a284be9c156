package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mxw13579/logstream-server/internal/remote"
	"github.com/mxw13579/logstream-server/internal/stream"
	"go.uber.org/zap"
)

type fakeController struct {
	startErr error
	started  []string
	stopped  []string
	buffer   []string
	hasBuf   bool
}

func (f *fakeController) StartLogStream(_ context.Context, sessionID, target string, _ int) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, sessionID+"/"+target)
	return nil
}

func (f *fakeController) StopLogStream(sessionID string) {
	f.stopped = append(f.stopped, sessionID)
}

func (f *fakeController) BufferSnapshot(string) ([]string, bool) {
	return f.buffer, f.hasBuf
}

type fakeHistory struct {
	res *stream.HistoryResult
	err error
}

func (f *fakeHistory) Fetch(context.Context, remote.Conn, string, int, string) (*stream.HistoryResult, error) {
	return f.res, f.err
}

type staticDirectory struct {
	err error
}

func (d *staticDirectory) Resolve(context.Context, string) (remote.Conn, error) {
	if d.err != nil {
		return remote.Conn{}, d.err
	}
	return remote.Conn{Host: "10.0.0.7", Port: 22, User: "ops"}, nil
}

func newRouter(ctrl *fakeController, hist *fakeHistory, dir *staticDirectory) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewLogsHandler(zap.NewNop(), ctrl, hist, dir)

	r := gin.New()
	r.POST("/api/logs/stream/start", h.StartStream)
	r.POST("/api/logs/stream/stop", h.StopStream)
	r.GET("/api/logs/buffer", h.Buffer)
	r.GET("/api/logs/history", h.History)
	return r
}

func TestStartStream(t *testing.T) {
	ctrl := &fakeController{}
	r := newRouter(ctrl, &fakeHistory{}, &staticDirectory{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/logs/stream/start",
		strings.NewReader(`{"sessionId":"viewer-1","target":"web-1","maxLines":100}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if len(ctrl.started) != 1 || ctrl.started[0] != "viewer-1/web-1" {
		t.Fatalf("unexpected start calls: %v", ctrl.started)
	}
}

func TestStartStreamRejectsMissingFields(t *testing.T) {
	r := newRouter(&fakeController{}, &fakeHistory{}, &staticDirectory{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/logs/stream/start",
		strings.NewReader(`{"sessionId":"viewer-1"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestStartStreamConnectionUnavailable(t *testing.T) {
	ctrl := &fakeController{startErr: stream.ErrConnectionUnavailable}
	r := newRouter(ctrl, &fakeHistory{}, &staticDirectory{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/logs/stream/start",
		strings.NewReader(`{"sessionId":"ghost","target":"web-1"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestStopStream(t *testing.T) {
	ctrl := &fakeController{}
	r := newRouter(ctrl, &fakeHistory{}, &staticDirectory{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/logs/stream/stop",
		strings.NewReader(`{"sessionId":"viewer-1"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if len(ctrl.stopped) != 1 || ctrl.stopped[0] != "viewer-1" {
		t.Fatalf("unexpected stop calls: %v", ctrl.stopped)
	}
}

func TestBufferMiss(t *testing.T) {
	r := newRouter(&fakeController{}, &fakeHistory{}, &staticDirectory{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/logs/buffer?sessionId=nope", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHistory(t *testing.T) {
	hist := &fakeHistory{res: &stream.HistoryResult{
		Target: "web-1",
		Lines:  []string{"a", "b"},
		Total:  2,
	}}
	r := newRouter(&fakeController{}, hist, &staticDirectory{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/api/logs/history?sessionId=viewer-1&target=web-1&lines=5&level=all", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res stream.HistoryResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Total != 2 || res.Realtime {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestHistoryCommandFailure(t *testing.T) {
	hist := &fakeHistory{err: &remote.CommandError{Command: "docker logs", ExitCode: 1, Stderr: "no such container"}}
	r := newRouter(&fakeController{}, hist, &staticDirectory{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/api/logs/history?sessionId=viewer-1&target=web-9", nil))

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestHistoryUnknownSession(t *testing.T) {
	r := newRouter(&fakeController{}, &fakeHistory{}, &staticDirectory{err: remote.ErrNotFound})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/api/logs/history?sessionId=ghost&target=web-1", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
