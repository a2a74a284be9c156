package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mxw13579/logstream-server/internal/pubsub"
	"go.uber.org/zap"
)

// publishTimeout bounds one delivery attempt so a slow broker cannot stall
// a session's read loop.
const publishTimeout = 2 * time.Second

// streamMessage is the wire envelope published to subscribers.
type streamMessage struct {
	Type      string    `json:"type"` // "batch" | "error" | "closed"
	SessionID string    `json:"sessionId"`
	Target    string    `json:"target"`
	Batch     *Batch    `json:"batch,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PublishSink forwards session events to the publish primitive, one
// in-flight call per event. It is the transport adapter between the typed
// event stream and the broker; the core never sees the broker directly.
type PublishSink struct {
	log *zap.Logger
	pub pubsub.Publisher
}

// NewPublishSink returns a sink delivering to per-session topics.
func NewPublishSink(log *zap.Logger, pub pubsub.Publisher) *PublishSink {
	return &PublishSink{log: log.Named("publish-sink"), pub: pub}
}

// Emit serializes the event and publishes it. Delivery failures are logged
// and dropped; the streaming path never propagates them back to the loop.
func (s *PublishSink) Emit(ev Event) {
	msg := streamMessage{
		Type:      ev.Type.String(),
		SessionID: ev.SessionID,
		Target:    ev.Target,
		Timestamp: time.Now(),
	}
	switch ev.Type {
	case EventBatch:
		msg.Batch = ev.Batch
	case EventError:
		if ev.Err != nil {
			msg.Error = ev.Err.Error()
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("event marshal failed", zap.String("session_id", ev.SessionID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	topic := pubsub.Topic(ev.SessionID)
	if err := s.pub.Publish(ctx, topic, payload); err != nil {
		s.log.Warn("event publish failed",
			zap.String("topic", topic),
			zap.String("type", msg.Type),
			zap.Error(err))
	}
}
