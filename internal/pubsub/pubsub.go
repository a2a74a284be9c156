// Package pubsub is the delivery boundary: a fire-and-forget publish
// primitive keyed by topic.
package pubsub

import "context"

// TopicPrefix prefixes every per-session stream topic.
const TopicPrefix = "logs.stream."

// Topic derives the publish topic for a session identifier.
func Topic(sessionID string) string {
	return TopicPrefix + sessionID
}

// Publisher delivers one payload to one topic. Implementations must not
// block indefinitely; the streaming core treats Publish as fire-and-forget.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}
