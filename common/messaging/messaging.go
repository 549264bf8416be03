// Package messaging defines broker-agnostic publishing used for gateway events.
package messaging

import (
	"context"
	"time"
)

// Message is a payload published to a broker subject.
type Message struct {
	Subject string
	Data    []byte

	// Metadata is carried as message headers.
	Metadata map[string]string

	Timestamp time.Time
}

// Publisher publishes fire-and-forget messages.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error

	// PublishMsg sends a Message with its headers.
	PublishMsg(ctx context.Context, msg *Message) error

	// IsConnected reports whether the broker connection is usable.
	IsConnected() bool

	Close() error
}

// NoopPublisher drops every message. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, subject string, data []byte) error { return nil }
func (NoopPublisher) PublishMsg(ctx context.Context, msg *Message) error            { return nil }
func (NoopPublisher) IsConnected() bool                                             { return true }
func (NoopPublisher) Close() error                                                  { return nil }
