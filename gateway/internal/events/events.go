// Package events publishes auth audit events to the message broker.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/inventra-labs/inventra/common/audit"
	"github.com/inventra-labs/inventra/common/logging"
	"github.com/inventra-labs/inventra/common/messaging"
)

// Header names set on every published message.
const (
	HeaderEventID   = "Event-Id"
	HeaderEventTime = "Event-Time"
	HeaderSignature = "Event-Signature"
)

// Event is the JSON body of an audit message.
type Event struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Time     time.Time         `json:"time"`
	ActorID  string            `json:"actor_id,omitempty"`
	Email    string            `json:"email,omitempty"`
	TargetID string            `json:"target_id,omitempty"`
	IP       string            `json:"ip,omitempty"`
	Details  map[string]string `json:"details,omitempty"`
}

// Emitter publishes events fire-and-forget. Publish failures are logged and
// never returned to the operation that raised the event.
type Emitter struct {
	publisher messaging.Publisher
	signer    *audit.EventSigner
	logger    *logging.Logger
	now       func() time.Time
}

func NewEmitter(publisher messaging.Publisher, signer *audit.EventSigner, logger *logging.Logger) *Emitter {
	if publisher == nil {
		publisher = messaging.NoopPublisher{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Emitter{publisher: publisher, signer: signer, logger: logger, now: time.Now}
}

// Emit fills in the event envelope and publishes it on subject.
func (e *Emitter) Emit(ctx context.Context, subject string, ev Event) {
	if e == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.Must(uuid.NewV7()).String()
	}
	if ev.Time.IsZero() {
		ev.Time = e.now().UTC()
	}
	ev.Type = subject

	data, err := json.Marshal(ev)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to encode event", logging.Error(err))
		return
	}

	msg := &messaging.Message{
		Subject:   subject,
		Data:      data,
		Timestamp: ev.Time,
		Metadata: map[string]string{
			HeaderEventID:   ev.ID,
			HeaderEventTime: ev.Time.Format(time.RFC3339Nano),
		},
	}
	if e.signer.Enabled() {
		msg.Metadata[HeaderSignature] = e.signer.Sign(ev.ID, ev.Time, subject, data)
	}

	if err := e.publisher.PublishMsg(ctx, msg); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event",
			"subject", subject,
			logging.Error(err),
		)
	}
}
