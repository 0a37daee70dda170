package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jobtracker/apiserver/internal/logging"
	"github.com/jobtracker/apiserver/types"
)

const (
	attrEventType = "type"
	attrUserID    = "user_id"
)

// JobEvents publishes job application lifecycle events to one channel.
type JobEvents struct {
	mq      *MQ
	channel string
}

func NewJobEvents(m *MQ, channel string) *JobEvents {
	return &JobEvents{mq: m, channel: channel}
}

// Publish encodes event as JSON and sends it with type and user_id attributes.
func (e *JobEvents) Publish(ctx context.Context, event types.JobEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	attrs := map[string]string{
		attrEventType: string(event.Type),
		attrUserID:    strconv.Itoa(event.UserID),
	}
	if _, err := e.mq.Publish(ctx, e.channel, data, attrs); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Subscribe decodes each message on the channel into a JobEvent. Messages
// that fail to decode are logged and acked so they are not redelivered.
func (e *JobEvents) Subscribe(ctx context.Context, handler func(context.Context, types.JobEvent) error) error {
	return e.mq.Subscribe(ctx, e.channel, func(ctx context.Context, msg Message) error {
		event, err := DecodeJobEvent(msg)
		if err != nil {
			logging.FromContext(ctx).Warn("dropping undecodable job event", "message_id", msg.ID, "error", err)
			return nil
		}
		return handler(ctx, event)
	})
}

// Channel returns the channel events are published to.
func (e *JobEvents) Channel() string {
	return e.channel
}

// DecodeJobEvent parses a message produced by JobEvents.Publish.
func DecodeJobEvent(msg Message) (types.JobEvent, error) {
	var event types.JobEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return types.JobEvent{}, fmt.Errorf("decode job event %s: %w", msg.ID, err)
	}
	if event.Type == "" {
		event.Type = types.JobEventType(msg.Attributes[attrEventType])
	}
	return event, nil
}
