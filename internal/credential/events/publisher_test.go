package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iam/internal/credential/models"
	"iam/internal/platform/kafka/producer"
)

type recordingProducer struct {
	messages []*producer.Message
	err      error
}

func (r *recordingProducer) ProduceAsync(msg *producer.Message) error {
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, msg)
	return nil
}

func TestPublish(t *testing.T) {
	event := &models.VerificationEvent{
		ID:         uuid.New(),
		Provider:   "WorldID",
		Valid:      false,
		Category:   "semantic_rejection",
		Errors:     []string{"expired proof"},
		RequestID:  "req-9",
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	t.Run("encodes event with headers", func(t *testing.T) {
		rec := &recordingProducer{}
		require.NoError(t, NewPublisher(rec, "credential-events").Publish(context.Background(), event))

		require.Len(t, rec.messages, 1)
		msg := rec.messages[0]
		assert.Equal(t, "credential-events", msg.Topic)
		assert.Equal(t, "WorldID", string(msg.Key))
		assert.Equal(t, EventType, msg.Headers["event_type"])
		assert.Equal(t, event.ID.String(), msg.Headers["event_id"])
		assert.Equal(t, "req-9", msg.Headers["request_id"])

		var decoded models.VerificationEvent
		require.NoError(t, json.Unmarshal(msg.Value, &decoded))
		assert.Equal(t, *event, decoded)
	})

	t.Run("omits empty request id header", func(t *testing.T) {
		rec := &recordingProducer{}
		noRequest := *event
		noRequest.RequestID = ""
		require.NoError(t, NewPublisher(rec, "t").Publish(context.Background(), &noRequest))
		_, ok := rec.messages[0].Headers["request_id"]
		assert.False(t, ok)
	})

	t.Run("wraps producer errors", func(t *testing.T) {
		boom := errors.New("closed")
		err := NewPublisher(&recordingProducer{err: boom}, "t").Publish(context.Background(), event)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("rejects nil event", func(t *testing.T) {
		assert.Error(t, NewPublisher(&recordingProducer{}, "t").Publish(context.Background(), nil))
	})
}
