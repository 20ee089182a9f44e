//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"iam/internal/credential/events"
	"iam/internal/credential/models"
	"iam/internal/platform/kafka/producer"
	"iam/pkg/testutil/containers"
)

type PublisherIntegrationSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *producer.Producer
}

func TestPublisherIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PublisherIntegrationSuite))
}

func (s *PublisherIntegrationSuite) SetupSuite() {
	s.kafka = containers.GetManager().GetKafka(s.T())
	cfg := producer.DefaultConfig(s.kafka.Brokers)
	cfg.DeliveryTimeout = 10 * time.Second
	prod, err := producer.New(cfg, nil)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *PublisherIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		_ = s.producer.Close(5 * time.Second)
	}
}

func (s *PublisherIntegrationSuite) TestPublishedEventIsConsumable() {
	ctx := context.Background()
	topic := "credential-events-it"
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic))

	event := &models.VerificationEvent{
		ID:         uuid.New(),
		Provider:   "WorldID",
		Valid:      true,
		StampHash:  "v0.0.0:abc",
		OccurredAt: time.Now().UTC().Truncate(time.Second),
	}
	s.Require().NoError(events.NewPublisher(s.producer, topic).Publish(ctx, event))
	s.True(s.producer.Healthy(ctx))

	consumeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	record, err := s.kafka.ConsumeFirst(consumeCtx, topic, func(r *kgo.Record) bool {
		for _, h := range r.Headers {
			if h.Key == "event_id" && string(h.Value) == event.ID.String() {
				return true
			}
		}
		return false
	})
	s.Require().NoError(err, "event should be consumable")
	s.Equal("WorldID", string(record.Key))

	var decoded models.VerificationEvent
	s.Require().NoError(json.Unmarshal(record.Value, &decoded))
	s.Equal(event.StampHash, decoded.StampHash)
	s.True(decoded.Valid)
}
