//go:build integration

package publisher

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"initiative_syncer/internal/domain"
)

type RabbitMQIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
	logger    *slog.Logger
}

func (s *RabbitMQIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *RabbitMQIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRabbitMQIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RabbitMQIntegrationSuite))
}

func (s *RabbitMQIntegrationSuite) TestPublisher_Connection() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange",
		RoutingKey: "test-routing-key",
		QueueName:  "test-queue",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.NoError(err)
	s.NotNil(pub)

	err = pub.Close()
	s.NoError(err)
}

func (s *RabbitMQIntegrationSuite) TestPublisher_PublishSyncCompleted() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-sync",
		RoutingKey: "test-routing-key-sync",
		QueueName:  "test-queue-sync",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	result := &domain.SyncResult{
		RunID:        "run-42",
		Synced:       true,
		TotalInAPI:   45,
		TotalFetched: 45,
		LastPage:     3,
	}

	err = pub.PublishSyncCompleted(s.ctx, result)
	s.NoError(err)

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)

	s.Equal("application/json", msg.ContentType)
	s.Equal(EventSyncCompleted, msg.Type)
	s.NotEmpty(msg.MessageId)
	s.Equal(uint8(amqp.Persistent), msg.DeliveryMode)

	var received SyncCompletedMessage
	err = json.Unmarshal(msg.Body, &received)
	s.NoError(err)
	s.Equal(EventSyncCompleted, received.Event)
	s.Equal("run-42", received.RunID)
	s.Equal(45, received.Result.TotalInAPI)
	s.True(received.Result.Synced)
	s.False(received.Timestamp.IsZero())
}

func (s *RabbitMQIntegrationSuite) TestPublisher_MessagesQueuedWithoutConsumer() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-queued",
		RoutingKey: "test-routing-key-queued",
		QueueName:  "test-queue-queued",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	for _, runID := range []string{"run-a", "run-b"} {
		s.Require().NoError(pub.PublishSyncCompleted(s.ctx, &domain.SyncResult{RunID: runID, Synced: true}))
	}

	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()
	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	s.Eventually(func() bool {
		q, err := ch.QueueDeclarePassive(cfg.QueueName, true, false, false, false, nil)
		return err == nil && q.Messages == 2
	}, 5*time.Second, 100*time.Millisecond)

	first := s.consumeMessage(cfg)
	s.Require().NotNil(first)
	var msg SyncCompletedMessage
	s.Require().NoError(json.Unmarshal(first.Body, &msg))
	s.Equal("run-a", msg.RunID)
}

func (s *RabbitMQIntegrationSuite) consumeMessage(cfg Config) *amqp.Delivery {
	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()

	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	msgs, err := ch.Consume(cfg.QueueName, "", true, false, false, false, nil)
	s.Require().NoError(err)

	select {
	case msg := <-msgs:
		return &msg
	case <-time.After(5 * time.Second):
		s.Fail("Timeout waiting for message")
		return nil
	}
}
