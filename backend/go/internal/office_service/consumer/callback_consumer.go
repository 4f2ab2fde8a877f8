package consumer

import (
	"AgentOffice/backend/go/internal/models"
	"AgentOffice/backend/go/pkg/logger"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const fetchRetryDelay = time.Second

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CallbackHandler ingests one decoded callback.
type CallbackHandler interface {
	HandleCallback(ctx context.Context, p models.CallbackPayload) bool
}

// CallbackConsumer feeds workflow callbacks published on Kafka into the
// lifecycle engine, as an alternative to the HTTP callback endpoint.
type CallbackConsumer struct {
	reader  MessageReader
	handler CallbackHandler
	logger  *logger.Logger
}

func NewCallbackConsumer(reader MessageReader, handler CallbackHandler, log *logger.Logger) *CallbackConsumer {
	if log == nil {
		log = logger.Discard()
	}
	return &CallbackConsumer{reader: reader, handler: handler, logger: log.Named("callback_consumer")}
}

// Run consumes until ctx is cancelled. Messages that cannot be decoded are
// logged and committed so they do not block the partition.
func (c *CallbackConsumer) Run(ctx context.Context) error {
	c.logger.Info("kafka callback consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("stopping kafka callback consumer")
				return nil
			}
			c.logger.WithErr(err).Error("error fetching message from kafka")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(fetchRetryDelay):
			}
			continue
		}

		if err := c.Handle(ctx, msg); err != nil {
			c.logger.WithErr(err).WithPayload(map[string]interface{}{
				"topic":     msg.Topic,
				"partition": msg.Partition,
				"offset":    msg.Offset,
			}).Error("error handling kafka message")
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.WithErr(err).Error("failed to commit kafka message")
		}
	}
}

// Handle decodes one message and hands it to the lifecycle engine.
func (c *CallbackConsumer) Handle(ctx context.Context, msg kafka.Message) error {
	var p models.CallbackPayload
	if err := json.Unmarshal(msg.Value, &p); err != nil {
		return fmt.Errorf("decode callback at offset %d: %w", msg.Offset, err)
	}
	if !c.handler.HandleCallback(ctx, p) {
		c.logger.WithField("agent", p.Agent).Debug("callback for unknown agent skipped")
	}
	return nil
}

func (c *CallbackConsumer) Close() error {
	return c.reader.Close()
}
