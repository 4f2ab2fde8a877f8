package kafka

import (
	"AgentOffice/backend/go/internal/config"
	"AgentOffice/backend/go/pkg/logger"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrNotConfigured is returned when no broker is configured.
var ErrNotConfigured = errors.New("kafka brokers not configured")

// Client holds the admin connection and the broker settings shared by the
// event publisher and the callback reader.
type Client struct {
	Conn   *kafka.Conn
	Config config.KafkaConfig
	log    *logger.Logger
}

// Connect dials the first broker and creates the configured topics that do not
// exist yet.
func Connect(cfg config.KafkaConfig, log *logger.Logger) (*Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNotConfigured
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers[0])
	if err != nil {
		return nil, fmt.Errorf("dial kafka: %w", err)
	}

	partitions, err := conn.ReadPartitions()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read kafka partitions: %w", err)
	}
	existing := make(map[string]struct{}, len(partitions))
	for _, p := range partitions {
		existing[p.Topic] = struct{}{}
	}

	var toCreate []kafka.TopicConfig
	for _, topic := range []string{cfg.EventsTopic, cfg.CallbacksTopic} {
		if topic == "" {
			continue
		}
		if _, ok := existing[topic]; ok {
			continue
		}
		toCreate = append(toCreate, kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
	}
	if len(toCreate) > 0 {
		if err := conn.CreateTopics(toCreate...); err != nil {
			conn.Close()
			return nil, fmt.Errorf("create kafka topics: %w", err)
		}
		log.WithField("topics", len(toCreate)).Info("kafka topics created")
	}

	log.Info("kafka client ready")
	return &Client{Conn: conn, Config: cfg, log: log}, nil
}

// NewCallbackReader returns a consumer-group reader for the callbacks topic.
func (c *Client) NewCallbackReader() *kafka.Reader {
	groupID := c.Config.GroupID
	if groupID == "" {
		groupID = "office_service"
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.Config.Brokers,
		GroupID:     groupID,
		Topic:       c.Config.CallbacksTopic,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxAttempts: 10,
		Dialer:      &kafka.Dialer{Timeout: 10 * time.Second},
	})
}

// Close releases the admin connection.
func (c *Client) Close() error {
	if c == nil || c.Conn == nil {
		return nil
	}
	return c.Conn.Close()
}

// HealthCheck asks the cluster for its controller.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c == nil || c.Conn == nil {
		return fmt.Errorf("kafka client not initialised")
	}
	_, err := c.Conn.Controller()
	return err
}

// ControllerAddress returns host:port of the cluster controller.
func (c *Client) ControllerAddress() (string, error) {
	if c == nil || c.Conn == nil {
		return "", fmt.Errorf("kafka client not initialised")
	}
	controller, err := c.Conn.Controller()
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)), nil
}
