package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/vimestats/internal/config"
	"github.com/vimestats/internal/domain"
)

const (
	// maxUsernameLength bounds nicknames accepted from the warm-up topic
	maxUsernameLength = 32
	warmTimeout       = 30 * time.Second
)

// WarmHandler caches player records for nicknames
type WarmHandler interface {
	Warm(ctx context.Context, names []string) int
}

// WarmupMessage is the message format of the warm-up topic
type WarmupMessage struct {
	Username string `json:"username"`
}

// DecodeWarmup extracts the nickname from a warm-up message
func DecodeWarmup(data []byte) (string, error) {
	var msg WarmupMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("decoding warm-up message: %w", err)
	}
	name := strings.TrimSpace(msg.Username)
	if name == "" || len(name) > maxUsernameLength {
		return "", fmt.Errorf("%w: username %q", domain.ErrInvalidInput, msg.Username)
	}
	return name, nil
}

// Consumer consumes warm-up nicknames from Kafka
type Consumer struct {
	config        *config.KafkaConfig
	handler       WarmHandler
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, handler WarmHandler, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		handler:       handler,
		logger:        logger,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan bool),
	}, nil
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    c.ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			if c.ctx.Err() != nil {
				return
			}

			c.ready = make(chan bool)
		}
	}()

	// Wait until consumer is ready
	select {
	case <-c.ready:
		c.logger.Info("Kafka consumer ready")
	case <-c.ctx.Done():
		return c.ctx.Err()
	}

	// Handle errors in separate goroutine
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// warmBatch accumulates nicknames until it is flushed into the handler
type warmBatch struct {
	handler WarmHandler
	logger  *slog.Logger
	names   []string
}

func (b *warmBatch) add(name string) int {
	b.names = append(b.names, name)
	return len(b.names)
}

func (b *warmBatch) flush() {
	if len(b.names) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), warmTimeout)
	defer cancel()

	warmed := b.handler.Warm(ctx, b.names)
	b.logger.Debug("processed warm-up batch", "batch_size", len(b.names), "warmed", warmed)
	b.names = b.names[:0]
}

// ConsumeClaim collects nicknames from a partition and warms them in
// batches, flushing on batch size or timeout
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	cfg := h.consumer.config
	logger := h.consumer.logger.With("topic", claim.Topic(), "partition", claim.Partition())
	batch := &warmBatch{
		handler: h.consumer.handler,
		logger:  logger,
		names:   make([]string, 0, cfg.BatchSize),
	}
	defer batch.flush()

	timer := time.NewTimer(cfg.BatchTimeout)
	defer timer.Stop()

	for {
		select {
		case <-session.Context().Done():
			return nil

		case <-timer.C:
			batch.flush()
			timer.Reset(cfg.BatchTimeout)

		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			session.MarkMessage(message, "")

			name, err := DecodeWarmup(message.Value)
			if err != nil {
				logger.Warn("skipping warm-up message", "offset", message.Offset, "error", err)
				continue
			}
			if batch.add(name) >= cfg.BatchSize {
				batch.flush()
				timer.Reset(cfg.BatchTimeout)
			}
		}
	}
}
