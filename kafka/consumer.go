package kafka

import (
	// Go Internal Packages
	"context"
	"errors"
	"fmt"

	// Local Packages
	models "bbps-hub/models"

	// External Packages
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
)

type Consumer struct {
	Client    *kgo.Client
	Config    *models.ConsumerConfig
	Processor RecordProcessor
	DLQ       DeadLetterQueue
	Logger    *zap.Logger
}

// RecordProcessor applies a batch and returns the records that failed.
type RecordProcessor interface {
	ProcessRecords(ctx context.Context, records []models.Record) []models.Record
}

type DeadLetterQueue interface {
	Send(ctx context.Context, records []models.Record) error
}

// NewWebhookConsumer creates a consumer group member for the relayed webhook
// topic (PS: Must call Poll to start consuming the records)
func NewWebhookConsumer(conf *models.ConsumerConfig, logger *zap.Logger, processor RecordProcessor, dlq DeadLetterQueue, metrics *kprom.Metrics) (*Consumer, error) {
	c := &Consumer{Config: conf, Processor: processor, DLQ: dlq, Logger: logger}

	opts := []kgo.Opt{
		kgo.SeedBrokers(conf.Brokers...), // Connects to Kafka brokers
		kgo.ConsumerGroup(conf.Name),     // Specifies the consumer group
		kgo.ConsumeTopics(conf.Topic),    // Specifies a single topic to consume
		kgo.DisableAutoCommit(),          // Disables auto-commit
		kgo.BlockRebalanceOnPoll(),       // Blocks rebalancing until the poll loop is running
	}
	if metrics != nil {
		opts = append(opts, kgo.WithHooks(metrics)) // Attaches monitoring hooks
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}

	c.Client = client
	return c, nil
}

// Poll polls for records until ctx is done. Records that fail to apply are
// parked in the dead letter queue before the batch is committed.
func (c *Consumer) Poll(ctx context.Context) error {
	defer c.Client.Close()

	consumerName := c.Config.Name
	recordsPerPoll := c.Config.RecordsPerPoll

	for {
		if ctx.Err() != nil {
			c.Logger.Warn("Polling stopped: context canceled")
			return ctx.Err()
		}

		c.Logger.Debug(fmt.Sprintf("%s: polling for records", consumerName))
		fetches := c.Client.PollRecords(ctx, recordsPerPoll)

		if fetches.IsClientClosed() {
			return errors.New("kafka client closed")
		}
		if errors.Is(fetches.Err0(), context.Canceled) {
			return errors.New("context got canceled")
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.Logger.Error("fetch error", zap.String("topic", topic), zap.Int32("partition", partition), zap.Error(err))
		})

		if err := c.handle(ctx, toRecords(fetches.Records())); err != nil {
			c.Logger.Error("Failed to process records", zap.Error(err))
			c.Client.AllowRebalance()
			continue
		}

		if err := c.Client.CommitRecords(ctx, fetches.Records()...); err != nil {
			c.Logger.Error("Failed to commit records", zap.Error(err))
		}
		c.Client.AllowRebalance()
	}
}

func (c *Consumer) handle(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	failed := c.Processor.ProcessRecords(ctx, records)
	if len(failed) == 0 {
		return nil
	}
	c.Logger.Warn("parking failed webhook records", zap.Int("count", len(failed)))
	return c.DLQ.Send(ctx, failed)
}

func toRecords(fetched []*kgo.Record) []models.Record {
	records := make([]models.Record, len(fetched))
	for idx, record := range fetched {
		records[idx] = models.Record{
			Key:   record.Key,
			Value: record.Value,
			Topic: record.Topic,
		}
	}
	return records
}
