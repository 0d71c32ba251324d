package kafka

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"time"

	// Local Packages
	models "bbps-hub/models"

	// External Packages
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
)

const flushTimeout = 10 * time.Second

type ProducerConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// Producer publishes payment lifecycle events keyed by payment id, so every
// event of one payment lands on the same partition in order. A disabled
// producer drops events.
type Producer struct {
	client *kgo.Client
	topic  string
	logger *zap.Logger
}

func NewProducer(conf ProducerConfig, logger *zap.Logger, metrics *kprom.Metrics) (*Producer, error) {
	p := &Producer{topic: conf.Topic, logger: logger}
	if !conf.Enabled {
		return p, nil
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(conf.Brokers...),
		kgo.DefaultProduceTopic(conf.Topic),
		kgo.RecordPartitioner(kgo.StickyKeyPartitioner(nil)),
	}
	if metrics != nil {
		opts = append(opts, kgo.WithHooks(metrics))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	p.client = client
	return p, nil
}

// Publish hands the event to the client without waiting for the broker.
// Delivery failures are logged.
func (p *Producer) Publish(ctx context.Context, event models.PaymentEvent) {
	if p.client == nil {
		return
	}
	record, err := eventRecord(p.topic, event)
	if err != nil {
		p.logger.Error("failed to encode payment event", zap.String("payment_id", event.PaymentID), zap.Error(err))
		return
	}
	p.client.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("failed to publish payment event",
				zap.String("payment_id", string(r.Key)),
				zap.String("topic", r.Topic),
				zap.Error(err),
			)
		}
	})
}

// Close flushes buffered events and closes the client.
func (p *Producer) Close() {
	if p.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Error("failed to flush payment events", zap.Error(err))
	}
	p.client.Close()
}

func eventRecord(topic string, event models.PaymentEvent) (*kgo.Record, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return &kgo.Record{Topic: topic, Key: []byte(event.PaymentID), Value: value}, nil
}
