package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	models "bbps-hub/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

type stubProcessor struct {
	seen   int
	failed []models.Record
}

func (s *stubProcessor) ProcessRecords(_ context.Context, records []models.Record) []models.Record {
	s.seen += len(records)
	return s.failed
}

type stubDLQ struct {
	sent []models.Record
	err  error
}

func (s *stubDLQ) Send(_ context.Context, records []models.Record) error {
	s.sent = append(s.sent, records...)
	return s.err
}

func TestHandleParksFailedRecords(t *testing.T) {
	failed := models.Record{Key: []byte("TXN1"), Value: []byte(`{}`)}
	proc := &stubProcessor{failed: []models.Record{failed}}
	dlq := &stubDLQ{}
	c := &Consumer{Processor: proc, DLQ: dlq, Logger: zap.NewNop()}

	err := c.handle(context.Background(), []models.Record{failed, {Key: []byte("TXN2")}})
	require.NoError(t, err)
	assert.Equal(t, 2, proc.seen)
	assert.Equal(t, []models.Record{failed}, dlq.sent)
}

func TestHandleReportsDLQFailure(t *testing.T) {
	proc := &stubProcessor{failed: []models.Record{{Key: []byte("TXN1")}}}
	c := &Consumer{Processor: proc, DLQ: &stubDLQ{err: assert.AnError}, Logger: zap.NewNop()}

	assert.ErrorIs(t, c.handle(context.Background(), []models.Record{{Key: []byte("TXN1")}}), assert.AnError)
}

func TestHandleEmptyBatch(t *testing.T) {
	proc := &stubProcessor{}
	c := &Consumer{Processor: proc, DLQ: &stubDLQ{}, Logger: zap.NewNop()}

	require.NoError(t, c.handle(context.Background(), nil))
	assert.Zero(t, proc.seen)
}

func TestToRecords(t *testing.T) {
	got := toRecords([]*kgo.Record{{Key: []byte("k"), Value: []byte("v"), Topic: "bbps-webhooks"}})
	assert.Equal(t, []models.Record{{Key: []byte("k"), Value: []byte("v"), Topic: "bbps-webhooks"}}, got)
}

func TestEventRecord(t *testing.T) {
	event := models.PaymentEvent{
		PaymentID:      "665b1f",
		Status:         models.PaymentSuccess,
		PreviousStatus: models.PaymentPending,
		Source:         models.SourceWebhook,
		OccurredAt:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	record, err := eventRecord("bbps-payment-events", event)
	require.NoError(t, err)
	assert.Equal(t, "665b1f", string(record.Key))
	assert.Equal(t, "bbps-payment-events", record.Topic)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(record.Value, &decoded))
	assert.Equal(t, "SUCCESS", decoded["status"])
	assert.Equal(t, "PENDING", decoded["previousStatus"])
	assert.Equal(t, "webhook", decoded["source"])
	assert.Equal(t, "665b1f", decoded["paymentId"])
}

func TestDisabledProducerDropsEvents(t *testing.T) {
	p, err := NewProducer(ProducerConfig{Enabled: false, Topic: "bbps-payment-events"}, zap.NewNop(), nil)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), models.PaymentEvent{PaymentID: "x"})
		p.Close()
	})
}

func TestWorkerClientsRegisterSeparateMetrics(t *testing.T) {
	var (
		producer *Producer
		consumer *Consumer
	)
	assert.NotPanics(t, func() {
		var err error
		producer, err = NewProducer(ProducerConfig{Enabled: true, Brokers: []string{"localhost:9092"}, Topic: "bbps-payment-events"}, zap.NewNop(), NewEventMetrics())
		require.NoError(t, err)

		conf := &models.ConsumerConfig{Brokers: []string{"localhost:9092"}, Name: "bbps-webhook-worker", Topic: "bbps-webhooks", RecordsPerPoll: 10}
		consumer, err = NewWebhookConsumer(conf, zap.NewNop(), &stubProcessor{}, &stubDLQ{}, NewWebhookMetrics())
		require.NoError(t, err)
	})
	require.NotNil(t, producer)
	require.NotNil(t, consumer)

	consumer.Client.Close()
	producer.client.Close()
}
