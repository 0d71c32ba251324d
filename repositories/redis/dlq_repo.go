package redis

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"fmt"
	"time"

	// Local Packages
	models "bbps-hub/models"

	// External Packages
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultListName = "failed-bbps-webhooks"

// DeadLetter is a webhook relay record that could not be applied.
type DeadLetter struct {
	Key      string          `json:"key"`
	Topic    string          `json:"topic"`
	Payload  json.RawMessage `json:"payload"`
	FailedAt time.Time       `json:"failedAt"`
}

type DeadLetterQueue struct {
	client   *redis.Client
	logger   *zap.Logger
	listName string
	now      func() time.Time
}

func NewDeadLetterQueue(client *redis.Client, logger *zap.Logger, listName string) *DeadLetterQueue {
	if listName == "" {
		listName = DefaultListName
	}
	return &DeadLetterQueue{client: client, logger: logger, listName: listName, now: time.Now}
}

// Send stores every failed record under "bbps:webhook:{key}" and appends it
// to the dead-letter list so failures can be replayed in arrival order.
func (r *DeadLetterQueue) Send(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}

	successCount := 0
	for _, record := range records {
		letter := DeadLetter{
			Key:      string(record.Key),
			Topic:    record.Topic,
			Payload:  payloadOf(record.Value),
			FailedAt: r.now().UTC(),
		}
		jsonData, err := json.Marshal(letter)
		if err != nil {
			r.logger.Error("failed to marshal record", zap.Error(err))
			continue
		}

		key := fmt.Sprintf("bbps:webhook:%s", record.Key)
		pipe := r.client.TxPipeline()
		pipe.Set(ctx, key, jsonData, 0)
		pipe.RPush(ctx, r.listName, jsonData)
		if _, err = pipe.Exec(ctx); err != nil {
			r.logger.Error("failed to store record", zap.String("key", key), zap.Error(err))
			continue
		}
		successCount++
	}

	if successCount > 0 {
		r.logger.Info("successfully sent records", zap.Int("count", successCount), zap.String("list", r.listName))
	}
	if successCount < len(records) {
		return fmt.Errorf("dead letter queue: stored %d of %d records", successCount, len(records))
	}
	return nil
}

// Pending returns up to n dead letters from the head of the list without
// removing them.
func (r *DeadLetterQueue) Pending(ctx context.Context, n int64) ([]DeadLetter, error) {
	raw, err := r.client.LRange(ctx, r.listName, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	letters := make([]DeadLetter, 0, len(raw))
	for _, item := range raw {
		var letter DeadLetter
		if err := json.Unmarshal([]byte(item), &letter); err != nil {
			r.logger.Warn("skipping malformed dead letter", zap.Error(err))
			continue
		}
		letters = append(letters, letter)
	}
	return letters, nil
}

// Len returns the number of parked records.
func (r *DeadLetterQueue) Len(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, r.listName).Result()
}

// Report logs the backlog size and the age of the oldest parked record. An
// empty list logs nothing.
func (r *DeadLetterQueue) Report(ctx context.Context) error {
	n, err := r.Len(ctx)
	if err != nil || n == 0 {
		return err
	}
	oldest, err := r.Pending(ctx, 1)
	if err != nil {
		return err
	}

	fields := []zap.Field{zap.String("list", r.listName), zap.Int64("count", n)}
	if len(oldest) > 0 {
		fields = append(fields,
			zap.String("oldest_key", oldest[0].Key),
			zap.Duration("oldest_age", r.now().Sub(oldest[0].FailedAt)),
		)
	}
	r.logger.Warn("dead letter backlog", fields...)
	return nil
}

// Watch calls Report every interval until ctx is done.
func (r *DeadLetterQueue) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Report(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("failed to read dead letter backlog", zap.String("list", r.listName), zap.Error(err))
			}
		}
	}
}

// payloadOf keeps JSON payloads as-is and quotes anything else.
func payloadOf(value []byte) json.RawMessage {
	if json.Valid(value) {
		return value
	}
	quoted, _ := json.Marshal(string(value))
	return quoted
}
