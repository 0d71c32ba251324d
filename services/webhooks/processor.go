package webhooks

import (
	// Go Internal Packages
	"context"
	"encoding/json"

	// Local Packages
	errors "bbps-hub/errors"
	models "bbps-hub/models"

	// External Packages
	"go.uber.org/zap"
)

// RecordProcessor applies webhook notifications relayed through Kafka.
type RecordProcessor struct {
	Logger     *zap.Logger
	Reconciler *Reconciler
}

func NewRecordProcessor(logger *zap.Logger, reconciler *Reconciler) *RecordProcessor {
	return &RecordProcessor{Logger: logger, Reconciler: reconciler}
}

// ProcessRecords applies every record and returns the ones that should be
// retried later. Malformed or invalid notifications can never succeed and
// are dropped after logging.
func (p *RecordProcessor) ProcessRecords(ctx context.Context, records []models.Record) []models.Record {
	if len(records) == 0 {
		return nil
	}

	var failed []models.Record
	for _, record := range records {
		if err := p.ProcessRecord(ctx, record); err != nil {
			if errors.Is(err, errors.Invalid) {
				p.Logger.Warn("dropping invalid webhook record", zap.ByteString("key", record.Key), zap.Error(err))
				continue
			}
			p.Logger.Error("failed to apply webhook record", zap.ByteString("key", record.Key), zap.Error(err))
			failed = append(failed, record)
		}
	}
	return failed
}

func (p *RecordProcessor) ProcessRecord(ctx context.Context, record models.Record) error {
	var raw map[string]any
	if err := json.Unmarshal(record.Value, &raw); err != nil {
		return errors.InvalidBodyErr(err)
	}

	_, err := p.Reconciler.Apply(ctx, ParseNotification(raw), raw)
	return err
}
