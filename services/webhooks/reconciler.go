package webhooks

import (
	// Go Internal Packages
	"context"
	"time"

	// Local Packages
	errors "bbps-hub/errors"
	models "bbps-hub/models"
	utils "bbps-hub/utils"

	// External Packages
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type PaymentRepository interface {
	FindPaymentByTransactionID(ctx context.Context, transactionID string) (*models.BillPayment, error)
	FindPaymentByFetchReference(ctx context.Context, fetchReferenceID string) (*models.BillPayment, error)
	UpdatePayment(ctx context.Context, id primitive.ObjectID, u models.PaymentUpdate, at time.Time) error
}

type FetchRepository interface {
	MarkFetchSuccess(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event models.PaymentEvent)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, models.PaymentEvent) {}

var ErrMissingCorrelation = errors.E(errors.Invalid, "transactionId or fetchReferenceId is required", nil)

// Reconciler applies the biller's asynchronous status notifications to the
// payment ledger. Notifications arrive at least once and in any order, so
// applying the same one twice only re-stamps the receipt fields.
type Reconciler struct {
	logger   *zap.Logger
	payments PaymentRepository
	fetches  FetchRepository
	events   EventPublisher
	now      func() time.Time
}

func NewReconciler(logger *zap.Logger, payments PaymentRepository, fetches FetchRepository, events EventPublisher) *Reconciler {
	if events == nil {
		events = noopPublisher{}
	}
	return &Reconciler{logger: logger, payments: payments, fetches: fetches, events: events, now: time.Now}
}

// ParseNotification reads a webhook body. Ids and amounts may arrive as
// strings or numbers.
func ParseNotification(raw map[string]any) models.WebhookNotification {
	n := models.WebhookNotification{
		TransactionID:    utils.FirstString(raw, "transactionId", "transaction_id", "tid"),
		PaymentID:        utils.FirstString(raw, "paymentId", "payment_id"),
		FetchReferenceID: utils.FirstString(raw, "fetchReferenceId", "fetch_reference_id"),
		Status:           utils.FirstString(raw, "status"),
		Message:          utils.FirstString(raw, "message"),
		ErrorCode:        utils.FirstString(raw, "errorCode", "error_code"),
		ErrorMessage:     utils.FirstString(raw, "errorMessage", "error_message"),
		Timestamp:        utils.FirstString(raw, "timestamp"),
	}
	if v, ok := utils.FirstValue(raw, "amount"); ok {
		if amount, ok := utils.ToFloat(v); ok {
			n.Amount = &amount
		}
	}
	return n
}

// Apply reconciles one notification. An unmatched notification is not an
// error: the result reports Matched=false and nothing is written.
func (r *Reconciler) Apply(ctx context.Context, n models.WebhookNotification, raw map[string]any) (*models.ReconcileResult, error) {
	if n.TransactionID == "" && n.FetchReferenceID == "" {
		return nil, ErrMissingCorrelation
	}

	var incoming models.PaymentStatus
	if n.Status != "" {
		status, ok := models.ParsePaymentStatus(n.Status)
		if !ok {
			return nil, errors.E(errors.Invalid, "unknown payment status "+n.Status, nil)
		}
		incoming = status
	}

	payment, err := r.find(ctx, n)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		r.logger.Warn("webhook for unknown payment",
			zap.String("transaction_id", n.TransactionID),
			zap.String("fetch_reference_id", n.FetchReferenceID),
		)
		return &models.ReconcileResult{Matched: false}, nil
	}

	now := r.now().UTC()
	target := payment.Status
	update := models.PaymentUpdate{WebhookData: raw, WebhookReceivedAt: &now}
	if incoming != "" {
		target = incoming
		update.Status = &incoming
	}
	if n.PaymentID != "" && payment.ExternalPaymentID == "" {
		update.ExternalPaymentID = &n.PaymentID
	}
	if target == models.PaymentSuccess && payment.PaidAt == nil {
		paidAt := now
		if ts := utils.ParseTime(n.Timestamp); ts != nil {
			paidAt = ts.UTC()
		}
		update.PaidAt = &paidAt
	}
	if incoming == models.PaymentFailed {
		if n.ErrorCode != "" {
			update.ErrorCode = &n.ErrorCode
		}
		msg := n.ErrorMessage
		if msg == "" {
			msg = n.Message
		}
		if msg != "" {
			update.ErrorMessage = &msg
			update.FailureReason = &msg
		}
	}
	if n.Amount != nil && *n.Amount != payment.Amount {
		r.logger.Warn("webhook amount differs from payment",
			zap.String("payment_id", payment.ID.Hex()),
			zap.Float64("payment_amount", payment.Amount),
			zap.Float64("webhook_amount", *n.Amount),
		)
	}

	if err = r.payments.UpdatePayment(ctx, payment.ID, update, now); err != nil {
		return nil, err
	}

	result := &models.ReconcileResult{
		Matched:        true,
		PaymentID:      payment.ID,
		PreviousStatus: payment.Status,
		Status:         target,
	}
	if target == models.PaymentSuccess && !payment.BillFetchID.IsZero() {
		changed, err := r.fetches.MarkFetchSuccess(ctx, payment.BillFetchID, now)
		if err != nil {
			return nil, err
		}
		result.FetchUpdated = changed
	}

	if result.PreviousStatus != target {
		prev := payment.Status
		update.Apply(payment)
		r.events.Publish(ctx, models.NewPaymentEvent(payment, prev, models.SourceWebhook, now))
	}

	r.logger.Info("webhook applied",
		zap.String("payment_id", payment.ID.Hex()),
		zap.String("previous_status", string(result.PreviousStatus)),
		zap.String("status", string(target)),
		zap.Bool("fetch_updated", result.FetchUpdated),
	)
	return result, nil
}

// find looks the payment up by transaction id, then by fetch reference.
// It returns nil without an error when neither matches.
func (r *Reconciler) find(ctx context.Context, n models.WebhookNotification) (*models.BillPayment, error) {
	if n.TransactionID != "" {
		p, err := r.payments.FindPaymentByTransactionID(ctx, n.TransactionID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, errors.NotFound) {
			return nil, err
		}
	}
	if n.FetchReferenceID != "" {
		p, err := r.payments.FindPaymentByFetchReference(ctx, n.FetchReferenceID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, errors.NotFound) {
			return nil, err
		}
	}
	return nil, nil
}
