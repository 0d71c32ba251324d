package bills

import (
	// Go Internal Packages
	"context"
	"time"

	// Local Packages
	errors "bbps-hub/errors"
	models "bbps-hub/models"

	// External Packages
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const DefaultFetchTTL = 24 * time.Hour

type Gateway interface {
	FetchBill(ctx context.Context, operatorID string, parameters map[string]any) (map[string]any, error)
	PayBill(ctx context.Context, fetchReferenceID string, amount float64) (map[string]any, error)
	TransactionStatus(ctx context.Context, transactionID string) (map[string]any, error)
}

type OperatorLookup interface {
	Operator(ctx context.Context, operatorID string) (*models.Operator, error)
}

type FetchRepository interface {
	InsertFetch(ctx context.Context, f *models.BillFetch) error
	FindFetchByIdempotencyKey(ctx context.Context, key string) (*models.BillFetch, error)
	FindFetchByReference(ctx context.Context, fetchReferenceID string) (*models.BillFetch, error)
	FindFetchByID(ctx context.Context, id primitive.ObjectID) (*models.BillFetch, error)
	MarkFetchSuccess(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error)
	ListFetches(ctx context.Context, q models.FetchQuery) ([]models.BillFetch, int64, error)
}

type PaymentRepository interface {
	InsertPayment(ctx context.Context, p *models.BillPayment) error
	FindPaymentByIdempotencyKey(ctx context.Context, key string) (*models.BillPayment, error)
	FindPaymentByTransactionID(ctx context.Context, transactionID string) (*models.BillPayment, error)
	FindPaymentByID(ctx context.Context, id primitive.ObjectID) (*models.BillPayment, error)
	HasSuccessfulPayment(ctx context.Context, fetchReferenceID string) (bool, error)
	UpdatePayment(ctx context.Context, id primitive.ObjectID, u models.PaymentUpdate, at time.Time) error
	ListPayments(ctx context.Context, q models.PaymentQuery) ([]models.BillPayment, int64, error)
}

// EventPublisher is told about every payment status change. Publishing is
// best effort and never fails the operation that caused the change.
type EventPublisher interface {
	Publish(ctx context.Context, event models.PaymentEvent)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, models.PaymentEvent) {}

// Service tracks bill fetches and keeps the payment ledger.
type Service struct {
	logger    *zap.Logger
	gateway   Gateway
	operators OperatorLookup
	fetches   FetchRepository
	payments  PaymentRepository
	events    EventPublisher
	fetchTTL  time.Duration
	now       func() time.Time
}

func NewService(logger *zap.Logger, gateway Gateway, operators OperatorLookup, fetches FetchRepository,
	payments PaymentRepository, events EventPublisher, fetchTTL time.Duration) *Service {
	if events == nil {
		events = noopPublisher{}
	}
	if fetchTTL <= 0 {
		fetchTTL = DefaultFetchTTL
	}
	return &Service{
		logger:    logger,
		gateway:   gateway,
		operators: operators,
		fetches:   fetches,
		payments:  payments,
		events:    events,
		fetchTTL:  fetchTTL,
		now:       time.Now,
	}
}

// ListFetches returns one page of bill fetches, newest first.
func (s *Service) ListFetches(ctx context.Context, q models.FetchQuery) ([]models.BillFetch, models.Pagination, error) {
	q.Page = q.Page.Normalize()
	items, total, err := s.fetches.ListFetches(ctx, q)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return items, models.NewPagination(q.Page, total), nil
}

// ListPayments returns one page of bill payments, newest first.
func (s *Service) ListPayments(ctx context.Context, q models.PaymentQuery) ([]models.BillPayment, models.Pagination, error) {
	q.Page = q.Page.Normalize()
	items, total, err := s.payments.ListPayments(ctx, q)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return items, models.NewPagination(q.Page, total), nil
}

// PaymentDetails returns a payment owned by userID along with the bill
// fetch it paid.
func (s *Service) PaymentDetails(ctx context.Context, userID, paymentID string) (*models.PaymentDetails, error) {
	id, err := primitive.ObjectIDFromHex(paymentID)
	if err != nil {
		return nil, errors.InvalidParamsErr(err)
	}
	p, err := s.payments.FindPaymentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, errors.E(errors.Forbidden, "payment belongs to another user", nil)
	}

	details := &models.PaymentDetails{BillPayment: p}
	if p.BillFetchID.IsZero() {
		return details, nil
	}
	fetch, err := s.fetches.FindFetchByID(ctx, p.BillFetchID)
	switch {
	case err == nil:
		details.BillFetch = fetch
	case errors.Is(err, errors.NotFound):
		s.logger.Debug("bill fetch of payment no longer stored", zap.String("payment_id", paymentID))
	default:
		return nil, err
	}
	return details, nil
}

// failure extracts the code and message stored on a failed attempt.
func failure(err error, fallbackCode string) (string, string) {
	var coded interface{ FailureCode() string }
	if errors.As(err, &coded) {
		if code := coded.FailureCode(); code != "" {
			return code, err.Error()
		}
	}
	switch errors.KindOf(err) {
	case errors.Invalid:
		return "VALIDATION_ERROR", err.Error()
	case errors.NotFound:
		return "NOT_FOUND", err.Error()
	case errors.Internal:
		return "PERSISTENCE_ERROR", err.Error()
	}
	return fallbackCode, err.Error()
}
