package bills

import (
	// Go Internal Packages
	"context"
	"fmt"
	"time"

	// Local Packages
	errors "bbps-hub/errors"
	helpers "bbps-hub/helpers"
	models "bbps-hub/models"
	utils "bbps-hub/utils"

	// External Packages
	"go.uber.org/zap"
)

type PayInput struct {
	FetchReferenceID string
	Amount           float64
	UserID           string
	PaymentMethod    models.PaymentMethod
	IdempotencyKey   string
}

// PayBill pays a fetched bill. The fetch must exist, be unpaid, unexpired
// and the amount must equal the fetched bill amount exactly; a rejected
// request creates no payment. Once validated the attempt is stored as
// PENDING, then completed from the biller's answer or marked FAILED.
func (s *Service) PayBill(ctx context.Context, in PayInput) (*models.BillPayment, bool, error) {
	ve := errors.ValidationErrs()
	if in.FetchReferenceID == "" {
		ve.Add("fetchReferenceId", "cannot be empty")
	}
	if in.UserID == "" {
		ve.Add("userId", "cannot be empty")
	}
	if in.Amount <= 0 {
		ve.Add("amount", "must be greater than zero")
	}
	if err := ve.Err(); err != nil {
		return nil, false, errors.ValidationFailedErr(err)
	}

	fetch, err := s.fetches.FindFetchByReference(ctx, in.FetchReferenceID)
	if err != nil {
		return nil, false, err
	}
	if err = s.ensureUnpaid(ctx, in.FetchReferenceID); err != nil {
		return nil, false, err
	}
	if in.Amount != fetch.BillAmount {
		msg := fmt.Sprintf("amount mismatch, expected %s, provided %s", utils.ToString(fetch.BillAmount), utils.ToString(in.Amount))
		return nil, false, errors.E(errors.AmountMismatch, msg, nil)
	}
	if fetch.IsExpired(s.now()) {
		return nil, false, errors.E(errors.Expired, "bill fetch reference has expired, fetch the bill again", nil)
	}

	key := in.IdempotencyKey
	if key != "" {
		existing, err := s.payments.FindPaymentByIdempotencyKey(ctx, key)
		if err == nil {
			s.logger.Info("duplicate payment request", zap.String("idempotency_key", key))
			return existing, true, nil
		}
		if !errors.Is(err, errors.NotFound) {
			return nil, false, err
		}
	} else {
		key = helpers.NewIdempotencyKey("pay")
	}

	// A concurrent payment may have succeeded since the first check.
	if err = s.ensureUnpaid(ctx, in.FetchReferenceID); err != nil {
		return nil, false, err
	}

	// The attempt is stored under its key before the biller is called, so a
	// concurrent request with the same key reads it back instead of paying
	// a second time.
	payment := s.newPayment(in, fetch, key)
	if err = s.payments.InsertPayment(ctx, payment); err != nil {
		if errors.Is(err, errors.Conflict) {
			if existing, ferr := s.payments.FindPaymentByIdempotencyKey(ctx, key); ferr == nil {
				s.logger.Info("duplicate payment request", zap.String("idempotency_key", key))
				return existing, true, nil
			}
		}
		return nil, false, err
	}

	data, err := s.gateway.PayBill(ctx, in.FetchReferenceID, in.Amount)
	if err != nil {
		s.failPayment(ctx, payment, err)
		return nil, false, err
	}

	now := s.now().UTC()
	update := s.acceptedUpdate(data, now)
	if err = s.payments.UpdatePayment(ctx, payment.ID, update, now); err != nil {
		// Left PENDING so the biller's webhook can still settle it.
		s.logger.Error("payment accepted upstream but not stored",
			zap.String("fetch_reference_id", in.FetchReferenceID),
			zap.String("payment_id", payment.ID.Hex()),
			zap.Any("upstream", data),
			zap.Error(err),
		)
		return nil, false, err
	}
	update.Apply(payment)
	payment.UpdatedAt = now

	if payment.Status == models.PaymentSuccess {
		s.propagateSuccess(ctx, fetch)
	}
	s.events.Publish(ctx, models.NewPaymentEvent(payment, "", models.SourcePay, now))

	s.logger.Info("bill paid",
		zap.String("fetch_reference_id", payment.FetchReferenceID),
		zap.String("transaction_id", payment.TransactionID),
		zap.String("status", string(payment.Status)),
	)
	return payment, false, nil
}

func (s *Service) ensureUnpaid(ctx context.Context, fetchReferenceID string) error {
	paid, err := s.payments.HasSuccessfulPayment(ctx, fetchReferenceID)
	if err != nil {
		return err
	}
	if paid {
		return errors.E(errors.AlreadyPaid, "bill already paid successfully", nil)
	}
	return nil
}

// newPayment builds the PENDING attempt stored before the biller is called.
func (s *Service) newPayment(in PayInput, fetch *models.BillFetch, key string) *models.BillPayment {
	now := s.now().UTC()
	return &models.BillPayment{
		UserID:           in.UserID,
		BillFetchID:      fetch.ID,
		FetchReferenceID: in.FetchReferenceID,
		OperatorID:       fetch.OperatorID,
		OperatorName:     fetch.OperatorName,
		Amount:           in.Amount,
		Currency:         models.DefaultCurrency,
		Status:           models.PaymentPending,
		PaymentMethod:    in.PaymentMethod,
		IdempotencyKey:   key,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// acceptedUpdate turns the biller's pay response into the update applied to
// the stored attempt.
func (s *Service) acceptedUpdate(data map[string]any, now time.Time) models.PaymentUpdate {
	status := models.PaymentPending
	if raw := utils.ToString(data["status"]); raw != "" {
		if parsed, ok := models.ParsePaymentStatus(raw); ok {
			status = parsed
		} else {
			s.logger.Warn("unknown upstream payment status, storing as pending", zap.String("status", raw))
		}
	}

	u := models.PaymentUpdate{Status: &status, UpstreamResponse: data}
	if txn := utils.FirstString(data, "transactionId", "transaction_id", "tid"); txn != "" {
		u.TransactionID = &txn
	}
	if ext := utils.FirstString(data, "paymentId", "payment_id"); ext != "" {
		u.ExternalPaymentID = &ext
	}
	if status == models.PaymentSuccess {
		u.PaidAt = &now
	}
	return u
}

// failPayment marks the stored attempt FAILED. Errors are logged so they
// never hide the failure being recorded.
func (s *Service) failPayment(ctx context.Context, payment *models.BillPayment, cause error) {
	code, msg := failure(cause, "PAYMENT_ERROR")
	status := models.PaymentFailed
	update := models.PaymentUpdate{Status: &status, ErrorCode: &code, ErrorMessage: &msg, FailureReason: &msg}

	now := s.now().UTC()
	if err := s.payments.UpdatePayment(context.WithoutCancel(ctx), payment.ID, update, now); err != nil {
		s.logger.Error("failed to record failed payment",
			zap.String("fetch_reference_id", payment.FetchReferenceID),
			zap.String("idempotency_key", payment.IdempotencyKey),
			zap.Error(err),
		)
		return
	}
	update.Apply(payment)
	s.logger.Warn("bill payment failed",
		zap.String("fetch_reference_id", payment.FetchReferenceID),
		zap.String("error_code", code),
		zap.Error(cause),
	)
}

func (s *Service) propagateSuccess(ctx context.Context, fetch *models.BillFetch) {
	if _, err := s.fetches.MarkFetchSuccess(ctx, fetch.ID, s.now().UTC()); err != nil {
		s.logger.Error("failed to mark bill fetch paid",
			zap.String("fetch_reference_id", fetch.FetchReferenceID),
			zap.Error(err),
		)
	}
}

// CheckPaymentStatus asks the biller for the status of a transaction and
// brings the local payment in line when it differs. The linked fetch is not
// touched.
func (s *Service) CheckPaymentStatus(ctx context.Context, transactionID string) (*models.StatusSnapshot, error) {
	if transactionID == "" {
		return nil, errors.EmptyParamErr("transactionId")
	}

	data, err := s.gateway.TransactionStatus(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	snapshot := &models.StatusSnapshot{TransactionID: transactionID, Upstream: data}
	raw := utils.ToString(data["status"])
	status, known := models.ParsePaymentStatus(raw)
	if raw != "" {
		snapshot.Status = status
	}

	p, err := s.payments.FindPaymentByTransactionID(ctx, transactionID)
	if errors.Is(err, errors.NotFound) {
		return snapshot, nil
	}
	if err != nil {
		return nil, err
	}
	snapshot.PreviousStatus = p.Status

	if raw != "" && !known {
		s.logger.Warn("unknown upstream payment status", zap.String("transaction_id", transactionID), zap.String("status", raw))
		return snapshot, nil
	}
	if !known || status == p.Status {
		return snapshot, nil
	}

	now := s.now().UTC()
	update := models.PaymentUpdate{Status: &status}
	if status == models.PaymentSuccess && p.PaidAt == nil {
		update.PaidAt = &now
	}
	if err = s.payments.UpdatePayment(ctx, p.ID, update, now); err != nil {
		return nil, err
	}
	snapshot.Updated = true

	prev := p.Status
	update.Apply(p)
	s.events.Publish(ctx, models.NewPaymentEvent(p, prev, models.SourceStatusCheck, now))
	return snapshot, nil
}
