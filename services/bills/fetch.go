package bills

import (
	// Go Internal Packages
	"context"
	"strings"

	// Local Packages
	errors "bbps-hub/errors"
	helpers "bbps-hub/helpers"
	models "bbps-hub/models"
	operators "bbps-hub/services/operators"
	utils "bbps-hub/utils"

	// External Packages
	"go.uber.org/zap"
)

type FetchInput struct {
	OperatorID     string
	Parameters     map[string]any
	UserID         string
	IdempotencyKey string
}

// FetchBill asks the biller for the current bill of an operator and records
// the attempt. A repeated call with the same idempotency key returns the
// stored record and reports it as a duplicate. Every failed attempt is stored
// as a FAILED fetch before the error is returned.
func (s *Service) FetchBill(ctx context.Context, in FetchInput) (*models.BillFetch, bool, error) {
	if in.OperatorID == "" {
		return nil, false, errors.EmptyParamErr("operatorId")
	}
	if in.Parameters == nil {
		in.Parameters = map[string]any{}
	}

	key := in.IdempotencyKey
	if key != "" {
		existing, err := s.fetches.FindFetchByIdempotencyKey(ctx, key)
		if err == nil {
			s.logger.Info("duplicate fetch request", zap.String("idempotency_key", key))
			return existing, true, nil
		}
		if !errors.Is(err, errors.NotFound) {
			return nil, false, err
		}
	} else {
		key = helpers.NewIdempotencyKey("fetch")
	}

	op, err := s.operators.Operator(ctx, in.OperatorID)
	if err != nil {
		if errors.Is(err, errors.NotFound) {
			err = errors.E(errors.NotFound, "operator "+in.OperatorID+" not found, sync operators first", err)
		}
		s.recordFailedFetch(ctx, in, key, err)
		return nil, false, err
	}
	if err = operators.ValidateParameters(op, in.Parameters); err != nil {
		s.recordFailedFetch(ctx, in, key, err)
		return nil, false, err
	}

	data, err := s.gateway.FetchBill(ctx, in.OperatorID, in.Parameters)
	if err != nil {
		s.recordFailedFetch(ctx, in, key, err)
		return nil, false, err
	}

	fetch := s.newFetch(in, op, key, data)
	if err = s.fetches.InsertFetch(ctx, fetch); err != nil {
		if errors.Is(err, errors.Conflict) {
			if existing, ferr := s.fetches.FindFetchByIdempotencyKey(ctx, key); ferr == nil {
				return existing, true, nil
			}
		}
		s.recordFailedFetch(ctx, in, key, err)
		return nil, false, err
	}

	s.logger.Info("bill fetched",
		zap.String("operator_id", fetch.OperatorID),
		zap.String("fetch_reference_id", fetch.FetchReferenceID),
		zap.String("status", string(fetch.Status)),
	)
	return fetch, false, nil
}

func (s *Service) newFetch(in FetchInput, op *models.Operator, key string, data map[string]any) *models.BillFetch {
	now := s.now().UTC()
	expires := now.Add(s.fetchTTL)

	status := models.FetchPending
	if strings.EqualFold(utils.ToString(data["status"]), string(models.FetchSuccess)) {
		status = models.FetchSuccess
	}
	amount, _ := utils.ToFloat(firstValue(data, "billAmount", "bill_amount", "amount"))

	return &models.BillFetch{
		UserID:           in.UserID,
		OperatorID:       in.OperatorID,
		OperatorName:     op.OperatorName,
		Parameters:       in.Parameters,
		FetchReferenceID: utils.FirstString(data, "fetchReferenceId", "fetch_reference_id"),
		TransactionID:    utils.FirstString(data, "transactionId", "transaction_id", "tid"),
		BillAmount:       amount,
		CustomerName:     utils.FirstString(data, "customerName", "customer_name", "utilitycustomername"),
		DueDate:          utils.ParseTime(firstValue(data, "dueDate", "due_date", "duedate")),
		BillDate:         utils.ParseTime(firstValue(data, "billDate", "bill_date", "billdate")),
		BillNumber:       utils.FirstString(data, "billNumber", "bill_number", "billnumber"),
		Status:           status,
		UpstreamResponse: data,
		IdempotencyKey:   key,
		FetchedAt:        &now,
		ExpiresAt:        &expires,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// recordFailedFetch stores a FAILED fetch. Errors are logged so they never
// hide the failure being recorded.
func (s *Service) recordFailedFetch(ctx context.Context, in FetchInput, key string, cause error) {
	code, msg := failure(cause, "FETCH_ERROR")
	now := s.now().UTC()
	failed := &models.BillFetch{
		UserID:         in.UserID,
		OperatorID:     in.OperatorID,
		Parameters:     in.Parameters,
		Status:         models.FetchFailed,
		ErrorCode:      code,
		ErrorMessage:   msg,
		IdempotencyKey: key,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.fetches.InsertFetch(context.WithoutCancel(ctx), failed); err != nil {
		s.logger.Error("failed to record failed fetch",
			zap.String("operator_id", in.OperatorID),
			zap.String("idempotency_key", key),
			zap.Error(err),
		)
		return
	}
	s.logger.Warn("bill fetch failed",
		zap.String("operator_id", in.OperatorID),
		zap.String("error_code", code),
		zap.Error(cause),
	)
}

func firstValue(m map[string]any, keys ...string) any {
	v, _ := utils.FirstValue(m, keys...)
	return v
}
