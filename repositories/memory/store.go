// Package memory keeps operators, bill fetches and bill payments in process.
// It enforces the same unique keys as the MongoDB indexes, so the services
// behave identically against either store.
package memory

import (
	// Go Internal Packages
	"context"
	"sort"
	"sync"
	"time"

	// Local Packages
	errors "bbps-hub/errors"
	models "bbps-hub/models"

	// External Packages
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Store struct {
	mu        sync.RWMutex
	operators map[string]models.Operator
	fetches   []models.BillFetch
	payments  []models.BillPayment
	now       func() time.Time
}

func NewStore() *Store {
	return &Store{operators: make(map[string]models.Operator), now: time.Now}
}

// Operators

func (s *Store) UpsertOperators(_ context.Context, ops []models.Operator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range ops {
		existing, ok := s.operators[op.OperatorID]
		if ok {
			op.ID = existing.ID
			op.Parameters = existing.Parameters
			op.CreatedAt = existing.CreatedAt
		} else {
			op.ID = primitive.NewObjectID()
			op.Parameters = []models.OperatorParameter{}
			op.CreatedAt = op.LastSyncedAt
		}
		op.UpdatedAt = op.LastSyncedAt
		s.operators[op.OperatorID] = op
	}
	return nil
}

func (s *Store) SetParameters(_ context.Context, operatorID string, params []models.OperatorParameter, syncedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.operators[operatorID]
	if !ok {
		return false, nil
	}
	op.Parameters = append([]models.OperatorParameter{}, params...)
	op.LastSyncedAt = syncedAt
	op.UpdatedAt = syncedAt
	s.operators[operatorID] = op
	return true, nil
}

func (s *Store) FindOperator(_ context.Context, operatorID string) (*models.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, ok := s.operators[operatorID]
	if !ok {
		return nil, errors.NotFoundErr("operator", operatorID)
	}
	return &op, nil
}

// Bill fetches

func (s *Store) InsertFetch(_ context.Context, f *models.BillFetch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.fetches {
		if f.IdempotencyKey != "" && existing.IdempotencyKey == f.IdempotencyKey {
			return errors.DuplicateKeyErr("bill fetches", errors.New("idempotency_key "+f.IdempotencyKey))
		}
		if f.FetchReferenceID != "" && existing.FetchReferenceID == f.FetchReferenceID {
			return errors.DuplicateKeyErr("bill fetches", errors.New("fetch_reference_id "+f.FetchReferenceID))
		}
	}
	if f.ID.IsZero() {
		f.ID = primitive.NewObjectID()
	}
	s.fetches = append(s.fetches, *f)
	return nil
}

func (s *Store) FindFetchByIdempotencyKey(_ context.Context, key string) (*models.BillFetch, error) {
	return s.findFetch(func(f *models.BillFetch) bool { return f.IdempotencyKey == key }, key)
}

func (s *Store) FindFetchByReference(_ context.Context, fetchReferenceID string) (*models.BillFetch, error) {
	return s.findFetch(func(f *models.BillFetch) bool { return f.FetchReferenceID == fetchReferenceID }, fetchReferenceID)
}

func (s *Store) FindFetchByID(_ context.Context, id primitive.ObjectID) (*models.BillFetch, error) {
	return s.findFetch(func(f *models.BillFetch) bool { return f.ID == id }, id.Hex())
}

func (s *Store) findFetch(match func(*models.BillFetch) bool, key string) (*models.BillFetch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if key == "" {
		return nil, errors.NotFoundErr("bill fetch", key)
	}
	for i := range s.fetches {
		if match(&s.fetches[i]) {
			f := s.fetches[i]
			return &f, nil
		}
	}
	return nil, errors.NotFoundErr("bill fetch", key)
}

func (s *Store) MarkFetchSuccess(_ context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.fetches {
		if s.fetches[i].ID != id {
			continue
		}
		if s.fetches[i].Status == models.FetchSuccess {
			return false, nil
		}
		s.fetches[i].Status = models.FetchSuccess
		s.fetches[i].UpdatedAt = at
		return true, nil
	}
	return false, nil
}

func (s *Store) ListFetches(_ context.Context, q models.FetchQuery) ([]models.BillFetch, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := []models.BillFetch{}
	for _, f := range s.fetches {
		if q.UserID != "" && f.UserID != q.UserID {
			continue
		}
		if q.OperatorID != "" && f.OperatorID != q.OperatorID {
			continue
		}
		if q.Status != "" && f.Status != q.Status {
			continue
		}
		f.UpstreamResponse = nil
		matched = append(matched, f)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, q.Page), int64(len(matched)), nil
}

// Bill payments

func (s *Store) InsertPayment(_ context.Context, p *models.BillPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.payments {
		if p.IdempotencyKey != "" && existing.IdempotencyKey == p.IdempotencyKey {
			return errors.DuplicateKeyErr("bill payments", errors.New("idempotency_key "+p.IdempotencyKey))
		}
		if p.TransactionID != "" && existing.TransactionID == p.TransactionID {
			return errors.DuplicateKeyErr("bill payments", errors.New("eko_transaction_id "+p.TransactionID))
		}
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.payments = append(s.payments, *p)
	return nil
}

func (s *Store) FindPaymentByIdempotencyKey(_ context.Context, key string) (*models.BillPayment, error) {
	return s.findPayment(func(p *models.BillPayment) bool { return p.IdempotencyKey == key }, key)
}

func (s *Store) FindPaymentByTransactionID(_ context.Context, transactionID string) (*models.BillPayment, error) {
	return s.findPayment(func(p *models.BillPayment) bool { return p.TransactionID == transactionID }, transactionID)
}

func (s *Store) FindPaymentByID(_ context.Context, id primitive.ObjectID) (*models.BillPayment, error) {
	return s.findPayment(func(p *models.BillPayment) bool { return p.ID == id }, id.Hex())
}

// FindPaymentByFetchReference returns the most recent attempt.
func (s *Store) FindPaymentByFetchReference(_ context.Context, fetchReferenceID string) (*models.BillPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.BillPayment
	for i := range s.payments {
		p := &s.payments[i]
		if fetchReferenceID == "" || p.FetchReferenceID != fetchReferenceID {
			continue
		}
		if latest == nil || !p.CreatedAt.Before(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, errors.NotFoundErr("bill payment", fetchReferenceID)
	}
	p := *latest
	return &p, nil
}

func (s *Store) findPayment(match func(*models.BillPayment) bool, key string) (*models.BillPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if key == "" {
		return nil, errors.NotFoundErr("bill payment", key)
	}
	for i := range s.payments {
		if match(&s.payments[i]) {
			p := s.payments[i]
			return &p, nil
		}
	}
	return nil, errors.NotFoundErr("bill payment", key)
}

func (s *Store) HasSuccessfulPayment(_ context.Context, fetchReferenceID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.payments {
		if p.FetchReferenceID == fetchReferenceID && p.Status == models.PaymentSuccess {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UpdatePayment(_ context.Context, id primitive.ObjectID, u models.PaymentUpdate, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.TransactionID != nil && *u.TransactionID != "" {
		for _, existing := range s.payments {
			if existing.ID != id && existing.TransactionID == *u.TransactionID {
				return errors.DuplicateKeyErr("bill payments", errors.New("eko_transaction_id "+*u.TransactionID))
			}
		}
	}
	for i := range s.payments {
		if s.payments[i].ID == id {
			u.Apply(&s.payments[i])
			s.payments[i].UpdatedAt = at
			return nil
		}
	}
	return errors.NotFoundErr("bill payment", id.Hex())
}

func (s *Store) ListPayments(_ context.Context, q models.PaymentQuery) ([]models.BillPayment, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := []models.BillPayment{}
	for _, p := range s.payments {
		if q.UserID != "" && p.UserID != q.UserID {
			continue
		}
		if q.Status != "" && p.Status != q.Status {
			continue
		}
		p.UpstreamResponse = nil
		p.WebhookData = nil
		matched = append(matched, p)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, q.Page), int64(len(matched)), nil
}

// Counts returns the number of stored fetches and payments.
func (s *Store) Counts() (fetches, payments int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fetches), len(s.payments)
}

// Purge drops fetches and payments created before the retention windows,
// the in-process counterpart of the MongoDB TTL indexes.
func (s *Store) Purge(fetchRetention, paymentRetention time.Duration) (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	fetches := s.fetches[:0]
	for _, f := range s.fetches {
		if now.Sub(f.CreatedAt) < fetchRetention {
			fetches = append(fetches, f)
		}
	}
	droppedFetches := len(s.fetches) - len(fetches)
	s.fetches = fetches

	payments := s.payments[:0]
	for _, p := range s.payments {
		if now.Sub(p.CreatedAt) < paymentRetention {
			payments = append(payments, p)
		}
	}
	droppedPayments := len(s.payments) - len(payments)
	s.payments = payments

	return droppedFetches, droppedPayments
}

func paginate[T any](items []T, p models.Page) []T {
	p = p.Normalize()
	start := int(p.Skip())
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
