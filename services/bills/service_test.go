package bills

import (
	"context"
	"sync"
	"testing"
	"time"

	config "bbps-hub/config"
	errors "bbps-hub/errors"
	gateway "bbps-hub/gateway"
	models "bbps-hub/models"
	memory "bbps-hub/repositories/memory"
	operators "bbps-hub/services/operators"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeGateway struct {
	mu         sync.Mutex
	fetchResp  map[string]any
	fetchErr   error
	payResp    map[string]any
	payErr     error
	statusResp map[string]any
	statusErr  error
	fetchCalls int
	payCalls   int
}

func (g *fakeGateway) FetchBill(context.Context, string, map[string]any) (map[string]any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetchCalls++
	return g.fetchResp, g.fetchErr
}

func (g *fakeGateway) PayBill(context.Context, string, float64) (map[string]any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payCalls++
	return g.payResp, g.payErr
}

func (g *fakeGateway) TransactionStatus(context.Context, string) (map[string]any, error) {
	return g.statusResp, g.statusErr
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.PaymentEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e models.PaymentEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

type fixture struct {
	svc    *Service
	store  *memory.Store
	gw     *fakeGateway
	events *recordingPublisher
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.UpsertOperators(ctx, []models.Operator{{OperatorID: "OP1", OperatorName: "Power Co"}}))
	_, err := store.SetParameters(ctx, "OP1", []models.OperatorParameter{{Name: "consumer_number", Required: true}}, time.Now())
	require.NoError(t, err)

	f := &fixture{
		store: store,
		gw: &fakeGateway{
			fetchResp: map[string]any{"status": "SUCCESS", "billAmount": 500.0, "fetchReferenceId": "FR1", "customerName": "A Kumar", "dueDate": "2024-06-15"},
			payResp:   map[string]any{"status": "PENDING", "transactionId": "TXN1"},
		},
		events: &recordingPublisher{},
		now:    time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	directory := operators.NewDirectory(zap.NewNop(), nil, store, config.SubCategories{})
	f.svc = NewService(zap.NewNop(), f.gw, directory, store, store, f.events, 0)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) fetch(t *testing.T) *models.BillFetch {
	t.Helper()
	fetch, _, err := f.svc.FetchBill(context.Background(), FetchInput{
		OperatorID: "OP1",
		Parameters: map[string]any{"consumer_number": "12345"},
		UserID:     "u1",
	})
	require.NoError(t, err)
	return fetch
}

func TestFetchBillScenario(t *testing.T) {
	f := newFixture(t)

	fetch := f.fetch(t)

	assert.Equal(t, models.FetchSuccess, fetch.Status)
	assert.Equal(t, 500.0, fetch.BillAmount)
	assert.Equal(t, "FR1", fetch.FetchReferenceID)
	assert.Equal(t, "Power Co", fetch.OperatorName)
	assert.Equal(t, "A Kumar", fetch.CustomerName)
	require.NotNil(t, fetch.DueDate)
	assert.Equal(t, 15, fetch.DueDate.Day())
	require.NotNil(t, fetch.ExpiresAt)
	assert.Equal(t, f.now.Add(24*time.Hour), *fetch.ExpiresAt)
	assert.Contains(t, fetch.IdempotencyKey, "fetch_")
}

func TestFetchBillPendingUnlessSuccess(t *testing.T) {
	f := newFixture(t)
	f.gw.fetchResp = map[string]any{"status": "accepted", "billAmount": "120.50", "fetchReferenceId": "FR2"}

	fetch := f.fetch(t)
	assert.Equal(t, models.FetchPending, fetch.Status)
	assert.Equal(t, 120.5, fetch.BillAmount)

	f.gw.fetchResp = map[string]any{"status": "success", "fetchReferenceId": "FR3"}
	assert.Equal(t, models.FetchSuccess, f.fetch(t).Status)
}

func TestFetchBillIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := FetchInput{OperatorID: "OP1", Parameters: map[string]any{"consumer_number": "12345"}, IdempotencyKey: "k1"}

	first, dup, err := f.svc.FetchBill(ctx, in)
	require.NoError(t, err)
	assert.False(t, dup)

	second, dup, err := f.svc.FetchBill(ctx, in)
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, first.ID, second.ID)

	fetches, _ := f.store.Counts()
	assert.Equal(t, 1, fetches)
	assert.Equal(t, 1, f.gw.fetchCalls)
}

func TestFetchBillConcurrentSameKey(t *testing.T) {
	f := newFixture(t)
	in := FetchInput{OperatorID: "OP1", Parameters: map[string]any{"consumer_number": "12345"}, IdempotencyKey: "race"}

	var wg sync.WaitGroup
	ids := make(chan string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fetch, _, err := f.svc.FetchBill(context.Background(), in)
			if assert.NoError(t, err) {
				ids <- fetch.ID.Hex()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]struct{}{}
	for id := range ids {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 1)
	fetches, _ := f.store.Counts()
	assert.Equal(t, 1, fetches)
}

func TestFetchBillUnknownOperatorIsRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.FetchBill(ctx, FetchInput{OperatorID: "OP404", Parameters: map[string]any{}, IdempotencyKey: "k404"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.NotFound))
	assert.Zero(t, f.gw.fetchCalls)

	failed, err := f.store.FindFetchByIdempotencyKey(ctx, "k404")
	require.NoError(t, err)
	assert.Equal(t, models.FetchFailed, failed.Status)
	assert.Equal(t, "NOT_FOUND", failed.ErrorCode)
}

func TestFetchBillParameterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.FetchBill(ctx, FetchInput{OperatorID: "OP1", Parameters: map[string]any{"mobile": "9"}, IdempotencyKey: "kv"})
	assert.True(t, errors.Is(err, errors.Invalid))
	assert.Zero(t, f.gw.fetchCalls)

	failed, err := f.store.FindFetchByIdempotencyKey(ctx, "kv")
	require.NoError(t, err)
	assert.Equal(t, "VALIDATION_ERROR", failed.ErrorCode)
}

func TestFetchBillGatewayFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gw.fetchErr = &gateway.Error{Kind: gateway.KindUpstream, HTTPStatus: 400, Code: "E101", Message: "invalid consumer"}

	_, _, err := f.svc.FetchBill(ctx, FetchInput{OperatorID: "OP1", Parameters: map[string]any{"consumer_number": "1"}, UserID: "u1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.Upstream))

	items, _, err := f.svc.ListFetches(ctx, models.FetchQuery{UserID: "u1", Status: models.FetchFailed})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "E101", items[0].ErrorCode)
	assert.Contains(t, items[0].ErrorMessage, "invalid consumer")
	assert.Contains(t, items[0].IdempotencyKey, "fetch_")
}

func TestFetchBillNoResponseCode(t *testing.T) {
	f := newFixture(t)
	f.gw.fetchErr = &gateway.Error{Kind: gateway.KindNoResponse, Err: context.DeadlineExceeded}

	_, _, err := f.svc.FetchBill(context.Background(), FetchInput{OperatorID: "OP1", Parameters: map[string]any{"consumer_number": "1"}, IdempotencyKey: "kt"})
	assert.True(t, errors.Is(err, errors.Unavailable))

	failed, err := f.store.FindFetchByIdempotencyKey(context.Background(), "kt")
	require.NoError(t, err)
	assert.Equal(t, "NO_RESPONSE", failed.ErrorCode)
}

func TestPayBillScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fetch := f.fetch(t)

	payment, dup, err := f.svc.PayBill(ctx, PayInput{FetchReferenceID: "FR1", Amount: 500, UserID: "u1", PaymentMethod: models.MethodUPI})
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, models.PaymentPending, payment.Status)
	assert.Equal(t, "TXN1", payment.TransactionID)
	assert.Equal(t, fetch.ID, payment.BillFetchID)
	assert.Equal(t, "INR", payment.Currency)
	assert.Nil(t, payment.PaidAt)

	stored, err := f.store.FindFetchByReference(ctx, "FR1")
	require.NoError(t, err)
	assert.Equal(t, models.FetchSuccess, stored.Status)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, models.SourcePay, f.events.events[0].Source)
	assert.Equal(t, models.PaymentPending, f.events.events[0].Status)
}

func TestPayBillAmountMismatch(t *testing.T) {
	f := newFixture(t)
	f.fetch(t)

	_, _, err := f.svc.PayBill(context.Background(), PayInput{FetchReferenceID: "FR1", Amount: 499, UserID: "u1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.AmountMismatch))
	assert.Contains(t, err.Error(), "expected 500, provided 499")
	assert.Zero(t, f.gw.payCalls)

	_, payments := f.store.Counts()
	assert.Zero(t, payments)
}

func TestPayBillExpired(t *testing.T) {
	f := newFixture(t)
	f.fetch(t)
	f.now = f.now.Add(25 * time.Hour)

	_, _, err := f.svc.PayBill(context.Background(), PayInput{FetchReferenceID: "FR1", Amount: 500, UserID: "u1"})
	assert.True(t, errors.Is(err, errors.Expired))
	assert.Zero(t, f.gw.payCalls)
}

func TestPayBillUnknownReference(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.PayBill(context.Background(), PayInput{FetchReferenceID: "FR404", Amount: 500, UserID: "u1"})
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestPayBillRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.PayBill(context.Background(), PayInput{Amount: -1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.Invalid))
	assert.Contains(t, err.Error(), "fetchReferenceId")
	assert.Contains(t, err.Error(), "userId")
	assert.Contains(t, err.Error(), "amount")
}

func TestPayBillAlreadyPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fetch(t)
	f.gw.payResp = map[string]any{"status": "SUCCESS", "transactionId": "TXN1", "paymentId": "PAY1"}

	payment, _, err := f.svc.PayBill(ctx, PayInput{FetchReferenceID: "FR1", Amount: 500, UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSuccess, payment.Status)
	assert.Equal(t, "PAY1", payment.ExternalPaymentID)
	require.NotNil(t, payment.PaidAt)

	for _, amount := range []float64{500, 499} {
		_, _, err = f.svc.PayBill(ctx, PayInput{FetchReferenceID: "FR1", Amount: amount, UserID: "u1"})
		assert.True(t, errors.Is(err, errors.AlreadyPaid), "amount %v", amount)
	}
	assert.Equal(t, 1, f.gw.payCalls)
}

func TestPayBillSuccessPropagatesToFetch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gw.fetchResp = map[string]any{"status": "PENDING", "billAmount": 250.0, "fetchReferenceId": "FR9"}
	fetch := f.fetch(t)
	require.Equal(t, models.FetchPending, fetch.Status)
	f.gw.payResp = map[string]any{"status": "success", "transactionId": "TXN9"}

	_, _, err := f.svc.PayBill(ctx, PayInput{FetchReferenceID: "FR9", Amount: 250, UserID: "u1"})
	require.NoError(t, err)

	stored, err := f.store.FindFetchByReference(ctx, "FR9")
	require.NoError(t, err)
	assert.Equal(t, models.FetchSuccess, stored.Status)
}

func TestPayBillIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fetch(t)
	in := PayInput{FetchReferenceID: "FR1", Amount: 500, UserID: "u1", IdempotencyKey: "pay-1"}

	first, _, err := f.svc.PayBill(ctx, in)
	require.NoError(t, err)
	second, dup, err := f.svc.PayBill(ctx, in)
	require.NoError(t, err)

	assert.True(t, dup)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.gw.payCalls)
	_, payments := f.store.Counts()
	assert.Equal(t, 1, payments)
}

func TestPayBillUnknownStatusStoredAsPending(t *testing.T) {
	f := newFixture(t)
	f.fetch(t)
	f.gw.payResp = map[string]any{"status": "INITIATED", "transactionId": "TXN1"}

	payment, _, err := f.svc.PayBill(context.Background(), PayInput{FetchReferenceID: "FR1", Amount: 500, UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, payment.Status)
}

func TestPayBillGatewayFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fetch := f.fetch(t)
	f.gw.payErr = &gateway.Error{Kind: gateway.KindTimestampRejected, Code: "API_ERROR", Message: "timestamp expired"}

	_, _, err := f.svc.PayBill(ctx, PayInput{FetchReferenceID: "FR1", Amount: 500, UserID: "u1", IdempotencyKey: "pay-f"})
	require.Error(t, err)

	failed, err := f.store.FindPaymentByIdempotencyKey(ctx, "pay-f")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, failed.Status)
	assert.Equal(t, fetch.ID, failed.BillFetchID)
	assert.Equal(t, "TIMESTAMP_MISMATCH", failed.ErrorCode)
	assert.Equal(t, failed.ErrorMessage, failed.FailureReason)

	// A failed attempt does not block a retry under a new key.
	f.gw.payErr = nil
	retry, _, err := f.svc.PayBill(ctx, PayInput{FetchReferenceID: "FR1", Amount: 500, UserID: "u1", IdempotencyKey: "pay-r"})
	require.NoError(t, err)
	assert.Equal(t, fetch.ID, retry.BillFetchID)
	_, payments := f.store.Counts()
	assert.Equal(t, 2, payments)
}

func TestCheckPaymentStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gw.fetchResp = map[string]any{"status": "PENDING", "billAmount": 500.0, "fetchReferenceId": "FR1"}
	f.fetch(t)
	_, _, err := f.svc.PayBill(ctx, PayInput{FetchReferenceID: "FR1", Amount: 500, UserID: "u1"})
	require.NoError(t, err)

	f.gw.statusResp = map[string]any{"status": "success", "transactionId": "TXN1"}
	snap, err := f.svc.CheckPaymentStatus(ctx, "TXN1")
	require.NoError(t, err)
	assert.True(t, snap.Updated)
	assert.Equal(t, models.PaymentPending, snap.PreviousStatus)
	assert.Equal(t, models.PaymentSuccess, snap.Status)

	payment, err := f.store.FindPaymentByTransactionID(ctx, "TXN1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSuccess, payment.Status)
	require.NotNil(t, payment.PaidAt)

	// The status check leaves the fetch alone.
	fetch, err := f.store.FindFetchByReference(ctx, "FR1")
	require.NoError(t, err)
	assert.Equal(t, models.FetchPending, fetch.Status)

	require.Len(t, f.events.events, 2)
	assert.Equal(t, models.SourceStatusCheck, f.events.events[1].Source)

	snap, err = f.svc.CheckPaymentStatus(ctx, "TXN1")
	require.NoError(t, err)
	assert.False(t, snap.Updated)
	assert.Len(t, f.events.events, 2)
}

func TestCheckPaymentStatusUnknownTransaction(t *testing.T) {
	f := newFixture(t)
	f.gw.statusResp = map[string]any{"status": "FAILED"}

	snap, err := f.svc.CheckPaymentStatus(context.Background(), "TXN404")
	require.NoError(t, err)
	assert.False(t, snap.Updated)
	assert.Equal(t, models.PaymentFailed, snap.Status)
	assert.Empty(t, snap.PreviousStatus)
}

func TestCheckPaymentStatusGatewayError(t *testing.T) {
	f := newFixture(t)
	f.gw.statusErr = &gateway.Error{Kind: gateway.KindNoResponse}

	_, err := f.svc.CheckPaymentStatus(context.Background(), "TXN1")
	assert.True(t, errors.Is(err, errors.Unavailable))
}

func TestPaymentDetailsOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fetch := f.fetch(t)
	payment, _, err := f.svc.PayBill(ctx, PayInput{FetchReferenceID: "FR1", Amount: 500, UserID: "u1"})
	require.NoError(t, err)

	got, err := f.svc.PaymentDetails(ctx, "u1", payment.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, payment.ID, got.ID)
	require.NotNil(t, got.BillFetch)
	assert.Equal(t, fetch.ID, got.BillFetch.ID)
	assert.Equal(t, "A Kumar", got.BillFetch.CustomerName)

	_, err = f.svc.PaymentDetails(ctx, "u2", payment.ID.Hex())
	assert.True(t, errors.Is(err, errors.Forbidden))

	_, err = f.svc.PaymentDetails(ctx, "u1", "not-an-id")
	assert.True(t, errors.Is(err, errors.Invalid))
}

func TestPaymentDetailsWithoutStoredFetch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orphan := &models.BillPayment{UserID: "u1", BillFetchID: primitive.NewObjectID(), IdempotencyKey: "old", Status: models.PaymentSuccess}
	require.NoError(t, f.store.InsertPayment(ctx, orphan))

	got, err := f.svc.PaymentDetails(ctx, "u1", orphan.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, orphan.ID, got.ID)
	assert.Nil(t, got.BillFetch)
}

func TestPayBillConcurrentSameKey(t *testing.T) {
	f := newFixture(t)
	f.fetch(t)
	in := PayInput{FetchReferenceID: "FR1", Amount: 500, UserID: "u1", IdempotencyKey: "pay-race"}

	const callers = 8
	var wg sync.WaitGroup
	start := make(chan struct{})
	ids := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			payment, _, err := f.svc.PayBill(context.Background(), in)
			if assert.NoError(t, err) {
				ids <- payment.ID.Hex()
			}
		}()
	}
	close(start)
	wg.Wait()
	close(ids)

	seen := map[string]struct{}{}
	for id := range ids {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 1)
	assert.Equal(t, 1, f.gw.payCalls)
	_, payments := f.store.Counts()
	assert.Equal(t, 1, payments)

	stored, err := f.store.FindPaymentByIdempotencyKey(context.Background(), "pay-race")
	require.NoError(t, err)
	assert.Equal(t, "TXN1", stored.TransactionID)
	assert.Equal(t, models.PaymentPending, stored.Status)
}

func TestListPaymentsPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fetch(t)
	_, _, err := f.svc.PayBill(ctx, PayInput{FetchReferenceID: "FR1", Amount: 500, UserID: "u1"})
	require.NoError(t, err)

	items, page, err := f.svc.ListPayments(ctx, models.PaymentQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, models.Pagination{Total: 1, Page: 1, Limit: models.DefaultPageLimit, Pages: 1}, page)
}
