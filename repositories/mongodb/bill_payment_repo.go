package mongodb

import (
	// Go Internal Packages
	"context"
	"time"

	// Local Packages
	errors "bbps-hub/errors"
	models "bbps-hub/models"

	// External Packages
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type BillPaymentRepository struct {
	client     *mongo.Client
	database   string
	collection string
}

func NewBillPaymentRepository(client *mongo.Client, database string) *BillPaymentRepository {
	return &BillPaymentRepository{client: client, database: database, collection: BillPaymentsCollection}
}

func (r *BillPaymentRepository) coll() *mongo.Collection {
	return r.client.Database(r.database).Collection(r.collection)
}

// InsertPayment inserts a payment, assigning its id. A taken idempotency key
// or transaction id yields a Conflict error.
func (r *BillPaymentRepository) InsertPayment(ctx context.Context, p *models.BillPayment) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if _, err := r.coll().InsertOne(ctx, p); err != nil {
		return insertErr(r.collection, err)
	}
	return nil
}

func (r *BillPaymentRepository) FindPaymentByIdempotencyKey(ctx context.Context, key string) (*models.BillPayment, error) {
	return r.findBy(ctx, bson.M{"idempotency_key": key}, key)
}

func (r *BillPaymentRepository) FindPaymentByTransactionID(ctx context.Context, transactionID string) (*models.BillPayment, error) {
	return r.findBy(ctx, bson.M{"eko_transaction_id": transactionID}, transactionID)
}

func (r *BillPaymentRepository) FindPaymentByID(ctx context.Context, id primitive.ObjectID) (*models.BillPayment, error) {
	return r.findBy(ctx, bson.M{"_id": id}, id.Hex())
}

// FindPaymentByFetchReference returns the most recent payment attempt for a
// fetch reference.
func (r *BillPaymentRepository) FindPaymentByFetchReference(ctx context.Context, fetchReferenceID string) (*models.BillPayment, error) {
	var p models.BillPayment
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	err := r.coll().FindOne(ctx, bson.M{"fetch_reference_id": fetchReferenceID}, opts).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, errors.NotFoundErr("bill payment", fetchReferenceID)
	}
	if err != nil {
		return nil, errors.PersistenceErr("find bill payment", err)
	}
	return &p, nil
}

func (r *BillPaymentRepository) findBy(ctx context.Context, filter bson.M, key string) (*models.BillPayment, error) {
	var p models.BillPayment
	if err := findOne(ctx, r.coll(), filter, "bill payment", key, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// HasSuccessfulPayment reports whether any payment for the fetch reference
// reached SUCCESS.
func (r *BillPaymentRepository) HasSuccessfulPayment(ctx context.Context, fetchReferenceID string) (bool, error) {
	n, err := r.coll().CountDocuments(ctx,
		bson.M{"fetch_reference_id": fetchReferenceID, "status": models.PaymentSuccess},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, errors.PersistenceErr("count successful payments", err)
	}
	return n > 0, nil
}

// UpdatePayment applies the set fields of u.
func (r *BillPaymentRepository) UpdatePayment(ctx context.Context, id primitive.ObjectID, u models.PaymentUpdate, at time.Time) error {
	set := bson.M{"updated_at": at}
	if u.Status != nil {
		set["status"] = *u.Status
	}
	if u.TransactionID != nil {
		set["eko_transaction_id"] = *u.TransactionID
	}
	if u.ExternalPaymentID != nil {
		set["eko_payment_id"] = *u.ExternalPaymentID
	}
	if u.ErrorCode != nil {
		set["error_code"] = *u.ErrorCode
	}
	if u.ErrorMessage != nil {
		set["error_message"] = *u.ErrorMessage
	}
	if u.FailureReason != nil {
		set["failure_reason"] = *u.FailureReason
	}
	if u.WebhookReceivedAt != nil {
		set["webhook_received"] = true
		set["webhook_received_at"] = *u.WebhookReceivedAt
		set["webhook_data"] = u.WebhookData
	}
	if u.PaidAt != nil {
		set["paid_at"] = *u.PaidAt
	}
	if u.UpstreamResponse != nil {
		set["eko_response"] = u.UpstreamResponse
	}

	res, err := r.coll().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.DuplicateKeyErr(r.collection, err)
		}
		return errors.PersistenceErr("update bill payment", err)
	}
	if res.MatchedCount == 0 {
		return errors.NotFoundErr("bill payment", id.Hex())
	}
	return nil
}

// ListPayments returns one page of payment history, newest first, without
// raw upstream and webhook payloads.
func (r *BillPaymentRepository) ListPayments(ctx context.Context, q models.PaymentQuery) ([]models.BillPayment, int64, error) {
	filter := bson.M{}
	if q.UserID != "" {
		filter["user_id"] = q.UserID
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}

	page := q.Page.Normalize()
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(int64(page.Limit)).
		SetProjection(bson.M{"eko_response": 0, "webhook_data": 0})

	cursor, err := r.coll().Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, errors.PersistenceErr("list bill payments", err)
	}
	payments := []models.BillPayment{}
	if err = cursor.All(ctx, &payments); err != nil {
		return nil, 0, errors.PersistenceErr("decode bill payments", err)
	}

	total, err := r.coll().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, errors.PersistenceErr("count bill payments", err)
	}
	return payments, total, nil
}
