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

type BillFetchRepository struct {
	client     *mongo.Client
	database   string
	collection string
}

func NewBillFetchRepository(client *mongo.Client, database string) *BillFetchRepository {
	return &BillFetchRepository{client: client, database: database, collection: BillFetchesCollection}
}

func (r *BillFetchRepository) coll() *mongo.Collection {
	return r.client.Database(r.database).Collection(r.collection)
}

// InsertFetch inserts a bill fetch, assigning its id. A taken idempotency key
// or fetch reference yields a Conflict error.
func (r *BillFetchRepository) InsertFetch(ctx context.Context, f *models.BillFetch) error {
	if f.ID.IsZero() {
		f.ID = primitive.NewObjectID()
	}
	if _, err := r.coll().InsertOne(ctx, f); err != nil {
		return insertErr(r.collection, err)
	}
	return nil
}

func (r *BillFetchRepository) FindFetchByIdempotencyKey(ctx context.Context, key string) (*models.BillFetch, error) {
	return r.findBy(ctx, bson.M{"idempotency_key": key}, key)
}

func (r *BillFetchRepository) FindFetchByReference(ctx context.Context, fetchReferenceID string) (*models.BillFetch, error) {
	return r.findBy(ctx, bson.M{"fetch_reference_id": fetchReferenceID}, fetchReferenceID)
}

func (r *BillFetchRepository) FindFetchByID(ctx context.Context, id primitive.ObjectID) (*models.BillFetch, error) {
	return r.findBy(ctx, bson.M{"_id": id}, id.Hex())
}

func (r *BillFetchRepository) findBy(ctx context.Context, filter bson.M, key string) (*models.BillFetch, error) {
	var f models.BillFetch
	if err := findOne(ctx, r.coll(), filter, "bill fetch", key, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// MarkFetchSuccess flips a fetch to SUCCESS. It reports false when the fetch
// already was SUCCESS.
func (r *BillFetchRepository) MarkFetchSuccess(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	res, err := r.coll().UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$ne": models.FetchSuccess}},
		bson.M{"$set": bson.M{"status": models.FetchSuccess, "updated_at": at}},
	)
	if err != nil {
		return false, errors.PersistenceErr("mark bill fetch success", err)
	}
	return res.ModifiedCount > 0, nil
}

// ListFetches returns one page of fetch history, newest first, without the
// raw upstream payload.
func (r *BillFetchRepository) ListFetches(ctx context.Context, q models.FetchQuery) ([]models.BillFetch, int64, error) {
	filter := bson.M{}
	if q.UserID != "" {
		filter["user_id"] = q.UserID
	}
	if q.OperatorID != "" {
		filter["operator_id"] = q.OperatorID
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}

	page := q.Page.Normalize()
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(int64(page.Limit)).
		SetProjection(bson.M{"eko_response": 0})

	cursor, err := r.coll().Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, errors.PersistenceErr("list bill fetches", err)
	}
	fetches := []models.BillFetch{}
	if err = cursor.All(ctx, &fetches); err != nil {
		return nil, 0, errors.PersistenceErr("decode bill fetches", err)
	}

	total, err := r.coll().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, errors.PersistenceErr("count bill fetches", err)
	}
	return fetches, total, nil
}
