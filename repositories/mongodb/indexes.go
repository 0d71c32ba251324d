package mongodb

import (
	// Go Internal Packages
	"context"
	"fmt"

	// External Packages
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	fetchRetentionSeconds   = 30 * 24 * 60 * 60
	paymentRetentionSeconds = 90 * 24 * 60 * 60
)

// EnsureIndexes creates the uniqueness and retention indexes the services
// rely on. Idempotency is enforced by the sparse unique indexes here.
func EnsureIndexes(ctx context.Context, client *mongo.Client, database string) error {
	db := client.Database(database)

	specs := map[string][]mongo.IndexModel{
		OperatorsCollection: {
			{Keys: bson.D{{Key: "operator_id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("unique_operator_id")},
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "location", Value: 1}}, Options: options.Index().SetName("category_location")},
		},
		BillFetchesCollection: {
			{Keys: bson.D{{Key: "idempotency_key", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true).SetName("unique_idempotency_key")},
			{Keys: bson.D{{Key: "fetch_reference_id", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true).SetName("unique_fetch_reference_id")},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}, Options: options.Index().SetName("user_created")},
			{Keys: bson.D{{Key: "operator_id", Value: 1}, {Key: "status", Value: 1}}, Options: options.Index().SetName("operator_status")},
			{Keys: bson.D{{Key: "created_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(fetchRetentionSeconds).SetName("ttl_created_at")},
		},
		BillPaymentsCollection: {
			{Keys: bson.D{{Key: "idempotency_key", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true).SetName("unique_idempotency_key")},
			{Keys: bson.D{{Key: "eko_transaction_id", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true).SetName("unique_eko_transaction_id")},
			{Keys: bson.D{{Key: "fetch_reference_id", Value: 1}, {Key: "status", Value: 1}}, Options: options.Index().SetName("fetch_reference_status")},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}, Options: options.Index().SetName("user_created")},
			{Keys: bson.D{{Key: "created_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(paymentRetentionSeconds).SetName("ttl_created_at")},
		},
	}

	for collection, models := range specs {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}
	return nil
}
