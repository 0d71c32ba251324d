package mongodb

import (
	// Go Internal Packages
	"context"

	// Local Packages
	errors "bbps-hub/errors"

	// External Packages
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	OperatorsCollection    = "bbps_operators"
	BillFetchesCollection  = "bbps_bill_fetches"
	BillPaymentsCollection = "bbps_bill_payments"
)

// findOne decodes the first match of filter into out, turning a miss into a
// NotFound error.
func findOne(ctx context.Context, coll *mongo.Collection, filter any, entity, key string, out any) error {
	err := coll.FindOne(ctx, filter).Decode(out)
	if err == nil {
		return nil
	}
	if err == mongo.ErrNoDocuments {
		return errors.NotFoundErr(entity, key)
	}
	return errors.PersistenceErr("find "+entity, err)
}

// insertErr maps a duplicate key violation onto a Conflict error so callers
// can fall back to reading the record that won the race.
func insertErr(collection string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return errors.DuplicateKeyErr(collection, err)
	}
	return errors.PersistenceErr("insert into "+collection, err)
}
