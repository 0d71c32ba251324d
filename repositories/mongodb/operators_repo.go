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
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type OperatorRepository struct {
	client     *mongo.Client
	database   string
	collection string
}

func NewOperatorRepository(client *mongo.Client, database string) *OperatorRepository {
	return &OperatorRepository{client: client, database: database, collection: OperatorsCollection}
}

func (r *OperatorRepository) coll() *mongo.Collection {
	return r.client.Database(r.database).Collection(r.collection)
}

// UpsertOperators upserts operators keyed by operator id. Parameter schemas
// are left alone; they are owned by SetParameters.
func (r *OperatorRepository) UpsertOperators(ctx context.Context, ops []models.Operator) error {
	if len(ops) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, 0, len(ops))
	for _, op := range ops {
		set := bson.M{
			"operator_id":    op.OperatorID,
			"operator_name":  op.OperatorName,
			"category":       op.Category,
			"category_name":  op.CategoryName,
			"location":       op.Location,
			"location_name":  op.LocationName,
			"logo":           op.Logo,
			"description":    op.Description,
			"is_active":      op.IsActive,
			"last_synced_at": op.LastSyncedAt,
			"updated_at":     op.LastSyncedAt,
		}
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"operator_id": op.OperatorID}).
			SetUpdate(bson.M{
				"$set":         set,
				"$setOnInsert": bson.M{"created_at": op.LastSyncedAt, "parameters": []models.OperatorParameter{}},
			}).
			SetUpsert(true))
	}

	_, err := r.coll().BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return errors.PersistenceErr("upsert operators", err)
	}
	return nil
}

// SetParameters replaces the parameter schema of an existing operator. It
// reports whether the operator was found.
func (r *OperatorRepository) SetParameters(ctx context.Context, operatorID string, params []models.OperatorParameter, syncedAt time.Time) (bool, error) {
	if params == nil {
		params = []models.OperatorParameter{}
	}
	res, err := r.coll().UpdateOne(ctx,
		bson.M{"operator_id": operatorID},
		bson.M{"$set": bson.M{"parameters": params, "last_synced_at": syncedAt, "updated_at": syncedAt}},
	)
	if err != nil {
		return false, errors.PersistenceErr("set operator parameters", err)
	}
	return res.MatchedCount > 0, nil
}

// FindOperator looks an operator up by its exact upstream id.
func (r *OperatorRepository) FindOperator(ctx context.Context, operatorID string) (*models.Operator, error) {
	var op models.Operator
	if err := findOne(ctx, r.coll(), bson.M{"operator_id": operatorID}, "operator", operatorID, &op); err != nil {
		return nil, err
	}
	return &op, nil
}
