package mongodb

import (
	"context"
	"testing"
	"time"

	errors "bbps-hub/errors"
	models "bbps-hub/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestInsertFetch(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("assigns id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		repo := NewBillFetchRepository(mt.Client, "bbps")

		f := &models.BillFetch{OperatorID: "OP1", IdempotencyKey: "k1", Status: models.FetchSuccess}
		require.NoError(mt, repo.InsertFetch(context.Background(), f))
		assert.False(mt, f.ID.IsZero())
	})

	mt.Run("duplicate idempotency key is a conflict", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: bbps.bbps_bill_fetches index: unique_idempotency_key",
		}))
		repo := NewBillFetchRepository(mt.Client, "bbps")

		err := repo.InsertFetch(context.Background(), &models.BillFetch{IdempotencyKey: "k1"})
		require.Error(mt, err)
		assert.True(mt, errors.Is(err, errors.Conflict))
	})
}

func TestFindFetchByReference(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ns := "bbps." + BillFetchesCollection

	mt.Run("found", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "operator_id", Value: "OP1"},
			{Key: "fetch_reference_id", Value: "FR1"},
			{Key: "bill_amount", Value: 500.0},
			{Key: "status", Value: "SUCCESS"},
		}))
		repo := NewBillFetchRepository(mt.Client, "bbps")

		f, err := repo.FindFetchByReference(context.Background(), "FR1")
		require.NoError(mt, err)
		assert.Equal(mt, id, f.ID)
		assert.Equal(mt, 500.0, f.BillAmount)
		assert.Equal(mt, models.FetchSuccess, f.Status)
	})

	mt.Run("missing is not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		repo := NewBillFetchRepository(mt.Client, "bbps")

		_, err := repo.FindFetchByReference(context.Background(), "FR404")
		assert.True(mt, errors.Is(err, errors.NotFound))
	})
}

func TestMarkFetchSuccess(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("already success is a no-op", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))
		repo := NewBillFetchRepository(mt.Client, "bbps")

		changed, err := repo.MarkFetchSuccess(context.Background(), primitive.NewObjectID(), time.Now())
		require.NoError(mt, err)
		assert.False(mt, changed)
	})
}

func TestUpdatePaymentMissing(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("no match is not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))
		repo := NewBillPaymentRepository(mt.Client, "bbps")

		status := models.PaymentSuccess
		err := repo.UpdatePayment(context.Background(), primitive.NewObjectID(), models.PaymentUpdate{Status: &status}, time.Now())
		assert.True(mt, errors.Is(err, errors.NotFound))
	})
}
