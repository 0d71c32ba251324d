package models

import (
	// Go Internal Packages
	"time"

	// External Packages
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type FetchStatus string

const (
	FetchPending FetchStatus = "PENDING"
	FetchSuccess FetchStatus = "SUCCESS"
	FetchFailed  FetchStatus = "FAILED"
	FetchExpired FetchStatus = "EXPIRED"
)

// BillFetch is one bill inquiry and its result.
type BillFetch struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID           string             `json:"userId,omitempty" bson:"user_id,omitempty"`
	OperatorID       string             `json:"operatorId" bson:"operator_id"`
	OperatorName     string             `json:"operatorName,omitempty" bson:"operator_name,omitempty"`
	Parameters       map[string]any     `json:"parameters" bson:"parameters"`
	FetchReferenceID string             `json:"fetchReferenceId,omitempty" bson:"fetch_reference_id,omitempty"`
	TransactionID    string             `json:"ekoTransactionId,omitempty" bson:"eko_transaction_id,omitempty"`
	BillAmount       float64            `json:"billAmount" bson:"bill_amount"`
	CustomerName     string             `json:"customerName,omitempty" bson:"customer_name,omitempty"`
	DueDate          *time.Time         `json:"dueDate,omitempty" bson:"due_date,omitempty"`
	BillDate         *time.Time         `json:"billDate,omitempty" bson:"bill_date,omitempty"`
	BillNumber       string             `json:"billNumber,omitempty" bson:"bill_number,omitempty"`
	Status           FetchStatus        `json:"status" bson:"status"`
	UpstreamResponse map[string]any     `json:"-" bson:"eko_response,omitempty"`
	ErrorCode        string             `json:"errorCode,omitempty" bson:"error_code,omitempty"`
	ErrorMessage     string             `json:"errorMessage,omitempty" bson:"error_message,omitempty"`
	IdempotencyKey   string             `json:"idempotencyKey,omitempty" bson:"idempotency_key,omitempty"`
	FetchedAt        *time.Time         `json:"fetchedAt,omitempty" bson:"fetched_at,omitempty"`
	ExpiresAt        *time.Time         `json:"expiresAt,omitempty" bson:"expires_at,omitempty"`
	CreatedAt        time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt        time.Time          `json:"updatedAt" bson:"updated_at"`
}

// IsExpired reports whether the fetch can no longer be paid at now.
func (f *BillFetch) IsExpired(now time.Time) bool {
	if f.Status == FetchExpired {
		return true
	}
	return f.ExpiresAt != nil && f.ExpiresAt.Before(now)
}

// FetchQuery filters bill fetch history.
type FetchQuery struct {
	UserID     string
	OperatorID string
	Status     FetchStatus
	Page       Page
}
