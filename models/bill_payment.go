package models

import (
	// Go Internal Packages
	"strings"
	"time"

	// External Packages
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentSuccess   PaymentStatus = "SUCCESS"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentCancelled PaymentStatus = "CANCELLED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// ParsePaymentStatus normalises s to upper case and reports whether it is a
// known payment status.
func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	st := PaymentStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case PaymentPending, PaymentSuccess, PaymentFailed, PaymentCancelled, PaymentRefunded:
		return st, true
	}
	return st, false
}

type PaymentMethod string

const (
	MethodWallet     PaymentMethod = "WALLET"
	MethodUPI        PaymentMethod = "UPI"
	MethodNetbanking PaymentMethod = "NETBANKING"
	MethodCard       PaymentMethod = "CARD"
	MethodOther      PaymentMethod = "OTHER"
)

const DefaultCurrency = "INR"

// BillPayment is one payment attempt against a BillFetch.
type BillPayment struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID            string             `json:"userId" bson:"user_id"`
	BillFetchID       primitive.ObjectID `json:"billFetchId" bson:"bill_fetch_id"`
	FetchReferenceID  string             `json:"fetchReferenceId" bson:"fetch_reference_id"`
	OperatorID        string             `json:"operatorId" bson:"operator_id"`
	OperatorName      string             `json:"operatorName,omitempty" bson:"operator_name,omitempty"`
	Amount            float64            `json:"amount" bson:"amount"`
	Currency          string             `json:"currency" bson:"currency"`
	TransactionID     string             `json:"ekoTransactionId,omitempty" bson:"eko_transaction_id,omitempty"`
	ExternalPaymentID string             `json:"ekoPaymentId,omitempty" bson:"eko_payment_id,omitempty"`
	Status            PaymentStatus      `json:"status" bson:"status"`
	PaymentMethod     PaymentMethod      `json:"paymentMethod,omitempty" bson:"payment_method,omitempty"`
	UpstreamResponse  map[string]any     `json:"-" bson:"eko_response,omitempty"`
	ErrorCode         string             `json:"errorCode,omitempty" bson:"error_code,omitempty"`
	ErrorMessage      string             `json:"errorMessage,omitempty" bson:"error_message,omitempty"`
	FailureReason     string             `json:"failureReason,omitempty" bson:"failure_reason,omitempty"`
	WebhookReceived   bool               `json:"webhookReceived" bson:"webhook_received"`
	WebhookData       map[string]any     `json:"-" bson:"webhook_data,omitempty"`
	WebhookReceivedAt *time.Time         `json:"webhookReceivedAt,omitempty" bson:"webhook_received_at,omitempty"`
	IdempotencyKey    string             `json:"idempotencyKey,omitempty" bson:"idempotency_key,omitempty"`
	PaidAt            *time.Time         `json:"paidAt,omitempty" bson:"paid_at,omitempty"`
	CreatedAt         time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt         time.Time          `json:"updatedAt" bson:"updated_at"`
}

// PaymentUpdate is a partial update of a BillPayment. Nil fields are left
// untouched.
type PaymentUpdate struct {
	Status            *PaymentStatus
	TransactionID     *string
	ExternalPaymentID *string
	ErrorCode         *string
	ErrorMessage      *string
	FailureReason     *string
	WebhookData       map[string]any
	WebhookReceivedAt *time.Time
	PaidAt            *time.Time
	UpstreamResponse  map[string]any
}

// Apply copies the set fields of u onto p.
func (u PaymentUpdate) Apply(p *BillPayment) {
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.TransactionID != nil {
		p.TransactionID = *u.TransactionID
	}
	if u.ExternalPaymentID != nil {
		p.ExternalPaymentID = *u.ExternalPaymentID
	}
	if u.ErrorCode != nil {
		p.ErrorCode = *u.ErrorCode
	}
	if u.ErrorMessage != nil {
		p.ErrorMessage = *u.ErrorMessage
	}
	if u.FailureReason != nil {
		p.FailureReason = *u.FailureReason
	}
	if u.WebhookReceivedAt != nil {
		p.WebhookReceived = true
		p.WebhookReceivedAt = u.WebhookReceivedAt
		p.WebhookData = u.WebhookData
	}
	if u.PaidAt != nil {
		p.PaidAt = u.PaidAt
	}
	if u.UpstreamResponse != nil {
		p.UpstreamResponse = u.UpstreamResponse
	}
}

// PaymentDetails is a payment together with the bill fetch it paid. The
// fetch is absent once retention has purged it.
type PaymentDetails struct {
	*BillPayment
	BillFetch *BillFetch `json:"billFetch,omitempty"`
}

// PaymentQuery filters payment history.
type PaymentQuery struct {
	UserID string
	Status PaymentStatus
	Page   Page
}

// StatusSnapshot is the answer to a pull based status check.
type StatusSnapshot struct {
	TransactionID  string         `json:"transactionId"`
	Status         PaymentStatus  `json:"status,omitempty"`
	PreviousStatus PaymentStatus  `json:"previousStatus,omitempty"`
	Updated        bool           `json:"updated"`
	Upstream       map[string]any `json:"upstream"`
}
