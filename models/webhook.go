package models

import (
	// Go Internal Packages
	"time"

	// External Packages
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WebhookNotification is the status callback the biller posts. Amount is a
// pointer so an absent amount is distinguishable from zero.
type WebhookNotification struct {
	TransactionID    string   `json:"transactionId"`
	PaymentID        string   `json:"paymentId"`
	FetchReferenceID string   `json:"fetchReferenceId"`
	Status           string   `json:"status"`
	Amount           *float64 `json:"amount"`
	Message          string   `json:"message"`
	ErrorCode        string   `json:"errorCode"`
	ErrorMessage     string   `json:"errorMessage"`
	Timestamp        string   `json:"timestamp"`
}

// ReconcileResult describes what a webhook did to the ledger.
type ReconcileResult struct {
	Matched        bool               `json:"matched"`
	PaymentID      primitive.ObjectID `json:"paymentId,omitempty"`
	PreviousStatus PaymentStatus      `json:"previousStatus,omitempty"`
	Status         PaymentStatus      `json:"status,omitempty"`
	FetchUpdated   bool               `json:"fetchUpdated"`
}

// PaymentEvent is published whenever a payment changes status.
type PaymentEvent struct {
	PaymentID        string        `json:"paymentId"`
	UserID           string        `json:"userId"`
	FetchReferenceID string        `json:"fetchReferenceId"`
	TransactionID    string        `json:"transactionId,omitempty"`
	OperatorID       string        `json:"operatorId"`
	Amount           float64       `json:"amount"`
	PreviousStatus   PaymentStatus `json:"previousStatus,omitempty"`
	Status           PaymentStatus `json:"status"`
	Source           string        `json:"source"`
	OccurredAt       time.Time     `json:"occurredAt"`
}

// Sources of a PaymentEvent.
const (
	SourcePay         = "pay"
	SourceWebhook     = "webhook"
	SourceStatusCheck = "status_check"
)

// NewPaymentEvent builds an event for p moving from prev to p.Status.
func NewPaymentEvent(p *BillPayment, prev PaymentStatus, source string, at time.Time) PaymentEvent {
	return PaymentEvent{
		PaymentID:        p.ID.Hex(),
		UserID:           p.UserID,
		FetchReferenceID: p.FetchReferenceID,
		TransactionID:    p.TransactionID,
		OperatorID:       p.OperatorID,
		Amount:           p.Amount,
		PreviousStatus:   prev,
		Status:           p.Status,
		Source:           source,
		OccurredAt:       at,
	}
}
