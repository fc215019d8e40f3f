package models

import (
	"time"

	"github.com/livetranslate/billing-service/utils"
)

type TransactionType string

const (
	TransactionTypeSubscription TransactionType = "subscription"
	TransactionTypeRenewal      TransactionType = "renewal"
	TransactionTypeCancellation TransactionType = "cancellation"
)

type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// SubscriptionTransaction is an append-only audit entry, one per billing
// event. Rows are never updated after insert.
type SubscriptionTransaction struct {
	ID                    string            `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	UserID                string            `json:"userId" gorm:"type:uuid;not null;index"`
	TransactionType       TransactionType   `json:"transactionType"`
	TransactionStatus     TransactionStatus `json:"transactionStatus"`
	Amount                float64           `json:"amount"`
	Currency              string            `json:"currency"`
	Description           string            `json:"description"`
	StripePaymentIntentID string            `json:"stripePaymentIntentId"`
	StripeInvoiceID       string            `json:"stripeInvoiceId"`
	CreatedAt             time.Time         `json:"createdAt"`
	CompletedAt           *time.Time        `json:"completedAt"`
}

func (SubscriptionTransaction) TableName() string {
	return "subscription_transactions"
}

// RecordTransaction inserts a fresh log entry. completed_at is stamped only
// when the transaction completed.
func (store *ApiStore) RecordTransaction(tx *SubscriptionTransaction) utils.Result[*SubscriptionTransaction] {
	now := time.Now().UTC()
	tx.CreatedAt = now
	if tx.TransactionStatus == TransactionStatusCompleted {
		tx.CompletedAt = &now
	}

	err := store.db.Connection.Create(tx).Error
	if err != nil {
		return utils.FailedResult[*SubscriptionTransaction](err)
	}

	return utils.SuccessResult(tx)
}
