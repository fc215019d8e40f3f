package tests

import (
	"time"

	"gorm.io/gorm"

	"github.com/livetranslate/billing-service/models"
	"github.com/livetranslate/billing-service/utils"
)

type StatusRefresh struct {
	ProviderID  string
	Status      string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

type CancellationMark struct {
	UserID      string
	Status      string
	CancelledAt time.Time
}

// MockSubscriptionStore keeps subscription rows in memory and mimics the
// ApiStore result semantics, including missing-row handling.
type MockSubscriptionStore struct {
	Rows         []*models.UserSubscription
	Upserts      []*models.UserSubscription
	Transactions []*models.SubscriptionTransaction
	Refreshes    []StatusRefresh
	Downgrades   []string
	Marks        []CancellationMark

	FindError        error
	UpsertError      error
	RefreshError     error
	DowngradeError   error
	MarkError        error
	TransactionError error
}

func (m *MockSubscriptionStore) SubscriptionByProviderID(providerID string) utils.Result[*models.UserSubscription] {
	if m.FindError != nil {
		return utils.FailedResult[*models.UserSubscription](m.FindError)
	}

	for _, row := range m.Rows {
		if row.StripeSubscriptionID == providerID {
			return utils.SuccessResult(row)
		}
	}

	return utils.FailedResult[*models.UserSubscription](gorm.ErrRecordNotFound).NonCapturable().NonRetryable()
}

func (m *MockSubscriptionStore) SubscriptionByUserID(userID string) utils.Result[*models.UserSubscription] {
	if m.FindError != nil {
		return utils.FailedResult[*models.UserSubscription](m.FindError)
	}

	for _, row := range m.Rows {
		if row.UserID == userID {
			return utils.SuccessResult(row)
		}
	}

	return utils.FailedResult[*models.UserSubscription](gorm.ErrRecordNotFound).NonCapturable().NonRetryable()
}

func (m *MockSubscriptionStore) UpsertSubscription(sub *models.UserSubscription) utils.Result[*models.UserSubscription] {
	if m.UpsertError != nil {
		return utils.FailedResult[*models.UserSubscription](m.UpsertError)
	}

	sub.UpdatedAt = time.Now().UTC()
	m.Upserts = append(m.Upserts, sub)

	for i, row := range m.Rows {
		if row.UserID == sub.UserID {
			m.Rows[i] = sub
			return utils.SuccessResult(sub)
		}
	}
	m.Rows = append(m.Rows, sub)

	return utils.SuccessResult(sub)
}

func (m *MockSubscriptionStore) RefreshSubscriptionStatus(providerID string, status string, periodStart, periodEnd time.Time) utils.Result[bool] {
	if m.RefreshError != nil {
		return utils.FailedBoolResult(m.RefreshError)
	}

	m.Refreshes = append(m.Refreshes, StatusRefresh{
		ProviderID:  providerID,
		Status:      status,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})

	for _, row := range m.Rows {
		if row.StripeSubscriptionID == providerID {
			row.SubscriptionStatus = status
			row.CurrentPeriodStart = periodStart
			row.CurrentPeriodEnd = periodEnd
			row.UpdatedAt = time.Now().UTC()
			return utils.SuccessResult(true)
		}
	}

	return utils.SuccessResult(false)
}

func (m *MockSubscriptionStore) DowngradeToFree(providerID string, cancelledAt time.Time) utils.Result[bool] {
	if m.DowngradeError != nil {
		return utils.FailedBoolResult(m.DowngradeError)
	}

	m.Downgrades = append(m.Downgrades, providerID)

	limits := models.ResolveQuotas(models.TierFree)
	for _, row := range m.Rows {
		if row.StripeSubscriptionID == providerID {
			row.SubscriptionTier = models.TierFree
			row.SubscriptionStatus = models.SubscriptionStatusCancelled
			row.CancelledAt = &cancelledAt
			row.ApplyQuotas(limits)
			row.UpdatedAt = time.Now().UTC()
			return utils.SuccessResult(true)
		}
	}

	return utils.SuccessResult(false)
}

func (m *MockSubscriptionStore) MarkCancellation(userID string, status string, cancelledAt time.Time) utils.Result[bool] {
	if m.MarkError != nil {
		return utils.FailedBoolResult(m.MarkError)
	}

	m.Marks = append(m.Marks, CancellationMark{UserID: userID, Status: status, CancelledAt: cancelledAt})

	for _, row := range m.Rows {
		if row.UserID == userID {
			row.SubscriptionStatus = status
			row.CancelledAt = &cancelledAt
			row.UpdatedAt = time.Now().UTC()
			return utils.SuccessResult(true)
		}
	}

	return utils.SuccessResult(false)
}

func (m *MockSubscriptionStore) RecordTransaction(tx *models.SubscriptionTransaction) utils.Result[*models.SubscriptionTransaction] {
	if m.TransactionError != nil {
		return utils.FailedResult[*models.SubscriptionTransaction](m.TransactionError)
	}

	now := time.Now().UTC()
	tx.CreatedAt = now
	if tx.TransactionStatus == models.TransactionStatusCompleted {
		tx.CompletedAt = &now
	}
	m.Transactions = append(m.Transactions, tx)

	return utils.SuccessResult(tx)
}
