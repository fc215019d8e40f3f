package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/livetranslate/billing-service/utils"
)

const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"

	DefaultBillingPeriod = "monthly"
)

// UserSubscription is the single billing row per end user. The tier and the
// three quota columns always move together: quotas are recomputed from the
// tier on every transition.
type UserSubscription struct {
	ID                    string           `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	UserID                string           `json:"userId" gorm:"type:uuid;uniqueIndex;not null"`
	StripeCustomerID      string           `json:"stripeCustomerId"`
	StripeSubscriptionID  string           `json:"stripeSubscriptionId" gorm:"index"`
	StripePriceID         string           `json:"stripePriceId"`
	SubscriptionTier      SubscriptionTier `json:"subscriptionTier"`
	SubscriptionStatus    string           `json:"subscriptionStatus"`
	BillingPeriod         string           `json:"billingPeriod"`
	CurrentPeriodStart    time.Time        `json:"currentPeriodStart"`
	CurrentPeriodEnd      time.Time        `json:"currentPeriodEnd"`
	DailyTranslationLimit int              `json:"dailyTranslationLimit"`
	DailyOCRLimit         int              `json:"dailyOcrLimit" gorm:"column:daily_ocr_limit"`
	DailyVoiceLimit       int              `json:"dailyVoiceLimit"`
	CancelledAt           *time.Time       `json:"cancelledAt"`
	CreatedAt             time.Time        `json:"createdAt"`
	UpdatedAt             time.Time        `json:"updatedAt"`
}

func (UserSubscription) TableName() string {
	return "user_subscriptions"
}

func (sub *UserSubscription) ApplyQuotas(limits QuotaLimits) {
	sub.DailyTranslationLimit = limits.Translation
	sub.DailyOCRLimit = limits.OCR
	sub.DailyVoiceLimit = limits.Voice
}

func (store *ApiStore) SubscriptionByProviderID(providerID string) utils.Result[*UserSubscription] {
	var sub UserSubscription

	result := store.db.Connection.
		Where("stripe_subscription_id = ?", providerID).
		Limit(1).
		Find(&sub)

	if result.Error != nil {
		return failedSubscriptionResult(result.Error)
	}
	if sub.ID == "" {
		return failedSubscriptionResult(gorm.ErrRecordNotFound)
	}

	return utils.SuccessResult(&sub)
}

func (store *ApiStore) SubscriptionByUserID(userID string) utils.Result[*UserSubscription] {
	var sub UserSubscription

	result := store.db.Connection.
		Where("user_id = ?", userID).
		Limit(1).
		Find(&sub)

	if result.Error != nil {
		return failedSubscriptionResult(result.Error)
	}
	if sub.ID == "" {
		return failedSubscriptionResult(gorm.ErrRecordNotFound)
	}

	return utils.SuccessResult(&sub)
}

// UpsertSubscription creates the row on first checkout and overwrites the
// plan columns on re-checkout, keyed by user_id (one row per user).
func (store *ApiStore) UpsertSubscription(sub *UserSubscription) utils.Result[*UserSubscription] {
	sub.UpdatedAt = time.Now().UTC()

	err := store.db.Connection.
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"stripe_customer_id",
				"stripe_subscription_id",
				"stripe_price_id",
				"subscription_tier",
				"subscription_status",
				"billing_period",
				"current_period_start",
				"current_period_end",
				"daily_translation_limit",
				"daily_ocr_limit",
				"daily_voice_limit",
				"updated_at",
			}),
		}).
		Create(sub).Error

	if err != nil {
		return utils.FailedResult[*UserSubscription](err)
	}

	return utils.SuccessResult(sub)
}

// RefreshSubscriptionStatus passes the provider's literal status through and
// moves the billing window. Returns false when no row matches the provider id.
func (store *ApiStore) RefreshSubscriptionStatus(providerID string, status string, periodStart, periodEnd time.Time) utils.Result[bool] {
	result := store.db.Connection.
		Model(&UserSubscription{}).
		Where("stripe_subscription_id = ?", providerID).
		Updates(map[string]any{
			"subscription_status":  status,
			"current_period_start": periodStart,
			"current_period_end":   periodEnd,
			"updated_at":           time.Now().UTC(),
		})

	if result.Error != nil {
		return utils.FailedBoolResult(result.Error)
	}

	return utils.SuccessResult(result.RowsAffected > 0)
}

// DowngradeToFree resets a deleted subscription to the free tier with the
// free quota table. The row is never removed.
func (store *ApiStore) DowngradeToFree(providerID string, cancelledAt time.Time) utils.Result[bool] {
	limits := ResolveQuotas(TierFree)

	result := store.db.Connection.
		Model(&UserSubscription{}).
		Where("stripe_subscription_id = ?", providerID).
		Updates(map[string]any{
			"subscription_tier":       TierFree,
			"subscription_status":     SubscriptionStatusCancelled,
			"cancelled_at":            cancelledAt,
			"daily_translation_limit": limits.Translation,
			"daily_ocr_limit":         limits.OCR,
			"daily_voice_limit":       limits.Voice,
			"updated_at":              time.Now().UTC(),
		})

	if result.Error != nil {
		return utils.FailedBoolResult(result.Error)
	}

	return utils.SuccessResult(result.RowsAffected > 0)
}

// MarkCancellation records a user-requested cancellation. Immediate
// cancellations go straight to cancelled; scheduled ones stay active until
// the provider sends the deletion event at period end.
func (store *ApiStore) MarkCancellation(userID string, status string, cancelledAt time.Time) utils.Result[bool] {
	result := store.db.Connection.
		Model(&UserSubscription{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"subscription_status": status,
			"cancelled_at":        cancelledAt,
			"updated_at":          time.Now().UTC(),
		})

	if result.Error != nil {
		return utils.FailedBoolResult(result.Error)
	}

	return utils.SuccessResult(result.RowsAffected > 0)
}

func failedSubscriptionResult(err error) utils.Result[*UserSubscription] {
	result := utils.FailedResult[*UserSubscription](err)

	if err.Error() == gorm.ErrRecordNotFound.Error() {
		result = result.NonCapturable().NonRetryable()
	}

	return result
}
