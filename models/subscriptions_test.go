package models_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetranslate/billing-service/models"
	"github.com/livetranslate/billing-service/tests"
)

func setupApiStore(t *testing.T) (*models.ApiStore, sqlmock.Sqlmock, func()) {
	db, mock, cleanup := tests.SetupMockStore(t)
	return models.NewApiStore(db), mock, cleanup
}

func subscriptionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "stripe_customer_id", "stripe_subscription_id",
		"subscription_tier", "subscription_status", "billing_period",
		"daily_translation_limit", "daily_ocr_limit", "daily_voice_limit",
	})
}

func TestSubscriptionByProviderID(t *testing.T) {
	t.Run("should return the matching row", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		rows := subscriptionRows().AddRow(
			"9f3c9c1e-0000-0000-0000-000000000001", "9f3c9c1e-0000-0000-0000-0000000000aa",
			"cus_123", "sub_123", "pro", "active", "monthly", 500, 200, 200,
		)
		mock.ExpectQuery(`SELECT (.+) FROM "user_subscriptions" WHERE stripe_subscription_id = (.+)`).
			WithArgs("sub_123", 1).
			WillReturnRows(rows)

		result := store.SubscriptionByProviderID("sub_123")

		require.True(t, result.Success())
		assert.Equal(t, "sub_123", result.Value().StripeSubscriptionID)
		assert.Equal(t, models.TierPro, result.Value().SubscriptionTier)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should report a missing row as not found and non retryable", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		mock.ExpectQuery(`SELECT (.+) FROM "user_subscriptions" WHERE stripe_subscription_id = (.+)`).
			WithArgs("sub_missing", 1).
			WillReturnRows(subscriptionRows())

		result := store.SubscriptionByProviderID("sub_missing")

		require.True(t, result.Failure())
		assert.True(t, models.IsNotFound(result.Error()))
		assert.False(t, result.IsRetryable())
		assert.False(t, result.IsCapturable())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should keep a query error retryable", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		mock.ExpectQuery(`SELECT (.+) FROM "user_subscriptions"`).
			WillReturnError(fmt.Errorf("connection reset"))

		result := store.SubscriptionByProviderID("sub_123")

		require.True(t, result.Failure())
		assert.True(t, result.IsRetryable())
		assert.True(t, result.IsCapturable())
	})
}

func TestSubscriptionByUserID(t *testing.T) {
	t.Run("should return the matching row", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		rows := subscriptionRows().AddRow(
			"9f3c9c1e-0000-0000-0000-000000000001", "9f3c9c1e-0000-0000-0000-0000000000aa",
			"cus_123", "sub_123", "basic", "active", "yearly", 100, 50, 50,
		)
		mock.ExpectQuery(`SELECT (.+) FROM "user_subscriptions" WHERE user_id = (.+)`).
			WithArgs("9f3c9c1e-0000-0000-0000-0000000000aa", 1).
			WillReturnRows(rows)

		result := store.SubscriptionByUserID("9f3c9c1e-0000-0000-0000-0000000000aa")

		require.True(t, result.Success())
		assert.Equal(t, models.TierBasic, result.Value().SubscriptionTier)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should report a missing row as not found", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		mock.ExpectQuery(`SELECT (.+) FROM "user_subscriptions" WHERE user_id = (.+)`).
			WillReturnRows(subscriptionRows())

		result := store.SubscriptionByUserID("9f3c9c1e-0000-0000-0000-0000000000aa")

		require.True(t, result.Failure())
		assert.True(t, models.IsNotFound(result.Error()))
	})
}

func TestUpsertSubscription(t *testing.T) {
	t.Run("should insert the row and update the plan columns on conflict", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "user_subscriptions" (.+) ON CONFLICT \("user_id"\) DO UPDATE SET (.+) RETURNING "id"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("9f3c9c1e-0000-0000-0000-000000000001"))
		mock.ExpectCommit()

		sub := &models.UserSubscription{
			UserID:               "9f3c9c1e-0000-0000-0000-0000000000aa",
			StripeCustomerID:     "cus_123",
			StripeSubscriptionID: "sub_123",
			StripePriceID:        "price_pro_monthly_placeholder",
			SubscriptionTier:     models.TierPro,
			SubscriptionStatus:   models.SubscriptionStatusActive,
			BillingPeriod:        "monthly",
		}
		sub.ApplyQuotas(models.ResolveQuotas(models.TierPro))

		result := store.UpsertSubscription(sub)

		require.True(t, result.Success())
		assert.Equal(t, "9f3c9c1e-0000-0000-0000-000000000001", result.Value().ID)
		assert.False(t, result.Value().UpdatedAt.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should surface an insert failure", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "user_subscriptions"`).
			WillReturnError(fmt.Errorf("deadlock detected"))
		mock.ExpectRollback()

		result := store.UpsertSubscription(&models.UserSubscription{UserID: "9f3c9c1e-0000-0000-0000-0000000000aa"})

		require.True(t, result.Failure())
		assert.True(t, result.IsRetryable())
	})
}

func TestRefreshSubscriptionStatus(t *testing.T) {
	periodStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("should report true when a row was updated", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "user_subscriptions" SET (.+) WHERE stripe_subscription_id = (.+)`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		result := store.RefreshSubscriptionStatus("sub_123", "past_due", periodStart, periodEnd)

		require.True(t, result.Success())
		assert.True(t, result.Value())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should report false when no row matched", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "user_subscriptions" SET (.+)`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		result := store.RefreshSubscriptionStatus("sub_missing", "active", periodStart, periodEnd)

		require.True(t, result.Success())
		assert.False(t, result.Value())
	})
}

func TestDowngradeToFree(t *testing.T) {
	t.Run("should report true when a row was downgraded", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "user_subscriptions" SET (.+) WHERE stripe_subscription_id = (.+)`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		result := store.DowngradeToFree("sub_123", time.Now().UTC())

		require.True(t, result.Success())
		assert.True(t, result.Value())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should surface an update failure", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "user_subscriptions" SET (.+)`).
			WillReturnError(fmt.Errorf("connection reset"))
		mock.ExpectRollback()

		result := store.DowngradeToFree("sub_123", time.Now().UTC())

		require.True(t, result.Failure())
		assert.True(t, result.IsCapturable())
	})
}

func TestMarkCancellation(t *testing.T) {
	t.Run("should report true when a row was marked", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "user_subscriptions" SET (.+) WHERE user_id = (.+)`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		result := store.MarkCancellation("9f3c9c1e-0000-0000-0000-0000000000aa", models.SubscriptionStatusCancelled, time.Now().UTC())

		require.True(t, result.Success())
		assert.True(t, result.Value())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should report false for an unknown user", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "user_subscriptions" SET (.+)`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		result := store.MarkCancellation("9f3c9c1e-0000-0000-0000-0000000000bb", models.SubscriptionStatusActive, time.Now().UTC())

		require.True(t, result.Success())
		assert.False(t, result.Value())
	})
}
