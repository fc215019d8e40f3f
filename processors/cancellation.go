package processors

import (
	"errors"
	"log/slog"
	"time"

	stripe "github.com/stripe/stripe-go/v76"

	"github.com/livetranslate/billing-service/models"
	"github.com/livetranslate/billing-service/utils"
)

// CancellationOutcome reports the effect of a user-requested cancellation.
type CancellationOutcome struct {
	UserID      string
	Immediately bool
	Message     string
	CancelAt    *time.Time
}

// CancellationService handles cancel requests coming from the app, as
// opposed to lifecycle events coming from the provider.
type CancellationService struct {
	logger  *slog.Logger
	store   SubscriptionStore
	billing BillingProvider
	flagger models.Flagger
}

func NewCancellationService(logger *slog.Logger, store SubscriptionStore, billing BillingProvider, flagger models.Flagger) *CancellationService {
	return &CancellationService{
		logger:  logger,
		store:   store,
		billing: billing,
		flagger: flagger,
	}
}

// Cancel ends the user's subscription at the provider, either right away or
// at the end of the current billing period, and mirrors the change locally.
// The terminal downgrade to the free tier still happens through the
// provider's deletion event.
func (s *CancellationService) Cancel(userID string, immediately bool) utils.Result[*CancellationOutcome] {
	findResult := s.store.SubscriptionByUserID(userID)
	if findResult.Failure() {
		if models.IsNotFound(findResult.Error()) {
			return utils.FailedResult[*CancellationOutcome](findResult.Error()).
				AddErrorDetails("subscription_not_found", "No active subscription found").
				NonCapturable().
				NonRetryable()
		}
		return failedCancellationOutcome(findResult, "fetch_subscription", "Error fetching subscription")
	}

	row := findResult.Value()
	if row.StripeSubscriptionID == "" {
		return utils.FailedResult[*CancellationOutcome](errors.New("subscription row has no provider subscription id")).
			AddErrorDetails("subscription_not_found", "No active subscription found").
			NonCapturable().
			NonRetryable()
	}

	var cancelled *stripe.Subscription
	var err error
	if immediately {
		cancelled, err = s.billing.CancelSubscription(row.StripeSubscriptionID)
	} else {
		cancelled, err = s.billing.CancelSubscriptionAtPeriodEnd(row.StripeSubscriptionID)
	}
	if err != nil {
		return utils.FailedResult[*CancellationOutcome](err).
			AddErrorDetails("provider_cancellation", "Error cancelling subscription at provider")
	}

	status := models.SubscriptionStatusActive
	message := "Subscription will be cancelled at period end"
	if immediately {
		status = models.SubscriptionStatusCancelled
		message = "Subscription cancelled immediately"
	}

	markResult := s.store.MarkCancellation(userID, status, time.Now().UTC())
	if markResult.Failure() {
		return failedCancellationOutcome(markResult, "mark_cancellation", "Error updating subscription status")
	}

	s.flagEntitlementRefresh(userID)

	var cancelAt *time.Time
	if cancelled != nil && cancelled.CancelAt > 0 {
		at := time.Unix(cancelled.CancelAt, 0).UTC()
		cancelAt = &at
	}

	s.logger.Info("subscription cancellation requested",
		slog.String("user_id", userID),
		slog.Bool("immediately", immediately),
	)

	return utils.SuccessResult(&CancellationOutcome{
		UserID:      userID,
		Immediately: immediately,
		Message:     message,
		CancelAt:    cancelAt,
	})
}

func (s *CancellationService) flagEntitlementRefresh(userID string) {
	if s.flagger == nil {
		return
	}

	if err := s.flagger.Flag(userID); err != nil {
		s.logger.Error("error flagging entitlement refresh",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		utils.CaptureError(err)
	}
}

func failedCancellationOutcome(r utils.AnyResult, code string, message string) utils.Result[*CancellationOutcome] {
	result := utils.FailedResult[*CancellationOutcome](r.Error()).AddErrorDetails(code, message)
	result.Retryable = r.IsRetryable()
	result.Capture = r.IsCapturable()
	return result
}
