package processors

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	stripe "github.com/stripe/stripe-go/v76"

	"github.com/livetranslate/billing-service/models"
	"github.com/livetranslate/billing-service/utils"
)

const (
	eventCheckoutCompleted    = "checkout.session.completed"
	eventSubscriptionCreated  = "customer.subscription.created"
	eventSubscriptionUpdated  = "customer.subscription.updated"
	eventSubscriptionDeleted  = "customer.subscription.deleted"
	eventInvoicePaid          = "invoice.paid"
	eventInvoicePaymentFailed = "invoice.payment_failed"
)

// SubscriptionStore is the slice of the models.ApiStore the reconciler needs.
type SubscriptionStore interface {
	SubscriptionByProviderID(providerID string) utils.Result[*models.UserSubscription]
	SubscriptionByUserID(userID string) utils.Result[*models.UserSubscription]
	UpsertSubscription(sub *models.UserSubscription) utils.Result[*models.UserSubscription]
	RefreshSubscriptionStatus(providerID string, status string, periodStart, periodEnd time.Time) utils.Result[bool]
	DowngradeToFree(providerID string, cancelledAt time.Time) utils.Result[bool]
	MarkCancellation(userID string, status string, cancelledAt time.Time) utils.Result[bool]
	RecordTransaction(tx *models.SubscriptionTransaction) utils.Result[*models.SubscriptionTransaction]
}

// BillingProvider is the slice of the Stripe client the reconciler needs.
type BillingProvider interface {
	Subscription(id string) (*stripe.Subscription, error)
	CancelSubscription(id string) (*stripe.Subscription, error)
	CancelSubscriptionAtPeriodEnd(id string) (*stripe.Subscription, error)
}

// Outcome describes the transition one webhook event produced.
type Outcome struct {
	EventType string
	Action    string
	UserID    string
	Tier      models.SubscriptionTier
}

// WebhookProcessor maps Stripe lifecycle events to subscription-row
// transitions and transaction-log entries.
type WebhookProcessor struct {
	logger  *slog.Logger
	store   SubscriptionStore
	billing BillingProvider
	flagger models.Flagger
}

func NewWebhookProcessor(logger *slog.Logger, store SubscriptionStore, billing BillingProvider, flagger models.Flagger) *WebhookProcessor {
	return &WebhookProcessor{
		logger:  logger,
		store:   store,
		billing: billing,
		flagger: flagger,
	}
}

// Process applies exactly one transition for a verified event. Events the
// reconciler does not understand are acknowledged without processing so the
// provider does not retry them forever.
func (p *WebhookProcessor) Process(event stripe.Event) utils.Result[*Outcome] {
	switch string(event.Type) {
	case eventCheckoutCompleted:
		return p.handleCheckoutCompleted(event)
	case eventSubscriptionCreated, eventSubscriptionUpdated:
		return p.handleSubscriptionUpdate(event)
	case eventSubscriptionDeleted:
		return p.handleSubscriptionDeleted(event)
	case eventInvoicePaid:
		return p.handleInvoicePaid(event)
	case eventInvoicePaymentFailed:
		return p.handleInvoicePaymentFailed(event)
	default:
		p.logger.Info("skipping unhandled event type", slog.String("event_type", string(event.Type)))
		return skippedOutcome(event)
	}
}

func (p *WebhookProcessor) handleCheckoutCompleted(event stripe.Event) utils.Result[*Outcome] {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return utils.FailedResult[*Outcome](err).
			AddErrorDetails("parse_checkout_session", "Error parsing checkout session payload")
	}

	userID := session.Metadata["user_id"]
	if userID == "" {
		p.logger.Warn("checkout session without user_id metadata", slog.String("session_id", session.ID))
		return skippedOutcome(event)
	}

	if session.Subscription == nil {
		p.logger.Warn("checkout session without subscription", slog.String("session_id", session.ID))
		return skippedOutcome(event)
	}

	sub, err := p.billing.Subscription(session.Subscription.ID)
	if err != nil {
		return utils.FailedResult[*Outcome](err).
			AddErrorDetails("fetch_provider_subscription", "Error fetching subscription from provider")
	}

	priceID := ""
	billingPeriod := models.DefaultBillingPeriod
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		price := sub.Items.Data[0].Price
		priceID = price.ID
		if price.Recurring != nil && price.Recurring.Interval != "" {
			billingPeriod = string(price.Recurring.Interval)
		}
	}

	tier := models.ResolveTier(priceID)
	row := &models.UserSubscription{
		UserID:               userID,
		StripeCustomerID:     customerID(session.Customer),
		StripeSubscriptionID: sub.ID,
		StripePriceID:        priceID,
		SubscriptionTier:     tier,
		SubscriptionStatus:   models.SubscriptionStatusActive,
		BillingPeriod:        billingPeriod,
		CurrentPeriodStart:   time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:     time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
	}
	row.ApplyQuotas(models.ResolveQuotas(tier))

	upsertResult := p.store.UpsertSubscription(row)
	if upsertResult.Failure() {
		return failedOutcome(upsertResult, "upsert_subscription", "Error upserting subscription")
	}

	p.flagEntitlementRefresh(userID)

	p.recordTransactionAfterWrite(&models.SubscriptionTransaction{
		UserID:                userID,
		TransactionType:       models.TransactionTypeSubscription,
		TransactionStatus:     models.TransactionStatusCompleted,
		Amount:                float64(session.AmountTotal) / 100,
		Currency:              string(session.Currency),
		Description:           fmt.Sprintf("Subscription to %s plan", tier),
		StripePaymentIntentID: paymentIntentID(session.PaymentIntent),
	})

	p.logger.Info("checkout completed",
		slog.String("user_id", userID),
		slog.String("tier", string(tier)),
	)

	return utils.SuccessResult(&Outcome{
		EventType: string(event.Type),
		Action:    "subscription_activated",
		UserID:    userID,
		Tier:      tier,
	})
}

func (p *WebhookProcessor) handleSubscriptionUpdate(event stripe.Event) utils.Result[*Outcome] {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return utils.FailedResult[*Outcome](err).
			AddErrorDetails("parse_subscription", "Error parsing subscription payload")
	}

	findResult := p.store.SubscriptionByProviderID(sub.ID)
	if findResult.Failure() {
		if models.IsNotFound(findResult.Error()) {
			p.logger.Warn("subscription update for unknown subscription", slog.String("subscription_id", sub.ID))
			return skippedOutcome(event)
		}
		return failedOutcome(findResult, "fetch_subscription", "Error fetching subscription")
	}
	row := findResult.Value()

	refreshResult := p.store.RefreshSubscriptionStatus(
		sub.ID,
		string(sub.Status),
		time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
	)
	if refreshResult.Failure() {
		return failedOutcome(refreshResult, "refresh_subscription", "Error refreshing subscription status")
	}

	p.flagEntitlementRefresh(row.UserID)

	p.logger.Info("subscription status refreshed",
		slog.String("subscription_id", sub.ID),
		slog.String("status", string(sub.Status)),
	)

	return utils.SuccessResult(&Outcome{
		EventType: string(event.Type),
		Action:    "status_refreshed",
		UserID:    row.UserID,
	})
}

func (p *WebhookProcessor) handleSubscriptionDeleted(event stripe.Event) utils.Result[*Outcome] {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return utils.FailedResult[*Outcome](err).
			AddErrorDetails("parse_subscription", "Error parsing subscription payload")
	}

	findResult := p.store.SubscriptionByProviderID(sub.ID)
	if findResult.Failure() {
		if models.IsNotFound(findResult.Error()) {
			p.logger.Warn("subscription deletion for unknown subscription", slog.String("subscription_id", sub.ID))
			return skippedOutcome(event)
		}
		return failedOutcome(findResult, "fetch_subscription", "Error fetching subscription")
	}
	row := findResult.Value()

	downgradeResult := p.store.DowngradeToFree(sub.ID, time.Now().UTC())
	if downgradeResult.Failure() {
		return failedOutcome(downgradeResult, "downgrade_subscription", "Error downgrading subscription")
	}

	p.flagEntitlementRefresh(row.UserID)

	p.recordTransactionAfterWrite(&models.SubscriptionTransaction{
		UserID:            row.UserID,
		TransactionType:   models.TransactionTypeCancellation,
		TransactionStatus: models.TransactionStatusCompleted,
		Amount:            0,
		Currency:          "USD",
		Description:       "Subscription cancelled",
	})

	p.logger.Info("subscription downgraded to free",
		slog.String("user_id", row.UserID),
		slog.String("subscription_id", sub.ID),
	)

	return utils.SuccessResult(&Outcome{
		EventType: string(event.Type),
		Action:    "downgraded",
		UserID:    row.UserID,
		Tier:      models.TierFree,
	})
}

func (p *WebhookProcessor) handleInvoicePaid(event stripe.Event) utils.Result[*Outcome] {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return utils.FailedResult[*Outcome](err).
			AddErrorDetails("parse_invoice", "Error parsing invoice payload")
	}

	if invoice.Subscription == nil {
		p.logger.Warn("invoice without subscription", slog.String("invoice_id", invoice.ID))
		return skippedOutcome(event)
	}

	findResult := p.store.SubscriptionByProviderID(invoice.Subscription.ID)
	if findResult.Failure() {
		if models.IsNotFound(findResult.Error()) {
			p.logger.Warn("paid invoice for unknown subscription", slog.String("subscription_id", invoice.Subscription.ID))
			return skippedOutcome(event)
		}
		return failedOutcome(findResult, "fetch_subscription", "Error fetching subscription")
	}
	row := findResult.Value()

	txResult := p.store.RecordTransaction(&models.SubscriptionTransaction{
		UserID:                row.UserID,
		TransactionType:       models.TransactionTypeRenewal,
		TransactionStatus:     models.TransactionStatusCompleted,
		Amount:                float64(invoice.AmountPaid) / 100,
		Currency:              string(invoice.Currency),
		Description:           "Subscription renewal",
		StripePaymentIntentID: paymentIntentID(invoice.PaymentIntent),
		StripeInvoiceID:       invoice.ID,
	})
	if txResult.Failure() {
		return failedOutcome(txResult, "record_transaction", "Error recording renewal transaction")
	}

	return utils.SuccessResult(&Outcome{
		EventType: string(event.Type),
		Action:    "renewal_recorded",
		UserID:    row.UserID,
	})
}

func (p *WebhookProcessor) handleInvoicePaymentFailed(event stripe.Event) utils.Result[*Outcome] {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return utils.FailedResult[*Outcome](err).
			AddErrorDetails("parse_invoice", "Error parsing invoice payload")
	}

	if invoice.Subscription == nil {
		p.logger.Warn("invoice without subscription", slog.String("invoice_id", invoice.ID))
		return skippedOutcome(event)
	}

	findResult := p.store.SubscriptionByProviderID(invoice.Subscription.ID)
	if findResult.Failure() {
		if models.IsNotFound(findResult.Error()) {
			p.logger.Warn("failed invoice for unknown subscription", slog.String("subscription_id", invoice.Subscription.ID))
			return skippedOutcome(event)
		}
		return failedOutcome(findResult, "fetch_subscription", "Error fetching subscription")
	}
	row := findResult.Value()

	txResult := p.store.RecordTransaction(&models.SubscriptionTransaction{
		UserID:            row.UserID,
		TransactionType:   models.TransactionTypeRenewal,
		TransactionStatus: models.TransactionStatusFailed,
		Amount:            float64(invoice.AmountDue) / 100,
		Currency:          string(invoice.Currency),
		Description:       "Payment failed",
		StripeInvoiceID:   invoice.ID,
	})
	if txResult.Failure() {
		return failedOutcome(txResult, "record_transaction", "Error recording failed-payment transaction")
	}

	return utils.SuccessResult(&Outcome{
		EventType: string(event.Type),
		Action:    "payment_failure_recorded",
		UserID:    row.UserID,
	})
}

func (p *WebhookProcessor) flagEntitlementRefresh(userID string) {
	if p.flagger == nil {
		return
	}

	if err := p.flagger.Flag(userID); err != nil {
		// The subscription row is the source of truth; a missed flag only
		// delays the app backend's cache refresh.
		p.logger.Error("error flagging entitlement refresh",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		utils.CaptureError(err)
	}
}

// recordTransactionAfterWrite inserts the log entry for an event whose
// subscription write already landed. Failing the event here would make the
// provider redeliver and re-apply the whole transition, so the error is
// logged and captured instead.
func (p *WebhookProcessor) recordTransactionAfterWrite(tx *models.SubscriptionTransaction) {
	result := p.store.RecordTransaction(tx)
	if result.Failure() {
		p.logger.Error("error recording transaction",
			slog.String("user_id", tx.UserID),
			slog.String("transaction_type", string(tx.TransactionType)),
			slog.String("error", result.ErrorMsg()),
		)
		utils.CaptureError(result.Error())
	}
}

func skippedOutcome(event stripe.Event) utils.Result[*Outcome] {
	return utils.IgnoredResult(&Outcome{
		EventType: string(event.Type),
		Action:    "skipped",
	})
}

func failedOutcome(r utils.AnyResult, code string, message string) utils.Result[*Outcome] {
	result := utils.FailedResult[*Outcome](r.Error()).AddErrorDetails(code, message)
	result.Retryable = r.IsRetryable()
	result.Capture = r.IsCapturable()
	return result
}

func customerID(customer *stripe.Customer) string {
	if customer == nil {
		return ""
	}
	return customer.ID
}

func paymentIntentID(pi *stripe.PaymentIntent) string {
	if pi == nil {
		return ""
	}
	return pi.ID
}
