package tests

import (
	stripe "github.com/stripe/stripe-go/v76"
)

// MockBillingClient stands in for the Stripe client in processor tests.
type MockBillingClient struct {
	Subscriptions map[string]*stripe.Subscription
	ReturnedError error

	RetrievedIDs    []string
	CancelledIDs    []string
	ScheduledIDs    []string
	CancelledResult *stripe.Subscription
}

func (m *MockBillingClient) Subscription(id string) (*stripe.Subscription, error) {
	m.RetrievedIDs = append(m.RetrievedIDs, id)

	if m.ReturnedError != nil {
		return nil, m.ReturnedError
	}

	return m.Subscriptions[id], nil
}

func (m *MockBillingClient) CancelSubscription(id string) (*stripe.Subscription, error) {
	m.CancelledIDs = append(m.CancelledIDs, id)

	if m.ReturnedError != nil {
		return nil, m.ReturnedError
	}

	return m.cancelled(id), nil
}

func (m *MockBillingClient) CancelSubscriptionAtPeriodEnd(id string) (*stripe.Subscription, error) {
	m.ScheduledIDs = append(m.ScheduledIDs, id)

	if m.ReturnedError != nil {
		return nil, m.ReturnedError
	}

	return m.cancelled(id), nil
}

func (m *MockBillingClient) cancelled(id string) *stripe.Subscription {
	if m.CancelledResult != nil {
		return m.CancelledResult
	}

	return &stripe.Subscription{ID: id}
}
