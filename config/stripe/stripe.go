package stripe

import (
	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

type Config struct {
	APIKey        string
	WebhookSecret string
}

type Client struct {
	api           *client.API
	webhookSecret string
}

func NewClient(cfg Config) *Client {
	api := &client.API{}
	api.Init(cfg.APIKey, nil)

	return &Client{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
	}
}

// VerifyEvent checks the Stripe-Signature header against the webhook signing
// secret and decodes the payload into an event.
func (c *Client) VerifyEvent(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, signature, c.webhookSecret)
}

func (c *Client) Subscription(id string) (*stripe.Subscription, error) {
	return c.api.Subscriptions.Get(id, nil)
}

func (c *Client) CancelSubscription(id string) (*stripe.Subscription, error) {
	return c.api.Subscriptions.Cancel(id, nil)
}

func (c *Client) CancelSubscriptionAtPeriodEnd(id string) (*stripe.Subscription, error) {
	return c.api.Subscriptions.Update(id, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
}
