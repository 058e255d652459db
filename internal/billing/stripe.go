// Package billing adapts the Stripe API to the webhook pipeline.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"coteri/internal/domain/webhook"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	stripewebhook "github.com/stripe/stripe-go/v76/webhook"
)

const defaultTimeout = 10 * time.Second

var ErrNotConfigured = errors.New("stripe is not configured")

type Config struct {
	SecretKey     string
	WebhookSecret string
	// Timeout bounds every API call.
	Timeout time.Duration
}

type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

func NewStripeProvider(cfg Config) *StripeProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := &http.Client{Timeout: timeout}

	var api *client.API
	if cfg.SecretKey != "" {
		api = client.New(cfg.SecretKey, stripe.NewBackends(httpClient))
	}
	return &StripeProvider{api: api, webhookSecret: cfg.WebhookSecret}
}

// ConstructEvent checks the Stripe-Signature header and decodes the event.
func (p *StripeProvider) ConstructEvent(payload []byte, signatureHeader string) (webhook.Event, error) {
	if p.webhookSecret == "" {
		return webhook.Event{}, ErrNotConfigured
	}
	ev, err := stripewebhook.ConstructEventWithOptions(payload, signatureHeader, p.webhookSecret,
		stripewebhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return webhook.Event{}, err
	}
	out, err := Decode(ev)
	if err != nil {
		return webhook.Event{}, err
	}
	out.Raw = payload
	return out, nil
}

func (p *StripeProvider) RetrieveEvent(ctx context.Context, eventID string) (webhook.Event, error) {
	if p.api == nil {
		return webhook.Event{}, ErrNotConfigured
	}
	params := &stripe.EventParams{}
	params.Context = ctx
	ev, err := p.api.Events.Get(eventID, params)
	if err != nil {
		return webhook.Event{}, err
	}
	out, err := Decode(*ev)
	if err != nil {
		return webhook.Event{}, err
	}
	if ev.LastResponse != nil {
		out.Raw = ev.LastResponse.RawJSON
	}
	return out, nil
}

// SubscriptionPeriodEnd returns the zero time when Stripe reports no period end.
func (p *StripeProvider) SubscriptionPeriodEnd(ctx context.Context, subscriptionID string) (time.Time, error) {
	if p.api == nil {
		return time.Time{}, ErrNotConfigured
	}
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := p.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return time.Time{}, err
	}
	if sub.CurrentPeriodEnd == 0 {
		return time.Time{}, nil
	}
	return time.Unix(sub.CurrentPeriodEnd, 0).UTC(), nil
}

// Decode reduces a Stripe event to the fields the processor reads. Objects
// of types the processor ignores are not decoded.
func Decode(ev stripe.Event) (webhook.Event, error) {
	out := webhook.Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return out, nil
	}

	switch out.Kind() {
	case webhook.KindCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &session); err != nil {
			return webhook.Event{}, fmt.Errorf("decode checkout session: %w", err)
		}
		out.MembershipRef = session.ClientReferenceID
		if session.Subscription != nil {
			out.SubscriptionID = session.Subscription.ID
		}
	case webhook.KindInvoicePaymentSucceeded:
		var invoice stripe.Invoice
		if err := json.Unmarshal(ev.Data.Raw, &invoice); err != nil {
			return webhook.Event{}, fmt.Errorf("decode invoice: %w", err)
		}
		if invoice.Subscription != nil {
			out.SubscriptionID = invoice.Subscription.ID
		}
	case webhook.KindSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return webhook.Event{}, fmt.Errorf("decode subscription: %w", err)
		}
		out.SubscriptionID = sub.ID
	}
	return out, nil
}
