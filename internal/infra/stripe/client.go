package stripe

import (
	"errors"
	"fmt"
	"time"

	stripeapi "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
	"github.com/stripe/stripe-go/v75/webhook"
)

var ErrNotConfigured = errors.New("stripe is not configured")

// Price is a recurring Stripe price reduced to what the plan sync needs.
type Price struct {
	ID          string
	ProductID   string
	ProductName string
	AmountEUR   float64
	Interval    string
	Tier        string
	Visible     bool
}

// Subscription is the subset of a Stripe subscription the billing code reads.
type Subscription struct {
	ID               string
	Status           string
	ItemID           string
	PriceID          string
	CurrentPeriodEnd time.Time
	Metadata         map[string]string
}

// Billing is the Stripe surface used by the billing handlers.
type Billing interface {
	ListRecurringPrices(productID string) ([]Price, error)
	CreateCustomer(email string, userID uint) (string, error)
	CreateCheckoutSession(p CheckoutParams) (string, error)
	CreateBillingPortal(customerID, returnURL string) (string, error)
	GetSubscription(id string) (*Subscription, error)
	ChangeSubscriptionPrice(id, itemID, priceID string) (*Subscription, error)
	CancelSubscription(id string) error
	ConstructEvent(payload []byte, signature string) (stripeapi.Event, error)
}

type CheckoutParams struct {
	CustomerID string
	PriceID    string
	UserID     uint
	Tier       string
	SuccessURL string
	CancelURL  string
}

type Client struct {
	api           *client.API
	webhookSecret string
}

// New returns nil when no secret key is configured; callers treat a nil
// Billing as "billing disabled".
func New(secretKey, webhookSecret string) *Client {
	if secretKey == "" {
		return nil
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Client{api: api, webhookSecret: webhookSecret}
}

func (c *Client) ListRecurringPrices(productID string) ([]Price, error) {
	params := &stripeapi.PriceListParams{}
	params.Active = stripeapi.Bool(true)
	params.Type = stripeapi.String("recurring")
	params.AddExpand("data.product")

	var out []Price
	it := c.api.Prices.List(params)
	for it.Next() {
		p := it.Price()
		if !p.Active || p.Recurring == nil || p.Product == nil || !p.Product.Active {
			continue
		}
		if productID != "" && p.Product.ID != productID {
			continue
		}
		if string(p.Currency) != "eur" {
			continue
		}

		tier := p.Metadata["tier"]
		if tier == "" {
			tier = p.Metadata["plan"]
		}

		out = append(out, Price{
			ID:          p.ID,
			ProductID:   p.Product.ID,
			ProductName: p.Product.Name,
			AmountEUR:   float64(p.UnitAmount) / 100.0,
			Interval:    string(p.Recurring.Interval),
			Tier:        tier,
			Visible:     p.Metadata["visible"] != "false",
		})
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("list stripe prices: %w", err)
	}
	return out, nil
}

func (c *Client) CreateCustomer(email string, userID uint) (string, error) {
	cus, err := c.api.Customers.New(&stripeapi.CustomerParams{
		Email: stripeapi.String(email),
		Metadata: map[string]string{
			"user_id": fmt.Sprint(userID),
		},
	})
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return cus.ID, nil
}

func (c *Client) CreateCheckoutSession(p CheckoutParams) (string, error) {
	params := &stripeapi.CheckoutSessionParams{
		SuccessURL: stripeapi.String(p.SuccessURL),
		CancelURL:  stripeapi.String(p.CancelURL),
		Mode:       stripeapi.String(string(stripeapi.CheckoutSessionModeSubscription)),
		Customer:   stripeapi.String(p.CustomerID),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{
			{Price: stripeapi.String(p.PriceID), Quantity: stripeapi.Int64(1)},
		},
		ClientReferenceID: stripeapi.String(fmt.Sprint(p.UserID)),
		SubscriptionData: &stripeapi.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				"user_id": fmt.Sprint(p.UserID),
				"tier":    p.Tier,
			},
		},
	}

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return s.URL, nil
}

func (c *Client) CreateBillingPortal(customerID, returnURL string) (string, error) {
	portal, err := c.api.BillingPortalSessions.New(&stripeapi.BillingPortalSessionParams{
		Customer:  stripeapi.String(customerID),
		ReturnURL: stripeapi.String(returnURL),
	})
	if err != nil {
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	return portal.URL, nil
}

func (c *Client) GetSubscription(id string) (*Subscription, error) {
	sub, err := c.api.Subscriptions.Get(id, nil)
	if err != nil {
		return nil, fmt.Errorf("get stripe subscription: %w", err)
	}
	return FromStripe(sub)
}

func (c *Client) ChangeSubscriptionPrice(id, itemID, priceID string) (*Subscription, error) {
	sub, err := c.api.Subscriptions.Update(id, &stripeapi.SubscriptionParams{
		Items: []*stripeapi.SubscriptionItemsParams{
			{ID: stripeapi.String(itemID), Price: stripeapi.String(priceID)},
		},
		ProrationBehavior: stripeapi.String("create_prorations"),
	})
	if err != nil {
		return nil, fmt.Errorf("update stripe subscription: %w", err)
	}
	return FromStripe(sub)
}

func (c *Client) CancelSubscription(id string) error {
	if _, err := c.api.Subscriptions.Cancel(id, nil); err != nil {
		return fmt.Errorf("cancel stripe subscription: %w", err)
	}
	return nil
}

func (c *Client) ConstructEvent(payload []byte, signature string) (stripeapi.Event, error) {
	if c.webhookSecret == "" {
		return stripeapi.Event{}, ErrNotConfigured
	}
	return webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
}

// FromStripe flattens a Stripe subscription. It fails when the subscription
// has no priced item.
func FromStripe(sub *stripeapi.Subscription) (*Subscription, error) {
	if sub == nil || sub.ID == "" {
		return nil, errors.New("subscription missing id")
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return nil, fmt.Errorf("subscription %s has no price item", sub.ID)
	}
	item := sub.Items.Data[0]
	return &Subscription{
		ID:               sub.ID,
		Status:           string(sub.Status),
		ItemID:           item.ID,
		PriceID:          item.Price.ID,
		CurrentPeriodEnd: time.Unix(sub.CurrentPeriodEnd, 0),
		Metadata:         sub.Metadata,
	}, nil
}
