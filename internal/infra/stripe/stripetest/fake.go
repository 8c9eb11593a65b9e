// Package stripetest provides an in-memory stripe.Billing for handler tests.
package stripetest

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	stripeapi "github.com/stripe/stripe-go/v75"

	"consent-app/internal/infra/stripe"
)

// Fake records calls and serves canned data. Set Err to make every call fail.
type Fake struct {
	mu sync.Mutex

	Prices        []stripe.Price
	Subscriptions map[string]*stripe.Subscription
	Err           error

	Customers []string
	Checkouts []stripe.CheckoutParams
	Canceled  []string
	Changed   []string
}

var _ stripe.Billing = (*Fake)(nil)

func New() *Fake {
	return &Fake{Subscriptions: map[string]*stripe.Subscription{}}
}

func (f *Fake) ListRecurringPrices(productID string) ([]stripe.Price, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	var out []stripe.Price
	for _, p := range f.Prices {
		if productID == "" || p.ProductID == productID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *Fake) CreateCustomer(email string, userID uint) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	id := fmt.Sprintf("cus_%d", userID)
	f.Customers = append(f.Customers, id)
	return id, nil
}

func (f *Fake) CreateCheckoutSession(p stripe.CheckoutParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	f.Checkouts = append(f.Checkouts, p)
	return "https://checkout.stripe.test/" + p.PriceID, nil
}

func (f *Fake) CreateBillingPortal(customerID, returnURL string) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	return "https://billing.stripe.test/" + customerID, nil
}

func (f *Fake) GetSubscription(id string) (*stripe.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	s, ok := f.Subscriptions[id]
	if !ok {
		return nil, errors.New("no such subscription")
	}
	cp := *s
	return &cp, nil
}

func (f *Fake) ChangeSubscriptionPrice(id, itemID, priceID string) (*stripe.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	s, ok := f.Subscriptions[id]
	if !ok {
		return nil, errors.New("no such subscription")
	}
	s.PriceID = priceID
	f.Changed = append(f.Changed, priceID)
	cp := *s
	return &cp, nil
}

func (f *Fake) CancelSubscription(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Canceled = append(f.Canceled, id)
	return nil
}

// ConstructEvent skips signature checks: the payload is the event JSON and
// the signature must be "valid".
func (f *Fake) ConstructEvent(payload []byte, signature string) (stripeapi.Event, error) {
	if signature != "valid" {
		return stripeapi.Event{}, errors.New("bad signature")
	}
	var ev stripeapi.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return stripeapi.Event{}, err
	}
	return ev, nil
}
