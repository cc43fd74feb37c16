package payments

import (
	"context"
	"strings"
	"time"

	"github.com/example/trip-booking/internal/models"
)

const (
	DefaultAuthorizeDelay = 1500 * time.Millisecond
	DefaultConfirmDelay   = 2000 * time.Millisecond

	declinedSuffix = "1111"
	blockedCVV     = "123"
	blockedOTP     = "0000"
)

// Simulator is a fake gateway with fixed rejection rules: cards ending in
// 1111 are declined, CVV 123 is rejected, OTP 0000 never matches.
type Simulator struct {
	Clock          Clock
	AuthorizeDelay time.Duration
	ConfirmDelay   time.Duration
	NewID          func() string
}

func NewSimulator(clock Clock, authorizeDelay, confirmDelay time.Duration) *Simulator {
	if clock == nil {
		clock = RealClock()
	}
	return &Simulator{Clock: clock, AuthorizeDelay: authorizeDelay, ConfirmDelay: confirmDelay, NewID: NewPaymentID}
}

func (s *Simulator) Authorize(ctx context.Context, card models.PaymentInstrument, _ float64) error {
	if err := s.wait(ctx, s.AuthorizeDelay); err != nil {
		return err
	}
	number := strings.Join(strings.Fields(card.CardNumber), "")
	if strings.HasSuffix(number, declinedSuffix) {
		return ErrCardDeclined
	}
	if card.CVV == blockedCVV {
		return ErrInvalidCVV
	}
	return nil
}

func (s *Simulator) Confirm(ctx context.Context, otp string) (string, error) {
	if err := s.wait(ctx, s.ConfirmDelay); err != nil {
		return "", err
	}
	if otp == blockedOTP {
		return "", ErrOTPMismatch
	}
	newID := s.NewID
	if newID == nil {
		newID = NewPaymentID
	}
	return newID(), nil
}

func (s *Simulator) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.Clock.After(d):
		return nil
	}
}
