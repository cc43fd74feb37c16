// Package payments defines the two-phase card gateway used by the booking
// flow: authorize the card, then confirm with a one-time code.
package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/trip-booking/internal/models"
)

// Gateway authorizes a card for an amount, then confirms the payment with
// the one-time code sent to the card holder.
type Gateway interface {
	Authorize(ctx context.Context, card models.PaymentInstrument, amount float64) error
	Confirm(ctx context.Context, otp string) (paymentID string, err error)
}

const (
	CodeCardDeclined    = "card_declined"
	CodeInvalidCVV      = "invalid_cvv"
	CodeOTPMismatch     = "otp_mismatch"
	CodeNoAuthorization = "no_authorization"
)

// PaymentError is a form-level payment failure the user can retry.
type PaymentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *PaymentError) Error() string { return e.Code + ": " + e.Message }

// Is matches on Code so wrapped copies compare equal to the sentinels.
func (e *PaymentError) Is(target error) bool {
	var t *PaymentError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrCardDeclined    = &PaymentError{Code: CodeCardDeclined, Message: "Votre carte a été refusée. Veuillez vérifier vos informations ou essayer une autre carte."}
	ErrInvalidCVV      = &PaymentError{Code: CodeInvalidCVV, Message: "Le CVV saisi est incorrect. Veuillez vérifier le code à 3 ou 4 chiffres au dos de votre carte."}
	ErrOTPMismatch     = &PaymentError{Code: CodeOTPMismatch, Message: "L'OTP ne correspond pas. Veuillez vérifier le code envoyé sur votre téléphone et réessayer."}
	ErrNoAuthorization = &PaymentError{Code: CodeNoAuthorization, Message: "Aucune autorisation de paiement en cours."}
)

// Clock is the delay source used by the simulator.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func RealClock() Clock { return realClock{} }

// NewPaymentID returns an opaque, process-unique payment identifier.
func NewPaymentID() string {
	return "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
