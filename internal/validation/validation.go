// Package validation checks booking form input in three independent passes
// (passenger, payment instrument, one-time code) and tracks field errors
// across passes.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/example/trip-booking/internal/models"
)

// Field names as surfaced to the form.
const (
	FieldFullName    = "fullName"
	FieldPhotoID     = "photoId"
	FieldPickupPoint = "pickupPoint"
	FieldPhone       = "phone"
	FieldEmail       = "email"
	FieldCardName    = "cardName"
	FieldCardNumber  = "cardNumber"
	FieldExpiryDate  = "expiryDate"
	FieldCVV         = "cvv"
	FieldOTP         = "otp"
)

var (
	PassengerFields = []string{FieldFullName, FieldPhotoID, FieldPickupPoint, FieldPhone, FieldEmail}
	PaymentFields   = []string{FieldCardName, FieldCardNumber, FieldExpiryDate, FieldCVV}
	OTPFields       = []string{FieldOTP}
)

var (
	phoneRegex  = regexp.MustCompile(`^\+?\d{10,14}$`)
	emailRegex  = regexp.MustCompile(`\S+@\S+\.\S+`)
	cardRegex   = regexp.MustCompile(`^\d{16}$`)
	expiryRegex = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	cvvRegex    = regexp.MustCompile(`^\d{3,4}$`)
	otpRegex    = regexp.MustCompile(`^\d{4}$`)
	spaceRegex  = regexp.MustCompile(`\s`)
)

type passengerInput struct {
	FullName    string `json:"fullName" validate:"present"`
	PhotoID     string `json:"photoId" validate:"required"`
	PickupPoint string `json:"pickupPoint" validate:"present"`
	Phone       string `json:"phone" validate:"present,phone"`
	Email       string `json:"email" validate:"present,loose_email"`
}

type paymentInput struct {
	CardName   string `json:"cardName" validate:"present"`
	CardNumber string `json:"cardNumber" validate:"card_present,card16"`
	ExpiryDate string `json:"expiryDate" validate:"present,expiry_format,not_expired"`
	CVV        string `json:"cvv" validate:"present,cvv"`
}

type otpInput struct {
	OTP string `json:"otp" validate:"present,otp"`
}

// Violation is the rule a field broke and the message shown next to it.
type Violation struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Errors maps field name to its violation. An empty map means valid.
type Errors map[string]Violation

// Messages flattens the errors to field -> message.
func (e Errors) Messages() map[string]string {
	out := make(map[string]string, len(e))
	for f, v := range e {
		out[f] = v.Message
	}
	return out
}

func (e Errors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// Apply replaces the errors of one pass's fields with res, leaving every
// other field's error in place.
func (e Errors) Apply(fields []string, res Errors) {
	for _, f := range fields {
		delete(e, f)
	}
	for f, v := range res {
		e[f] = v
	}
}

// ClearAll drops the given fields.
func (e Errors) ClearAll(fields []string) {
	for _, f := range fields {
		delete(e, f)
	}
}

type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

// New builds a validator. now is used for card expiry; nil means time.Now.
func New(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	v := &Validator{validate: validator.New(), now: now}
	v.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	for tag, fn := range map[string]validator.Func{
		"present":       notBlank,
		"card_present":  cardPresent,
		"phone":         matches(phoneRegex),
		"loose_email":   matches(emailRegex),
		"card16":        cardDigits,
		"expiry_format": matches(expiryRegex),
		"not_expired":   v.notExpired,
		"cvv":           matches(cvvRegex),
		"otp":           matches(otpRegex),
	} {
		// registration only fails on an empty tag or nil func
		_ = v.validate.RegisterValidation(tag, fn)
	}
	return v
}

func (v *Validator) Passenger(p models.Passenger) Errors {
	return v.run(passengerInput{
		FullName:    p.FullName,
		PhotoID:     p.PhotoID,
		PickupPoint: p.PickupPoint,
		Phone:       p.Phone,
		Email:       p.Email,
	})
}

func (v *Validator) Payment(p models.PaymentInstrument) Errors {
	return v.run(paymentInput{
		CardName:   p.CardName,
		CardNumber: p.CardNumber,
		ExpiryDate: p.ExpiryDate,
		CVV:        p.CVV,
	})
}

func (v *Validator) OTP(code string) Errors {
	return v.run(otpInput{OTP: code})
}

// StillViolates re-runs only the rule that produced a field's error against
// a new value.
func (v *Validator) StillViolates(rule, value string) bool {
	return v.validate.Var(value, rule) != nil
}

// Revalidate clears field's error once value no longer breaks the rule that
// produced it. It reports whether the error was cleared.
func (v *Validator) Revalidate(errs Errors, field, value string) bool {
	cur, ok := errs[field]
	if !ok {
		return false
	}
	if v.StillViolates(cur.Rule, value) {
		return false
	}
	delete(errs, field)
	return true
}

func (v *Validator) run(input any) Errors {
	out := Errors{}
	err := v.validate.Struct(input)
	if err == nil {
		return out
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return out
	}
	for _, fe := range verrs {
		out[fe.Field()] = Violation{Rule: fe.Tag(), Message: message(fe.Field(), fe.Tag())}
	}
	return out
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func cardPresent(fl validator.FieldLevel) bool {
	return stripSpaces(fl.Field().String()) != ""
}

func cardDigits(fl validator.FieldLevel) bool {
	return cardRegex.MatchString(stripSpaces(fl.Field().String()))
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool { return re.MatchString(fl.Field().String()) }
}

// notExpired holds when the last day of the MM/YY month is today or later.
// Malformed values do not satisfy it.
func (v *Validator) notExpired(fl validator.FieldLevel) bool {
	last, ok := ExpiryLastDay(fl.Field().String())
	if !ok {
		return false
	}
	now := v.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return !last.Before(today)
}

// ExpiryLastDay returns the last calendar day of an MM/YY expiry.
func ExpiryLastDay(expiry string) (time.Time, bool) {
	if !expiryRegex.MatchString(expiry) {
		return time.Time{}, false
	}
	month, _ := strconv.Atoi(expiry[:2])
	year, _ := strconv.Atoi(expiry[3:])
	// day 0 of the following month is the last day of this one
	return time.Date(2000+year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC), true
}

func stripSpaces(s string) string { return spaceRegex.ReplaceAllString(s, "") }

// StripCardNumber removes the grouping whitespace users type into card
// numbers.
func StripCardNumber(s string) string { return stripSpaces(s) }
