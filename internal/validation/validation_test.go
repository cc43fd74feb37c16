package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/trip-booking/internal/models"
)

func fixedNow() time.Time { return time.Date(2026, 10, 15, 14, 30, 0, 0, time.UTC) }

func validPassenger() models.Passenger {
	return models.Passenger{
		FullName:    "Amine Benali",
		PhotoID:     "data:image/png;base64,AAAA",
		PickupPoint: models.DefaultPickupPoint,
		Phone:       "+213555123456",
		Email:       "amine@example.dz",
	}
}

func validCard() models.PaymentInstrument {
	return models.PaymentInstrument{
		CardName:   "AMINE BENALI",
		CardNumber: "4000 0000 0000 4242",
		ExpiryDate: "12/28",
		CVV:        "321",
		Network:    models.NetworkPoste,
	}
}

func TestPassenger_Valid(t *testing.T) {
	v := New(fixedNow)
	assert.Empty(t, v.Passenger(validPassenger()))
}

func TestPassenger_Rules(t *testing.T) {
	v := New(fixedNow)
	tests := []struct {
		name  string
		mut   func(p *models.Passenger)
		field string
		rule  string
	}{
		{"blank name", func(p *models.Passenger) { p.FullName = "   " }, FieldFullName, "present"},
		{"missing photo", func(p *models.Passenger) { p.PhotoID = "" }, FieldPhotoID, "required"},
		{"blank pickup", func(p *models.Passenger) { p.PickupPoint = " " }, FieldPickupPoint, "present"},
		{"missing phone", func(p *models.Passenger) { p.Phone = "" }, FieldPhone, "present"},
		{"short phone", func(p *models.Passenger) { p.Phone = "12345" }, FieldPhone, "phone"},
		{"phone with letters", func(p *models.Passenger) { p.Phone = "+21355512345a" }, FieldPhone, "phone"},
		{"phone too long", func(p *models.Passenger) { p.Phone = "123456789012345" }, FieldPhone, "phone"},
		{"missing email", func(p *models.Passenger) { p.Email = "" }, FieldEmail, "present"},
		{"bad email", func(p *models.Passenger) { p.Email = "amine@example" }, FieldEmail, "loose_email"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := validPassenger()
			tc.mut(&p)
			errs := v.Passenger(p)
			require.Len(t, errs, 1)
			assert.Equal(t, tc.rule, errs[tc.field].Rule)
			assert.NotEmpty(t, errs[tc.field].Message)
		})
	}
}

func TestPayment_Rules(t *testing.T) {
	v := New(fixedNow)
	tests := []struct {
		name  string
		mut   func(p *models.PaymentInstrument)
		field string
		rule  string
	}{
		{"blank holder", func(p *models.PaymentInstrument) { p.CardName = "" }, FieldCardName, "present"},
		{"only spaces card", func(p *models.PaymentInstrument) { p.CardNumber = "    " }, FieldCardNumber, "card_present"},
		{"15 digits", func(p *models.PaymentInstrument) { p.CardNumber = "400000000000424" }, FieldCardNumber, "card16"},
		{"letters in card", func(p *models.PaymentInstrument) { p.CardNumber = "4000 0000 0000 424x" }, FieldCardNumber, "card16"},
		{"missing expiry", func(p *models.PaymentInstrument) { p.ExpiryDate = "" }, FieldExpiryDate, "present"},
		{"month 13", func(p *models.PaymentInstrument) { p.ExpiryDate = "13/28" }, FieldExpiryDate, "expiry_format"},
		{"long year", func(p *models.PaymentInstrument) { p.ExpiryDate = "12/2028" }, FieldExpiryDate, "expiry_format"},
		{"expired last month", func(p *models.PaymentInstrument) { p.ExpiryDate = "09/26" }, FieldExpiryDate, "not_expired"},
		{"missing cvv", func(p *models.PaymentInstrument) { p.CVV = "" }, FieldCVV, "present"},
		{"short cvv", func(p *models.PaymentInstrument) { p.CVV = "12" }, FieldCVV, "cvv"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := validCard()
			tc.mut(&p)
			errs := v.Payment(p)
			require.Len(t, errs, 1)
			assert.Equal(t, tc.rule, errs[tc.field].Rule)
		})
	}
}

func TestPayment_CurrentMonthIsNotExpired(t *testing.T) {
	v := New(func() time.Time { return time.Date(2026, 10, 31, 23, 59, 0, 0, time.UTC) })
	p := validCard()
	p.ExpiryDate = "10/26"
	assert.Empty(t, v.Payment(p))

	v = New(func() time.Time { return time.Date(2026, 11, 1, 0, 1, 0, 0, time.UTC) })
	assert.True(t, v.Payment(p).Has(FieldExpiryDate))
}

func TestOTP_Rules(t *testing.T) {
	v := New(fixedNow)
	assert.Empty(t, v.OTP("1234"))
	assert.Equal(t, "present", v.OTP("")[FieldOTP].Rule)
	assert.Equal(t, "L'OTP est requis.", v.OTP("").Messages()[FieldOTP])
	assert.Equal(t, "otp", v.OTP("123")[FieldOTP].Rule)
	assert.Equal(t, "otp", v.OTP("12a4")[FieldOTP].Rule)
	assert.Equal(t, "otp", v.OTP("12345")[FieldOTP].Rule)
}

func TestPasses_Deterministic(t *testing.T) {
	v := New(fixedNow)
	p := validPassenger()
	p.Phone = "abc"
	p.Email = ""
	assert.Equal(t, v.Passenger(p), v.Passenger(p))
}

func TestApply_KeepsOtherPassErrors(t *testing.T) {
	v := New(fixedNow)
	errs := Errors{}

	p := validPassenger()
	p.FullName = ""
	errs.Apply(PassengerFields, v.Passenger(p))

	card := validCard()
	card.CVV = "1"
	errs.Apply(PaymentFields, v.Payment(card))
	require.True(t, errs.Has(FieldFullName))
	require.True(t, errs.Has(FieldCVV))

	card.CVV = "999"
	errs.Apply(PaymentFields, v.Payment(card))
	assert.True(t, errs.Has(FieldFullName))
	assert.False(t, errs.Has(FieldCVV))
}

func TestRevalidate_ClearsOnlyWhenRuleSatisfied(t *testing.T) {
	v := New(fixedNow)
	p := validPassenger()
	p.Phone = ""
	p.Email = "nope"
	errs := v.Passenger(p)
	require.Equal(t, "present", errs[FieldPhone].Rule)

	// any non-blank value satisfies the rule that produced the error
	assert.True(t, v.Revalidate(errs, FieldPhone, "0"))
	assert.False(t, errs.Has(FieldPhone))
	assert.True(t, errs.Has(FieldEmail))

	assert.False(t, v.Revalidate(errs, FieldEmail, "still@bad"))
	assert.True(t, errs.Has(FieldEmail))
	assert.True(t, v.Revalidate(errs, FieldEmail, "ok@example.dz"))
	assert.Empty(t, errs)
}

func TestRevalidate_ExpiredNeedsValidFutureDate(t *testing.T) {
	v := New(fixedNow)
	card := validCard()
	card.ExpiryDate = "01/25"
	errs := v.Payment(card)
	require.Equal(t, "not_expired", errs[FieldExpiryDate].Rule)

	assert.False(t, v.Revalidate(errs, FieldExpiryDate, "01/2"))
	assert.True(t, v.Revalidate(errs, FieldExpiryDate, "01/27"))
}

func TestExpiryLastDay(t *testing.T) {
	d, ok := ExpiryLastDay("02/28")
	require.True(t, ok)
	assert.Equal(t, time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC), d)

	_, ok = ExpiryLastDay("2/28")
	assert.False(t, ok)
}
