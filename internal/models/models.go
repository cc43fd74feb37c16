package models

import (
	"encoding/json"
	"math"
	"time"
)

type Difficulty string

const (
	DifficultyEasy      Difficulty = "Easy"
	DifficultyMedium    Difficulty = "Medium"
	DifficultyDifficult Difficulty = "Difficult"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyDifficult:
		return true
	}
	return false
}

type Category string

const (
	CategoryBivouac Category = "Bivouac"
	CategoryHike    Category = "Hike"
)

// UnmarshalJSON accepts the catalog's French label for hikes.
func (c *Category) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "Randonnée" {
		s = string(CategoryHike)
	}
	*c = Category(s)
	return nil
}

type Trip struct {
	ID             int        `json:"id"`
	Title          string     `json:"title"`
	Destination    string     `json:"destination"`
	Type           string     `json:"type"`
	Category       Category   `json:"category"`
	Purpose        string     `json:"purpose,omitempty"`
	Difficulty     Difficulty `json:"difficulty"`
	Distance       *float64   `json:"distance,omitempty"` // km
	Duration       string     `json:"duration"`
	Price          float64    `json:"price"` // DZD per person
	Includes       []string   `json:"includes,omitempty"`
	Equipment      []string   `json:"equipment,omitempty"`
	ToBring        string     `json:"toBring,omitempty"`
	ServiceOffered string     `json:"serviceOffered,omitempty"`
	DepartureTime  string     `json:"departureTime"`
	ReturnTime     string     `json:"returnTime"`
	MeetingPoint   string     `json:"meetingPoint"`
	Rating         float64    `json:"rating"` // 0..5
	ReviewCount    int        `json:"reviewCount"`
	ImageURLs      []string   `json:"imageUrls"`
	IsNextWeekend  bool       `json:"isNextWeekend,omitempty"`
}

const DefaultPickupPoint = "Grand parking - Ruisseau"

var PickupPoints = []string{
	DefaultPickupPoint,
	"Le pont - Bab Ezzouar",
	"Family shop - Blida",
}

type Passenger struct {
	FullName    string `json:"fullName"`
	PhotoID     string `json:"photoId"`
	PickupPoint string `json:"pickupPoint"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
}

type CardNetwork string

const (
	NetworkPoste CardNetwork = "poste"
	NetworkSatim CardNetwork = "satim"
)

// PaymentInstrument is card input held by a draft. Card fields are never
// serialised.
type PaymentInstrument struct {
	CardName   string      `json:"-"`
	CardNumber string      `json:"-"`
	ExpiryDate string      `json:"-"`
	CVV        string      `json:"-"`
	Network    CardNetwork `json:"network"`
}

type BookingDraft struct {
	TripID      int               `json:"tripId"`
	TicketCount int               `json:"ticketCount"`
	Passenger   Passenger         `json:"passenger"`
	Payment     PaymentInstrument `json:"payment"`
	OTP         string            `json:"-"`
}

// NewDraft starts a draft with the form defaults.
func NewDraft(tripID, tickets int) *BookingDraft {
	return &BookingDraft{
		TripID:      tripID,
		TicketCount: tickets,
		Passenger:   Passenger{PickupPoint: DefaultPickupPoint},
		Payment:     PaymentInstrument{Network: NetworkPoste},
	}
}

type BookingStatus string

const (
	StatusDepositPaid BookingStatus = "deposit_paid"
	StatusCancelled   BookingStatus = "cancelled"
)

const PaymentMethodCard = "card"

type BookingRecord struct {
	TripID           int           `json:"tripId"`
	FullName         string        `json:"fullName"`
	PhotoID          string        `json:"photoId"`
	PickupPoint      string        `json:"pickupPoint"`
	Email            string        `json:"email"`
	Phone            string        `json:"phone"`
	TicketCount      int           `json:"ticketCount"`
	TotalPrice       float64       `json:"totalPrice"`
	AmountPaid       float64       `json:"amountPaid"`
	RemainingBalance float64       `json:"remainingBalance"`
	PaymentID        string        `json:"paymentId"`
	PaymentMethod    string        `json:"paymentMethod"`
	Feedback         *string       `json:"feedback,omitempty"`
	Status           BookingStatus `json:"status,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// Active reports whether the record still holds its trip. Records written
// before status tracking existed count as active.
func (r BookingRecord) Active() bool {
	return r.Status != StatusCancelled
}

// DepositRate is the share of the total payable at booking time.
const DepositRate = 0.25

type Quote struct {
	TicketCount      int     `json:"ticketCount"`
	UnitPrice        float64 `json:"unitPrice"`
	TotalPrice       float64 `json:"totalPrice"`
	Deposit          float64 `json:"depositAmount"`
	RemainingBalance float64 `json:"remainingBalance"`
}

func NewQuote(unitPrice float64, tickets int) Quote {
	total := roundCents(unitPrice * float64(tickets))
	deposit := roundCents(total * DepositRate)
	return Quote{
		TicketCount:      tickets,
		UnitPrice:        unitPrice,
		TotalPrice:       total,
		Deposit:          deposit,
		RemainingBalance: roundCents(total - deposit),
	}
}

func roundCents(v float64) float64 { return math.Round(v*100) / 100 }

// NewRecord builds the committed record for a confirmed draft. Card fields
// are dropped here.
func NewRecord(d *BookingDraft, q Quote, paymentID string, now time.Time) BookingRecord {
	return BookingRecord{
		TripID:           d.TripID,
		FullName:         d.Passenger.FullName,
		PhotoID:          d.Passenger.PhotoID,
		PickupPoint:      d.Passenger.PickupPoint,
		Email:            d.Passenger.Email,
		Phone:            d.Passenger.Phone,
		TicketCount:      q.TicketCount,
		TotalPrice:       q.TotalPrice,
		AmountPaid:       q.Deposit,
		RemainingBalance: q.RemainingBalance,
		PaymentID:        paymentID,
		PaymentMethod:    PaymentMethodCard,
		Status:           StatusDepositPaid,
		CreatedAt:        now,
	}
}
