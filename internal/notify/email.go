// Package notify sends the outbound messages of a completed booking: the
// customer's confirmation email and the agency notice.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/trip-booking/internal/models"
)

// EmailSender delivers the booking confirmation. Delivery is fire-and-forget;
// callers never wait on it.
type EmailSender interface {
	SendConfirmation(ctx context.Context, trip models.Trip, rec models.BookingRecord) error
}

// LogEmailSender only logs what would be sent.
type LogEmailSender struct {
	Logger *slog.Logger
}

func (l *LogEmailSender) SendConfirmation(_ context.Context, trip models.Trip, rec models.BookingRecord) error {
	l.Logger.Info("confirmation email", "to", rec.Email, "trip_id", trip.ID, "trip", trip.Title, "payment_id", rec.PaymentID)
	return nil
}

// HTTPEmailSender posts the confirmation to a mail relay endpoint. Key,
// when set, is sent as a bearer token.
type HTTPEmailSender struct {
	Endpoint string
	Key      string
	Client   *http.Client
}

func NewHTTPEmailSender(endpoint, key string) *HTTPEmailSender {
	return &HTTPEmailSender{Endpoint: endpoint, Key: key, Client: &http.Client{Timeout: 3 * time.Second}}
}

type confirmationEmail struct {
	To               string  `json:"to"`
	Name             string  `json:"name"`
	TripID           int     `json:"trip_id"`
	TripTitle        string  `json:"trip_title"`
	Destination      string  `json:"destination"`
	DepartureTime    string  `json:"departure_time"`
	MeetingPoint     string  `json:"meeting_point"`
	PickupPoint      string  `json:"pickup_point"`
	TicketCount      int     `json:"ticket_count"`
	AmountPaid       float64 `json:"amount_paid"`
	RemainingBalance float64 `json:"remaining_balance"`
	PaymentID        string  `json:"payment_id"`
}

func (h *HTTPEmailSender) SendConfirmation(ctx context.Context, trip models.Trip, rec models.BookingRecord) error {
	b, err := json.Marshal(confirmationEmail{
		To:               rec.Email,
		Name:             rec.FullName,
		TripID:           trip.ID,
		TripTitle:        trip.Title,
		Destination:      trip.Destination,
		DepartureTime:    trip.DepartureTime,
		MeetingPoint:     trip.MeetingPoint,
		PickupPoint:      rec.PickupPoint,
		TicketCount:      rec.TicketCount,
		AmountPaid:       rec.AmountPaid,
		RemainingBalance: rec.RemainingBalance,
		PaymentID:        rec.PaymentID,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.Key != "" {
		req.Header.Set("Authorization", "Bearer "+h.Key)
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail relay returned %d", resp.StatusCode)
	}
	return nil
}
