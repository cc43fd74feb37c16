package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/trip-booking/internal/models"
	"github.com/example/trip-booking/internal/observability"
)

// AgencyNotifier tells the travel agency about a completed booking.
type AgencyNotifier interface {
	NotifyAgency(ctx context.Context, notice AgencyNotice) error
}

// AgencyNotice is what the agency receives. The passenger's id photo stays
// out of it.
type AgencyNotice struct {
	PaymentID        string    `json:"paymentId"`
	TripID           int       `json:"tripId"`
	TripTitle        string    `json:"tripTitle"`
	FullName         string    `json:"fullName"`
	Phone            string    `json:"phone"`
	Email            string    `json:"email"`
	PickupPoint      string    `json:"pickupPoint"`
	TicketCount      int       `json:"ticketCount"`
	TotalPrice       float64   `json:"totalPrice"`
	AmountPaid       float64   `json:"amountPaid"`
	RemainingBalance float64   `json:"remainingBalance"`
	BookingReference string    `json:"bookingReference"`
	BookedAt         time.Time `json:"bookedAt"`
}

func NewAgencyNotice(trip models.Trip, rec models.BookingRecord, reference string) AgencyNotice {
	return AgencyNotice{
		PaymentID:        rec.PaymentID,
		TripID:           trip.ID,
		TripTitle:        trip.Title,
		FullName:         rec.FullName,
		Phone:            rec.Phone,
		Email:            rec.Email,
		PickupPoint:      rec.PickupPoint,
		TicketCount:      rec.TicketCount,
		TotalPrice:       rec.TotalPrice,
		AmountPaid:       rec.AmountPaid,
		RemainingBalance: rec.RemainingBalance,
		BookingReference: reference,
		BookedAt:         rec.CreatedAt,
	}
}

type LogAgencyNotifier struct {
	Logger *slog.Logger
}

func (l *LogAgencyNotifier) NotifyAgency(_ context.Context, n AgencyNotice) error {
	l.Logger.Info("agency notice", "payment_id", n.PaymentID, "trip_id", n.TripID, "reference", n.BookingReference)
	return nil
}

// MessageWriter is the kafka writer subset used by the notifier.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaAgencyNotifier struct {
	writer  MessageWriter
	timeout time.Duration
}

func NewKafkaAgencyNotifier(brokers []string, topic string) *KafkaAgencyNotifier {
	w := &kafka.Writer{Addr: kafka.TCP(brokers...), Topic: topic, Balancer: &kafka.LeastBytes{}}
	return &KafkaAgencyNotifier{writer: w, timeout: 2 * time.Second}
}

func NewKafkaAgencyNotifierWithWriter(w MessageWriter) *KafkaAgencyNotifier {
	return &KafkaAgencyNotifier{writer: w, timeout: 2 * time.Second}
}

func (k *KafkaAgencyNotifier) NotifyAgency(ctx context.Context, n AgencyNotice) error {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.PaymentID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "trip_id", Value: []byte(strconv.Itoa(n.TripID))},
		},
	})
}

func (k *KafkaAgencyNotifier) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

// SendStatus is the tri-state result of the "send to agency" action.
type SendStatus string

const (
	StatusIdle    SendStatus = "idle"
	StatusSending SendStatus = "sending"
	StatusSent    SendStatus = "sent"
)

var ErrAlreadySending = errors.New("agency notice already sending")

// AgencyTracker runs agency notices asynchronously and remembers their
// state per payment id. A failed send returns to idle so the user may retry.
type AgencyTracker struct {
	notifier AgencyNotifier
	logger   *slog.Logger
	run      func(func())

	mu     sync.Mutex
	status map[string]SendStatus
}

// NewAgencyTracker builds a tracker. run decides where sends execute; nil
// means a new goroutine.
func NewAgencyTracker(n AgencyNotifier, logger *slog.Logger, run func(func())) *AgencyTracker {
	if run == nil {
		run = func(fn func()) { go fn() }
	}
	return &AgencyTracker{notifier: n, logger: logger, run: run, status: map[string]SendStatus{}}
}

func (t *AgencyTracker) Status(paymentID string) SendStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.status[paymentID]; ok {
		return s
	}
	return StatusIdle
}

// Send starts a notice unless one is in flight or already delivered, and
// returns the state after the call.
func (t *AgencyTracker) Send(n AgencyNotice) (SendStatus, error) {
	t.mu.Lock()
	switch t.status[n.PaymentID] {
	case StatusSending:
		t.mu.Unlock()
		return StatusSending, ErrAlreadySending
	case StatusSent:
		t.mu.Unlock()
		return StatusSent, nil
	}
	t.status[n.PaymentID] = StatusSending
	t.mu.Unlock()

	t.run(func() {
		err := t.notifier.NotifyAgency(context.Background(), n)
		t.mu.Lock()
		defer t.mu.Unlock()
		if err != nil {
			observability.AgencyNotices.WithLabelValues("failed").Inc()
			t.logger.Error("agency notice failed", "payment_id", n.PaymentID, "error", err)
			t.status[n.PaymentID] = StatusIdle
			return
		}
		observability.AgencyNotices.WithLabelValues("sent").Inc()
		t.status[n.PaymentID] = StatusSent
	})
	return t.Status(n.PaymentID), nil
}
