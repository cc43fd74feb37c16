// Package history keeps the list of completed bookings in a durable
// key/value slot. The in-memory list is authoritative for the session;
// persistence is best-effort.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/example/trip-booking/internal/models"
	"github.com/example/trip-booking/internal/observability"
	"github.com/example/trip-booking/internal/storage"
)

// Key is the slot holding the JSON array of records.
const Key = "bookingHistory"

var (
	ErrNotFound       = errors.New("no booking for trip")
	ErrEmptyFeedback  = errors.New("feedback is empty")
	ErrFeedbackExists = errors.New("feedback already submitted")
	ErrDuplicateTrip  = errors.New("trip already has an active booking")
)

type Store struct {
	kv     storage.KV
	logger *slog.Logger

	mu     sync.Mutex
	loaded bool
	// readFailed keeps the store in memory only: the durable slot could not
	// be read, so writing the in-memory list would overwrite it.
	readFailed bool
	records    []models.BookingRecord
}

func NewStore(kv storage.KV, logger *slog.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// Load returns the persisted records. Missing or unreadable data yields an
// empty list; the error is only logged. After a read error the store stops
// writing to the slot.
func (s *Store) Load(ctx context.Context) []models.BookingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	return s.snapshot()
}

// Append adds r and persists the whole list. A record whose trip already has
// an active booking is rejected with ErrDuplicateTrip.
func (s *Store) Append(ctx context.Context, r models.BookingRecord) ([]models.BookingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	for _, existing := range s.records {
		if existing.TripID == r.TripID && existing.Active() {
			return s.snapshot(), ErrDuplicateTrip
		}
	}
	s.records = append(s.records, r)
	s.persist(ctx)
	return s.snapshot(), nil
}

// AttachFeedback sets the feedback of the most recent record for tripID.
// Feedback can be set once.
func (s *Store) AttachFeedback(ctx context.Context, tripID int, text string) ([]models.BookingRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyFeedback
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	idx := -1
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].TripID == tripID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s.snapshot(), ErrNotFound
	}
	if s.records[idx].Feedback != nil {
		return s.snapshot(), ErrFeedbackExists
	}
	s.records[idx].Feedback = &text
	s.persist(ctx)
	return s.snapshot(), nil
}

// BookedTripIDs is the set of trips holding an active booking.
func (s *Store) BookedTripIDs(ctx context.Context) map[int]bool {
	out := map[int]bool{}
	for _, r := range s.Load(ctx) {
		if r.Active() {
			out[r.TripID] = true
		}
	}
	return out
}

// PastTrip pairs a booked trip with its most recent record.
type PastTrip struct {
	Trip    models.Trip          `json:"trip"`
	Booking models.BookingRecord `json:"booking"`
}

// Past joins records with the catalog, newest booking per trip, in booking
// order. Records for trips no longer in the catalog are skipped.
func (s *Store) Past(ctx context.Context, lookup func(id int) (models.Trip, bool)) []PastTrip {
	records := s.Load(ctx)
	latest := map[int]int{}
	var order []int
	for i, r := range records {
		if _, seen := latest[r.TripID]; !seen {
			order = append(order, r.TripID)
		}
		latest[r.TripID] = i
	}
	out := make([]PastTrip, 0, len(order))
	for _, id := range order {
		trip, ok := lookup(id)
		if !ok {
			continue
		}
		out = append(out, PastTrip{Trip: trip, Booking: records[latest[id]]})
	}
	return out
}

func (s *Store) ensureLoaded(ctx context.Context) {
	if s.loaded {
		return
	}
	s.loaded = true
	raw, ok, err := s.kv.Get(ctx, Key)
	if err != nil {
		observability.PersistenceErrors.WithLabelValues("history_read").Inc()
		s.logger.Error("failed to read booking history, continuing in memory", "error", err)
		s.readFailed = true
		return
	}
	if !ok || raw == "" {
		return
	}
	var records []models.BookingRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		observability.PersistenceErrors.WithLabelValues("history_decode").Inc()
		s.logger.Error("failed to parse booking history", "error", err)
		return
	}
	s.records = records
}

func (s *Store) persist(ctx context.Context) {
	if s.readFailed {
		s.logger.Warn("booking history not saved, durable copy was unreadable", "records", len(s.records))
		return
	}
	b, err := json.Marshal(s.records)
	if err != nil {
		observability.PersistenceErrors.WithLabelValues("history_encode").Inc()
		s.logger.Error("failed to encode booking history", "error", err)
		return
	}
	if err := s.kv.Set(ctx, Key, string(b)); err != nil {
		observability.PersistenceErrors.WithLabelValues("history_write").Inc()
		s.logger.Error("failed to save booking history", "error", err)
	}
}

func (s *Store) snapshot() []models.BookingRecord {
	out := make([]models.BookingRecord, len(s.records))
	copy(out, s.records)
	return out
}
