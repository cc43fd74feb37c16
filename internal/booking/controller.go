package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/example/trip-booking/internal/boardingpass"
	"github.com/example/trip-booking/internal/history"
	"github.com/example/trip-booking/internal/logging"
	"github.com/example/trip-booking/internal/models"
	"github.com/example/trip-booking/internal/navigation"
	"github.com/example/trip-booking/internal/notify"
	"github.com/example/trip-booking/internal/observability"
	"github.com/example/trip-booking/internal/payments"
	"github.com/example/trip-booking/internal/validation"
)

var (
	ErrBusy           = errors.New("payment step already in progress")
	ErrAlreadyBooked  = errors.New("trip already booked")
	ErrTripNotFound   = errors.New("trip not found")
	ErrInvalidTickets = errors.New("ticket count must be at least 1")
	ErrUnknownField   = errors.New("unknown form field")
)

// FieldNetwork selects the card network on the payment form.
const FieldNetwork = "network"

const defaultPhaseTimeout = 30 * time.Second

var (
	errGateway       = &payments.PaymentError{Code: "gateway_error", Message: "Le paiement n'a pas pu aboutir. Veuillez réessayer."}
	errRecordRefused = &payments.PaymentError{Code: "already_booked", Message: "Ce voyage figure déjà dans vos réservations."}
)

// ValidationError is returned when a submission fails a validation pass.
// Fields maps each failing field to its message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

// Runner executes payment phases and notifications off the caller.
type Runner func(fn func())

// GoRunner runs fn on a new goroutine.
func GoRunner(fn func()) { go fn() }

// Publisher receives a snapshot every time a session's view changes.
type Publisher interface {
	Publish(sessionID string, v View)
}

// holdReleaser is implemented by gateways that keep funds on hold between
// authorize and confirm.
type holdReleaser interface {
	Cancel(ctx context.Context) error
}

type Deps struct {
	Trips        func(id int) (models.Trip, bool)
	Gateway      payments.Gateway
	History      *history.Store
	Email        notify.EmailSender
	Validator    *validation.Validator
	Run          Runner
	Now          func() time.Time
	Rand         *rand.Rand
	Publisher    Publisher
	Logger       *slog.Logger
	PhaseTimeout time.Duration
}

// View is the serialisable snapshot of a flow. Trip is nil when the flow
// has no trip to show.
type View struct {
	SessionID    string                 `json:"sessionId"`
	State        State                  `json:"state"`
	Step         Step                   `json:"step,omitempty"`
	Trip         *models.Trip           `json:"trip,omitempty"`
	TicketCount  int                    `json:"ticketCount,omitempty"`
	Quote        *models.Quote          `json:"quote,omitempty"`
	Passenger    *models.Passenger      `json:"passenger,omitempty"`
	Network      models.CardNetwork     `json:"network,omitempty"`
	Errors       map[string]string      `json:"errors,omitempty"`
	PaymentError *payments.PaymentError `json:"paymentError,omitempty"`
	Pending      bool                   `json:"pending"`
	Record       *models.BookingRecord  `json:"record,omitempty"`
	Reference    string                 `json:"bookingReference,omitempty"`
	QRCodeURL    string                 `json:"qrCodeUrl,omitempty"`
}

// Controller owns one booking flow. Every method is serialised by mu;
// payment phases run through Deps.Run and report back under the same lock.
type Controller struct {
	id   string
	deps Deps

	mu        sync.Mutex
	state     State
	step      Step
	trip      *models.Trip
	tickets   int
	draft     *models.BookingDraft
	errs      validation.Errors
	banner    *payments.PaymentError
	pending   bool
	gen       uint64
	record    *models.BookingRecord
	reference string
}

func NewController(id string, deps Deps) *Controller {
	if deps.Run == nil {
		deps.Run = GoRunner
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Validator == nil {
		deps.Validator = validation.New(deps.Now)
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.PhaseTimeout <= 0 {
		deps.PhaseTimeout = defaultPhaseTimeout
	}
	return &Controller{id: id, deps: deps, state: StateSelecting, errs: validation.Errors{}}
}

func (c *Controller) ID() string { return c.id }

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Select picks a trip from the catalog and opens its details with one
// ticket.
func (c *Controller) Select(ctx context.Context, tripID int) error {
	return c.mutate(func() error {
		next, err := Transition(c.state, EventSelect)
		if err != nil {
			return err
		}
		trip, ok := c.deps.Trips(tripID)
		if !ok {
			return ErrTripNotFound
		}
		if c.deps.History.BookedTripIDs(ctx)[tripID] {
			return ErrAlreadyBooked
		}
		c.state = next
		c.trip = &trip
		c.tickets = 1
		c.draft = nil
		c.errs = validation.Errors{}
		c.banner = nil
		return nil
	})
}

// Proceed opens the booking form for ticketCount tickets. Passenger input
// from an earlier visit to the form is kept.
func (c *Controller) Proceed(ticketCount int) error {
	return c.mutate(func() error {
		next, err := Transition(c.state, EventProceed)
		if err != nil {
			return err
		}
		if ticketCount < 1 {
			return ErrInvalidTickets
		}
		draft := models.NewDraft(c.trip.ID, ticketCount)
		if c.draft != nil && c.draft.TripID == c.trip.ID {
			draft.Passenger = c.draft.Passenger
		}
		c.state = next
		c.step = StepPayment
		c.tickets = ticketCount
		c.draft = draft
		return nil
	})
}

// Back leaves the booking form for the trip details, dropping card and OTP
// input, or leaves the details for the catalog.
func (c *Controller) Back() error {
	return c.mutate(func() error {
		next, err := Transition(c.state, EventBack)
		if err != nil {
			return err
		}
		switch c.state {
		case StateBooking:
			c.abandonPhase()
			c.draft.Payment = models.PaymentInstrument{Network: models.NetworkPoste}
			c.draft.OTP = ""
			c.errs.ClearAll(validation.PaymentFields)
			c.errs.ClearAll(validation.OTPFields)
			c.banner = nil
			c.step = ""
		case StateDetails:
			c.clearFlow()
		}
		c.state = next
		return nil
	})
}

// BackToPayment returns from the OTP entry to the card form. The card must
// be authorized again.
func (c *Controller) BackToPayment() error {
	return c.mutate(func() error {
		if c.state != StateBooking || c.step != StepOTP {
			return fmt.Errorf("%w: back to payment on %s", ErrInvalidTransition, c.state)
		}
		c.abandonPhase()
		c.step = StepPayment
		c.draft.OTP = ""
		c.errs.ClearAll(validation.OTPFields)
		c.banner = nil
		return nil
	})
}

func (c *Controller) Cancel() error {
	return c.mutate(func() error {
		next, err := Transition(c.state, EventCancel)
		if err != nil {
			return err
		}
		c.reset(next, "cancel")
		return nil
	})
}

// StartNew leaves the confirmation and clears the finished flow.
func (c *Controller) StartNew() error {
	return c.mutate(func() error {
		next, err := Transition(c.state, EventStartNew)
		if err != nil {
			return err
		}
		c.abandonPhase()
		c.clearFlow()
		c.state = next
		return nil
	})
}

// OnNavigate is the navigation subscription handler: any route change while
// a flow is open abandons it.
func (c *Controller) OnNavigate(r navigation.Route) {
	c.mu.Lock()
	if c.state == StateSelecting {
		c.mu.Unlock()
		return
	}
	next, err := Transition(c.state, EventNavigate)
	if err != nil {
		c.mu.Unlock()
		return
	}
	c.deps.Logger.Info("navigation cancelled booking flow", "session_id", c.id, "route", string(r), "state", string(c.state))
	c.reset(next, "navigate")
	v := c.viewLocked()
	c.mu.Unlock()
	c.publish(v)
}

func (c *Controller) SetPassengerField(field, value string) error {
	return c.mutate(func() error {
		if c.state != StateBooking {
			return fmt.Errorf("%w: edit passenger on %s", ErrInvalidTransition, c.state)
		}
		p := &c.draft.Passenger
		switch field {
		case validation.FieldFullName:
			p.FullName = value
		case validation.FieldPhotoID:
			p.PhotoID = value
		case validation.FieldPickupPoint:
			p.PickupPoint = value
		case validation.FieldPhone:
			p.Phone = value
		case validation.FieldEmail:
			p.Email = value
		default:
			return fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
		c.deps.Validator.Revalidate(c.errs, field, value)
		c.banner = nil
		return nil
	})
}

func (c *Controller) SetPaymentField(field, value string) error {
	return c.mutate(func() error {
		if c.state != StateBooking {
			return fmt.Errorf("%w: edit payment on %s", ErrInvalidTransition, c.state)
		}
		p := &c.draft.Payment
		switch field {
		case validation.FieldCardName:
			p.CardName = value
		case validation.FieldCardNumber:
			p.CardNumber = value
		case validation.FieldExpiryDate:
			p.ExpiryDate = value
		case validation.FieldCVV:
			p.CVV = value
		case FieldNetwork:
			n := models.CardNetwork(strings.ToLower(value))
			if n != models.NetworkPoste && n != models.NetworkSatim {
				return fmt.Errorf("%w: network %q", ErrUnknownField, value)
			}
			p.Network = n
		default:
			return fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
		c.deps.Validator.Revalidate(c.errs, field, value)
		c.banner = nil
		return nil
	})
}

func (c *Controller) SetOTP(value string) error {
	return c.mutate(func() error {
		if c.state != StateBooking || c.step != StepOTP {
			return fmt.Errorf("%w: edit otp on %s", ErrInvalidTransition, c.state)
		}
		c.draft.OTP = value
		c.deps.Validator.Revalidate(c.errs, validation.FieldOTP, value)
		c.banner = nil
		return nil
	})
}

// SubmitPayment validates the passenger then the card and, when both pass,
// starts the authorize phase for the deposit.
func (c *Controller) SubmitPayment() error {
	var job func()
	err := c.mutate(func() error {
		if c.state != StateBooking {
			return fmt.Errorf("%w: submit payment on %s", ErrInvalidTransition, c.state)
		}
		if c.pending {
			return ErrBusy
		}
		if c.step != StepPayment {
			return fmt.Errorf("%w: submit payment on step %s", ErrInvalidTransition, c.step)
		}
		c.banner = nil
		c.errs = validation.Errors{}
		if res := c.deps.Validator.Passenger(c.draft.Passenger); len(res) > 0 {
			c.errs.Apply(validation.PassengerFields, res)
			return &ValidationError{Fields: res.Messages()}
		}
		if res := c.deps.Validator.Payment(c.draft.Payment); len(res) > 0 {
			c.errs.Apply(validation.PaymentFields, res)
			return &ValidationError{Fields: res.Messages()}
		}
		if c.deps.History.BookedTripIDs(context.Background())[c.trip.ID] {
			return ErrAlreadyBooked
		}
		c.pending = true
		c.gen++
		card := c.draft.Payment
		card.CardNumber = validation.StripCardNumber(card.CardNumber)
		job = c.authorizePhase(c.gen, card, c.quoteLocked().Deposit)
		return nil
	})
	if job != nil {
		c.deps.Run(job)
	}
	return err
}

// SubmitOTP validates the code and starts the confirm phase.
func (c *Controller) SubmitOTP() error {
	var job func()
	err := c.mutate(func() error {
		if c.state != StateBooking {
			return fmt.Errorf("%w: submit otp on %s", ErrInvalidTransition, c.state)
		}
		if c.pending {
			return ErrBusy
		}
		if c.step != StepOTP {
			return fmt.Errorf("%w: otp before authorization", ErrInvalidTransition)
		}
		c.banner = nil
		res := c.deps.Validator.OTP(c.draft.OTP)
		c.errs.Apply(validation.OTPFields, res)
		if len(res) > 0 {
			return &ValidationError{Fields: res.Messages()}
		}
		if c.deps.History.BookedTripIDs(context.Background())[c.trip.ID] {
			return ErrAlreadyBooked
		}
		c.pending = true
		c.gen++
		job = c.confirmPhase(c.gen, c.draft.OTP)
		return nil
	})
	if job != nil {
		c.deps.Run(job)
	}
	return err
}

func (c *Controller) authorizePhase(gen uint64, card models.PaymentInstrument, amount float64) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.deps.PhaseTimeout)
		defer cancel()
		start := time.Now()
		err := c.deps.Gateway.Authorize(ctx, card, amount)
		observability.PaymentLatency.WithLabelValues("authorize").Observe(time.Since(start).Seconds())

		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			c.dropStale("authorize")
			if err == nil {
				c.releaseHold()
			}
			return
		}
		c.pending = false
		if err != nil {
			c.fail("authorize", err)
		} else {
			c.state, _ = Transition(c.state, EventAuthorized)
			c.step = StepOTP
			c.draft.OTP = ""
		}
		v := c.viewLocked()
		c.mu.Unlock()
		c.publish(v)
	}
}

func (c *Controller) confirmPhase(gen uint64, otp string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.deps.PhaseTimeout)
		defer cancel()
		start := time.Now()
		paymentID, err := c.deps.Gateway.Confirm(ctx, otp)
		observability.PaymentLatency.WithLabelValues("confirm").Observe(time.Since(start).Seconds())

		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			c.dropStale("confirm")
			return
		}
		c.pending = false
		if err != nil {
			c.fail("confirm", err)
			if errors.Is(err, payments.ErrOTPMismatch) {
				c.draft.OTP = ""
			}
			v := c.viewLocked()
			c.mu.Unlock()
			c.publish(v)
			return
		}

		trip := *c.trip
		now := c.deps.Now()
		rec := models.NewRecord(c.draft, models.NewQuote(trip.Price, c.draft.TicketCount), paymentID, now)
		if _, err := c.deps.History.Append(ctx, rec); err != nil {
			c.deps.Logger.Error("confirmed payment has no booking record", "session_id", c.id, "trip_id", trip.ID, "payment_id", paymentID, "error", err)
			c.fail("record", errRecordRefused)
			c.step = StepPayment
			c.draft.OTP = ""
			c.deps.Run(c.releaseHold)
			v := c.viewLocked()
			c.mu.Unlock()
			c.publish(v)
			return
		}
		c.state, _ = Transition(c.state, EventConfirmed)
		c.step = ""
		c.draft = nil
		c.errs = validation.Errors{}
		c.record = &rec
		c.reference = boardingpass.Reference(now, c.deps.Rand)
		v := c.viewLocked()
		c.mu.Unlock()

		observability.BookingsConfirmed.Inc()
		c.deps.Logger.Info("booking confirmed", "session_id", c.id, "trip_id", trip.ID, "payment_id", paymentID, "amount_paid", rec.AmountPaid)
		if c.deps.Email != nil {
			c.deps.Run(func() {
				if err := c.deps.Email.SendConfirmation(context.Background(), trip, rec); err != nil {
					c.deps.Logger.Error("confirmation email failed", "session_id", c.id, "payment_id", paymentID, "error", err)
				}
			})
		}
		c.publish(v)
	}
}

// fail records a payment failure as the form banner. Must hold mu.
func (c *Controller) fail(phase string, err error) {
	var perr *payments.PaymentError
	if !errors.As(err, &perr) {
		perr = errGateway
	}
	c.banner = perr
	observability.PaymentFailures.WithLabelValues(phase, perr.Code).Inc()
	c.deps.Logger.Info("payment phase failed", "session_id", c.id, "phase", phase, "code", perr.Code, "error", err)
}

func (c *Controller) dropStale(phase string) {
	observability.StaleResults.Inc()
	c.deps.Logger.Info("dropped stale payment result", "session_id", c.id, "phase", phase)
}

// abandonPhase invalidates any pending phase and releases a hold placed by a
// successful authorize. Must hold mu.
func (c *Controller) abandonPhase() {
	c.gen++
	c.pending = false
	if c.state == StateBooking && c.step == StepOTP {
		c.deps.Run(c.releaseHold)
	}
}

func (c *Controller) releaseHold() {
	r, ok := c.deps.Gateway.(holdReleaser)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.deps.PhaseTimeout)
	defer cancel()
	if err := r.Cancel(ctx); err != nil {
		c.deps.Logger.Error("failed to release payment hold", "session_id", c.id, "error", err)
	}
}

// reset returns to the catalog and discards the flow. Must hold mu.
func (c *Controller) reset(next State, reason string) {
	if c.state != StateConfirmed {
		observability.FlowCancellations.WithLabelValues(reason).Inc()
	}
	c.abandonPhase()
	c.clearFlow()
	c.state = next
}

func (c *Controller) clearFlow() {
	c.step = ""
	c.trip = nil
	c.tickets = 0
	c.draft = nil
	c.errs = validation.Errors{}
	c.banner = nil
	c.record = nil
	c.reference = ""
}

func (c *Controller) quoteLocked() models.Quote {
	tickets := c.tickets
	if c.draft != nil {
		tickets = c.draft.TicketCount
	}
	return models.NewQuote(c.trip.Price, tickets)
}

func (c *Controller) viewLocked() View {
	v := View{SessionID: c.id, State: c.state, Step: c.step, Pending: c.pending}
	if c.trip == nil {
		return v
	}
	trip := *c.trip
	v.Trip = &trip
	switch c.state {
	case StateDetails, StateBooking:
		q := c.quoteLocked()
		v.Quote = &q
		v.TicketCount = q.TicketCount
	}
	if c.draft != nil {
		p := c.draft.Passenger
		v.Passenger = &p
		v.Network = c.draft.Payment.Network
	}
	if len(c.errs) > 0 {
		v.Errors = c.errs.Messages()
	}
	if c.banner != nil {
		b := *c.banner
		v.PaymentError = &b
	}
	if c.record != nil {
		rec := *c.record
		v.Record = &rec
		v.TicketCount = rec.TicketCount
		v.Reference = c.reference
		v.QRCodeURL = boardingpass.QRCodeURL(c.reference)
	}
	return v
}

// mutate runs fn under the lock and publishes the resulting view.
func (c *Controller) mutate(fn func() error) error {
	c.mu.Lock()
	err := fn()
	v := c.viewLocked()
	c.mu.Unlock()
	if err == nil || errors.As(err, new(*ValidationError)) {
		c.publish(v)
	}
	return err
}

func (c *Controller) publish(v View) {
	if c.deps.Publisher != nil {
		c.deps.Publisher.Publish(c.id, v)
	}
}
