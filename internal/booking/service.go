package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-booking/internal/logger"
	"ms-booking/internal/metrics"
	"ms-booking/internal/models"
	"ms-booking/internal/timeslot"
)

type DBLayer interface {
	CreateBooking(booking models.Booking) error
	GetBookingByID(venueID, id string) (*models.Booking, error)
	UpdateBooking(booking models.Booking) error
	GetActiveBookingsForTables(venueID, date string, tableIDs []string) ([]models.Booking, error)
	GetBlocksForDate(venueID, date string) ([]models.Block, error)
	GetServiceWithRules(venueID, serviceID string) (*models.Service, error)
	CreateBlock(block models.Block) error
}

type SlotLock interface {
	LockSlot(venueID, tableID, date, startTime, bookingID string) (bool, error)
	UnlockSlot(venueID, tableID, date, startTime, bookingID string) error
}

type EventPublisher interface {
	PublishBookingCreated(booking models.Booking) error
	PublishBookingConfirmed(booking models.Booking) error
	PublishBookingCancelled(booking models.Booking) error
}

type ChargeCalculator interface {
	Calculate(venueID, serviceID string, partySize int) models.ChargeDecision
}

type PaymentInitiator interface {
	InitiatePayment(booking models.Booking, decision models.ChargeDecision) (*models.BookingPayment, string, error)
}

var ErrInvalidTransition = errors.New("invalid booking status transition")

// ConflictError carries the conflict checker's result so the API layer can
// return the binding constraint to the caller.
type ConflictError struct {
	Result *models.ConflictResult
}

func (e *ConflictError) Error() string {
	if e.Result != nil && e.Result.Conflicting != nil {
		return fmt.Sprintf("slot conflicts with booking at %s, max available duration %d minutes",
			e.Result.Conflicting.StartTime, e.Result.MaxAvailableDuration)
	}
	return "slot conflicts with an existing booking"
}

// allowedTransitions is the booking state machine. Nothing ever returns to
// pending_payment.
var allowedTransitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingPendingPayment: {models.BookingConfirmed, models.BookingCancelled},
	models.BookingConfirmed:      {models.BookingSeated, models.BookingCancelled},
	models.BookingSeated:         {models.BookingFinished},
}

func canTransition(from, to models.BookingStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type BookingService struct {
	DB       DBLayer
	Locks    SlotLock
	Events   EventPublisher
	Charges  ChargeCalculator
	Payments PaymentInitiator
	Logger   *logger.Logger

	failClosed bool
}

func NewBookingService(db DBLayer, locks SlotLock, events EventPublisher, charges ChargeCalculator, payments PaymentInitiator, log *logger.Logger, failClosed bool) *BookingService {
	return &BookingService{
		DB:         db,
		Locks:      locks,
		Events:     events,
		Charges:    charges,
		Payments:   payments,
		Logger:     log,
		failClosed: failClosed,
	}
}

// ---------------- RESERVATIONS ----------------

// CreateBooking places a reservation. Duration comes from the request or is
// resolved from the service's duration rules; the slot is conflict-checked
// and locked before the row is written; the payment calculator decides
// whether the booking starts as pending_payment or goes straight to
// confirmed.
func (s *BookingService) CreateBooking(venueID string, req models.BookingRequest) (*models.BookingResponse, error) {
	if _, err := timeslot.TimeToMinutes(req.StartTime); err != nil {
		return nil, err
	}
	if req.PartySize <= 0 {
		return nil, fmt.Errorf("party size must be positive, got %d", req.PartySize)
	}

	service := s.lookupService(venueID, req.ServiceID)
	duration := req.DurationMinutes
	if duration <= 0 {
		duration = ResolveDuration(service, req.PartySize)
	}

	if req.TableID != "" {
		result, err := s.CheckConflicts(venueID, []string{req.TableID}, req.Date, req.StartTime, duration)
		if err != nil {
			return nil, err
		}
		if result.HasConflict {
			return nil, &ConflictError{Result: result}
		}
	}

	bookingID := uuid.NewString()
	if req.TableID != "" {
		if err := s.lockSlot(venueID, req.TableID, req.Date, req.StartTime, bookingID); err != nil {
			return nil, err
		}
	}

	decision := s.Charges.Calculate(venueID, req.ServiceID, req.PartySize)

	status := models.BookingConfirmed
	if decision.ShouldCharge {
		status = models.BookingPendingPayment
	}

	booking := models.Booking{
		ID:              bookingID,
		VenueID:         venueID,
		TableID:         req.TableID,
		ServiceID:       req.ServiceID,
		Date:            req.Date,
		StartTime:       req.StartTime,
		DurationMinutes: duration,
		PartySize:       req.PartySize,
		GuestName:       req.GuestName,
		GuestEmail:      req.GuestEmail,
		GuestPhone:      req.GuestPhone,
		Status:          status,
		CreatedAt:       time.Now(),
	}

	if err := s.DB.CreateBooking(booking); err != nil {
		s.unlockSlot(&booking)
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	response := &models.BookingResponse{Booking: &booking, ChargeApplied: decision.ShouldCharge}

	if decision.ShouldCharge {
		payment, clientSecret, err := s.Payments.InitiatePayment(booking, decision)
		if err != nil {
			// Without a payment intent a pending booking can never confirm;
			// cancel it rather than strand the guest.
			s.Logger.Error("BOOKING", fmt.Sprintf("payment initiation failed for booking %s: %v", bookingID, err))
			booking.Status = models.BookingCancelled
			if updErr := s.DB.UpdateBooking(booking); updErr != nil {
				s.Logger.Error("BOOKING", fmt.Sprintf("failed to cancel booking %s after payment failure: %v", bookingID, updErr))
			}
			s.unlockSlot(&booking)
			return nil, fmt.Errorf("payment initiation failed: %w", err)
		}
		response.Payment = payment
		response.ClientSecret = clientSecret
	}

	if err := s.Events.PublishBookingCreated(booking); err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("failed to publish booking created event: %v", err))
	}
	metrics.BookingsCreated.WithLabelValues(string(status)).Inc()

	s.Logger.LogBooking("CREATE", bookingID, fmt.Sprintf("status=%s table=%s %s %s (%d min, party %d)",
		status, req.TableID, req.Date, req.StartTime, duration, req.PartySize))
	return response, nil
}

// CreateWalkIn seats a currently-arriving guest. If the resolved duration
// does not fit before the next booking, the walk-in is shortened to the
// maximum available duration; a slot that cannot even hold that is rejected.
func (s *BookingService) CreateWalkIn(venueID string, req models.WalkInRequest) (*models.BookingResponse, error) {
	if _, err := timeslot.TimeToMinutes(req.StartTime); err != nil {
		return nil, err
	}
	if req.TableID == "" {
		return nil, errors.New("walk-in requires a table")
	}
	if req.PartySize <= 0 {
		return nil, fmt.Errorf("party size must be positive, got %d", req.PartySize)
	}

	service := s.lookupService(venueID, req.ServiceID)
	duration := ResolveDuration(service, req.PartySize)

	result, err := s.CheckConflicts(venueID, []string{req.TableID}, req.Date, req.StartTime, duration)
	if err != nil {
		return nil, err
	}
	if result.HasConflict {
		// The floor can report 30 minutes that still conflict; re-check the
		// truncated duration before offering it.
		recheck, err := s.CheckConflicts(venueID, []string{req.TableID}, req.Date, req.StartTime, result.MaxAvailableDuration)
		if err != nil {
			return nil, err
		}
		if recheck.HasConflict {
			return nil, &ConflictError{Result: result}
		}
		duration = result.MaxAvailableDuration
	}

	bookingID := uuid.NewString()
	if err := s.lockSlot(venueID, req.TableID, req.Date, req.StartTime, bookingID); err != nil {
		return nil, err
	}

	guestName := req.GuestName
	if guestName == "" {
		guestName = "Walk-in"
	}

	booking := models.Booking{
		ID:              bookingID,
		VenueID:         venueID,
		TableID:         req.TableID,
		ServiceID:       req.ServiceID,
		Date:            req.Date,
		StartTime:       req.StartTime,
		DurationMinutes: duration,
		PartySize:       req.PartySize,
		GuestName:       guestName,
		Status:          models.BookingSeated,
		CreatedAt:       time.Now(),
	}

	if err := s.DB.CreateBooking(booking); err != nil {
		s.unlockSlot(&booking)
		return nil, fmt.Errorf("failed to create walk-in: %w", err)
	}

	if err := s.Events.PublishBookingCreated(booking); err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("failed to publish walk-in created event: %v", err))
	}
	metrics.BookingsCreated.WithLabelValues(string(models.BookingSeated)).Inc()

	s.Logger.LogBooking("WALKIN", bookingID, fmt.Sprintf("table=%s %s %s (%d min, party %d)",
		req.TableID, req.Date, req.StartTime, duration, req.PartySize))
	return &models.BookingResponse{Booking: &booking}, nil
}

func (s *BookingService) GetBooking(venueID, id string) (*models.Booking, error) {
	return s.DB.GetBookingByID(venueID, id)
}

// UpdateBooking changes guest identity fields and party size. Moving a
// booking to a different slot is cancel-and-rebook, not an update.
func (s *BookingService) UpdateBooking(venueID, id string, req models.BookingRequest) (*models.Booking, error) {
	booking, err := s.DB.GetBookingByID(venueID, id)
	if err != nil {
		return nil, fmt.Errorf("booking %s not found: %w", id, err)
	}
	if booking.Status == models.BookingCancelled || booking.Status == models.BookingFinished {
		return nil, fmt.Errorf("cannot update a %s booking", booking.Status)
	}

	if req.GuestName != "" {
		booking.GuestName = req.GuestName
	}
	if req.GuestEmail != "" {
		booking.GuestEmail = req.GuestEmail
	}
	if req.GuestPhone != "" {
		booking.GuestPhone = req.GuestPhone
	}
	if req.PartySize > 0 {
		booking.PartySize = req.PartySize
	}

	if err := s.DB.UpdateBooking(*booking); err != nil {
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}
	return booking, nil
}

// ---------------- STATE TRANSITIONS ----------------

func (s *BookingService) transition(venueID, id string, to models.BookingStatus) (*models.Booking, error) {
	booking, err := s.DB.GetBookingByID(venueID, id)
	if err != nil {
		return nil, fmt.Errorf("booking %s not found: %w", id, err)
	}
	if !canTransition(booking.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, booking.Status, to)
	}
	booking.Status = to
	if err := s.DB.UpdateBooking(*booking); err != nil {
		return nil, fmt.Errorf("failed to move booking %s to %s: %w", id, to, err)
	}
	return booking, nil
}

// ConfirmBooking moves pending_payment to confirmed (payment settled).
func (s *BookingService) ConfirmBooking(venueID, id string) (*models.Booking, error) {
	booking, err := s.transition(venueID, id, models.BookingConfirmed)
	if err != nil {
		return nil, err
	}
	if err := s.Events.PublishBookingConfirmed(*booking); err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("failed to publish booking confirmed event: %v", err))
	}
	s.Logger.LogBooking("CONFIRM", id, "booking confirmed")
	return booking, nil
}

func (s *BookingService) CancelBooking(venueID, id string) (*models.Booking, error) {
	booking, err := s.transition(venueID, id, models.BookingCancelled)
	if err != nil {
		return nil, err
	}
	s.unlockSlot(booking)
	if err := s.Events.PublishBookingCancelled(*booking); err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("failed to publish booking cancelled event: %v", err))
	}
	s.Logger.LogBooking("CANCEL", id, "booking cancelled")
	return booking, nil
}

func (s *BookingService) SeatBooking(venueID, id string) (*models.Booking, error) {
	return s.transition(venueID, id, models.BookingSeated)
}

func (s *BookingService) FinishBooking(venueID, id string) (*models.Booking, error) {
	booking, err := s.transition(venueID, id, models.BookingFinished)
	if err != nil {
		return nil, err
	}
	s.unlockSlot(booking)
	return booking, nil
}

// ---------------- BLOCKS ----------------

func (s *BookingService) CreateBlock(venueID string, block models.Block) (*models.Block, error) {
	startMin, err := timeslot.TimeToMinutes(block.StartTime)
	if err != nil {
		return nil, err
	}
	endMin, err := timeslot.TimeToMinutes(block.EndTime)
	if err != nil {
		return nil, err
	}
	if endMin <= startMin {
		return nil, fmt.Errorf("block end %s must be after start %s", block.EndTime, block.StartTime)
	}

	block.ID = uuid.NewString()
	block.VenueID = venueID
	block.CreatedAt = time.Now()
	if err := s.DB.CreateBlock(block); err != nil {
		return nil, fmt.Errorf("failed to create block: %w", err)
	}
	return &block, nil
}

func (s *BookingService) ListBlocks(venueID, date string) ([]models.Block, error) {
	return s.DB.GetBlocksForDate(venueID, date)
}

// ---------------- HELPERS ----------------

// lookupService fetches the service with its rules. A lookup failure falls
// back to no service, which the duration resolver answers with the default.
func (s *BookingService) lookupService(venueID, serviceID string) *models.Service {
	if serviceID == "" {
		return nil
	}
	service, err := s.DB.GetServiceWithRules(venueID, serviceID)
	if err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("service %s lookup failed, using default duration: %v", serviceID, err))
		return nil
	}
	return service
}

// lockSlot narrows the check-then-act window between the conflict check and
// the insert. A Redis failure is logged but does not block the booking,
// matching the availability-first posture of the conflict checker.
func (s *BookingService) lockSlot(venueID, tableID, date, startTime, bookingID string) error {
	ok, err := s.Locks.LockSlot(venueID, tableID, date, startTime, bookingID)
	if err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("slot lock error for table %s: %v", tableID, err))
		return nil
	}
	if !ok {
		return &ConflictError{Result: &models.ConflictResult{
			HasConflict:          true,
			MaxAvailableDuration: MinOfferedDuration,
		}}
	}
	return nil
}

func (s *BookingService) unlockSlot(booking *models.Booking) {
	if booking.TableID == "" {
		return
	}
	if err := s.Locks.UnlockSlot(booking.VenueID, booking.TableID, booking.Date, booking.StartTime, booking.ID); err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("failed to unlock slot for booking %s: %v", booking.ID, err))
	}
}
