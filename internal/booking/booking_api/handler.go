package booking_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// AuditReader serves the change history of a booking.
type AuditReader interface {
	ListForBooking(venueID, bookingID string) ([]models.BookingAudit, error)
}

type Handler struct {
	BookingService *booking.BookingService
	Audit          AuditReader
	Logger         *logger.Logger
}

func NewHandler(service *booking.BookingService, audits AuditReader, log *logger.Logger) *Handler {
	return &Handler{BookingService: service, Audit: audits, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/availability/check", h.CheckAvailability)
	r.Post("/bookings", h.CreateBooking)
	r.Post("/walkins", h.CreateWalkIn)
	r.Get("/bookings/{bookingId}", h.GetBooking)
	r.Put("/bookings/{bookingId}", h.UpdateBooking)
	r.Delete("/bookings/{bookingId}", h.CancelBooking)
	r.Post("/bookings/{bookingId}/seat", h.SeatBooking)
	r.Post("/bookings/{bookingId}/finish", h.FinishBooking)
	r.Get("/bookings/{bookingId}/audit", h.GetBookingAudit)
	r.Post("/blocks", h.CreateBlock)
	r.Get("/blocks", h.ListBlocks)
}

func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	venueID := chi.URLParam(r, "venueId")

	var req models.AvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.BookingService.CheckConflicts(venueID, req.TableIDs, req.Date, req.StartTime, req.DurationMinutes)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CheckAvailability: %v", err))
		http.Error(w, "Availability check failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	venueID := chi.URLParam(r, "venueId")

	var req models.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	response, err := h.BookingService.CreateBooking(venueID, req)
	if err != nil {
		h.respondCreateError(w, "CreateBooking", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, response)
}

func (h *Handler) CreateWalkIn(w http.ResponseWriter, r *http.Request) {
	venueID := chi.URLParam(r, "venueId")

	var req models.WalkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	response, err := h.BookingService.CreateWalkIn(venueID, req)
	if err != nil {
		h.respondCreateError(w, "CreateWalkIn", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, response)
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	venueID := chi.URLParam(r, "venueId")
	bookingID := chi.URLParam(r, "bookingId")

	booking, err := h.BookingService.GetBooking(venueID, bookingID)
	if err != nil {
		http.Error(w, "Booking not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, booking)
}

func (h *Handler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	venueID := chi.URLParam(r, "venueId")
	bookingID := chi.URLParam(r, "bookingId")

	var req models.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := h.BookingService.UpdateBooking(venueID, bookingID, req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdateBooking: %v", err))
		http.Error(w, "Could not update booking: "+err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.BookingService.CancelBooking)
}

func (h *Handler) SeatBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.BookingService.SeatBooking)
}

func (h *Handler) FinishBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.BookingService.FinishBooking)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(venueID, id string) (*models.Booking, error)) {
	venueID := chi.URLParam(r, "venueId")
	bookingID := chi.URLParam(r, "bookingId")

	updated, err := op(venueID, bookingID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("transition failed for booking %s: %v", bookingID, err))
		status := http.StatusBadRequest
		if errors.Is(err, booking.ErrInvalidTransition) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}

	h.Logger.LogBooking(string(updated.Status), bookingID, fmt.Sprintf("transition by user %s", auth.UserID(r.Context())))
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) GetBookingAudit(w http.ResponseWriter, r *http.Request) {
	venueID := chi.URLParam(r, "venueId")
	bookingID := chi.URLParam(r, "bookingId")

	entries, err := h.Audit.ListForBooking(venueID, bookingID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetBookingAudit: %v", err))
		http.Error(w, "Could not load audit trail: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.BookingAudit{}
	}

	h.writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	venueID := chi.URLParam(r, "venueId")

	var block models.Block
	if err := json.NewDecoder(r.Body).Decode(&block); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	created, err := h.BookingService.CreateBlock(venueID, block)
	if err != nil {
		http.Error(w, "Could not create block: "+err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	venueID := chi.URLParam(r, "venueId")
	date := r.URL.Query().Get("date")
	if date == "" {
		http.Error(w, "date query parameter is required", http.StatusBadRequest)
		return
	}

	blocks, err := h.BookingService.ListBlocks(venueID, date)
	if err != nil {
		http.Error(w, "Could not list blocks: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if blocks == nil {
		blocks = []models.Block{}
	}

	h.writeJSON(w, http.StatusOK, blocks)
}

// respondCreateError maps a conflict to 409 with the conflict result as the
// body, so the host view can show the binding constraint.
func (h *Handler) respondCreateError(w http.ResponseWriter, op string, err error) {
	var conflictErr *booking.ConflictError
	if errors.As(err, &conflictErr) {
		h.Logger.Info("API", fmt.Sprintf("%s: slot conflict: %v", op, err))
		h.writeJSON(w, http.StatusConflict, conflictErr.Result)
		return
	}
	h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}
