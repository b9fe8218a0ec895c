package kafka

import (
	"encoding/json"
	"time"

	"ms-booking/internal/config"
	"ms-booking/internal/models"
)

type bookingEvent struct {
	Type      string          `json:"type"`
	Booking   *models.Booking `json:"booking"`
	Timestamp time.Time       `json:"timestamp"`
}

type MessagePublisher interface {
	Publish(topic string, key string, value []byte) error
}

// BookingEvents streams booking lifecycle events downstream (host-view
// refresh, analytics). Publishing is best-effort; callers log and continue on
// error.
type BookingEvents struct {
	Producer MessagePublisher
	Topics   config.TopicConfig
}

func NewBookingEvents(producer MessagePublisher, topics config.TopicConfig) *BookingEvents {
	return &BookingEvents{Producer: producer, Topics: topics}
}

func (e *BookingEvents) publish(topic, eventType string, booking models.Booking) error {
	value, err := json.Marshal(bookingEvent{
		Type:      eventType,
		Booking:   &booking,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return e.Producer.Publish(topic, booking.ID, value)
}

func (e *BookingEvents) PublishBookingCreated(booking models.Booking) error {
	return e.publish(e.Topics.BookingCreated, "booking.created", booking)
}

func (e *BookingEvents) PublishBookingConfirmed(booking models.Booking) error {
	return e.publish(e.Topics.BookingConfirmed, "booking.confirmed", booking)
}

func (e *BookingEvents) PublishBookingCancelled(booking models.Booking) error {
	return e.publish(e.Topics.BookingCancelled, "booking.cancelled", booking)
}
