package email

import (
	"bytes"
	"fmt"
	"net/smtp"

	"github.com/domodwyer/mailyak/v3"
	qrcode "github.com/skip2/go-qrcode"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// Mailer sends booking confirmation emails. Delivery is fire-and-forget: the
// caller dispatches in a goroutine and only the log records failures.
type Mailer struct {
	cfg    config.EmailConfig
	Logger *logger.Logger
}

func NewMailer(cfg config.EmailConfig, log *logger.Logger) *Mailer {
	return &Mailer{cfg: cfg, Logger: log}
}

// SendBookingConfirmation emails the guest their confirmed booking with a
// check-in QR code attached.
func (m *Mailer) SendBookingConfirmation(booking *models.Booking) error {
	if booking.GuestEmail == "" {
		m.Logger.Debug("EMAIL", fmt.Sprintf("booking %s has no guest email, skipping confirmation", booking.ID))
		return nil
	}

	var auth smtp.Auth
	if m.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUsername, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	}

	mail := mailyak.New(m.cfg.SMTPHost+":"+m.cfg.SMTPPort, auth)
	mail.From(m.cfg.FromAddress)
	mail.To(booking.GuestEmail)
	mail.Subject("Your booking is confirmed")

	mail.HTML().Set(fmt.Sprintf(`
		<h2>Booking confirmed</h2>
		<p>Hi %s,</p>
		<p>Your booking for %d on %s at %s is confirmed.</p>
		<p>Show the attached QR code on arrival to check in.</p>`,
		booking.GuestName, booking.PartySize, booking.Date, booking.StartTime))
	mail.Plain().Set(fmt.Sprintf("Hi %s, your booking for %d on %s at %s is confirmed. Booking reference: %s",
		booking.GuestName, booking.PartySize, booking.Date, booking.StartTime, booking.ID))

	png, err := qrcode.Encode(booking.ID, qrcode.Medium, 256)
	if err != nil {
		m.Logger.Warn("EMAIL", fmt.Sprintf("failed to generate check-in QR for booking %s: %v", booking.ID, err))
	} else {
		mail.Attach("checkin.png", bytes.NewReader(png))
	}

	if err := mail.Send(); err != nil {
		return fmt.Errorf("failed to send confirmation email for booking %s: %w", booking.ID, err)
	}

	m.Logger.Info("EMAIL", fmt.Sprintf("Sent confirmation email for booking %s to %s", booking.ID, booking.GuestEmail))
	return nil
}
