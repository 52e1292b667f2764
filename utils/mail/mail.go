package mail

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joy095/booking-core/logger"
	gomail "gopkg.in/gomail.v2"
)

// SendBookingConfirmed emails the customer after a booking is confirmed. This
// is a best-effort side effect: callers run it in a goroutine and a failure
// must never roll back the confirmed booking.
func SendBookingConfirmed(toEmail, customerName, bookingID string) error {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		logger.WarnLogger.Warn("SMTP_HOST not set, skipping booking confirmation mail")
		return nil
	}
	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		port = 587
	}

	m := gomail.NewMessage()
	m.SetHeader("From", os.Getenv("SMTP_FROM"))
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Your booking is confirmed")
	m.SetBody("text/plain", fmt.Sprintf(
		"Hi %s,\n\nYour booking %s has been confirmed. See you soon!\n", customerName, bookingID))

	d := gomail.NewDialer(host, port, os.Getenv("SMTP_USER"), os.Getenv("SMTP_PASSWORD"))
	if err := d.DialAndSend(m); err != nil {
		logger.ErrorLogger.Errorf("Failed to send booking confirmation mail for booking %s: %v", bookingID, err)
		return fmt.Errorf("failed to send confirmation mail: %w", err)
	}

	logger.InfoLogger.Infof("Booking confirmation mail sent for booking %s", bookingID)
	return nil
}
