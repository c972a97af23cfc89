// Package notify builds and sends the customer- and admin-facing emails the
// booking workflow triggers.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/model"
)

// Mailer renders booking emails and hands them to a Sender. PublicBaseURL is
// the customer-facing origin the confirmation link points at.
type Mailer struct {
	sender        Sender
	publicBaseURL string
	adminEmail    string
}

func NewMailer(sender Sender, publicBaseURL, adminEmail string) *Mailer {
	return &Mailer{
		sender:        sender,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
		adminEmail:    strings.TrimSpace(adminEmail),
	}
}

// ConfirmURL is the public link a customer follows to confirm or decline.
func (m *Mailer) ConfirmURL(confirmToken string) string {
	return m.publicBaseURL + "/confirm?token=" + url.QueryEscape(confirmToken)
}

func (m *Mailer) SendConfirmationEmail(_ context.Context, appt model.Appointment, email, confirmToken string) error {
	subject := "Please confirm your service appointment"
	body := fmt.Sprintf(
		"Your mobile service visit is scheduled for %s at %s.\n\nConfirm or decline here: %s\n\nIf you did not request this appointment you can ignore this email.",
		formatSlot(appt),
		appt.Address,
		m.ConfirmURL(confirmToken),
	)
	return m.sender.Send(email, subject, body)
}

func (m *Mailer) NotifyAdminBooked(_ context.Context, appt model.Appointment) error {
	if m.adminEmail == "" {
		return nil
	}
	subject := "New appointment booked"
	body := fmt.Sprintf(
		"Appointment %s booked for %s.\n\nCustomer: %s\nVehicle: %s\nAddress: %s",
		appt.ID,
		formatSlot(appt),
		appt.CustomerID,
		appt.VehicleID,
		appt.Address,
	)
	return m.sender.Send(m.adminEmail, subject, body)
}

func (m *Mailer) NotifyCustomerConfirmed(_ context.Context, appt model.Appointment, email string) error {
	subject := "Your service appointment is confirmed"
	body := fmt.Sprintf(
		"We have confirmed your mobile service visit for %s at %s.\n\nOur technician will reach out before arrival.",
		formatSlot(appt),
		appt.Address,
	)
	return m.sender.Send(email, subject, body)
}

func formatSlot(appt model.Appointment) string {
	const layout = "Mon, Jan 2 2006 15:04 MST"
	return fmt.Sprintf("%s - %s",
		appt.SlotStart.Format(layout),
		appt.SlotEnd.Format(time.Kitchen),
	)
}
