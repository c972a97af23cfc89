package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/model"
)

type recordingSender struct {
	to      []string
	subject []string
	body    []string
}

func (r *recordingSender) Send(to, subject, body string) error {
	r.to = append(r.to, to)
	r.subject = append(r.subject, subject)
	r.body = append(r.body, body)
	return nil
}

func sampleAppt() model.Appointment {
	return model.Appointment{
		ID:        "a1",
		SlotStart: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
		SlotEnd:   time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC),
		Address:   "12 Elm St",
	}
}

func TestConfirmURL(t *testing.T) {
	m := NewMailer(&recordingSender{}, "https://book.example.com/", "")
	got := m.ConfirmURL("ab+cd")
	assert.Equal(t, "https://book.example.com/confirm?token=ab%2Bcd", got)
}

func TestSendConfirmationEmail(t *testing.T) {
	rec := &recordingSender{}
	m := NewMailer(rec, "https://book.example.com", "ops@example.com")

	err := m.SendConfirmationEmail(context.Background(), sampleAppt(), "ada@example.com", "tok123")
	require.NoError(t, err)
	require.Len(t, rec.to, 1)
	assert.Equal(t, "ada@example.com", rec.to[0])
	assert.Contains(t, rec.body[0], "https://book.example.com/confirm?token=tok123")
	assert.Contains(t, rec.body[0], "12 Elm St")
}

func TestNotifyAdminBooked(t *testing.T) {
	rec := &recordingSender{}
	m := NewMailer(rec, "https://book.example.com", "ops@example.com")

	err := m.NotifyAdminBooked(context.Background(), sampleAppt())
	require.NoError(t, err)
	require.Len(t, rec.to, 1)
	assert.Equal(t, "ops@example.com", rec.to[0])
	assert.Contains(t, rec.body[0], "a1")
}

func TestNotifyAdminBooked_NoAdminConfigured(t *testing.T) {
	rec := &recordingSender{}
	m := NewMailer(rec, "https://book.example.com", "")

	err := m.NotifyAdminBooked(context.Background(), sampleAppt())
	require.NoError(t, err)
	assert.Empty(t, rec.to)
}
