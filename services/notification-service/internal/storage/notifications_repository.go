package storage

import (
	"context"

	"github.com/serviceops-hq/dispatch/libs/db"
)

// Notification is one delivered (or attempted) admin alert, kept for audit.
type Notification struct {
	AppointmentID string
	EventType     string
	Recipient     string
	Payload       []byte
	Status        string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (appointment_id, event_type, recipient, payload, status)
		VALUES ($1, $2, $3, $4, $5)
	`, n.AppointmentID, n.EventType, n.Recipient, n.Payload, n.Status)
	return err
}
