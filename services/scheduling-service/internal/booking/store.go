package booking

import (
	"context"
	"errors"

	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/model"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/overlap"
)

// ErrSlotHeld is returned by Store implementations when the storage-level
// exclusion constraint rejects a write that slipped past the guard queries.
var ErrSlotHeld = errors.New("slot held by another appointment")

// Store is the persistence contract the workflow runs against. The pgx-backed
// implementation lives in internal/storage; tests use an in-memory fake.
//
// CreateAppointment and SaveAppointment must be transactional: the exclusion
// constraint on (vehicle, slot range) and (customer, slot range) is the
// backstop for the check-then-write race, surfaced as ErrSlotHeld.
type Store interface {
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	GetAppointmentByToken(ctx context.Context, token string) (model.Appointment, error)
	ListAppointments(ctx context.Context, limit int) ([]model.Appointment, error)

	// FindConflict returns the earliest-starting appointment blocked by the
	// scope, or nil when the range is free.
	FindConflict(ctx context.Context, scope overlap.Scope) (*model.Appointment, error)

	CreateAppointment(ctx context.Context, appt model.Appointment) (model.Appointment, error)
	SaveAppointment(ctx context.Context, appt model.Appointment) (model.Appointment, error)

	GetCustomer(ctx context.Context, id string) (model.Customer, error)
}
