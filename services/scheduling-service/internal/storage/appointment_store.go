// Package storage holds the pgx-backed repositories. Writes that touch the
// slot calendar run in a transaction; the btree_gist exclusion constraints on
// appointments are the backstop for the check-then-write race.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/serviceops-hq/dispatch/libs/db"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/booking"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/model"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/outbox"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/overlap"
)

const apptColumns = `
	id, customer_id, vehicle_id, COALESCE(tech_id, ''),
	lower(slot), upper(slot), arrival_window_start, arrival_window_end, window_locked_at,
	schedule_state, dispatch_status, scheduling_mode, address, COALESCE(notes, ''),
	COALESCE(customer_confirm_token, ''), customer_confirm_expires, customer_confirmed_at,
	created_at, updated_at`

// AppointmentStore implements booking.Store on Postgres. Domain events go to
// the outbox inside the same transaction as the row change.
type AppointmentStore struct {
	pool   *db.Pool
	events *outbox.Repository
}

func NewAppointmentStore(pool *db.Pool, events *outbox.Repository) *AppointmentStore {
	return &AppointmentStore{pool: pool, events: events}
}

func (s *AppointmentStore) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := s.queryOne(ctx, `SELECT`+apptColumns+` FROM appointments WHERE id = $1`, id)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Services, err = s.loadServiceItems(ctx, appt.ID)
	return appt, err
}

func (s *AppointmentStore) GetAppointmentByToken(ctx context.Context, token string) (model.Appointment, error) {
	appt, err := s.queryOne(ctx, `SELECT`+apptColumns+` FROM appointments WHERE customer_confirm_token = $1`, token)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Services, err = s.loadServiceItems(ctx, appt.ID)
	return appt, err
}

func (s *AppointmentStore) ListAppointments(ctx context.Context, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT`+apptColumns+`
		FROM appointments
		ORDER BY lower(slot) DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// FindConflict mirrors overlap.Blocks in SQL: released states never block,
// the slot ranges intersect half-open, and the earliest holder wins.
func (s *AppointmentStore) FindConflict(ctx context.Context, scope overlap.Scope) (*model.Appointment, error) {
	query := `
		SELECT` + apptColumns + `
		FROM appointments
		WHERE schedule_state NOT IN ('CANCELLED', 'CUSTOMER_DECLINED')
			AND lower(slot) < $2
			AND upper(slot) > $1
			AND ($3 = '' OR vehicle_id::text = $3)
			AND ($4 = '' OR customer_id::text = $4)
			AND ($5 = '' OR customer_id::text <> $5)
			AND ($6 = '' OR id::text <> $6)
		ORDER BY lower(slot) ASC
		LIMIT 1`
	appt, err := s.queryOne(ctx, query,
		scope.Range.Start, scope.Range.End,
		scope.VehicleID, scope.CustomerID,
		scope.ExcludeCustomerID, scope.ExcludeAppointmentID,
	)
	if errors.Is(err, booking.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func (s *AppointmentStore) CreateAppointment(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, customer_id, vehicle_id, tech_id, slot, arrival_window_start, arrival_window_end,
			 schedule_state, dispatch_status, scheduling_mode, address, notes)
		VALUES ($1, $2, $3, NULLIF($4, ''), tstzrange($5, $6, '[)'), $7, $8, $9, $10, $11, $12, NULLIF($13, ''))
		RETURNING created_at, updated_at
	`, appt.ID, appt.CustomerID, appt.VehicleID, appt.TechID,
		appt.SlotStart, appt.SlotEnd, appt.ArrivalWindowStart, appt.ArrivalWindowEnd,
		appt.ScheduleState, appt.DispatchStatus, appt.SchedulingMode, appt.Address, appt.Notes,
	).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		return model.Appointment{}, mapPgError(err)
	}

	for _, item := range appt.Services {
		_, err = tx.Exec(ctx, `
			INSERT INTO appointment_services (appointment_id, kind, name, qty, unit_price_cents, notes)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		`, appt.ID, item.Kind, item.Name, item.Qty, item.UnitPriceCents, item.Notes)
		if err != nil {
			return model.Appointment{}, err
		}
	}

	if err := s.events.Insert(ctx, tx, outbox.Booked(appt)); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, mapPgError(err)
	}
	return appt, nil
}

func (s *AppointmentStore) SaveAppointment(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var prevState model.ScheduleState
	var prevStatus model.DispatchStatus
	err = tx.QueryRow(ctx, `
		SELECT schedule_state, dispatch_status FROM appointments WHERE id = $1 FOR UPDATE
	`, appt.ID).Scan(&prevState, &prevStatus)
	if err != nil {
		return model.Appointment{}, mapPgError(err)
	}

	err = tx.QueryRow(ctx, `
		UPDATE appointments
		SET slot = tstzrange($2, $3, '[)'),
			tech_id = NULLIF($4, ''),
			arrival_window_start = $5,
			arrival_window_end = $6,
			window_locked_at = $7,
			schedule_state = $8,
			dispatch_status = $9,
			address = $10,
			notes = NULLIF($11, ''),
			customer_confirm_token = NULLIF($12, ''),
			customer_confirm_expires = $13,
			customer_confirmed_at = $14,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, appt.ID, appt.SlotStart, appt.SlotEnd, appt.TechID,
		appt.ArrivalWindowStart, appt.ArrivalWindowEnd, appt.WindowLockedAt,
		appt.ScheduleState, appt.DispatchStatus, appt.Address, appt.Notes,
		appt.CustomerConfirmToken, appt.CustomerConfirmExpires, appt.CustomerConfirmedAt,
	).Scan(&appt.UpdatedAt)
	if err != nil {
		return model.Appointment{}, mapPgError(err)
	}

	if appt.ScheduleState != prevState {
		if err := s.events.Insert(ctx, tx, outbox.StateChanged(appt)); err != nil {
			return model.Appointment{}, err
		}
	}
	if appt.DispatchStatus != prevStatus {
		if err := s.events.Insert(ctx, tx, outbox.DispatchChanged(appt)); err != nil {
			return model.Appointment{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, mapPgError(err)
	}
	return appt, nil
}

func (s *AppointmentStore) GetCustomer(ctx context.Context, id string) (model.Customer, error) {
	var c model.Customer
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(email, ''), COALESCE(phone, ''), created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt)
	if err != nil {
		return model.Customer{}, mapPgError(err)
	}
	return c, nil
}

func (s *AppointmentStore) queryOne(ctx context.Context, query string, args ...any) (model.Appointment, error) {
	row := s.pool.QueryRow(ctx, query, args...)
	appt, err := scanAppointment(row)
	if err != nil {
		return model.Appointment{}, mapPgError(err)
	}
	return appt, nil
}

func (s *AppointmentStore) loadServiceItems(ctx context.Context, appointmentID string) ([]model.ServiceItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT kind, name, qty, unit_price_cents, COALESCE(notes, '')
		FROM appointment_services
		WHERE appointment_id = $1
		ORDER BY id
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.ServiceItem
	for rows.Next() {
		var item model.ServiceItem
		if err := rows.Scan(&item.Kind, &item.Name, &item.Qty, &item.UnitPriceCents, &item.Notes); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (model.Appointment, error) {
	var appt model.Appointment
	var arrivalStart, arrivalEnd, windowLockedAt, confirmExpires, confirmedAt *time.Time
	err := row.Scan(
		&appt.ID,
		&appt.CustomerID,
		&appt.VehicleID,
		&appt.TechID,
		&appt.SlotStart,
		&appt.SlotEnd,
		&arrivalStart,
		&arrivalEnd,
		&windowLockedAt,
		&appt.ScheduleState,
		&appt.DispatchStatus,
		&appt.SchedulingMode,
		&appt.Address,
		&appt.Notes,
		&appt.CustomerConfirmToken,
		&confirmExpires,
		&confirmedAt,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.ArrivalWindowStart = arrivalStart
	appt.ArrivalWindowEnd = arrivalEnd
	appt.WindowLockedAt = windowLockedAt
	appt.CustomerConfirmExpires = confirmExpires
	appt.CustomerConfirmedAt = confirmedAt
	return appt, nil
}

func scanAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func mapPgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return booking.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
		return booking.ErrSlotHeld
	}
	return err
}
