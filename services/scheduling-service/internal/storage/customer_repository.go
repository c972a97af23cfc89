package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/serviceops-hq/dispatch/libs/db"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/booking"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/model"
)

// ErrDuplicateEmail is returned when a customer's email is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

type CustomerRepository struct {
	pool *db.Pool
}

func NewCustomerRepository(pool *db.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

func (r *CustomerRepository) Create(ctx context.Context, c model.Customer) (model.Customer, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO customers (id, name, email, phone)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
		RETURNING created_at
	`, c.ID, c.Name, c.Email, c.Phone).Scan(&c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.Customer{}, ErrDuplicateEmail
		}
		return model.Customer{}, err
	}
	return c, nil
}

func (r *CustomerRepository) Get(ctx context.Context, id string) (model.Customer, error) {
	var c model.Customer
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(email, ''), COALESCE(phone, ''), created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt)
	if err != nil {
		return model.Customer{}, mapPgError(err)
	}
	return c, nil
}

func (r *CustomerRepository) List(ctx context.Context, limit int) ([]model.Customer, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, COALESCE(email, ''), COALESCE(phone, ''), created_at
		FROM customers
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []model.Customer
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (r *CustomerRepository) CreateVehicle(ctx context.Context, v model.Vehicle) (model.Vehicle, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO vehicles (id, customer_id, make, model, year, trim)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		RETURNING created_at
	`, v.ID, v.CustomerID, v.Make, v.Model, v.Year, v.Trim).Scan(&v.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return model.Vehicle{}, booking.ErrNotFound
		}
		return model.Vehicle{}, err
	}
	return v, nil
}

func (r *CustomerRepository) ListVehicles(ctx context.Context, customerID string) ([]model.Vehicle, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, customer_id, make, model, year, COALESCE(trim, ''), created_at
		FROM vehicles
		WHERE customer_id = $1
		ORDER BY created_at
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []model.Vehicle
	for rows.Next() {
		var v model.Vehicle
		if err := rows.Scan(&v.ID, &v.CustomerID, &v.Make, &v.Model, &v.Year, &v.Trim, &v.CreatedAt); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}
