package model

import "time"

type Customer struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
}

type Vehicle struct {
	ID         string
	CustomerID string
	Make       string
	Model      string
	Year       int
	Trim       string
	CreatedAt  time.Time
}
