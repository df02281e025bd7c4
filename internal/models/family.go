package models

import "time"

// Family represents a family account. Every linked user belongs to exactly one.
type Family struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"` // e.g. "The Gamull Family"
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
