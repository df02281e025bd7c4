package models

import (
	"time"

	"github.com/JunoAX/familytasks-go/internal/patch"
)

// User represents a family member
type User struct {
	ID         int64     `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Email      string    `json:"email" db:"email"`
	Avatar     *string   `json:"avatar,omitempty" db:"avatar"`
	ExternalID *string   `json:"-" db:"external_id"` // Identity provider subject, e.g. Google "sub"
	FamilyID   *int64    `json:"family_id,omitempty" db:"family_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// UserCreateRequest is the body of POST /api/users
type UserCreateRequest struct {
	Name   string  `json:"name" binding:"required,max=255"`
	Email  string  `json:"email" binding:"required,email,max=255"`
	Avatar *string `json:"avatar" binding:"omitempty,url"`
}

// UserUpdateRequest is a partial update. Keys absent from the body are left unchanged.
type UserUpdateRequest struct {
	Name   patch.Field[string] `json:"name"`
	Email  patch.Field[string] `json:"email"`
	Avatar patch.Field[string] `json:"avatar"`
}
