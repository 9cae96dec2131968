package subject

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("subject not found")

type Subject struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Code      string    `json:"code" db:"code"`
	Year      int       `json:"year" db:"year"`         // {1,2,3}
	Semester  int       `json:"semester" db:"semester"` // {1..6}
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // UTC
}

type QueryFilter struct {
	Year       int
	Semester   int
	ActiveOnly bool
}
