package user

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	// errors
	ErrNotFound         = errors.New("user not found")
	ErrEmailExists      = errors.New("a user with this email already exists")
	ErrRollNumberExists = errors.New("a user with this roll number already exists")
)

// Roles
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

var AllRoles = []string{RoleTeacher, RoleStudent}

type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	Role         string    `json:"role" db:"role"`
	RollNumber   string    `json:"roll_number,omitempty" db:"roll_number"`
	Year         int       `json:"year,omitempty" db:"year"`         // students only; {1,2,3}
	Semester     int       `json:"semester,omitempty" db:"semester"` // students only; {1..6}
	IsActive     bool      `json:"is_active" db:"is_active"`
	PasswordHash []byte    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

// GetFilter applies OR operation on available fields.
type GetFilter struct {
	ID         string
	Email      string
	RollNumber string
}

type NewUser struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	Role       string `json:"role" validate:"required,oneof=teacher student"`
	RollNumber string `json:"roll_number"`
	Year       int    `json:"year" validate:"omitempty,oneof=1 2 3"`
	Semester   int    `json:"semester" validate:"omitempty,oneof=1 2 3 4 5 6"`
}
