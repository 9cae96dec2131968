package attendance

import (
	"errors"
	"time"
)

var (
	// errors
	ErrNotFound           = errors.New("session not found")
	ErrInvalidCode        = errors.New("invalid or expired session code")
	ErrSessionExpired     = errors.New("session has expired")
	ErrAlreadyMarked      = errors.New("attendance already marked for this session")
	ErrCodeSpaceExhausted = errors.New("no unique session code available")

	// storage constraint violations
	ErrSessionExists = errors.New("an active session already exists for this subject")
	ErrCodeExists    = errors.New("an active session with this code already exists")
)

// Session statuses. Transitions only move forward:
// active -> expired (time-driven) or active -> ended (teacher-driven).
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusEnded   Status = "ended"
)

type Session struct {
	ID           string    `json:"id" db:"id"`
	SubjectID    string    `json:"subject_id" db:"subject_id"`
	TeacherID    string    `json:"teacher_id" db:"teacher_id"`
	Code         string    `json:"code" db:"code"` // 4 ASCII digits, leading zeros allowed
	Year         int       `json:"year" db:"year"`
	Semester     int       `json:"semester" db:"semester"`
	StartTime    time.Time `json:"start_time" db:"start_time"`   // UTC
	ExpiryTime   time.Time `json:"expiry_time" db:"expiry_time"` // UTC; fixed at creation
	Status       Status    `json:"status" db:"status"`
	PresentCount int       `json:"present_count" db:"present_count"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"` // UTC
}

// IsOpen reports whether the session still accepts marks at `now`.
func (s *Session) IsOpen(now time.Time) bool {
	return s.Status == StatusActive && now.Before(s.ExpiryTime)
}

type Mark struct {
	ID        string    `json:"id" db:"id"`
	SessionID string    `json:"session_id" db:"session_id"`
	StudentID string    `json:"student_id" db:"student_id"`
	SubjectID string    `json:"subject_id" db:"subject_id"`
	MarkedAt  time.Time `json:"marked_at" db:"marked_at"` // UTC
}

// Record is a Mark decorated with student display info for live views.
type Record struct {
	Mark
	StudentName string `json:"student_name"`
	RollNumber  string `json:"roll_number"`
}

type (
	QueryFilter struct {
		TeacherID   string
		SubjectID   string
		Year        int
		Semester    int
		Status      Status
		Finished    bool // status != active
		StartedFrom time.Time
		StartedTo   time.Time
	}

	MarkFilter struct {
		SessionID string
		StudentID string
		SubjectID string
	}
)

// Stats projections (simple counts only).
type (
	SubjectStudentStat struct {
		StudentID  string  `json:"student_id"`
		Name       string  `json:"name"`
		RollNumber string  `json:"roll_number"`
		Present    int     `json:"present"`
		Total      int     `json:"total"`
		Percentage float64 `json:"percentage"`
	}

	SubjectStats struct {
		TotalSessions int                  `json:"total_sessions"`
		TotalStudents int                  `json:"total_students"`
		Students      []SubjectStudentStat `json:"students"`
	}

	StudentSubjectStat struct {
		SubjectID   string  `json:"subject_id"`
		SubjectName string  `json:"subject_name"`
		SubjectCode string  `json:"subject_code"`
		Attended    int     `json:"attended"`
		Total       int     `json:"total"`
		Percentage  float64 `json:"percentage"`
	}

	StudentStats struct {
		Attended   int                  `json:"attended"`
		Total      int                  `json:"total"`
		Percentage float64              `json:"percentage"`
		Subjects   []StudentSubjectStat `json:"subjects"`
	}
)
