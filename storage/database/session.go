package database

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/trezcool/mahudhurio/core/attendance"
)

const (
	uniqueViolation = "23505"

	activeSubjectConstraint = "attendance_session_active_subject_key"
	activeCodeConstraint    = "attendance_session_active_code_key"
)

type sessionRepository struct {
	db *sqlx.DB
}

var _ attendance.SessionRepository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) attendance.SessionRepository {
	return &sessionRepository{db: db}
}

const sessionColumns = `id, subject_id, teacher_id, code, year, semester,
	start_time, expiry_time, status, present_count, created_at, updated_at`

// CreateSession relies on the partial unique indexes on
// (subject_id) WHERE status='active' and (code) WHERE status='active':
// a second concurrent insert fails here instead of racing an application
// level check-then-insert.
func (repo *sessionRepository) CreateSession(ctx context.Context, s attendance.Session) (attendance.Session, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO attendance_session (`+sessionColumns+`)
		VALUES (:id, :subject_id, :teacher_id, :code, :year, :semester,
			:start_time, :expiry_time, :status, :present_count, :created_at, :updated_at)`, s)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			switch pqErr.Constraint {
			case activeSubjectConstraint:
				return attendance.Session{}, attendance.ErrSessionExists
			case activeCodeConstraint:
				return attendance.Session{}, attendance.ErrCodeExists
			}
		}
		return attendance.Session{}, wrapErr(err, "creating session")
	}
	return s, nil
}

func (repo *sessionRepository) GetSession(ctx context.Context, id string) (attendance.Session, error) {
	return repo.get(ctx, `SELECT `+sessionColumns+` FROM attendance_session WHERE id = $1`, id)
}

func (repo *sessionRepository) GetActiveSessionBySubject(ctx context.Context, subjectID string) (attendance.Session, error) {
	return repo.get(ctx, `
		SELECT `+sessionColumns+` FROM attendance_session
		WHERE subject_id = $1 AND status = 'active'`, subjectID)
}

func (repo *sessionRepository) GetActiveSessionByCode(ctx context.Context, code string) (attendance.Session, error) {
	return repo.get(ctx, `
		SELECT `+sessionColumns+` FROM attendance_session
		WHERE code = $1 AND status = 'active'`, code)
}

func (repo *sessionRepository) get(ctx context.Context, query string, args ...interface{}) (attendance.Session, error) {
	var s attendance.Session
	if err := repo.db.GetContext(ctx, &s, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return attendance.Session{}, attendance.ErrNotFound
		}
		return attendance.Session{}, wrapErr(err, "getting session")
	}
	return s, nil
}

func (repo *sessionRepository) ActiveCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM attendance_session WHERE code = $1 AND status = 'active')`, code)
	if err != nil {
		return false, wrapErr(err, "checking code")
	}
	return exists, nil
}

func (repo *sessionRepository) TransitionSession(ctx context.Context, id string, from, to attendance.Status) (bool, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE attendance_session SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4`, to, time.Now().UTC(), id, from)
	if err != nil {
		return false, wrapErr(err, "transitioning session")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr(err, "transitioning session")
	}
	return n > 0, nil
}

func (repo *sessionRepository) ListOpenSessions(ctx context.Context, year, semester int, now time.Time) ([]attendance.Session, error) {
	sessions := make([]attendance.Session, 0)
	err := repo.db.SelectContext(ctx, &sessions, `
		SELECT `+sessionColumns+` FROM attendance_session
		WHERE status = 'active' AND year = $1 AND semester = $2 AND expiry_time > $3
		ORDER BY start_time DESC`, year, semester, now)
	if err != nil {
		return nil, wrapErr(err, "listing open sessions")
	}
	return sessions, nil
}

func (repo *sessionRepository) FilterSessions(ctx context.Context, filter attendance.QueryFilter) ([]attendance.Session, error) {
	where, args := buildSessionFilter(filter)
	sessions := make([]attendance.Session, 0)
	err := repo.db.SelectContext(ctx, &sessions, `
		SELECT `+sessionColumns+` FROM attendance_session`+where+` ORDER BY start_time DESC`, args...)
	if err != nil {
		return nil, wrapErr(err, "filtering sessions")
	}
	return sessions, nil
}

func (repo *sessionRepository) CountSessions(ctx context.Context, filter attendance.QueryFilter) (int, error) {
	where, args := buildSessionFilter(filter)
	var count int
	err := repo.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM attendance_session`+where, args...)
	if err != nil {
		return 0, wrapErr(err, "counting sessions")
	}
	return count, nil
}

func buildSessionFilter(filter attendance.QueryFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.TeacherID != "" {
		conds = append(conds, "teacher_id = "+arg(filter.TeacherID))
	}
	if filter.SubjectID != "" {
		conds = append(conds, "subject_id = "+arg(filter.SubjectID))
	}
	if filter.Year != 0 {
		conds = append(conds, "year = "+arg(filter.Year))
	}
	if filter.Semester != 0 {
		conds = append(conds, "semester = "+arg(filter.Semester))
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+arg(filter.Status))
	}
	if filter.Finished {
		conds = append(conds, "status <> 'active'")
	}
	if !filter.StartedFrom.IsZero() {
		conds = append(conds, "start_time >= "+arg(filter.StartedFrom))
	}
	if !filter.StartedTo.IsZero() {
		conds = append(conds, "start_time <= "+arg(filter.StartedTo))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
