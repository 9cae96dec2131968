package database

import (
	"context"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/mahudhurio/core/attendance"
)

type markRepository struct {
	db *sqlx.DB
}

var _ attendance.MarkRepository = (*markRepository)(nil) // interface compliance check

func NewMarkRepository(db *sqlx.DB) attendance.MarkRepository {
	return &markRepository{db: db}
}

// CreateMark is a single atomic conditional insert: the unique index on
// (session_id, student_id) arbitrates concurrent submissions, so exactly one
// caller observes inserted=true and no check-then-insert race exists. The
// present count increment shares the transaction with the insert.
func (repo *markRepository) CreateMark(ctx context.Context, mark attendance.Mark) (bool, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, wrapErr(err, "creating mark")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_mark (id, session_id, student_id, subject_id, marked_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, student_id) DO NOTHING`,
		mark.ID, mark.SessionID, mark.StudentID, mark.SubjectID, mark.MarkedAt)
	if err != nil {
		return false, wrapErr(err, "creating mark")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr(err, "creating mark")
	}
	if n == 0 {
		return false, nil // already marked; not a fault
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE attendance_session SET present_count = present_count + 1, updated_at = $1
		WHERE id = $2`, mark.MarkedAt, mark.SessionID)
	if err != nil {
		return false, wrapErr(err, "incrementing present count")
	}

	if err = tx.Commit(); err != nil {
		return false, wrapErr(err, "creating mark")
	}
	return true, nil
}

func (repo *markRepository) FilterMarks(ctx context.Context, filter attendance.MarkFilter) ([]attendance.Mark, error) {
	where, args := buildMarkFilter(filter)
	marks := make([]attendance.Mark, 0)
	err := repo.db.SelectContext(ctx, &marks, `
		SELECT id, session_id, student_id, subject_id, marked_at
		FROM attendance_mark`+where+` ORDER BY marked_at DESC`, args...)
	if err != nil {
		return nil, wrapErr(err, "filtering marks")
	}
	return marks, nil
}

func (repo *markRepository) CountMarks(ctx context.Context, filter attendance.MarkFilter) (int, error) {
	where, args := buildMarkFilter(filter)
	var count int
	err := repo.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM attendance_mark`+where, args...)
	if err != nil {
		return 0, wrapErr(err, "counting marks")
	}
	return count, nil
}

func buildMarkFilter(filter attendance.MarkFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.SessionID != "" {
		conds = append(conds, "session_id = "+arg(filter.SessionID))
	}
	if filter.StudentID != "" {
		conds = append(conds, "student_id = "+arg(filter.StudentID))
	}
	if filter.SubjectID != "" {
		conds = append(conds, "subject_id = "+arg(filter.SubjectID))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
