package database

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/mahudhurio/core/subject"
)

type subjectRepository struct {
	db *sqlx.DB
}

var _ subject.Repository = (*subjectRepository)(nil) // interface compliance check

func NewSubjectRepository(db *sqlx.DB) subject.Repository {
	return &subjectRepository{db: db}
}

const subjectColumns = `id, name, code, year, semester, is_active, created_at, updated_at`

func (repo *subjectRepository) CreateSubject(ctx context.Context, sub subject.Subject) (subject.Subject, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO subject (`+subjectColumns+`)
		VALUES (:id, :name, :code, :year, :semester, :is_active, :created_at, :updated_at)`, sub)
	if err != nil {
		return subject.Subject{}, wrapErr(err, "creating subject")
	}
	return sub, nil
}

func (repo *subjectRepository) GetSubject(ctx context.Context, id string) (subject.Subject, error) {
	var sub subject.Subject
	err := repo.db.GetContext(ctx, &sub, `SELECT `+subjectColumns+` FROM subject WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return subject.Subject{}, subject.ErrNotFound
		}
		return subject.Subject{}, wrapErr(err, "getting subject")
	}
	return sub, nil
}

func (repo *subjectRepository) FilterSubjects(ctx context.Context, filter subject.QueryFilter) ([]subject.Subject, error) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Year != 0 {
		conds = append(conds, "year = "+arg(filter.Year))
	}
	if filter.Semester != 0 {
		conds = append(conds, "semester = "+arg(filter.Semester))
	}
	if filter.ActiveOnly {
		conds = append(conds, "is_active")
	}

	var where string
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	subjects := make([]subject.Subject, 0)
	err := repo.db.SelectContext(ctx, &subjects, `
		SELECT `+subjectColumns+` FROM subject`+where+` ORDER BY code`, args...)
	if err != nil {
		return nil, wrapErr(err, "filtering subjects")
	}
	return subjects, nil
}
