package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/trezcool/mahudhurio/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

const userColumns = `id, name, email, role, roll_number, year, semester,
	is_active, password_hash, created_at, updated_at`

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email, rollNumber string, excludedUsers ...user.User) error {
	excluded := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		excluded = append(excluded, usr.ID)
	}

	var match user.User
	err := repo.db.GetContext(ctx, &match, `
		SELECT `+userColumns+` FROM app_user
		WHERE (email = $1 OR (roll_number <> '' AND roll_number = $2))
		  AND id <> ALL($3) LIMIT 1`, email, rollNumber, pq.Array(excluded))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return wrapErr(err, "checking email uniqueness")
	}
	if match.Email == email {
		return user.ErrEmailExists
	}
	return user.ErrRollNumberExists
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO app_user (`+userColumns+`)
		VALUES (:id, :name, :email, :role, :roll_number, :year, :semester,
			:is_active, :password_hash, :created_at, :updated_at)`, usr)
	if err != nil {
		return user.User{}, wrapErr(err, "creating user")
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var usr user.User
	err := repo.db.GetContext(ctx, &usr, `
		SELECT `+userColumns+` FROM app_user
		WHERE ($1 <> '' AND id = $1)
		   OR ($2 <> '' AND email = $2)
		   OR ($3 <> '' AND roll_number = $3)
		LIMIT 1`, filter.ID, filter.Email, filter.RollNumber)
	if err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, wrapErr(err, "getting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	users := make([]user.User, 0)
	err := repo.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM app_user ORDER BY created_at`)
	if err != nil {
		return nil, wrapErr(err, "querying users")
	}
	return users, nil
}
