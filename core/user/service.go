package user

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
)

type (
	Repository interface {
		// CheckEmailUniqueness returns ErrEmailExists (or ErrRollNumberExists)
		// when another user already holds the given identifier.
		CheckEmailUniqueness(ctx context.Context, email, rollNumber string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// GetUser applies OR operation on available GetFilter fields.
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		QueryAllUsers(ctx context.Context) ([]User, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkUniqueness(email, rollNumber string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, rollNumber, exclUsers...); err != nil {
		var field string
		switch err {
		case ErrEmailExists:
			field = "email"
		case ErrRollNumberExists:
			field = "roll_number"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	email := core.CleanString(nu.Email, true /* lower */)
	rollNumber := core.CleanString(nu.RollNumber, true /* lower */)
	if err := svc.checkUniqueness(email, rollNumber); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		ID:         uuid.New().String(),
		Name:       core.CleanString(nu.Name),
		Email:      email,
		Role:       nu.Role,
		RollNumber: rollNumber,
		Year:       nu.Year,
		Semester:   nu.Semester,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}
