package subject

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
)

type (
	Repository interface {
		CreateSubject(ctx context.Context, sub Subject) (Subject, error)
		GetSubject(ctx context.Context, id string) (Subject, error)
		// FilterSubjects applies AND operation on available QueryFilter fields.
		FilterSubjects(ctx context.Context, filter QueryFilter) ([]Subject, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type NewSubject struct {
	Name     string `json:"name" validate:"required"`
	Code     string `json:"code" validate:"required"`
	Year     int    `json:"year" validate:"required,oneof=1 2 3"`
	Semester int    `json:"semester" validate:"required,oneof=1 2 3 4 5 6"`
}

func (ns NewSubject) Validate() error {
	return core.Validate.Struct(ns)
}

func (svc *Service) Create(ctx context.Context, ns NewSubject) (Subject, error) {
	now := time.Now().UTC()
	sub := Subject{
		ID:        uuid.New().String(),
		Name:      core.CleanString(ns.Name),
		Code:      core.CleanString(ns.Code, true /* lower */),
		Year:      ns.Year,
		Semester:  ns.Semester,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateSubject(ctx, sub)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

// Filter returns the active subjects of a student's year/semester.
func (svc *Service) Filter(ctx context.Context, year, semester int) ([]Subject, error) {
	return svc.repo.FilterSubjects(ctx, QueryFilter{Year: year, Semester: semester, ActiveOnly: true})
}

func (svc *Service) QueryAll(ctx context.Context) ([]Subject, error) {
	return svc.repo.FilterSubjects(ctx, QueryFilter{})
}
