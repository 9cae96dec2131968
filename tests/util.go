package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core/subject"
	"github.com/trezcool/mahudhurio/core/user"
)

func CreateTeacher(t *testing.T, repo user.Repository, name, email string) user.User {
	return createUser(t, repo, name, email, user.RoleTeacher, "", 0, 0)
}

func CreateStudent(t *testing.T, repo user.Repository, name, email, rollNumber string, year, semester int) user.User {
	return createUser(t, repo, name, email, user.RoleStudent, rollNumber, year, semester)
}

func createUser(t *testing.T, repo user.Repository, name, email, role, rollNumber string, year, semester int) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{
		ID:         uuid.New().String(),
		Name:       name,
		Email:      email,
		Role:       role,
		RollNumber: rollNumber,
		Year:       year,
		Semester:   semester,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := usr.SetPassword("Str0ng&Secret"); err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateSubject(t *testing.T, repo subject.Repository, name, code string, year, semester int, isActive bool) subject.Subject {
	t.Helper()

	now := time.Now().UTC()
	sub, err := repo.CreateSubject(context.Background(), subject.Subject{
		ID:        uuid.New().String(),
		Name:      name,
		Code:      code,
		Year:      year,
		Semester:  semester,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("createSubject() failed: %v", err)
	}
	return sub
}
