package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/mahudhurio/core/subject"
)

type subjectRepository struct {
	db *subjectTable
}

var _ subject.Repository = (*subjectRepository)(nil) // interface compliance check

func NewSubjectRepository(db *DB) subject.Repository {
	return &subjectRepository{db: db.subject}
}

func (repo *subjectRepository) CreateSubject(ctx context.Context, sub subject.Subject) (subject.Subject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[sub.ID] = &sub
	return sub, nil
}

func (repo *subjectRepository) GetSubject(ctx context.Context, id string) (subject.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sub, ok := repo.db.table[id]; ok {
		return *sub, nil
	}
	return subject.Subject{}, subject.ErrNotFound
}

func (repo *subjectRepository) FilterSubjects(ctx context.Context, filter subject.QueryFilter) ([]subject.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subjects := make([]subject.Subject, 0, len(repo.db.table))
	for _, sub := range repo.db.table {
		if filter.Year != 0 && sub.Year != filter.Year {
			continue
		}
		if filter.Semester != 0 && sub.Semester != filter.Semester {
			continue
		}
		if filter.ActiveOnly && !sub.IsActive {
			continue
		}
		subjects = append(subjects, *sub)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Code < subjects[j].Code })
	return subjects, nil
}
