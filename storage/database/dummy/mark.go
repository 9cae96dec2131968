package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/mahudhurio/core/attendance"
)

type markRepository struct {
	db *DB
}

var _ attendance.MarkRepository = (*markRepository)(nil) // interface compliance check

func NewMarkRepository(db *DB) attendance.MarkRepository {
	return &markRepository{db: db}
}

func markKey(sessionID, studentID string) string {
	return sessionID + "/" + studentID
}

// CreateMark is the exactly-once primitive: the existence check and the
// insert happen under one table lock (the in-memory equivalent of the
// store's unique index), so N concurrent calls for the same
// (session, student) yield exactly one inserted=true. The present count
// increment rides the same critical section.
func (repo *markRepository) CreateMark(ctx context.Context, mark attendance.Mark) (bool, error) {
	repo.db.mark.Lock()
	defer repo.db.mark.Unlock()

	key := markKey(mark.SessionID, mark.StudentID)
	if _, ok := repo.db.mark.table[key]; ok {
		return false, nil
	}
	repo.db.mark.table[key] = &mark

	repo.db.session.Lock()
	if s, ok := repo.db.session.table[mark.SessionID]; ok {
		s.PresentCount++
		s.UpdatedAt = time.Now().UTC()
	}
	repo.db.session.Unlock()

	return true, nil
}

func (repo *markRepository) FilterMarks(ctx context.Context, filter attendance.MarkFilter) ([]attendance.Mark, error) {
	repo.db.mark.RLock()
	defer repo.db.mark.RUnlock()

	var marks []attendance.Mark
	for _, m := range repo.db.mark.table {
		if filter.SessionID != "" && m.SessionID != filter.SessionID {
			continue
		}
		if filter.StudentID != "" && m.StudentID != filter.StudentID {
			continue
		}
		if filter.SubjectID != "" && m.SubjectID != filter.SubjectID {
			continue
		}
		marks = append(marks, *m)
	}
	sort.Slice(marks, func(i, j int) bool { return marks[i].MarkedAt.After(marks[j].MarkedAt) })
	return marks, nil
}

func (repo *markRepository) CountMarks(ctx context.Context, filter attendance.MarkFilter) (int, error) {
	marks, err := repo.FilterMarks(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(marks), nil
}
