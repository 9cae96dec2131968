package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/mahudhurio/core/attendance"
)

type sessionRepository struct {
	db *sessionTable
}

var _ attendance.SessionRepository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) attendance.SessionRepository {
	return &sessionRepository{db: db.session}
}

func (repo *sessionRepository) query() []attendance.Session {
	sessions := make([]attendance.Session, 0, len(repo.db.table))
	for _, s := range repo.db.table {
		sessions = append(sessions, *s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].StartTime.After(sessions[j].StartTime) })
	return sessions
}

// CreateSession enforces the active-session constraints the way the real
// store's partial unique indexes do: the check and the insert happen under
// one table lock, so two racing creates cannot both succeed.
func (repo *sessionRepository) CreateSession(ctx context.Context, s attendance.Session) (attendance.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.table {
		if existing.Status != attendance.StatusActive {
			continue
		}
		if existing.SubjectID == s.SubjectID {
			return attendance.Session{}, attendance.ErrSessionExists
		}
		if existing.Code == s.Code {
			return attendance.Session{}, attendance.ErrCodeExists
		}
	}
	repo.db.table[s.ID] = &s
	return s, nil
}

func (repo *sessionRepository) GetSession(ctx context.Context, id string) (attendance.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.table[id]; ok {
		return *s, nil
	}
	return attendance.Session{}, attendance.ErrNotFound
}

func (repo *sessionRepository) GetActiveSessionBySubject(ctx context.Context, subjectID string) (attendance.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.table {
		if s.Status == attendance.StatusActive && s.SubjectID == subjectID {
			return *s, nil
		}
	}
	return attendance.Session{}, attendance.ErrNotFound
}

func (repo *sessionRepository) GetActiveSessionByCode(ctx context.Context, code string) (attendance.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.table {
		if s.Status == attendance.StatusActive && s.Code == code {
			return *s, nil
		}
	}
	return attendance.Session{}, attendance.ErrNotFound
}

func (repo *sessionRepository) ActiveCodeExists(ctx context.Context, code string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.table {
		if s.Status == attendance.StatusActive && s.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (repo *sessionRepository) TransitionSession(ctx context.Context, id string, from, to attendance.Status) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	s, ok := repo.db.table[id]
	if !ok {
		return false, attendance.ErrNotFound
	}
	if s.Status != from {
		return false, nil
	}
	s.Status = to
	s.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (repo *sessionRepository) ListOpenSessions(ctx context.Context, year, semester int, now time.Time) ([]attendance.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var open []attendance.Session
	for _, s := range repo.query() {
		if s.Status == attendance.StatusActive && s.Year == year && s.Semester == semester && s.ExpiryTime.After(now) {
			open = append(open, s)
		}
	}
	return open, nil
}

func (repo *sessionRepository) FilterSessions(ctx context.Context, filter attendance.QueryFilter) ([]attendance.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var sessions []attendance.Session
	for _, s := range repo.query() {
		if matches(s, filter) {
			sessions = append(sessions, s)
		}
	}
	return sessions, nil
}

func (repo *sessionRepository) CountSessions(ctx context.Context, filter attendance.QueryFilter) (int, error) {
	sessions, err := repo.FilterSessions(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(sessions), nil
}

func matches(s attendance.Session, filter attendance.QueryFilter) bool {
	if filter.TeacherID != "" && s.TeacherID != filter.TeacherID {
		return false
	}
	if filter.SubjectID != "" && s.SubjectID != filter.SubjectID {
		return false
	}
	if filter.Year != 0 && s.Year != filter.Year {
		return false
	}
	if filter.Semester != 0 && s.Semester != filter.Semester {
		return false
	}
	if filter.Status != "" && s.Status != filter.Status {
		return false
	}
	if filter.Finished && s.Status == attendance.StatusActive {
		return false
	}
	if !filter.StartedFrom.IsZero() && s.StartTime.Before(filter.StartedFrom) {
		return false
	}
	if !filter.StartedTo.IsZero() && s.StartTime.After(filter.StartedTo) {
		return false
	}
	return true
}
