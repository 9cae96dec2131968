package attendance

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/subject"
	"github.com/trezcool/mahudhurio/core/user"
)

var NowFunc = time.Now // mockable

// createAttempts bounds retries when a freshly drawn code loses a race
// against another subject's concurrent start.
const createAttempts = 3

type (
	SessionRepository interface {
		// CreateSession persists a new session. The storage layer enforces
		// at most one active session per subject (ErrSessionExists) and
		// code uniqueness among active sessions (ErrCodeExists).
		CreateSession(ctx context.Context, s Session) (Session, error)
		GetSession(ctx context.Context, id string) (Session, error)
		GetActiveSessionBySubject(ctx context.Context, subjectID string) (Session, error)
		GetActiveSessionByCode(ctx context.Context, code string) (Session, error)
		ActiveCodeExists(ctx context.Context, code string) (bool, error)
		// TransitionSession conditionally moves a session from one status to
		// another and reports whether this call performed the transition.
		TransitionSession(ctx context.Context, id string, from, to Status) (bool, error)
		// ListOpenSessions returns active sessions with expiry_time > now
		// matching year/semester, newest first.
		ListOpenSessions(ctx context.Context, year, semester int, now time.Time) ([]Session, error)
		// FilterSessions applies AND operation on available QueryFilter fields, newest first.
		FilterSessions(ctx context.Context, filter QueryFilter) ([]Session, error)
		CountSessions(ctx context.Context, filter QueryFilter) (int, error)
	}

	// MarkRepository is the exactly-once ledger of (session, student) marks.
	MarkRepository interface {
		// CreateMark atomically inserts the mark unless one already exists for
		// (SessionID, StudentID): under arbitrary concurrent callers exactly one
		// observes inserted=true. A successful insert increments the session's
		// present count within the same storage operation.
		CreateMark(ctx context.Context, mark Mark) (inserted bool, err error)
		// FilterMarks applies AND operation on available MarkFilter fields, newest first.
		FilterMarks(ctx context.Context, filter MarkFilter) ([]Mark, error)
		CountMarks(ctx context.Context, filter MarkFilter) (int, error)
	}

	Service struct {
		repo        SessionRepository
		marks       MarkRepository
		subjectRepo subject.Repository
		userRepo    user.Repository
		broadcaster *Broadcaster
		logger      core.Logger

		window       time.Duration
		codeAttempts int

		startMu subjectLocks
	}
)

func NewService(
	repo SessionRepository,
	marks MarkRepository,
	subjectRepo subject.Repository,
	userRepo user.Repository,
	broadcaster *Broadcaster,
	logger core.Logger,
) *Service {
	return &Service{
		repo:         repo,
		marks:        marks,
		subjectRepo:  subjectRepo,
		userRepo:     userRepo,
		broadcaster:  broadcaster,
		logger:       logger,
		window:       core.Conf.Attendance.SessionWindow,
		codeAttempts: core.Conf.Attendance.CodeMaxAttempts,
	}
}

// Start opens an attendance window for a subject. If an active, non-expired
// session already exists for the subject it is returned unchanged (a teacher
// re-opening the same screen must not spawn a duplicate code); `created`
// reports whether a new session was opened. The read-existing-or-create
// sequence is serialized per subject; the storage constraints back it up.
func (svc *Service) Start(ctx context.Context, teacherID, subjectID string, year, semester int) (s Session, created bool, err error) {
	unlock := svc.startMu.lock(subjectID)
	defer unlock()

	if s, err = svc.repo.GetActiveSessionBySubject(ctx, subjectID); err == nil {
		if NowFunc().UTC().Before(s.ExpiryTime) {
			return s, false, nil
		}
		svc.expire(ctx, s)
	} else if errors.Cause(err) != ErrNotFound {
		return Session{}, false, err
	}

	sub, err := svc.subjectRepo.GetSubject(ctx, subjectID)
	if err != nil {
		return Session{}, false, err
	}
	if !sub.IsActive || sub.Year != year || sub.Semester != semester {
		return Session{}, false, subject.ErrNotFound
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		var code string
		if code, err = svc.reserveCode(ctx); err != nil {
			return Session{}, false, err
		}

		now := NowFunc().UTC()
		s = Session{
			ID:         uuid.New().String(),
			SubjectID:  subjectID,
			TeacherID:  teacherID,
			Code:       code,
			Year:       year,
			Semester:   semester,
			StartTime:  now,
			ExpiryTime: now.Add(svc.window),
			Status:     StatusActive,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		s, err = svc.repo.CreateSession(ctx, s)
		switch errors.Cause(err) {
		case nil:
			return s, true, nil
		case ErrSessionExists:
			// lost a creation race (another node); reuse the winner's session
			s, err = svc.repo.GetActiveSessionBySubject(ctx, subjectID)
			return s, false, err
		case ErrCodeExists:
			continue // another subject grabbed the code in between; redraw
		default:
			return Session{}, false, err
		}
	}
	return Session{}, false, ErrCodeSpaceExhausted
}

func (svc *Service) reserveCode(ctx context.Context) (string, error) {
	var checkErr error
	code, err := GenerateCode(func(code string) bool {
		taken, err := svc.repo.ActiveCodeExists(ctx, code)
		if err != nil {
			checkErr = err
			return true
		}
		return taken
	}, svc.codeAttempts)
	if checkErr != nil {
		return "", checkErr
	}
	return code, err
}

// GetActive returns the subject's active session if it is still fresh.
// A session found past its expiry is transitioned to expired as a side
// effect before ErrNotFound is reported (lazy expiry).
func (svc *Service) GetActive(ctx context.Context, subjectID string) (Session, error) {
	s, err := svc.repo.GetActiveSessionBySubject(ctx, subjectID)
	if err != nil {
		return Session{}, err
	}
	if !NowFunc().UTC().Before(s.ExpiryTime) {
		svc.expire(ctx, s)
		return Session{}, ErrNotFound
	}
	return s, nil
}

// GetSession returns the session if it belongs to the requesting teacher.
func (svc *Service) GetSession(ctx context.Context, id, teacherID string) (Session, error) {
	s, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if s.TeacherID != teacherID {
		return Session{}, ErrNotFound
	}
	return s, nil
}

// End terminates the teacher's session regardless of expiry. Ending an
// already-terminal session is a no-op success and emits no duplicate event.
func (svc *Service) End(ctx context.Context, id, teacherID string) error {
	s, err := svc.GetSession(ctx, id, teacherID)
	if err != nil {
		return err
	}
	if s.Status != StatusActive {
		return nil
	}

	moved, err := svc.repo.TransitionSession(ctx, s.ID, StatusActive, StatusEnded)
	if err != nil {
		return err
	}
	if moved {
		svc.broadcaster.Publish(s.ID, Event{Type: EventSessionEnded})
	}
	return nil
}

// ListOpen returns the open attendance windows a student of the given
// year/semester can redeem right now.
func (svc *Service) ListOpen(ctx context.Context, year, semester int) ([]Session, error) {
	return svc.repo.ListOpenSessions(ctx, year, semester, NowFunc().UTC())
}

// Mark redeems a session code for a student, exactly once per session.
func (svc *Service) Mark(ctx context.Context, sessionCode, studentID string) (Mark, error) {
	s, err := svc.repo.GetActiveSessionByCode(ctx, core.CleanString(sessionCode))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Mark{}, ErrInvalidCode
		}
		return Mark{}, err
	}

	now := NowFunc().UTC()
	if !now.Before(s.ExpiryTime) {
		svc.expire(ctx, s)
		return Mark{}, ErrSessionExpired
	}

	mark := Mark{
		ID:        uuid.New().String(),
		SessionID: s.ID,
		StudentID: studentID,
		SubjectID: s.SubjectID,
		MarkedAt:  now,
	}
	inserted, err := svc.marks.CreateMark(ctx, mark)
	if err != nil {
		return Mark{}, err
	}
	if !inserted {
		return Mark{}, ErrAlreadyMarked
	}

	ev := Event{Type: EventMarked, StudentID: studentID, MarkedAt: now}
	if usr, err := svc.userRepo.GetUser(ctx, user.GetFilter{ID: studentID}); err == nil {
		ev.StudentName = usr.Name
		ev.RollNumber = usr.RollNumber
	}
	svc.broadcaster.Publish(s.ID, ev)

	return mark, nil
}

// SessionRecords returns the marks of the teacher's session with student
// display info, newest first.
func (svc *Service) SessionRecords(ctx context.Context, id, teacherID string) ([]Record, error) {
	s, err := svc.GetSession(ctx, id, teacherID)
	if err != nil {
		return nil, err
	}

	marks, err := svc.marks.FilterMarks(ctx, MarkFilter{SessionID: s.ID})
	if err != nil {
		return nil, err
	}
	return svc.decorate(ctx, marks), nil
}

// TeacherHistory returns the teacher's past and present sessions with their
// present counts; the filter narrows by subject/year/semester/date range.
func (svc *Service) TeacherHistory(ctx context.Context, teacherID string, filter QueryFilter) ([]Session, error) {
	filter.TeacherID = teacherID
	return svc.repo.FilterSessions(ctx, filter)
}

// StudentHistory returns the student's marks, newest first.
func (svc *Service) StudentHistory(ctx context.Context, studentID, subjectID string) ([]Mark, error) {
	return svc.marks.FilterMarks(ctx, MarkFilter{StudentID: studentID, SubjectID: subjectID})
}

// SubjectStats aggregates per-student presence counts for a teacher's
// subject against the number of finished sessions.
func (svc *Service) SubjectStats(ctx context.Context, teacherID, subjectID string) (SubjectStats, error) {
	total, err := svc.repo.CountSessions(ctx, QueryFilter{TeacherID: teacherID, SubjectID: subjectID, Finished: true})
	if err != nil {
		return SubjectStats{}, err
	}

	marks, err := svc.marks.FilterMarks(ctx, MarkFilter{SubjectID: subjectID})
	if err != nil {
		return SubjectStats{}, err
	}

	byStudent := make(map[string]*SubjectStudentStat)
	order := make([]string, 0)
	for _, m := range marks {
		stat, ok := byStudent[m.StudentID]
		if !ok {
			stat = &SubjectStudentStat{StudentID: m.StudentID, Total: total}
			if usr, err := svc.userRepo.GetUser(ctx, user.GetFilter{ID: m.StudentID}); err == nil {
				stat.Name = usr.Name
				stat.RollNumber = usr.RollNumber
			}
			byStudent[m.StudentID] = stat
			order = append(order, m.StudentID)
		}
		stat.Present++
	}

	stats := SubjectStats{TotalSessions: total, TotalStudents: len(order)}
	for _, id := range order {
		stat := byStudent[id]
		stat.Percentage = percentage(stat.Present, total)
		stats.Students = append(stats.Students, *stat)
	}
	return stats, nil
}

// StudentStats aggregates the student's attended/total counts per active
// subject of their year/semester, plus an overall figure.
func (svc *Service) StudentStats(ctx context.Context, studentID string, year, semester int) (StudentStats, error) {
	subjects, err := svc.subjectRepo.FilterSubjects(ctx, subject.QueryFilter{Year: year, Semester: semester, ActiveOnly: true})
	if err != nil {
		return StudentStats{}, err
	}

	var stats StudentStats
	for _, sub := range subjects {
		total, err := svc.repo.CountSessions(ctx, QueryFilter{SubjectID: sub.ID, Finished: true})
		if err != nil {
			return StudentStats{}, err
		}
		attended, err := svc.marks.CountMarks(ctx, MarkFilter{StudentID: studentID, SubjectID: sub.ID})
		if err != nil {
			return StudentStats{}, err
		}
		stats.Subjects = append(stats.Subjects, StudentSubjectStat{
			SubjectID:   sub.ID,
			SubjectName: sub.Name,
			SubjectCode: sub.Code,
			Attended:    attended,
			Total:       total,
			Percentage:  percentage(attended, total),
		})
		stats.Attended += attended
		stats.Total += total
	}
	stats.Percentage = percentage(stats.Attended, stats.Total)
	return stats, nil
}

// expire performs the lazy active -> expired transition. The conditional
// transition decides a single winner, so the terminal event is published
// exactly once no matter how many readers observe the stale session.
func (svc *Service) expire(ctx context.Context, s Session) {
	moved, err := svc.repo.TransitionSession(ctx, s.ID, StatusActive, StatusExpired)
	if err != nil {
		svc.logger.Error("expiring session", err, map[string]interface{}{"session": s.ID})
		return
	}
	if moved {
		svc.broadcaster.Publish(s.ID, Event{Type: EventSessionExpired})
	}
}

func (svc *Service) decorate(ctx context.Context, marks []Mark) []Record {
	records := make([]Record, 0, len(marks))
	for _, m := range marks {
		rec := Record{Mark: m}
		if usr, err := svc.userRepo.GetUser(ctx, user.GetFilter{ID: m.StudentID}); err == nil {
			rec.StudentName = usr.Name
			rec.RollNumber = usr.RollNumber
		}
		records = append(records, rec)
	}
	return records
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*10000) / 100
}

// subjectLocks hands out one mutex per subject id so concurrent Start calls
// for the same subject serialize while distinct subjects proceed in parallel.
// Entries are never evicted; the set is bounded by the subject catalog.
type subjectLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *subjectLocks) lock(subjectID string) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[subjectID]
	if !ok {
		m = new(sync.Mutex)
		l.locks[subjectID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
