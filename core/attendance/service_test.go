package attendance_test

import (
	"context"
	"io/ioutil"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/subject"
	"github.com/trezcool/mahudhurio/core/user"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
	dummydb "github.com/trezcool/mahudhurio/storage/database/dummy"
	testutil "github.com/trezcool/mahudhurio/tests"
)

type env struct {
	svc         *attendance.Service
	sessions    attendance.SessionRepository
	marks       attendance.MarkRepository
	subjects    subject.Repository
	broadcaster *attendance.Broadcaster

	teacher user.User
	student user.User
	subject subject.Subject
}

func setup(t *testing.T) *env {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	sessionRepo := dummydb.NewSessionRepository(db)
	markRepo := dummydb.NewMarkRepository(db)
	subjectRepo := dummydb.NewSubjectRepository(db)
	userRepo := dummydb.NewUserRepository(db)

	broadcaster := attendance.NewBroadcaster()
	logger := logsvc.NewStdLogger(log.New(ioutil.Discard, "", 0))
	svc := attendance.NewService(sessionRepo, markRepo, subjectRepo, userRepo, broadcaster, logger)

	return &env{
		svc:         svc,
		sessions:    sessionRepo,
		marks:       markRepo,
		subjects:    subjectRepo,
		broadcaster: broadcaster,
		teacher:     testutil.CreateTeacher(t, userRepo, "Teacher", "teacher@test.cd"),
		student:     testutil.CreateStudent(t, userRepo, "Student", "student@test.cd", "bca042", 2, 3),
		subject:     testutil.CreateSubject(t, subjectRepo, "Data Structures", "bca301", 2, 3, true),
	}
}

// freezeTime pins the service clock to a settable instant.
func freezeTime(t *testing.T) func(time.Time) {
	t.Helper()

	var mu sync.Mutex
	now := time.Now().UTC()
	attendance.NowFunc = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	t.Cleanup(func() { attendance.NowFunc = time.Now })

	return func(tm time.Time) {
		mu.Lock()
		defer mu.Unlock()
		now = tm
	}
}

func drainEvents(sub *attendance.Subscription) []attendance.Event {
	var events []attendance.Event
	for {
		select {
		case ev := <-sub.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestServiceStart(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	s, created, err := e.svc.Start(ctx, e.teacher.ID, e.subject.ID, 2, 3)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !created {
		t.Error("Start() created = false; want true")
	}
	if len(s.Code) != 4 {
		t.Errorf("Start() code = %q; want 4 digits", s.Code)
	}
	if s.Status != attendance.StatusActive {
		t.Errorf("Start() status = %s; want active", s.Status)
	}
	if want := s.StartTime.Add(core.Conf.Attendance.SessionWindow); !s.ExpiryTime.Equal(want) {
		t.Errorf("Start() expiry = %s; want %s", s.ExpiryTime, want)
	}

	// a teacher re-opening the screen gets the same session back
	s2, created, err := e.svc.Start(ctx, e.teacher.ID, e.subject.ID, 2, 3)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if created {
		t.Error("Start() created = true on re-entry; want false")
	}
	if s2.ID != s.ID || s2.Code != s.Code {
		t.Errorf("Start() re-entry returned a different session: %+v vs %+v", s2, s)
	}
}

func TestServiceStartSubjectValidation(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	inactive := testutil.CreateSubject(t, e.subjects, "Old Subject", "bca999", 2, 3, false)

	tests := []struct {
		name           string
		subjectID      string
		year, semester int
	}{
		{name: "unknown subject", subjectID: "nope", year: 2, semester: 3},
		{name: "wrong year", subjectID: e.subject.ID, year: 1, semester: 3},
		{name: "wrong semester", subjectID: e.subject.ID, year: 2, semester: 4},
		{name: "inactive subject", subjectID: inactive.ID, year: 2, semester: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := e.svc.Start(ctx, e.teacher.ID, tt.subjectID, tt.year, tt.semester); err != subject.ErrNotFound {
				t.Errorf("Start() error = %v, want %v", err, subject.ErrNotFound)
			}
		})
	}
}

func TestServiceStartConcurrent(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	const workers = 20
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		createdCnt  int
		sessionIDs  = make(map[string]bool)
		sessionCode = make(map[string]bool)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, created, err := e.svc.Start(ctx, e.teacher.ID, e.subject.ID, 2, 3)
			if err != nil {
				t.Errorf("Start() error = %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if created {
				createdCnt++
			}
			sessionIDs[s.ID] = true
			sessionCode[s.Code] = true
		}()
	}
	wg.Wait()

	if createdCnt != 1 {
		t.Errorf("created count = %d; want 1", createdCnt)
	}
	if len(sessionIDs) != 1 || len(sessionCode) != 1 {
		t.Errorf("got %d session IDs and %d codes; want 1 each", len(sessionIDs), len(sessionCode))
	}
}

func TestServiceStartAfterExpiry(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	setNow := freezeTime(t)

	s1, _, err := e.svc.Start(ctx, e.teacher.ID, e.subject.ID, 2, 3)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	sub := e.broadcaster.Subscribe(s1.ID)
	defer sub.Close()

	setNow(s1.ExpiryTime) // the window closes at expiry, exactly

	s2, created, err := e.svc.Start(ctx, e.teacher.ID, e.subject.ID, 2, 3)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !created || s2.ID == s1.ID {
		t.Errorf("Start() after expiry: created = %v, id = %s; want a new session", created, s2.ID)
	}

	old, err := e.sessions.GetSession(ctx, s1.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if old.Status != attendance.StatusExpired {
		t.Errorf("old session status = %s; want expired", old.Status)
	}

	events := drainEvents(sub)
	if len(events) != 1 || events[0].Type != attendance.EventSessionExpired {
		t.Errorf("events = %+v; want a single session_expired", events)
	}
}

func TestServiceGetActive(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	setNow := freezeTime(t)

	if _, err := e.svc.GetActive(ctx, e.subject.ID); err != attendance.ErrNotFound {
		t.Errorf("GetActive() error = %v, want %v", err, attendance.ErrNotFound)
	}

	s, _, err := e.svc.Start(ctx, e.teacher.ID, e.subject.ID, 2, 3)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	got, err := e.svc.GetActive(ctx, e.subject.ID)
	if err != nil {
		t.Fatalf("GetActive() error = %v", err)
	}
	if got.ID != s.ID {
		t.Errorf("GetActive() id = %s; want %s", got.ID, s.ID)
	}

	// one millisecond before expiry the window is still open
	setNow(s.ExpiryTime.Add(-time.Millisecond))
	if _, err = e.svc.GetActive(ctx, e.subject.ID); err != nil {
		t.Errorf("GetActive() just before expiry error = %v", err)
	}

	// at expiry it is gone, and the stale row is transitioned as a side effect
	setNow(s.ExpiryTime)
	if _, err = e.svc.GetActive(ctx, e.subject.ID); err != attendance.ErrNotFound {
		t.Errorf("GetActive() at expiry error = %v, want %v", err, attendance.ErrNotFound)
	}
	expired, err := e.sessions.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if expired.Status != attendance.StatusExpired {
		t.Errorf("session status = %s; want expired", expired.Status)
	}
}

func TestServiceMark(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	setNow := freezeTime(t)

	if _, err := e.svc.Mark(ctx, "0000", e.student.ID); err != attendance.ErrInvalidCode {
		t.Errorf("Mark() error = %v, want %v", err, attendance.ErrInvalidCode)
	}

	s, _, err := e.svc.Start(ctx, e.teacher.ID, e.subject.ID, 2, 3)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	sub := e.broadcaster.Subscribe(s.ID)
	defer sub.Close()

	mark, err := e.svc.Mark(ctx, s.Code, e.student.ID)
	if err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	if mark.SessionID != s.ID || mark.SubjectID != s.SubjectID {
		t.Errorf("Mark() = %+v; want session %s subject %s", mark, s.ID, s.SubjectID)
	}

	// the live event carries student display info
	events := drainEvents(sub)
	if len(events) != 1 {
		t.Fatalf("events = %+v; want 1", events)
	}
	if ev := events[0]; ev.Type != attendance.EventMarked || ev.StudentName != e.student.Name || ev.RollNumber != e.student.RollNumber {
		t.Errorf("event = %+v; want marked event for %s", ev, e.student.Name)
	}

	// the second redemption of the same code is rejected
	if _, err = e.svc.Mark(ctx, s.Code, e.student.ID); err != attendance.ErrAlreadyMarked {
		t.Errorf("Mark() error = %v, want %v", err, attendance.ErrAlreadyMarked)
	}

	refreshed, err := e.sessions.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if refreshed.PresentCount != 1 {
		t.Errorf("present count = %d; want 1", refreshed.PresentCount)
	}

	// the window closes at expiry, exactly
	setNow(s.ExpiryTime)
	other := "another-student"
	if _, err = e.svc.Mark(ctx, s.Code, other); err != attendance.ErrSessionExpired {
		t.Errorf("Mark() at expiry error = %v, want %v", err, attendance.ErrSessionExpired)
	}
}

func TestServiceMarkConcurrentSameStudent(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	s, _, err := e.svc.Start(ctx, e.teacher.ID, e.subject.ID, 2, 3)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	const workers = 100
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		marked  int
		already int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.svc.Mark(ctx, s.Code, e.student.ID)
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				marked++
			case attendance.ErrAlreadyMarked:
				already++
			default:
				t.Errorf("Mark() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if marked != 1 || already != workers-1 {
		t.Errorf("marked = %d, already = %d; want 1 and %d", marked, already, workers-1)
	}
	refreshed, err := e.sessions.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if refreshed.PresentCount != 1 {
		t.Errorf("present count = %d; want 1", refreshed.PresentCount)
	}
}

func TestServiceEnd(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	s, _, err := e.svc.Start(ctx, e.teacher.ID, e.subject.ID, 2, 3)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	sub := e.broadcaster.Subscribe(s.ID)
	defer sub.Close()

	// only the owner can end it
	if err = e.svc.End(ctx, s.ID, "another-teacher"); err != attendance.ErrNotFound {
		t.Errorf("End() error = %v, want %v", err, attendance.ErrNotFound)
	}

	if err = e.svc.End(ctx, s.ID, e.teacher.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	ended, err := e.sessions.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if ended.Status != attendance.StatusEnded {
		t.Errorf("session status = %s; want ended", ended.Status)
	}

	// ending again is a no-op success without a duplicate event
	if err = e.svc.End(ctx, s.ID, e.teacher.ID); err != nil {
		t.Errorf("End() again error = %v", err)
	}
	events := drainEvents(sub)
	if len(events) != 1 || events[0].Type != attendance.EventSessionEnded {
		t.Errorf("events = %+v; want a single session_ended", events)
	}
}

func TestServiceListOpen(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	setNow := freezeTime(t)

	otherSub := testutil.CreateSubject(t, e.subjects, "Thermodynamics", "me201", 1, 2, true)

	s1, _, err := e.svc.Start(ctx, e.teacher.ID, e.subject.ID, 2, 3)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, _, err = e.svc.Start(ctx, e.teacher.ID, otherSub.ID, 1, 2); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	open, err := e.svc.ListOpen(ctx, 2, 3)
	if err != nil {
		t.Fatalf("ListOpen() error = %v", err)
	}
	if len(open) != 1 || open[0].ID != s1.ID {
		t.Errorf("ListOpen() = %+v; want only session %s", open, s1.ID)
	}

	setNow(s1.ExpiryTime)
	open, err = e.svc.ListOpen(ctx, 2, 3)
	if err != nil {
		t.Fatalf("ListOpen() error = %v", err)
	}
	if len(open) != 0 {
		t.Errorf("ListOpen() after expiry = %+v; want none", open)
	}
}

func TestServiceStats(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	s, _, err := e.svc.Start(ctx, e.teacher.ID, e.subject.ID, 2, 3)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err = e.svc.Mark(ctx, s.Code, e.student.ID); err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	if err = e.svc.End(ctx, s.ID, e.teacher.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}

	stats, err := e.svc.SubjectStats(ctx, e.teacher.ID, e.subject.ID)
	if err != nil {
		t.Fatalf("SubjectStats() error = %v", err)
	}
	if stats.TotalSessions != 1 || stats.TotalStudents != 1 {
		t.Errorf("SubjectStats() = %+v; want 1 session, 1 student", stats)
	}
	if st := stats.Students[0]; st.Present != 1 || st.Percentage != 100 {
		t.Errorf("student stat = %+v; want 1 present at 100%%", st)
	}

	sStats, err := e.svc.StudentStats(ctx, e.student.ID, 2, 3)
	if err != nil {
		t.Fatalf("StudentStats() error = %v", err)
	}
	if sStats.Attended != 1 || sStats.Total != 1 || sStats.Percentage != 100 {
		t.Errorf("StudentStats() = %+v; want 1/1 at 100%%", sStats)
	}

	history, err := e.svc.TeacherHistory(ctx, e.teacher.ID, attendance.QueryFilter{SubjectID: e.subject.ID})
	if err != nil {
		t.Fatalf("TeacherHistory() error = %v", err)
	}
	if len(history) != 1 || history[0].PresentCount != 1 {
		t.Errorf("TeacherHistory() = %+v; want 1 session with 1 present", history)
	}

	marks, err := e.svc.StudentHistory(ctx, e.student.ID, "")
	if err != nil {
		t.Fatalf("StudentHistory() error = %v", err)
	}
	if len(marks) != 1 || marks[0].SessionID != s.ID {
		t.Errorf("StudentHistory() = %+v; want the single mark", marks)
	}
}
