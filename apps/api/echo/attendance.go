package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

type attendanceApi struct {
	svc         *attendance.Service
	broadcaster *attendance.Broadcaster
	logger      core.Logger
}

func registerAttendanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *attendance.Service,
	broadcaster *attendance.Broadcaster,
	logger core.Logger,
) {
	api := attendanceApi{svc: svc, broadcaster: broadcaster, logger: logger}

	teacher := teacherMiddleware()
	student := studentMiddleware()

	ag := g.Group("/attendance", jwt)

	// teacher endpoints
	ag.POST("/sessions", api.start, teacher)
	ag.GET("/sessions/active/:subjectId", api.active, teacher)
	ag.POST("/sessions/:id/end", api.end, teacher)
	ag.GET("/sessions/:id/records", api.records, teacher)
	ag.GET("/sessions/:id/live", api.live, teacher)
	ag.GET("/history", api.history, teacher)
	ag.GET("/stats/subjects/:subjectId", api.subjectStats, teacher)

	// student endpoints
	ag.GET("/sessions/open", api.listOpen, student)
	ag.POST("/marks", api.mark, student)
	ag.GET("/marks/history", api.markHistory, student)
	ag.GET("/stats", api.studentStats, student)
}

// Handlers

func (api *attendanceApi) start(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data StartSessionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StartSessionRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	s, created, err := api.svc.Start(ctx.Request().Context(), claims.Subject, data.SubjectID, data.Year, data.Semester)
	if err != nil {
		return errors.Wrap(err, "starting session")
	}
	if created {
		return ctx.JSON(http.StatusCreated, s)
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *attendanceApi) active(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	s, err := api.svc.GetActive(ctx.Request().Context(), ctx.Param("subjectId"))
	if err != nil {
		return errors.Wrap(err, "finding active session")
	}
	if s.TeacherID != claims.Subject {
		return attendance.ErrNotFound
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *attendanceApi) end(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	if err := api.svc.End(ctx.Request().Context(), ctx.Param("id"), claims.Subject); err != nil {
		return errors.Wrap(err, "ending session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) records(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	records, err := api.svc.SessionRecords(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying session records")
	}
	if records == nil {
		records = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) history(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var query HistoryRequest
	if err := ctx.Bind(&query); err != nil {
		return ctx.JSON(http.StatusOK, []attendance.Session{})
	}
	filter, err := query.Filter()
	if err != nil {
		return err
	}

	sessions, err := api.svc.TeacherHistory(ctx.Request().Context(), claims.Subject, filter)
	if err != nil {
		return errors.Wrap(err, "querying session history")
	}
	if sessions == nil {
		sessions = []attendance.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *attendanceApi) subjectStats(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	stats, err := api.svc.SubjectStats(ctx.Request().Context(), claims.Subject, ctx.Param("subjectId"))
	if err != nil {
		return errors.Wrap(err, "querying subject stats")
	}
	if stats.Students == nil {
		stats.Students = []attendance.SubjectStudentStat{}
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *attendanceApi) listOpen(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	sessions, err := api.svc.ListOpen(ctx.Request().Context(), claims.Year, claims.Semester)
	if err != nil {
		return errors.Wrap(err, "querying open sessions")
	}
	if sessions == nil {
		sessions = []attendance.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *attendanceApi) mark(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data MarkRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	mark, err := api.svc.Mark(ctx.Request().Context(), data.SessionCode, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusCreated, mark)
}

func (api *attendanceApi) markHistory(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	marks, err := api.svc.StudentHistory(ctx.Request().Context(), claims.Subject, ctx.QueryParam("subject_id"))
	if err != nil {
		return errors.Wrap(err, "querying mark history")
	}
	if marks == nil {
		marks = []attendance.Mark{}
	}
	return ctx.JSON(http.StatusOK, marks)
}

func (api *attendanceApi) studentStats(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	stats, err := api.svc.StudentStats(ctx.Request().Context(), claims.Subject, claims.Year, claims.Semester)
	if err != nil {
		return errors.Wrap(err, "querying student stats")
	}
	if stats.Subjects == nil {
		stats.Subjects = []attendance.StudentSubjectStat{}
	}
	return ctx.JSON(http.StatusOK, stats)
}

type (
	StartSessionRequest struct {
		SubjectID string `json:"subject_id" validate:"required"`
		Year      int    `json:"year" validate:"required,oneof=1 2 3"`
		Semester  int    `json:"semester" validate:"required,oneof=1 2 3 4 5 6"`
	}

	MarkRequest struct {
		SessionCode string `json:"session_code" validate:"required,len=4,numeric"`
	}

	HistoryRequest struct {
		SubjectID string `query:"subject_id"`
		Year      int    `query:"year"`
		Semester  int    `query:"semester"`
		Status    string `query:"status"`
		From      string `query:"from"` // RFC 3339
		To        string `query:"to"`   // RFC 3339
	}
)

func (sr *StartSessionRequest) Validate() error {
	sr.SubjectID = core.CleanString(sr.SubjectID)
	return core.Validate.Struct(sr)
}

func (mr *MarkRequest) Validate() error {
	mr.SessionCode = core.CleanString(mr.SessionCode)
	return core.Validate.Struct(mr)
}

// Filter maps the bound query params to an attendance.QueryFilter.
func (hr *HistoryRequest) Filter() (attendance.QueryFilter, error) {
	filter := attendance.QueryFilter{
		SubjectID: core.CleanString(hr.SubjectID),
		Year:      hr.Year,
		Semester:  hr.Semester,
		Status:    attendance.Status(core.CleanString(hr.Status, true /* lower */)),
	}
	if hr.From != "" {
		from, err := time.Parse(time.RFC3339, hr.From)
		if err != nil {
			return filter, core.NewValidationError(err, core.FieldError{Field: "from", Error: "invalid RFC 3339 timestamp"})
		}
		filter.StartedFrom = from.UTC()
	}
	if hr.To != "" {
		to, err := time.Parse(time.RFC3339, hr.To)
		if err != nil {
			return filter, core.NewValidationError(err, core.FieldError{Field: "to", Error: "invalid RFC 3339 timestamp"})
		}
		filter.StartedTo = to.UTC()
	}
	return filter, nil
}
