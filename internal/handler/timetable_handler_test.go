package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type timetableServiceMock struct {
	schoolID  string
	createdBy string
	classID   string
	day       int
	generate  dto.GenerateScheduleRequest
	history   dto.ChangeHistoryQuery
	year      int
	month     int
	err       error
}

func (m *timetableServiceMock) Generate(ctx context.Context, schoolID, createdBy string, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error) {
	m.schoolID, m.createdBy, m.generate = schoolID, createdBy, req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.GenerateScheduleResponse{SchoolID: schoolID, TotalSlots: 5, SavedSlots: 5}, nil
}

func (m *timetableServiceMock) Validate(ctx context.Context, req dto.ValidateScheduleRequest) (*dto.ValidationResult, error) {
	return &dto.ValidationResult{IsValid: true, TotalSlots: len(req.Slots)}, nil
}

func (m *timetableServiceMock) ValidateCurrent(ctx context.Context, schoolID string) (*dto.ValidationResult, error) {
	m.schoolID = schoolID
	return &dto.ValidationResult{IsValid: true}, nil
}

func (m *timetableServiceMock) ClassSchedule(ctx context.Context, schoolID, classID string) (*dto.ClassScheduleResponse, error) {
	m.schoolID, m.classID = schoolID, classID
	return &dto.ClassScheduleResponse{ClassID: classID}, m.err
}

func (m *timetableServiceMock) ClassScheduleByDay(ctx context.Context, schoolID, classID string, day int) (*dto.DayScheduleResponse, error) {
	m.schoolID, m.classID, m.day = schoolID, classID, day
	return &dto.DayScheduleResponse{Day: day, DayName: models.DayName(day)}, nil
}

func (m *timetableServiceMock) TeacherSchedule(ctx context.Context, schoolID, teacherID string) (*dto.TeacherScheduleResponse, error) {
	return &dto.TeacherScheduleResponse{TeacherID: teacherID}, nil
}

func (m *timetableServiceMock) TeacherScheduleByDay(ctx context.Context, schoolID, teacherID string, day int) (*dto.DayScheduleResponse, error) {
	m.day = day
	return &dto.DayScheduleResponse{Day: day}, nil
}

func (m *timetableServiceMock) SchoolSchedule(ctx context.Context, schoolID string) (*dto.SchoolScheduleResponse, error) {
	m.schoolID = schoolID
	return &dto.SchoolScheduleResponse{SchoolID: schoolID}, m.err
}

func (m *timetableServiceMock) Statistics(ctx context.Context, schoolID string) (*dto.ScheduleStatistics, error) {
	return &dto.ScheduleStatistics{}, nil
}

func (m *timetableServiceMock) ClassTeachers(ctx context.Context, schoolID, classID string) ([]dto.ClassTeacher, error) {
	return []dto.ClassTeacher{{TeacherID: "t1"}}, nil
}

func (m *timetableServiceMock) Historical(ctx context.Context, schoolID string, year, month int) (*dto.HistoricalSchedule, error) {
	m.schoolID, m.year, m.month = schoolID, year, month
	return &dto.HistoricalSchedule{SchoolID: schoolID, Year: year, Month: month, Status: dto.HistoricalStatusNotFound}, nil
}

func (m *timetableServiceMock) ChangeHistory(ctx context.Context, schoolID string, query dto.ChangeHistoryQuery) (*dto.ChangeHistory, error) {
	m.schoolID, m.history = schoolID, query
	return &dto.ChangeHistory{SchoolID: schoolID}, nil
}

func (m *timetableServiceMock) Versions(ctx context.Context, schoolID string) ([]dto.ScheduleVersionSummary, error) {
	return []dto.ScheduleVersionSummary{{VersionDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), IsCurrent: true}}, nil
}

func (m *timetableServiceMock) DeleteSchool(ctx context.Context, schoolID string) (*dto.DeleteScheduleResponse, error) {
	m.schoolID = schoolID
	return &dto.DeleteScheduleResponse{SchoolID: schoolID, DeletedCount: 12}, nil
}

type slotEditorMock struct {
	created dto.CreateSlotRequest
	deleted dto.DeleteSlotQuery
	err     error
}

func (m *slotEditorMock) Create(ctx context.Context, schoolID, createdBy string, req dto.CreateSlotRequest) (*models.TimetableEntry, error) {
	m.created = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.TimetableEntry{ID: "entry-1", SchoolID: schoolID, ClassID: req.ClassID}, nil
}

func (m *slotEditorMock) Delete(ctx context.Context, schoolID string, query dto.DeleteSlotQuery) (*dto.DeleteSlotResponse, error) {
	m.deleted = query
	if m.err != nil {
		return nil, m.err
	}
	return &dto.DeleteSlotResponse{SchoolID: schoolID, ClassID: query.ClassID, Day: *query.Day, Period: *query.Period}, nil
}

type exporterMock struct {
	query dto.ExportScheduleQuery
}

func (m *exporterMock) Export(ctx context.Context, schoolID string, query dto.ExportScheduleQuery) (*dto.ExportedFile, error) {
	m.query = query
	return &dto.ExportedFile{Filename: "timetable_school_20240101.csv", ContentType: "text/csv; charset=utf-8", Content: []byte("Day,Period\n")}, nil
}

func newTimetableRouter(h *TimetableHandler, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if claims != nil {
			c.Set(internalmiddleware.ContextUserKey, claims)
		}
		c.Next()
	})
	admin := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)

	schedules := router.Group("/schedules")
	schedules.POST("/generate", admin, h.Generate)
	schedules.GET("/class/:classId", h.ClassSchedule)
	schedules.GET("/class/:classId/day/:day", h.ClassScheduleByDay)
	schedules.GET("/class/:classId/teachers", h.ClassTeachers)
	schedules.GET("/teacher/:teacherId/day/:day", h.TeacherScheduleByDay)
	schedules.GET("/school", h.SchoolSchedule)
	schedules.GET("/historical", h.Historical)
	schedules.GET("/history", h.ChangeHistory)
	schedules.GET("/versions", h.Versions)
	schedules.POST("/validate", h.Validate)
	schedules.GET("/validate", h.ValidateCurrent)
	schedules.GET("/export", h.Export)
	schedules.POST("/slot", admin, h.CreateSlot)
	schedules.DELETE("/slot", admin, h.DeleteSlot)
	schedules.DELETE("", admin, h.DeleteSchool)
	return router
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin, SchoolID: "school-token"}
}

func serve(router *gin.Engine, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTimetableHandlerGenerate(t *testing.T) {
	svc := &timetableServiceMock{}
	router := newTimetableRouter(&TimetableHandler{timetables: svc}, adminClaims())

	w := serve(router, http.MethodPost, "/schedules/generate", []byte(`{"options":{"classes":[{"classId":"c1","subjects":[{"subjectId":"math","frequency":4}]}]}}`))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "school-token", svc.schoolID)
	assert.Equal(t, "admin-1", svc.createdBy)
	require.Len(t, svc.generate.Options.Classes, 1)
	assert.Equal(t, 4.0, svc.generate.Options.Classes[0].Subjects[0].Frequency)
}

func TestTimetableHandlerGenerateBodySchoolWins(t *testing.T) {
	svc := &timetableServiceMock{}
	router := newTimetableRouter(&TimetableHandler{timetables: svc}, adminClaims())

	w := serve(router, http.MethodPost, "/schedules/generate?schoolId=query-school", []byte(`{"schoolId":"body-school"}`))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "body-school", svc.schoolID)
}

func TestTimetableHandlerGenerateConflictCarriesDetails(t *testing.T) {
	conflicts := []dto.ScheduleIssue{{Type: "TEACHER_DOUBLE_BOOKING", Severity: "ERROR"}}
	svc := &timetableServiceMock{err: appErrors.WithDetails(appErrors.Clone(appErrors.ErrConflict, "generated timetable contains conflicts"), conflicts)}
	router := newTimetableRouter(&TimetableHandler{timetables: svc}, adminClaims())

	w := serve(router, http.MethodPost, "/schedules/generate", []byte(`{}`))

	require.Equal(t, http.StatusConflict, w.Code)
	var envelope struct {
		Error struct {
			Code    string              `json:"code"`
			Details []dto.ScheduleIssue `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "CONFLICT", envelope.Error.Code)
	require.Len(t, envelope.Error.Details, 1)
	assert.Equal(t, "TEACHER_DOUBLE_BOOKING", envelope.Error.Details[0].Type)
}

func TestTimetableHandlerGenerateForbiddenForTeachers(t *testing.T) {
	svc := &timetableServiceMock{}
	router := newTimetableRouter(&TimetableHandler{timetables: svc}, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})

	w := serve(router, http.MethodPost, "/schedules/generate", []byte(`{}`))

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, svc.schoolID)
}

func TestTimetableHandlerGenerateInvalidJSON(t *testing.T) {
	router := newTimetableRouter(&TimetableHandler{timetables: &timetableServiceMock{}}, adminClaims())

	w := serve(router, http.MethodPost, "/schedules/generate", []byte(`{"options":`))

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerClassSchedule(t *testing.T) {
	svc := &timetableServiceMock{}
	router := newTimetableRouter(&TimetableHandler{timetables: svc}, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent, SchoolID: "school-token"})

	w := serve(router, http.MethodGet, "/schedules/class/c1?schoolId=school-query", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "school-query", svc.schoolID)
	assert.Equal(t, "c1", svc.classID)
}

func TestTimetableHandlerDayParam(t *testing.T) {
	svc := &timetableServiceMock{}
	router := newTimetableRouter(&TimetableHandler{timetables: svc}, adminClaims())

	w := serve(router, http.MethodGet, "/schedules/class/c1/day/3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, svc.day)

	for _, day := range []string{"6", "-1", "monday"} {
		w = serve(router, http.MethodGet, "/schedules/teacher/t1/day/"+day, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, "day %s", day)
	}
}

func TestTimetableHandlerHistorical(t *testing.T) {
	svc := &timetableServiceMock{}
	router := newTimetableRouter(&TimetableHandler{timetables: svc}, adminClaims())

	w := serve(router, http.MethodGet, "/schedules/historical?year=2024&month=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2024, svc.year)
	assert.Equal(t, 2, svc.month)
	assert.Contains(t, w.Body.String(), `"status":"NOT_FOUND"`)

	w = serve(router, http.MethodGet, "/schedules/historical?year=abc&month=2", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerChangeHistory(t *testing.T) {
	svc := &timetableServiceMock{}
	router := newTimetableRouter(&TimetableHandler{timetables: svc}, adminClaims())

	w := serve(router, http.MethodGet, "/schedules/history?fromYear=2024&fromMonth=1&toYear=2024&toMonth=3", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ChangeHistoryQuery{FromYear: 2024, FromMonth: 1, ToYear: 2024, ToMonth: 3}, svc.history)
}

func TestTimetableHandlerVersionsMeta(t *testing.T) {
	router := newTimetableRouter(&TimetableHandler{timetables: &timetableServiceMock{}}, adminClaims())

	w := serve(router, http.MethodGet, "/schedules/versions", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)
}

func TestTimetableHandlerValidate(t *testing.T) {
	router := newTimetableRouter(&TimetableHandler{timetables: &timetableServiceMock{}}, nil)

	w := serve(router, http.MethodPost, "/schedules/validate", []byte(`{"slots":[{"day":0,"period":1,"teacherId":"t1","classId":"c1","subjectId":"math"}]}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"totalSlots":1`)

	w = serve(router, http.MethodGet, "/schedules/validate?schoolId=s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestTimetableHandlerServiceErrorStatus(t *testing.T) {
	svc := &timetableServiceMock{err: appErrors.Clone(appErrors.ErrValidation, "schoolId is required")}
	router := newTimetableRouter(&TimetableHandler{timetables: svc}, nil)

	w := serve(router, http.MethodGet, "/schedules/school", nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.schoolID)
}

func TestTimetableHandlerExport(t *testing.T) {
	exporter := &exporterMock{}
	router := newTimetableRouter(&TimetableHandler{exports: exporter}, adminClaims())

	w := serve(router, http.MethodGet, "/schedules/export?format=csv&classId=c1", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="timetable_school_20240101.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Day,Period\n", w.Body.String())
	assert.Equal(t, "c1", exporter.query.ClassID)
}

func TestTimetableHandlerCreateSlot(t *testing.T) {
	slots := &slotEditorMock{}
	router := newTimetableRouter(&TimetableHandler{slots: slots}, adminClaims())

	w := serve(router, http.MethodPost, "/schedules/slot", []byte(`{"classId":"c1","subjectId":"math","teacherId":"t1","day":0,"period":2}`))

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, slots.created.Day)
	assert.Equal(t, 0, *slots.created.Day)
	assert.Equal(t, 2, *slots.created.Period)
}

func TestTimetableHandlerCreateSlotConflict(t *testing.T) {
	slots := &slotEditorMock{err: service.ErrTeacherConflict}
	router := newTimetableRouter(&TimetableHandler{slots: slots}, adminClaims())

	w := serve(router, http.MethodPost, "/schedules/slot", []byte(`{"classId":"c1","subjectId":"math","teacherId":"t1","day":0,"period":2}`))

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "TEACHER_CONFLICT")
}

func TestTimetableHandlerDeleteSlot(t *testing.T) {
	slots := &slotEditorMock{}
	router := newTimetableRouter(&TimetableHandler{slots: slots}, adminClaims())

	w := serve(router, http.MethodDelete, "/schedules/slot?classId=c1&day=2&period=3", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"deletedCount":0`)
	assert.Equal(t, "c1", slots.deleted.ClassID)
	require.NotNil(t, slots.deleted.Day)
	assert.Equal(t, 2, *slots.deleted.Day)

	slots.err = appErrors.Clone(appErrors.ErrValidation, "invalid slot query")
	w = serve(router, http.MethodDelete, "/schedules/slot?classId=c1&day=9&period=3", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerDeleteSchool(t *testing.T) {
	svc := &timetableServiceMock{}
	router := newTimetableRouter(&TimetableHandler{timetables: svc}, adminClaims())

	w := serve(router, http.MethodDelete, "/schedules?schoolId=school-9", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "school-9", svc.schoolID)
	assert.Contains(t, w.Body.String(), `"deletedCount":12`)
}

type pingStub struct{ err error }

func (p pingStub) PingContext(context.Context) error { return p.err }

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	ok := NewMetricsHandler(nil, map[string]Pinger{"postgres": pingStub{}})
	down := NewMetricsHandler(nil, map[string]Pinger{"redis": pingStub{err: errors.New("refused")}})
	router.GET("/ready", ok.Ready)
	router.GET("/ready-down", down.Ready)
	router.GET("/health", ok.Health)
	router.GET("/metrics", ok.Prometheus)

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/ready", nil).Code)
	w := serve(router, http.MethodGet, "/ready-down", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_READY")
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(router, http.MethodGet, "/metrics", nil).Code)
}
