package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type busyLocker struct{}

func (busyLocker) TryLock(ctx context.Context, schoolID string) (func(), bool, error) {
	return nil, false, nil
}

type timetableHarness struct {
	svc         *TimetableService
	store       *memoryTimetableStore
	assignments *stubAssignments
	metrics     *MetricsService
	clock       *time.Time
}

func newTimetableHarness(t *testing.T, items []models.TeachingAssignmentDetail, commits int) *timetableHarness {
	t.Helper()
	db, mock := newTxMock(t)
	for i := 0; i < commits; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })

	store := newMemoryTimetableStore(items)
	assignments := &stubAssignments{items: items}
	metrics := NewMetricsService()
	svc := NewTimetableService(assignments, store, db, nil, metrics, nil, nil, TimetableConfig{Seed: 11, MaxDailyRepeats: 2})
	svc.newOffsets = func(int64) periodOffsetSource { return fixedOffsets(0) }

	clock := fixedNow
	h := &timetableHarness{svc: svc, store: store, assignments: assignments, metrics: metrics, clock: &clock}
	svc.now = func() time.Time { return *h.clock }
	return h
}

func twoSubjectAssignments() []models.TeachingAssignmentDetail {
	return []models.TeachingAssignmentDetail{
		withCredit(assignment("c1", "math", "t1"), 3),
		withCredit(assignment("c1", "art", "t2"), 2),
	}
}

func TestTimetableServiceGenerate(t *testing.T) {
	h := newTimetableHarness(t, twoSubjectAssignments(), 1)

	resp, err := h.svc.Generate(context.Background(), "school-1", "admin-1", dto.GenerateScheduleRequest{})
	require.NoError(t, err)

	assert.Equal(t, 5, resp.TotalSlots)
	assert.Equal(t, 5, resp.SavedSlots)
	assert.Equal(t, fixedNow, resp.VersionDate)
	assert.True(t, resp.Validation.IsValid)
	assert.Equal(t, 5, resp.Statistics.Placement.Requested)
	assert.Len(t, resp.Schedule["Saturday"]["Period 1"], 1)

	rows := h.store.all()
	require.Len(t, rows, 5)
	for _, row := range rows {
		assert.Equal(t, fixedNow, row.CreatedAt)
		assert.Nil(t, row.DeletedAt)
		require.NotNil(t, row.CreatedBy)
		assert.Equal(t, "admin-1", *row.CreatedBy)
	}
	assert.Equal(t, 1, h.store.lockCalls)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.generationTotal.WithLabelValues(generationResultSuccess)))
	assert.Equal(t, float64(5), testutil.ToFloat64(h.metrics.slotsPlaced))
}

func TestTimetableServiceGenerateAppliesOverrides(t *testing.T) {
	h := newTimetableHarness(t, twoSubjectAssignments(), 1)

	resp, err := h.svc.Generate(context.Background(), "school-1", "", dto.GenerateScheduleRequest{Options: dto.GenerateOptions{
		Classes: []dto.ClassGenerationOption{{ClassID: "c1", Subjects: []dto.SubjectFrequencyOption{{SubjectID: "math", Frequency: 1}}}},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.TotalSlots)
	for _, row := range h.store.all() {
		assert.Nil(t, row.CreatedBy)
	}
}

func TestTimetableServiceGenerateLimitsToRequestedClassSubjects(t *testing.T) {
	items := []models.TeachingAssignmentDetail{
		withCredit(assignment("c1", "math", "t1"), 3),
		withCredit(assignment("c1", "art", "t2"), 2),
		withCredit(assignment("c2", "bio", "t3"), 4),
	}
	h := newTimetableHarness(t, items, 1)

	resp, err := h.svc.Generate(context.Background(), "school-1", "admin-1", dto.GenerateScheduleRequest{Options: dto.GenerateOptions{
		Classes: []dto.ClassGenerationOption{{ClassID: "c1", Subjects: []dto.SubjectFrequencyOption{{SubjectID: "math", Frequency: 1}}}},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.TotalSlots)

	perPair := map[string]int{}
	for _, row := range h.store.all() {
		perPair[row.ClassID+"/"+row.SubjectID]++
	}
	assert.Equal(t, map[string]int{"c1/math": 1}, perPair)
}

func TestTimetableServiceGenerateOptionsMatchingNothing(t *testing.T) {
	h := newTimetableHarness(t, twoSubjectAssignments(), 0)

	_, err := h.svc.Generate(context.Background(), "school-1", "admin-1", dto.GenerateScheduleRequest{Options: dto.GenerateOptions{
		Classes: []dto.ClassGenerationOption{{ClassID: "c9", Subjects: []dto.SubjectFrequencyOption{{SubjectID: "math"}}}},
	}})
	require.Error(t, err)
	assert.Equal(t, http.StatusPreconditionFailed, appErrors.FromError(err).Status)
	assert.Empty(t, h.store.all())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.generationTotal.WithLabelValues(generationResultEmpty)))
}

func TestTimetableServiceGenerateWithoutAssignments(t *testing.T) {
	h := newTimetableHarness(t, nil, 0)

	_, err := h.svc.Generate(context.Background(), "school-1", "admin-1", dto.GenerateScheduleRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusPreconditionFailed, appErr.Status)
	assert.Empty(t, h.store.all())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.generationTotal.WithLabelValues(generationResultEmpty)))
}

func TestTimetableServiceGenerateRejectsConcurrentRun(t *testing.T) {
	h := newTimetableHarness(t, twoSubjectAssignments(), 0)
	h.svc.locker = busyLocker{}

	_, err := h.svc.Generate(context.Background(), "school-1", "admin-1", dto.GenerateScheduleRequest{})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
	assert.Empty(t, h.store.all())
}

func TestTimetableServiceGenerateRequiresSchool(t *testing.T) {
	h := newTimetableHarness(t, nil, 0)

	_, err := h.svc.Generate(context.Background(), "", "admin-1", dto.GenerateScheduleRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceGenerateTimeout(t *testing.T) {
	h := newTimetableHarness(t, nil, 0)
	h.assignments.err = context.DeadlineExceeded

	_, err := h.svc.Generate(context.Background(), "school-1", "admin-1", dto.GenerateScheduleRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTimeout.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceGenerateRollsBackOnInsertFailure(t *testing.T) {
	items := twoSubjectAssignments()
	db, mock := newTxMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	store := newMemoryTimetableStore(items)
	store.insertErr = errors.New("insert failed")
	svc := NewTimetableService(&stubAssignments{items: items}, store, db, nil, nil, nil, nil, TimetableConfig{Seed: 3})

	_, err := svc.Generate(context.Background(), "school-1", "admin-1", dto.GenerateScheduleRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableServiceVersioningKeepsHistory(t *testing.T) {
	h := newTimetableHarness(t, twoSubjectAssignments(), 2)
	ctx := context.Background()

	*h.clock = time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	_, err := h.svc.Generate(ctx, "school-1", "admin-1", dto.GenerateScheduleRequest{})
	require.NoError(t, err)

	january, err := h.svc.SchoolSchedule(ctx, "school-1")
	require.NoError(t, err)

	*h.clock = time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)
	h.assignments.items = append(h.assignments.items, withCredit(assignment("c1", "bio", "t3"), 1))
	h.store.names["s:bio"] = h.assignments.items[2]
	h.store.names["t:t3"] = h.assignments.items[2]
	_, err = h.svc.Generate(ctx, "school-1", "admin-1", dto.GenerateScheduleRequest{})
	require.NoError(t, err)

	feb, err := h.svc.Historical(ctx, "school-1", 2024, 2)
	require.NoError(t, err)
	assert.Equal(t, dto.HistoricalStatusFound, feb.Status)
	assert.Equal(t, time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC), *feb.VersionDate)
	assert.Equal(t, january.TotalSlots, feb.TotalSlots)
	assert.Equal(t, january.Schedule, feb.Schedule)
	require.NotNil(t, feb.ActiveUntil)

	march, err := h.svc.Historical(ctx, "school-1", 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, march.TotalSlots)
	assert.Nil(t, march.ActiveUntil)

	december, err := h.svc.Historical(ctx, "school-1", 2023, 12)
	require.NoError(t, err)
	assert.Equal(t, dto.HistoricalStatusNotYetCreated, december.Status)

	versions, err := h.svc.Versions(ctx, "school-1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.True(t, versions[0].IsCurrent)
	assert.Equal(t, 3, versions[0].Month)
	assert.False(t, versions[1].IsCurrent)

	active, err := h.svc.SchoolSchedule(ctx, "school-1")
	require.NoError(t, err)
	assert.Equal(t, 6, active.TotalSlots)
	assert.Equal(t, 3, active.Statistics.TotalSubjects)

	history, err := h.svc.ChangeHistory(ctx, "school-1", dto.ChangeHistoryQuery{FromYear: 2024, FromMonth: 2, ToYear: 2024, ToMonth: 3})
	require.NoError(t, err)
	assert.Equal(t, dto.HistoricalStatusFound, history.From.Status)
	assert.Equal(t, dto.HistoricalStatusFound, history.To.Status)
	s := history.Summary
	assert.Equal(t, 5, s.Removed+s.Modified+s.Unchanged)
	assert.Equal(t, 6, s.Added+s.Modified+s.Unchanged)
}

func TestTimetableServiceChangeHistorySingleVersion(t *testing.T) {
	h := newTimetableHarness(t, twoSubjectAssignments(), 1)
	ctx := context.Background()

	*h.clock = time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	_, err := h.svc.Generate(ctx, "school-1", "admin-1", dto.GenerateScheduleRequest{})
	require.NoError(t, err)

	history, err := h.svc.ChangeHistory(ctx, "school-1", dto.ChangeHistoryQuery{FromYear: 2024, FromMonth: 2, ToYear: 2024, ToMonth: 3})
	require.NoError(t, err)
	assert.Equal(t, 5, history.Summary.Unchanged)
	assert.Zero(t, history.Summary.Added)
	assert.Zero(t, history.Summary.Removed)
	assert.Zero(t, history.Summary.Modified)
	require.NotNil(t, history.From.VersionDate)
	require.NotNil(t, history.To.VersionDate)
	assert.Equal(t, *history.From.VersionDate, *history.To.VersionDate)
}

func TestTimetableServiceHistoricalStatuses(t *testing.T) {
	h := newTimetableHarness(t, twoSubjectAssignments(), 1)
	ctx := context.Background()

	empty, err := h.svc.Historical(ctx, "school-1", 2024, 1)
	require.NoError(t, err)
	assert.Equal(t, dto.HistoricalStatusNotFound, empty.Status)

	*h.clock = time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)
	_, err = h.svc.Generate(ctx, "school-1", "admin-1", dto.GenerateScheduleRequest{})
	require.NoError(t, err)

	january, err := h.svc.Historical(ctx, "school-1", 2024, 1)
	require.NoError(t, err)
	assert.Equal(t, dto.HistoricalStatusNotYetCreated, january.Status)
	assert.Nil(t, january.VersionDate)

	march, err := h.svc.Historical(ctx, "school-1", 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, dto.HistoricalStatusFound, march.Status)

	other, err := h.svc.Historical(ctx, "school-2", 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, dto.HistoricalStatusNotFound, other.Status)
}

func TestTimetableServiceChangeHistoryRejectsBadMonth(t *testing.T) {
	h := newTimetableHarness(t, nil, 0)

	_, err := h.svc.ChangeHistory(context.Background(), "school-1", dto.ChangeHistoryQuery{FromYear: 2024, FromMonth: 13, ToYear: 2024, ToMonth: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceReadViews(t *testing.T) {
	h := newTimetableHarness(t, twoSubjectAssignments(), 1)
	ctx := context.Background()
	_, err := h.svc.Generate(ctx, "school-1", "admin-1", dto.GenerateScheduleRequest{})
	require.NoError(t, err)

	class, err := h.svc.ClassSchedule(ctx, "school-1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 5, class.TotalSlots)

	teacher, err := h.svc.TeacherSchedule(ctx, "school-1", "t2")
	require.NoError(t, err)
	assert.Equal(t, 2, teacher.TotalSlots)

	day, err := h.svc.ClassScheduleByDay(ctx, "school-1", "c1", 0)
	require.NoError(t, err)
	assert.Equal(t, "Saturday", day.DayName)
	require.Len(t, day.Slots, 1)
	assert.Equal(t, "math", day.Slots[0].SubjectID)

	_, err = h.svc.TeacherScheduleByDay(ctx, "school-1", "t1", 6)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	stats, err := h.svc.Statistics(ctx, "school-1")
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalSlots)
	assert.Equal(t, 2, stats.TotalAssignments)

	validation, err := h.svc.ValidateCurrent(ctx, "school-1")
	require.NoError(t, err)
	assert.True(t, validation.IsValid)
	assert.Equal(t, 5, validation.TotalSlots)

	teachers, err := h.svc.ClassTeachers(ctx, "school-1", "c1")
	require.NoError(t, err)
	require.Len(t, teachers, 2)
	assert.Equal(t, "t1", teachers[0].TeacherID)
	assert.Equal(t, "math", teachers[0].Subjects[0].SubjectID)
}

func TestTimetableServiceValidateArbitrarySlots(t *testing.T) {
	h := newTimetableHarness(t, nil, 0)

	result, err := h.svc.Validate(context.Background(), dto.ValidateScheduleRequest{Slots: []models.ScheduleSlot{
		slot("c1", "math", "t1", 0, 1),
		slot("c2", "bio", "t1", 0, 1),
	}})
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.validationIssues.WithLabelValues(IssueTeacherDoubleBooking)))
}

func TestTimetableServiceDeleteSchool(t *testing.T) {
	h := newTimetableHarness(t, twoSubjectAssignments(), 1)
	ctx := context.Background()
	_, err := h.svc.Generate(ctx, "school-1", "admin-1", dto.GenerateScheduleRequest{})
	require.NoError(t, err)

	resp, err := h.svc.DeleteSchool(ctx, "school-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), resp.DeletedCount)

	versions, err := h.svc.Versions(ctx, "school-1")
	require.NoError(t, err)
	assert.Empty(t, versions)
}
