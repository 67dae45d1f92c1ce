package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// fixedOffsets hands out the same rotation to every teacher.
type fixedOffsets int

func (f fixedOffsets) Intn(n int) int { return int(f) % n }

func assignment(classID, subjectID, teacherID string) models.TeachingAssignmentDetail {
	return models.TeachingAssignmentDetail{
		TeachingAssignment: models.TeachingAssignment{
			ID:        fmt.Sprintf("%s-%s-%s", classID, subjectID, teacherID),
			TeacherID: teacherID,
			ClassID:   classID,
			SubjectID: subjectID,
			SchoolID:  "school-1",
		},
		TeacherName: "Teacher " + teacherID,
		ClassName:   "Class " + classID,
		ClassCode:   "code-" + classID,
		SubjectName: "Subject " + subjectID,
		SubjectCode: "code-" + subjectID,
	}
}

func withCredit(a models.TeachingAssignmentDetail, hours float64) models.TeachingAssignmentDetail {
	a.CreditHours = &hours
	return a
}

func withWeeklyHours(a models.TeachingAssignmentDetail, raw string) models.TeachingAssignmentDetail {
	a.WeeklyHoursPerClass = types.NullJSONText{JSONText: types.JSONText(raw), Valid: true}
	return a
}

type stubAssignments struct {
	items []models.TeachingAssignmentDetail
	err   error
}

func (s *stubAssignments) ListActiveBySchool(ctx context.Context, schoolID string) ([]models.TeachingAssignmentDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.TeachingAssignmentDetail
	for _, a := range s.items {
		if a.SchoolID == schoolID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubAssignments) ListActiveByClass(ctx context.Context, schoolID, classID string) ([]models.TeachingAssignmentDetail, error) {
	all, err := s.ListActiveBySchool(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	var out []models.TeachingAssignmentDetail
	for _, a := range all {
		if a.ClassID == classID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubAssignments) Exists(ctx context.Context, schoolID, classID, subjectID, teacherID string) (bool, error) {
	all, err := s.ListActiveBySchool(ctx, schoolID)
	if err != nil {
		return false, err
	}
	for _, a := range all {
		if a.ClassID == classID && a.SubjectID == subjectID && a.TeacherID == teacherID {
			return true, nil
		}
	}
	return false, nil
}

// memoryTimetableStore mirrors the repository queries over a slice of rows.
type memoryTimetableStore struct {
	mu        sync.Mutex
	rows      []models.TimetableEntryDetail
	names     map[string]models.TeachingAssignmentDetail
	lockCalls int
	nextID    int
	insertErr error
}

func newMemoryTimetableStore(assignments []models.TeachingAssignmentDetail) *memoryTimetableStore {
	names := make(map[string]models.TeachingAssignmentDetail)
	for _, a := range assignments {
		names[a.ClassID] = a
		names["s:"+a.SubjectID] = a
		names["t:"+a.TeacherID] = a
	}
	return &memoryTimetableStore{names: names}
}

func (m *memoryTimetableStore) detail(e models.TimetableEntry) models.TimetableEntryDetail {
	return models.TimetableEntryDetail{
		TimetableEntry: e,
		ClassName:      m.names[e.ClassID].ClassName,
		ClassCode:      m.names[e.ClassID].ClassCode,
		SubjectName:    m.names["s:"+e.SubjectID].SubjectName,
		SubjectCode:    m.names["s:"+e.SubjectID].SubjectCode,
		TeacherName:    m.names["t:"+e.TeacherID].TeacherName,
	}
}

func (m *memoryTimetableStore) LockSchool(ctx context.Context, exec sqlx.ExtContext, schoolID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockCalls++
	return nil
}

func (m *memoryTimetableStore) SupersedeActive(ctx context.Context, exec sqlx.ExtContext, schoolID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.rows {
		if m.rows[i].SchoolID == schoolID && m.rows[i].DeletedAt == nil {
			deleted := at
			m.rows[i].DeletedAt = &deleted
			n++
		}
	}
	return n, nil
}

func (m *memoryTimetableStore) InsertBatch(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) ([]models.TimetableEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	var inserted []models.TimetableEntry
	for _, e := range entries {
		duplicate := false
		for _, row := range m.rows {
			if row.SchoolID == e.SchoolID && row.ClassID == e.ClassID && row.Day == e.Day && row.Period == e.Period && row.CreatedAt.Equal(e.CreatedAt) {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		m.nextID++
		e.ID = fmt.Sprintf("entry-%d", m.nextID)
		m.rows = append(m.rows, m.detail(e))
		inserted = append(inserted, e)
	}
	return inserted, nil
}

func (m *memoryTimetableStore) ListActive(ctx context.Context, filter models.EntryFilter) ([]models.TimetableEntryDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TimetableEntryDetail
	for _, row := range m.rows {
		if row.SchoolID != filter.SchoolID || row.DeletedAt != nil {
			continue
		}
		if filter.ClassID != "" && row.ClassID != filter.ClassID {
			continue
		}
		if filter.TeacherID != "" && row.TeacherID != filter.TeacherID {
			continue
		}
		if filter.Day != nil && row.Day != *filter.Day {
			continue
		}
		out = append(out, row)
	}
	sortEntries(out)
	return out, nil
}

func (m *memoryTimetableStore) ListInForce(ctx context.Context, schoolID string, start, end time.Time) ([]models.TimetableEntryDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TimetableEntryDetail
	for _, row := range m.rows {
		if row.SchoolID != schoolID || !row.CreatedAt.Before(end) {
			continue
		}
		if row.DeletedAt != nil && row.DeletedAt.Before(start) {
			continue
		}
		out = append(out, row)
	}
	sortEntries(out)
	return out, nil
}

func (m *memoryTimetableStore) FirstVersion(ctx context.Context, schoolID string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var first *time.Time
	for _, row := range m.rows {
		if row.SchoolID != schoolID {
			continue
		}
		if first == nil || row.CreatedAt.Before(*first) {
			created := row.CreatedAt
			first = &created
		}
	}
	return first, nil
}

func (m *memoryTimetableStore) ListVersions(ctx context.Context, schoolID string) ([]models.ScheduleVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []models.TimetableEntryDetail
	for _, row := range m.rows {
		if row.SchoolID == schoolID {
			rows = append(rows, row)
		}
	}
	versions := make([]models.ScheduleVersion, 0)
	for _, v := range groupVersions(rows) {
		until := v.activeUntil()
		versions = append(versions, models.ScheduleVersion{
			CreatedAt:   v.createdAt,
			TotalSlots:  len(v.entries),
			ActiveUntil: until,
			IsCurrent:   until == nil,
		})
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].CreatedAt.After(versions[j].CreatedAt) })
	return versions, nil
}

func (m *memoryTimetableStore) DeleteBySchool(ctx context.Context, schoolID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	var n int64
	for _, row := range m.rows {
		if row.SchoolID == schoolID {
			n++
			continue
		}
		kept = append(kept, row)
	}
	m.rows = kept
	return n, nil
}

func (m *memoryTimetableStore) FindActiveAt(ctx context.Context, exec sqlx.ExtContext, schoolID string, day, period int) ([]models.TimetableEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TimetableEntry
	for _, row := range m.rows {
		if row.SchoolID == schoolID && row.DeletedAt == nil && row.Day == day && row.Period == period {
			out = append(out, row.TimetableEntry)
		}
	}
	return out, nil
}

func (m *memoryTimetableStore) CurrentVersion(ctx context.Context, exec sqlx.ExtContext, schoolID string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *time.Time
	for _, row := range m.rows {
		if row.SchoolID != schoolID || row.DeletedAt != nil {
			continue
		}
		if latest == nil || row.CreatedAt.After(*latest) {
			created := row.CreatedAt
			latest = &created
		}
	}
	return latest, nil
}

func (m *memoryTimetableStore) RemoveVersionSlot(ctx context.Context, exec sqlx.ExtContext, schoolID, classID string, day, period int, version time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	var n int64
	for _, row := range m.rows {
		if row.SchoolID == schoolID && row.ClassID == classID && row.Day == day && row.Period == period &&
			(row.DeletedAt == nil || row.CreatedAt.Equal(version)) {
			n++
			continue
		}
		kept = append(kept, row)
	}
	m.rows = kept
	return n, nil
}

func (m *memoryTimetableStore) SoftDeleteSlot(ctx context.Context, schoolID, classID string, day, period int, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for i := range m.rows {
		row := &m.rows[i]
		if row.SchoolID == schoolID && row.ClassID == classID && row.Day == day && row.Period == period && row.DeletedAt == nil {
			stamp := at
			row.DeletedAt = &stamp
			deleted++
		}
	}
	return deleted, nil
}

func (m *memoryTimetableStore) all() []models.TimetableEntryDetail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.TimetableEntryDetail(nil), m.rows...)
}

func sortEntries(entries []models.TimetableEntryDetail) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		return a.ClassName < b.ClassName
	})
}

// newTxMock returns a sqlx handle whose transactions are scripted through sqlmock.
func newTxMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

// slotsOf projects stored rows into slots for validation.
func slotsOf(entries []models.TimetableEntryDetail) []models.ScheduleSlot {
	return slotsFromEntries(entries)
}

var fixedNow = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

func slot(classID, subjectID, teacherID string, day, period int) models.ScheduleSlot {
	return models.ScheduleSlot{
		Day:         day,
		Period:      period,
		ClassID:     classID,
		ClassName:   "Class " + classID,
		SubjectID:   subjectID,
		SubjectName: "Subject " + subjectID,
		TeacherID:   teacherID,
		TeacherName: "Teacher " + teacherID,
	}
}
