package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TimetableRepository persists generated timetables. Generation never removes rows: a new
// run soft-deletes the active batch and inserts a fresh one sharing a single created_at.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository builds repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const entryDetailColumns = `te.id, te.school_id, te.class_id, te.subject_id, te.teacher_id, te.day, te.period,
te.start_time, te.end_time, te.room_number, te.created_by, te.created_at, te.deleted_at,
c.name AS class_name, c.code AS class_code, s.name AS subject_name, s.code AS subject_code,
t.full_name AS teacher_name`

const entryDetailJoins = `FROM timetable_entries te
JOIN classes c ON c.id = te.class_id
JOIN subjects s ON s.id = te.subject_id
JOIN teachers t ON t.id = te.teacher_id`

// LockSchool takes a transaction scoped advisory lock so concurrent supersede/insert
// cycles for one school serialize inside the database.
func (r *TimetableRepository) LockSchool(ctx context.Context, exec sqlx.ExtContext, schoolID string) error {
	const query = `SELECT pg_advisory_xact_lock(hashtext($1))`
	if _, err := r.exec(exec).ExecContext(ctx, query, schoolID); err != nil {
		return fmt.Errorf("lock school timetable: %w", err)
	}
	return nil
}

// SupersedeActive soft-deletes every active entry of the school.
func (r *TimetableRepository) SupersedeActive(ctx context.Context, exec sqlx.ExtContext, schoolID string, at time.Time) (int64, error) {
	const query = `UPDATE timetable_entries SET deleted_at = $2 WHERE school_id = $1 AND deleted_at IS NULL`
	res, err := r.exec(exec).ExecContext(ctx, query, schoolID, at)
	if err != nil {
		return 0, fmt.Errorf("supersede timetable entries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("supersede timetable entries rows: %w", err)
	}
	return affected, nil
}

// InsertBatch inserts entries, skipping rows that already exist for the same version
// slot. It returns the entries actually written.
func (r *TimetableRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) ([]models.TimetableEntry, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	target := r.exec(exec)

	const query = `
INSERT INTO timetable_entries (id, school_id, class_id, subject_id, teacher_id, day, period, start_time, end_time, room_number, created_by, created_at)
VALUES (:id, :school_id, :class_id, :subject_id, :teacher_id, :day, :period, :start_time, :end_time, :room_number, :created_by, :created_at)
ON CONFLICT DO NOTHING`

	inserted := make([]models.TimetableEntry, 0, len(entries))
	for i := range entries {
		entry := &entries[i]
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		res, err := sqlx.NamedExecContext(ctx, target, query, entry)
		if err != nil {
			return nil, fmt.Errorf("insert timetable entry: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("insert timetable entry rows: %w", err)
		}
		if affected > 0 {
			inserted = append(inserted, *entry)
		}
	}
	return inserted, nil
}

// ListActive returns the active entries matching the filter ordered by day and period.
func (r *TimetableRepository) ListActive(ctx context.Context, filter models.EntryFilter) ([]models.TimetableEntryDetail, error) {
	conditions := []string{"te.school_id = ?", "te.deleted_at IS NULL"}
	args := []interface{}{filter.SchoolID}
	if filter.ClassID != "" {
		conditions = append(conditions, "te.class_id = ?")
		args = append(args, filter.ClassID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, "te.teacher_id = ?")
		args = append(args, filter.TeacherID)
	}
	if filter.Day != nil {
		conditions = append(conditions, "te.day = ?")
		args = append(args, *filter.Day)
	}

	query := fmt.Sprintf("SELECT %s %s WHERE %s ORDER BY te.day ASC, te.period ASC, c.name ASC",
		entryDetailColumns, entryDetailJoins, strings.Join(conditions, " AND "))
	query = r.db.Rebind(query)

	var entries []models.TimetableEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list active timetable entries: %w", err)
	}
	return entries, nil
}

// ListInForce returns every entry created before end that was still active at start,
// i.e. all candidates for the version in force during [start, end).
func (r *TimetableRepository) ListInForce(ctx context.Context, schoolID string, start, end time.Time) ([]models.TimetableEntryDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s
WHERE te.school_id = $1 AND te.created_at < $3 AND (te.deleted_at IS NULL OR te.deleted_at >= $2)
ORDER BY te.created_at ASC, te.day ASC, te.period ASC, c.name ASC`, entryDetailColumns, entryDetailJoins)

	var entries []models.TimetableEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, schoolID, start, end); err != nil {
		return nil, fmt.Errorf("list timetable entries in force: %w", err)
	}
	return entries, nil
}

// ListVersions summarises every generation batch of the school, newest first.
func (r *TimetableRepository) ListVersions(ctx context.Context, schoolID string) ([]models.ScheduleVersion, error) {
	const query = `SELECT created_at, COUNT(*) AS total_slots,
CASE WHEN BOOL_OR(deleted_at IS NULL) THEN NULL ELSE MAX(deleted_at) END AS active_until,
BOOL_OR(deleted_at IS NULL) AS is_current
FROM timetable_entries WHERE school_id = $1
GROUP BY created_at ORDER BY created_at DESC`

	var versions []models.ScheduleVersion
	if err := r.db.SelectContext(ctx, &versions, query, schoolID); err != nil {
		return nil, fmt.Errorf("list timetable versions: %w", err)
	}
	return versions, nil
}

// FirstVersion returns the created_at of the school's oldest stored entry, soft-deleted rows
// included, or nil when the school has never had a timetable.
func (r *TimetableRepository) FirstVersion(ctx context.Context, schoolID string) (*time.Time, error) {
	const query = `SELECT MIN(created_at) FROM timetable_entries WHERE school_id = $1`
	var first sql.NullTime
	if err := r.db.GetContext(ctx, &first, query, schoolID); err != nil {
		return nil, fmt.Errorf("first timetable version: %w", err)
	}
	if !first.Valid {
		return nil, nil
	}
	return &first.Time, nil
}

// DeleteBySchool permanently removes every entry of the school, history included.
func (r *TimetableRepository) DeleteBySchool(ctx context.Context, schoolID string) (int64, error) {
	const query = `DELETE FROM timetable_entries WHERE school_id = $1`
	res, err := r.db.ExecContext(ctx, query, schoolID)
	if err != nil {
		return 0, fmt.Errorf("delete timetable entries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete timetable entries rows: %w", err)
	}
	return affected, nil
}

// FindActiveAt returns active entries occupying a day/period in the school.
func (r *TimetableRepository) FindActiveAt(ctx context.Context, exec sqlx.ExtContext, schoolID string, day, period int) ([]models.TimetableEntry, error) {
	const query = `SELECT id, school_id, class_id, subject_id, teacher_id, day, period, start_time, end_time, room_number, created_by, created_at, deleted_at
FROM timetable_entries WHERE school_id = $1 AND day = $2 AND period = $3 AND deleted_at IS NULL`
	var entries []models.TimetableEntry
	if err := sqlx.SelectContext(ctx, r.exec(exec), &entries, query, schoolID, day, period); err != nil {
		return nil, fmt.Errorf("find active timetable entries: %w", err)
	}
	return entries, nil
}

// CurrentVersion returns the created_at shared by the active batch, or nil when the school
// has no active timetable.
func (r *TimetableRepository) CurrentVersion(ctx context.Context, exec sqlx.ExtContext, schoolID string) (*time.Time, error) {
	const query = `SELECT MAX(created_at) FROM timetable_entries WHERE school_id = $1 AND deleted_at IS NULL`
	var version sql.NullTime
	if err := sqlx.GetContext(ctx, r.exec(exec), &version, query, schoolID); err != nil {
		return nil, fmt.Errorf("current timetable version: %w", err)
	}
	if !version.Valid {
		return nil, nil
	}
	return &version.Time, nil
}

// RemoveVersionSlot drops the entry of a class at day/period so it can be replaced. Rows of
// the given version are removed even when soft-deleted, keeping the version slot free.
func (r *TimetableRepository) RemoveVersionSlot(ctx context.Context, exec sqlx.ExtContext, schoolID, classID string, day, period int, version time.Time) (int64, error) {
	const query = `DELETE FROM timetable_entries
WHERE school_id = $1 AND class_id = $2 AND day = $3 AND period = $4 AND (deleted_at IS NULL OR created_at = $5)`
	res, err := r.exec(exec).ExecContext(ctx, query, schoolID, classID, day, period, version)
	if err != nil {
		return 0, fmt.Errorf("remove timetable slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("remove timetable slot rows: %w", err)
	}
	return affected, nil
}

// SoftDeleteSlot marks the active entry of a class at day/period as deleted and returns how
// many rows it touched.
func (r *TimetableRepository) SoftDeleteSlot(ctx context.Context, schoolID, classID string, day, period int, at time.Time) (int64, error) {
	const query = `UPDATE timetable_entries SET deleted_at = $5 WHERE school_id = $1 AND class_id = $2 AND day = $3 AND period = $4 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, schoolID, classID, day, period, at)
	if err != nil {
		return 0, fmt.Errorf("soft delete timetable slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("soft delete timetable slot rows: %w", err)
	}
	return affected, nil
}
