package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TeachingAssignmentRepository reads the teacher-class-subject assignments that feed
// timetable generation. Assignments are owned elsewhere; this repository never writes.
type TeachingAssignmentRepository struct {
	db *sqlx.DB
}

// NewTeachingAssignmentRepository constructs the repository.
func NewTeachingAssignmentRepository(db *sqlx.DB) *TeachingAssignmentRepository {
	return &TeachingAssignmentRepository{db: db}
}

const assignmentDetailQuery = `
SELECT tcs.id, tcs.teacher_id, tcs.class_id, tcs.subject_id, tcs.school_id,
       t.full_name AS teacher_name, c.name AS class_name, c.code AS class_code, c.room_number,
       s.name AS subject_name, s.code AS subject_code, s.credit_hours, s.weekly_hours_per_class
FROM teacher_class_subjects tcs
JOIN teachers t ON t.id = tcs.teacher_id
JOIN classes c ON c.id = tcs.class_id
JOIN subjects s ON s.id = tcs.subject_id
WHERE tcs.school_id = $1 AND tcs.is_active = TRUE AND tcs.deleted_at IS NULL`

// ListActiveBySchool returns active assignments ordered by class then subject.
func (r *TeachingAssignmentRepository) ListActiveBySchool(ctx context.Context, schoolID string) ([]models.TeachingAssignmentDetail, error) {
	query := assignmentDetailQuery + `
ORDER BY tcs.class_id ASC, tcs.subject_id ASC`
	var assignments []models.TeachingAssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, schoolID); err != nil {
		return nil, fmt.Errorf("list active teaching assignments: %w", err)
	}
	return assignments, nil
}

// ListActiveByClass returns active assignments of one class ordered by teacher name.
func (r *TeachingAssignmentRepository) ListActiveByClass(ctx context.Context, schoolID, classID string) ([]models.TeachingAssignmentDetail, error) {
	query := assignmentDetailQuery + ` AND tcs.class_id = $2
ORDER BY t.full_name ASC, s.name ASC`
	var assignments []models.TeachingAssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, schoolID, classID); err != nil {
		return nil, fmt.Errorf("list class teaching assignments: %w", err)
	}
	return assignments, nil
}

// Exists reports whether the teacher actively teaches the subject in the class.
func (r *TeachingAssignmentRepository) Exists(ctx context.Context, schoolID, classID, subjectID, teacherID string) (bool, error) {
	const query = `SELECT 1 FROM teacher_class_subjects
WHERE school_id = $1 AND class_id = $2 AND subject_id = $3 AND teacher_id = $4 AND is_active = TRUE AND deleted_at IS NULL LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, schoolID, classID, subjectID, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check teaching assignment: %w", err)
	}
	return true, nil
}
