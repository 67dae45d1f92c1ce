package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// Manual slot editing errors.
var (
	ErrTeacherNotAssigned = appErrors.New("TEACHER_NOT_ASSIGNED", http.StatusBadRequest, "teacher is not assigned to this subject in this class")
	ErrTeacherConflict    = appErrors.New("TEACHER_CONFLICT", http.StatusConflict, "teacher already teaches another class in this slot")
	ErrClassConflict      = appErrors.New("CLASS_CONFLICT", http.StatusConflict, "class already has another teacher in this slot")
)

type slotStore interface {
	LockSchool(ctx context.Context, exec sqlx.ExtContext, schoolID string) error
	FindActiveAt(ctx context.Context, exec sqlx.ExtContext, schoolID string, day, period int) ([]models.TimetableEntry, error)
	CurrentVersion(ctx context.Context, exec sqlx.ExtContext, schoolID string) (*time.Time, error)
	RemoveVersionSlot(ctx context.Context, exec sqlx.ExtContext, schoolID, classID string, day, period int, version time.Time) (int64, error)
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) ([]models.TimetableEntry, error)
	SoftDeleteSlot(ctx context.Context, schoolID, classID string, day, period int, at time.Time) (int64, error)
}

type assignmentChecker interface {
	Exists(ctx context.Context, schoolID, classID, subjectID, teacherID string) (bool, error)
}

// ScheduleSlotService edits single slots of the active timetable by hand. It applies the
// same teacher and class double-booking rules as the validator.
type ScheduleSlotService struct {
	store       slotStore
	assignments assignmentChecker
	tx          txProvider
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewScheduleSlotService constructs the service.
func NewScheduleSlotService(store slotStore, assignments assignmentChecker, tx txProvider, validate *validator.Validate, logger *zap.Logger) *ScheduleSlotService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleSlotService{
		store:       store,
		assignments: assignments,
		tx:          tx,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create places or replaces the slot of a class at day/period. The new row joins the
// active version so history lookups keep treating it as part of that timetable.
func (s *ScheduleSlotService) Create(ctx context.Context, schoolID, createdBy string, req dto.CreateSlotRequest) (entry *models.TimetableEntry, err error) {
	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}
	if schoolID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schoolId is required")
	}
	day, period := *req.Day, *req.Period

	assigned, err := s.assignments.Exists(ctx, schoolID, req.ClassID, req.SubjectID, req.TeacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teaching assignment")
	}
	if !assigned {
		return nil, ErrTeacherNotAssigned
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.store.LockSchool(ctx, tx, schoolID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock school timetable")
		return nil, err
	}

	if err = s.ensureNoConflict(ctx, tx, schoolID, req.ClassID, req.TeacherID, day, period); err != nil {
		return nil, err
	}

	now := s.now().Truncate(time.Microsecond)
	version, err := s.store.CurrentVersion(ctx, tx, schoolID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve active timetable version")
		return nil, err
	}
	createdAt := now
	if version != nil {
		createdAt = *version
	}

	if _, err = s.store.RemoveVersionSlot(ctx, tx, schoolID, req.ClassID, day, period, createdAt); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace existing slot")
		return nil, err
	}

	start, end := models.PeriodTimes(period)
	if req.StartTime != "" {
		start = req.StartTime
	}
	if req.EndTime != "" {
		end = req.EndTime
	}
	var creator *string
	if createdBy != "" {
		creator = &createdBy
	}
	inserted, err := s.store.InsertBatch(ctx, tx, []models.TimetableEntry{{
		SchoolID:   schoolID,
		ClassID:    req.ClassID,
		SubjectID:  req.SubjectID,
		TeacherID:  req.TeacherID,
		Day:        day,
		Period:     period,
		StartTime:  start,
		EndTime:    end,
		RoomNumber: req.RoomNumber,
		CreatedBy:  creator,
		CreatedAt:  createdAt,
	}})
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create slot")
		return nil, err
	}
	if len(inserted) == 0 {
		err = appErrors.Clone(appErrors.ErrConflict, "slot already exists")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit slot")
		return nil, err
	}

	s.logger.Info("timetable slot saved",
		zap.String("school_id", schoolID),
		zap.String("class_id", req.ClassID),
		zap.Int("day", day),
		zap.Int("period", period),
	)
	return &inserted[0], nil
}

// Delete soft-deletes the active slot of a class at day/period. Deleting an empty slot is not
// an error; the response reports a zero count.
func (s *ScheduleSlotService) Delete(ctx context.Context, schoolID string, query dto.DeleteSlotQuery) (*dto.DeleteSlotResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot query")
	}
	if schoolID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schoolId is required")
	}
	deleted, err := s.store.SoftDeleteSlot(ctx, schoolID, query.ClassID, *query.Day, *query.Period, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete slot")
	}
	s.logger.Info("timetable slot deleted",
		zap.String("school_id", schoolID),
		zap.String("class_id", query.ClassID),
		zap.Int("day", *query.Day),
		zap.Int("period", *query.Period),
		zap.Int64("deleted", deleted),
	)
	return &dto.DeleteSlotResponse{
		SchoolID:     schoolID,
		ClassID:      query.ClassID,
		Day:          *query.Day,
		Period:       *query.Period,
		DeletedCount: deleted,
	}, nil
}

// ensureNoConflict rejects a placement that would double-book the teacher or the class.
// The occupant of the same class and teacher is the slot being replaced.
func (s *ScheduleSlotService) ensureNoConflict(ctx context.Context, exec sqlx.ExtContext, schoolID, classID, teacherID string, day, period int) error {
	existing, err := s.store.FindActiveAt(ctx, exec, schoolID, day, period)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot conflicts")
	}
	for _, item := range existing {
		switch {
		case item.TeacherID == teacherID && item.ClassID != classID:
			return wrapSlotConflict(ErrTeacherConflict, models.ConflictDimensionTeacher, item)
		case item.ClassID == classID && item.TeacherID != teacherID:
			return wrapSlotConflict(ErrClassConflict, models.ConflictDimensionClass, item)
		}
	}
	return nil
}

func wrapSlotConflict(base *appErrors.Error, dimension string, existing models.TimetableEntry) error {
	conflict := models.ScheduleConflict{
		EntryID:   existing.ID,
		ClassID:   existing.ClassID,
		SubjectID: existing.SubjectID,
		TeacherID: existing.TeacherID,
		Day:       existing.Day,
		DayName:   models.DayName(existing.Day),
		Period:    existing.Period,
		Dimension: dimension,
	}
	domainErr := &models.ScheduleConflictError{Type: dimension, Message: base.Message, Conflict: conflict}
	wrapped := appErrors.Wrap(domainErr, base.Code, base.Status, fmt.Sprintf("schedule conflict: %s", base.Message))
	wrapped.Details = conflict
	return wrapped
}
