package service

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type teachingAssignmentReader interface {
	ListActiveBySchool(ctx context.Context, schoolID string) ([]models.TeachingAssignmentDetail, error)
	ListActiveByClass(ctx context.Context, schoolID, classID string) ([]models.TeachingAssignmentDetail, error)
	Exists(ctx context.Context, schoolID, classID, subjectID, teacherID string) (bool, error)
}

type timetableStore interface {
	LockSchool(ctx context.Context, exec sqlx.ExtContext, schoolID string) error
	SupersedeActive(ctx context.Context, exec sqlx.ExtContext, schoolID string, at time.Time) (int64, error)
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) ([]models.TimetableEntry, error)
	ListActive(ctx context.Context, filter models.EntryFilter) ([]models.TimetableEntryDetail, error)
	ListInForce(ctx context.Context, schoolID string, start, end time.Time) ([]models.TimetableEntryDetail, error)
	ListVersions(ctx context.Context, schoolID string) ([]models.ScheduleVersion, error)
	FirstVersion(ctx context.Context, schoolID string) (*time.Time, error)
	DeleteBySchool(ctx context.Context, schoolID string) (int64, error)
}

// TimetableConfig governs generation behaviour.
type TimetableConfig struct {
	// Seed fixes the teacher period rotation; zero draws a new seed per run.
	Seed              int64
	MaxDailyRepeats   int
	GenerationTimeout time.Duration
}

// TimetableService generates, validates, versions and presents school timetables.
type TimetableService struct {
	assignments teachingAssignmentReader
	store       timetableStore
	tx          txProvider
	locker      SchoolLocker
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         TimetableConfig

	now        func() time.Time
	newOffsets func(seed int64) periodOffsetSource
}

// NewTimetableService wires timetable dependencies. A nil locker falls back to an
// in-process lock per school.
func NewTimetableService(
	assignments teachingAssignmentReader,
	store timetableStore,
	tx txProvider,
	locker SchoolLocker,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = newMemorySchoolLocker()
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 30 * time.Second
	}
	if cfg.MaxDailyRepeats < 0 {
		cfg.MaxDailyRepeats = 0
	}
	return &TimetableService{
		assignments: assignments,
		store:       store,
		tx:          tx,
		locker:      locker,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
		newOffsets: func(seed int64) periodOffsetSource {
			return rand.New(rand.NewSource(seed))
		},
	}
}

// NewSchoolLocker returns the generation lock: in-process always, plus the distributed
// lock when one is given.
func NewSchoolLocker(distributed SchoolLocker) SchoolLocker {
	if distributed == nil {
		return newMemorySchoolLocker()
	}
	return chainedSchoolLocker{newMemorySchoolLocker(), distributed}
}

// --- Generation ---

// Generate builds, validates and persists a new timetable version for the school.
func (s *TimetableService) Generate(ctx context.Context, schoolID, createdBy string, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error) {
	if schoolID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schoolId is required")
	}
	if err := s.validator.Struct(req.Options); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation options")
	}

	started := time.Now()
	result := generationResultError
	defer func() {
		s.metrics.ObserveGeneration(result, time.Since(started))
	}()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	defer cancel()

	release, ok, lockErr := s.locker.TryLock(ctx, schoolID)
	if lockErr != nil {
		return nil, appErrors.Wrap(lockErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire generation lock")
	}
	if !ok {
		result = generationResultBusy
		return nil, appErrors.Clone(appErrors.ErrConflict, "schedule generation already in progress for this school")
	}
	defer release()

	logger := s.logger.With(zap.String("school_id", schoolID))
	logger.Info("timetable generation started", zap.String("created_by", createdBy))

	assignments, err := s.assignments.ListActiveBySchool(ctx, schoolID)
	if err != nil {
		return nil, s.wrapContextError(err, "failed to load teaching assignments")
	}
	if len(assignments) == 0 {
		result = generationResultEmpty
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no active teaching assignments found for this school")
	}
	if len(req.Options.Classes) > 0 {
		total := len(assignments)
		assignments = filterByOptions(assignments, req.Options)
		logger.Debug("assignments filtered by options", zap.Int("total", total), zap.Int("kept", len(assignments)))
		if len(assignments) == 0 {
			result = generationResultEmpty
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no active teaching assignments match the requested classes and subjects")
		}
	}

	seed := s.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	engine := newSlotEngine(s.newOffsets(seed), s.cfg.MaxDailyRepeats, logger)
	build, err := engine.build(ctx, assignments, schoolID, overridesFromOptions(req.Options))
	if err != nil {
		return nil, s.wrapContextError(err, "failed to build timetable")
	}
	s.metrics.ObservePlacement(len(build.Slots), len(build.Shortfalls), build.StrategyUsage)

	validation := validateSchedule(build.Slots, s.now())
	s.observeValidation(validation)
	if !validation.IsValid {
		result = generationResultConflict
		logger.Error("generated timetable failed validation", zap.Int("conflicts", validation.Summary.ConflictCount))
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrConflict, "generated timetable contains conflicts"),
			validation.Conflicts,
		)
	}

	saved, versionDate, err := s.save(ctx, build.Slots, schoolID, createdBy)
	if err != nil {
		return nil, err
	}

	result = generationResultSuccess
	logger.Info("timetable generation finished",
		zap.Int("requested", build.Requested),
		zap.Int("placed", len(build.Slots)),
		zap.Int("saved", len(saved)),
		zap.Int("shortfalls", len(build.Shortfalls)),
		zap.Int("warnings", validation.Summary.WarningCount),
	)

	return &dto.GenerateScheduleResponse{
		SchoolID:    schoolID,
		VersionDate: versionDate,
		TotalSlots:  len(build.Slots),
		SavedSlots:  len(saved),
		Schedule:    formatSlotsByDayPeriod(build.Slots),
		Statistics:  buildScheduleStatistics(build.Slots, len(assignments), build),
		Validation:  validation,
	}, nil
}

// save supersedes the active version and inserts slots as a new one in a single
// transaction.
func (s *TimetableService) save(ctx context.Context, slots []models.ScheduleSlot, schoolID, createdBy string) (saved []models.TimetableEntry, versionDate time.Time, err error) {
	if s.tx == nil {
		return nil, time.Time{}, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	// Postgres keeps microseconds; the version key must round-trip exactly.
	versionDate = s.now().Truncate(time.Microsecond)

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, time.Time{}, s.wrapContextError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.store.LockSchool(ctx, tx, schoolID); err != nil {
		err = s.wrapContextError(err, "failed to lock school timetable")
		return nil, time.Time{}, err
	}

	superseded, err := s.store.SupersedeActive(ctx, tx, schoolID, versionDate)
	if err != nil {
		err = s.wrapContextError(err, "failed to supersede active timetable")
		return nil, time.Time{}, err
	}

	var creator *string
	if createdBy != "" {
		creator = &createdBy
	}
	entries := make([]models.TimetableEntry, 0, len(slots))
	for _, slot := range slots {
		entries = append(entries, models.TimetableEntry{
			SchoolID:   schoolID,
			ClassID:    slot.ClassID,
			SubjectID:  slot.SubjectID,
			TeacherID:  slot.TeacherID,
			Day:        slot.Day,
			Period:     slot.Period,
			StartTime:  slot.StartTime,
			EndTime:    slot.EndTime,
			RoomNumber: slot.RoomNumber,
			CreatedBy:  creator,
			CreatedAt:  versionDate,
		})
	}

	saved, err = s.store.InsertBatch(ctx, tx, entries)
	if err != nil {
		err = s.wrapContextError(err, "failed to persist timetable")
		return nil, time.Time{}, err
	}

	if err = tx.Commit(); err != nil {
		err = s.wrapContextError(err, "failed to commit timetable transaction")
		return nil, time.Time{}, err
	}

	s.logger.Debug("timetable version stored",
		zap.String("school_id", schoolID),
		zap.Time("version_date", versionDate),
		zap.Int64("superseded", superseded),
		zap.Int("inserted", len(saved)),
	)
	return saved, versionDate, nil
}

// Validate checks an arbitrary slot list.
func (s *TimetableService) Validate(ctx context.Context, req dto.ValidateScheduleRequest) (*dto.ValidationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot list")
	}
	result := validateSchedule(req.Slots, s.now())
	s.observeValidation(result)
	return &result, nil
}

// ValidateCurrent checks the active timetable of the school.
func (s *TimetableService) ValidateCurrent(ctx context.Context, schoolID string) (*dto.ValidationResult, error) {
	entries, err := s.activeEntries(ctx, models.EntryFilter{SchoolID: schoolID})
	if err != nil {
		return nil, err
	}
	result := validateSchedule(slotsFromEntries(entries), s.now())
	s.observeValidation(result)
	return &result, nil
}

func (s *TimetableService) observeValidation(result dto.ValidationResult) {
	for _, issue := range result.Conflicts {
		s.metrics.ObserveValidationIssue(issue.Type, 1)
	}
	for _, issue := range result.Warnings {
		s.metrics.ObserveValidationIssue(issue.Type, 1)
	}
}

// --- Read views ---

// ClassSchedule returns the active timetable of a class.
func (s *TimetableService) ClassSchedule(ctx context.Context, schoolID, classID string) (*dto.ClassScheduleResponse, error) {
	entries, err := s.activeEntries(ctx, models.EntryFilter{SchoolID: schoolID, ClassID: classID})
	if err != nil {
		return nil, err
	}
	return &dto.ClassScheduleResponse{
		ClassID:    classID,
		TotalSlots: len(entries),
		Schedule:   formatEntriesByDayPeriod(entries),
	}, nil
}

// ClassScheduleByDay returns a class's slots on one day.
func (s *TimetableService) ClassScheduleByDay(ctx context.Context, schoolID, classID string, day int) (*dto.DayScheduleResponse, error) {
	return s.daySchedule(ctx, models.EntryFilter{SchoolID: schoolID, ClassID: classID}, day)
}

// TeacherSchedule returns the active timetable of a teacher.
func (s *TimetableService) TeacherSchedule(ctx context.Context, schoolID, teacherID string) (*dto.TeacherScheduleResponse, error) {
	entries, err := s.activeEntries(ctx, models.EntryFilter{SchoolID: schoolID, TeacherID: teacherID})
	if err != nil {
		return nil, err
	}
	return &dto.TeacherScheduleResponse{
		TeacherID:  teacherID,
		TotalSlots: len(entries),
		Schedule:   formatEntriesByDayPeriod(entries),
	}, nil
}

// TeacherScheduleByDay returns a teacher's slots on one day.
func (s *TimetableService) TeacherScheduleByDay(ctx context.Context, schoolID, teacherID string, day int) (*dto.DayScheduleResponse, error) {
	return s.daySchedule(ctx, models.EntryFilter{SchoolID: schoolID, TeacherID: teacherID}, day)
}

func (s *TimetableService) daySchedule(ctx context.Context, filter models.EntryFilter, day int) (*dto.DayScheduleResponse, error) {
	if !models.ValidDay(day) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "day must be between 0 and 5")
	}
	filter.Day = &day
	entries, err := s.activeEntries(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &dto.DayScheduleResponse{Day: day, DayName: models.DayName(day), Slots: daySlots(entries, day)}, nil
}

// SchoolSchedule returns the active timetable of the whole school.
func (s *TimetableService) SchoolSchedule(ctx context.Context, schoolID string) (*dto.SchoolScheduleResponse, error) {
	entries, err := s.activeEntries(ctx, models.EntryFilter{SchoolID: schoolID})
	if err != nil {
		return nil, err
	}
	return &dto.SchoolScheduleResponse{
		SchoolID:   schoolID,
		TotalSlots: len(entries),
		Schedule:   formatEntriesByDayPeriod(entries),
		Statistics: schoolStatistics(entries),
	}, nil
}

// Statistics summarises the active timetable of the school.
func (s *TimetableService) Statistics(ctx context.Context, schoolID string) (*dto.ScheduleStatistics, error) {
	entries, err := s.activeEntries(ctx, models.EntryFilter{SchoolID: schoolID})
	if err != nil {
		return nil, err
	}
	assignments, err := s.assignments.ListActiveBySchool(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teaching assignments")
	}
	stats := buildScheduleStatistics(slotsFromEntries(entries), len(assignments), nil)
	return &stats, nil
}

// ClassTeachers lists the teachers assigned to a class with the subjects they cover.
func (s *TimetableService) ClassTeachers(ctx context.Context, schoolID, classID string) ([]dto.ClassTeacher, error) {
	if schoolID == "" || classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schoolId and classId are required")
	}
	assignments, err := s.assignments.ListActiveByClass(ctx, schoolID, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class assignments")
	}

	teachers := make([]dto.ClassTeacher, 0)
	index := make(map[string]int)
	for _, a := range assignments {
		pos, ok := index[a.TeacherID]
		if !ok {
			pos = len(teachers)
			index[a.TeacherID] = pos
			teachers = append(teachers, dto.ClassTeacher{TeacherID: a.TeacherID, TeacherName: a.TeacherName})
		}
		teachers[pos].Subjects = append(teachers[pos].Subjects, dto.ClassTeacherSubject{
			SubjectID:   a.SubjectID,
			SubjectName: a.SubjectName,
			SubjectCode: a.SubjectCode,
		})
	}
	return teachers, nil
}

func (s *TimetableService) activeEntries(ctx context.Context, filter models.EntryFilter) ([]models.TimetableEntryDetail, error) {
	if filter.SchoolID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schoolId is required")
	}
	entries, err := s.store.ListActive(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return entries, nil
}

// --- Versioning ---

// Historical returns the timetable version that was in force during the month.
func (s *TimetableService) Historical(ctx context.Context, schoolID string, year, month int) (*dto.HistoricalSchedule, error) {
	result, _, err := s.historical(ctx, schoolID, year, month)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *TimetableService) historical(ctx context.Context, schoolID string, year, month int) (dto.HistoricalSchedule, []models.TimetableEntryDetail, error) {
	if schoolID == "" {
		return dto.HistoricalSchedule{}, nil, appErrors.Clone(appErrors.ErrValidation, "schoolId is required")
	}
	if month < 1 || month > 12 {
		return dto.HistoricalSchedule{}, nil, appErrors.Clone(appErrors.ErrValidation, "month must be between 1 and 12")
	}
	start, end := monthWindow(year, month)
	candidates, err := s.store.ListInForce(ctx, schoolID, start, end)
	if err != nil {
		return dto.HistoricalSchedule{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load historical timetable")
	}
	var first *time.Time
	if len(candidates) == 0 {
		if first, err = s.store.FirstVersion(ctx, schoolID); err != nil {
			return dto.HistoricalSchedule{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load historical timetable")
		}
	}
	result, entries := historicalFromEntries(schoolID, year, month, candidates, first)
	return result, entries, nil
}

// ChangeHistory compares the versions in force during two months.
func (s *TimetableService) ChangeHistory(ctx context.Context, schoolID string, query dto.ChangeHistoryQuery) (*dto.ChangeHistory, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid history query")
	}

	var (
		from, to               dto.HistoricalSchedule
		fromEntries, toEntries []models.TimetableEntryDetail
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		from, fromEntries, err = s.historical(gctx, schoolID, query.FromYear, query.FromMonth)
		return err
	})
	g.Go(func() error {
		var err error
		to, toEntries, err = s.historical(gctx, schoolID, query.ToYear, query.ToMonth)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary, details := diffEntries(fromEntries, toEntries)
	return &dto.ChangeHistory{
		SchoolID: schoolID,
		From:     snapshotRef(from),
		To:       snapshotRef(to),
		Summary:  summary,
		Details:  details,
	}, nil
}

// Versions lists every stored version of the school, newest first.
func (s *TimetableService) Versions(ctx context.Context, schoolID string) ([]dto.ScheduleVersionSummary, error) {
	if schoolID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schoolId is required")
	}
	versions, err := s.store.ListVersions(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable versions")
	}
	return versionSummaries(versions), nil
}

// DeleteSchool permanently removes every timetable row of the school, history included.
func (s *TimetableService) DeleteSchool(ctx context.Context, schoolID string) (*dto.DeleteScheduleResponse, error) {
	if schoolID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schoolId is required")
	}
	deleted, err := s.store.DeleteBySchool(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
	}
	s.logger.Warn("school timetable deleted", zap.String("school_id", schoolID), zap.Int64("deleted", deleted))
	return &dto.DeleteScheduleResponse{SchoolID: schoolID, DeletedCount: deleted}, nil
}

func (s *TimetableService) wrapContextError(err error, message string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, "timetable generation timed out")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
