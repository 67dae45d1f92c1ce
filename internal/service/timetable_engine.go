package service

import (
	"context"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// Placement strategies in the order they are tried.
const (
	StrategyPreferred         = "preferred"
	StrategyAlternateDay      = "alternate_day"
	StrategySameDay           = "same_day"
	StrategyRelaxedRepetition = "relaxed_repetition"
)

// periodOffsetSource yields the per-teacher rotation. *rand.Rand satisfies it.
type periodOffsetSource interface {
	Intn(n int) int
}

type slotCell struct {
	day    int
	period int
}

type classDay struct {
	classID string
	day     int
}

// placementState tracks what has been placed so far in one run.
type placementState struct {
	teacherBusy  map[slotCell]map[string]struct{}
	classBusy    map[slotCell]map[string]struct{}
	subjectDaily map[classDay]map[string]int
}

func newPlacementState() *placementState {
	return &placementState{
		teacherBusy:  make(map[slotCell]map[string]struct{}),
		classBusy:    make(map[slotCell]map[string]struct{}),
		subjectDaily: make(map[classDay]map[string]int),
	}
}

func (s *placementState) teacherFree(cell slotCell, teacherID string) bool {
	_, busy := s.teacherBusy[cell][teacherID]
	return !busy
}

func (s *placementState) classFree(cell slotCell, classID string) bool {
	_, busy := s.classBusy[cell][classID]
	return !busy
}

func (s *placementState) subjectCount(classID string, day int, subjectID string) int {
	return s.subjectDaily[classDay{classID: classID, day: day}][subjectID]
}

func (s *placementState) open(cell slotCell, req placementRequest) bool {
	return s.teacherFree(cell, req.assignment.TeacherID) && s.classFree(cell, req.assignment.ClassID)
}

func (s *placementState) reserve(cell slotCell, a *models.TeachingAssignmentDetail) {
	if s.teacherBusy[cell] == nil {
		s.teacherBusy[cell] = make(map[string]struct{})
	}
	s.teacherBusy[cell][a.TeacherID] = struct{}{}
	if s.classBusy[cell] == nil {
		s.classBusy[cell] = make(map[string]struct{})
	}
	s.classBusy[cell][a.ClassID] = struct{}{}
	key := classDay{classID: a.ClassID, day: cell.day}
	if s.subjectDaily[key] == nil {
		s.subjectDaily[key] = make(map[string]int)
	}
	s.subjectDaily[key][a.SubjectID]++
}

type placementRequest struct {
	assignment *models.TeachingAssignmentDetail
	preferred  slotCell
}

type placementStrategy struct {
	name string
	find func(s *placementState, req placementRequest) (slotCell, bool)
}

// placementStrategies builds the fallback pipeline. maxDailyRepeats bounds how often the
// last strategy may stack a subject on one class-day; zero leaves it unbounded.
func placementStrategies(maxDailyRepeats int) []placementStrategy {
	return []placementStrategy{
		{name: StrategyPreferred, find: func(s *placementState, req placementRequest) (slotCell, bool) {
			a := req.assignment
			if s.open(req.preferred, req) && s.subjectCount(a.ClassID, req.preferred.day, a.SubjectID) == 0 {
				return req.preferred, true
			}
			return slotCell{}, false
		}},
		{name: StrategyAlternateDay, find: func(s *placementState, req placementRequest) (slotCell, bool) {
			a := req.assignment
			for day := 0; day < models.DaysPerWeek; day++ {
				if s.subjectCount(a.ClassID, day, a.SubjectID) > 0 {
					continue
				}
				for period := 1; period <= models.PeriodsPerDay; period++ {
					if cell := (slotCell{day: day, period: period}); s.open(cell, req) {
						return cell, true
					}
				}
			}
			return slotCell{}, false
		}},
		{name: StrategySameDay, find: func(s *placementState, req placementRequest) (slotCell, bool) {
			a := req.assignment
			day := req.preferred.day
			if s.subjectCount(a.ClassID, day, a.SubjectID) > 0 {
				return slotCell{}, false
			}
			for period := 1; period <= models.PeriodsPerDay; period++ {
				if period == req.preferred.period {
					continue
				}
				if cell := (slotCell{day: day, period: period}); s.open(cell, req) {
					return cell, true
				}
			}
			return slotCell{}, false
		}},
		{name: StrategyRelaxedRepetition, find: func(s *placementState, req placementRequest) (slotCell, bool) {
			a := req.assignment
			for day := 0; day < models.DaysPerWeek; day++ {
				if maxDailyRepeats > 0 && s.subjectCount(a.ClassID, day, a.SubjectID) >= maxDailyRepeats {
					continue
				}
				for period := 1; period <= models.PeriodsPerDay; period++ {
					if cell := (slotCell{day: day, period: period}); s.open(cell, req) {
						return cell, true
					}
				}
			}
			return slotCell{}, false
		}},
	}
}

// scheduleBuild is the raw output of the engine.
type scheduleBuild struct {
	Slots         []models.ScheduleSlot
	Requested     int
	Shortfalls    []dto.PlacementShortfall
	StrategyUsage map[string]int
}

// slotEngine turns assignments into a conflict-free slot list.
type slotEngine struct {
	offsets    periodOffsetSource
	strategies []placementStrategy
	logger     *zap.Logger
}

func newSlotEngine(offsets periodOffsetSource, maxDailyRepeats int, logger *zap.Logger) *slotEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &slotEngine{offsets: offsets, strategies: placementStrategies(maxDailyRepeats), logger: logger}
}

// build places every requested session it can. Classes are processed in ascending id order
// and subjects in source order, so a fixed offset source gives a reproducible result.
func (e *slotEngine) build(ctx context.Context, assignments []models.TeachingAssignmentDetail, schoolID string, overrides frequencyOverrides) (*scheduleBuild, error) {
	resolver := newFrequencyResolver(overrides, e.logger)
	state := newPlacementState()
	teacherOffsets := make(map[string]int)
	result := &scheduleBuild{StrategyUsage: make(map[string]int)}

	byClass := make(map[string][]int)
	classIDs := make([]string, 0)
	for i := range assignments {
		classID := assignments[i].ClassID
		if _, seen := byClass[classID]; !seen {
			classIDs = append(classIDs, classID)
		}
		byClass[classID] = append(byClass[classID], i)
	}
	sort.Slice(classIDs, func(i, j int) bool { return idLess(classIDs[i], classIDs[j]) })

	for _, classID := range classIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var load dayLoad
		for subjectIndex, idx := range byClass[classID] {
			a := &assignments[idx]
			frequency := resolver.resolve(*a)
			days := selectDays(frequency, &load)

			offset, ok := teacherOffsets[a.TeacherID]
			if !ok {
				offset = e.offsets.Intn(models.PeriodsPerDay)
				teacherOffsets[a.TeacherID] = offset
			}

			for dayIndex, day := range days {
				result.Requested++
				req := placementRequest{
					assignment: a,
					preferred: slotCell{
						day:    day,
						period: (subjectIndex+dayIndex+offset)%models.PeriodsPerDay + 1,
					},
				}
				e.place(state, req, schoolID, result)
			}
		}
	}
	return result, nil
}

func (e *slotEngine) place(state *placementState, req placementRequest, schoolID string, result *scheduleBuild) {
	a := req.assignment
	for _, strategy := range e.strategies {
		cell, ok := strategy.find(state, req)
		if !ok {
			continue
		}
		state.reserve(cell, a)
		result.StrategyUsage[strategy.name]++
		result.Slots = append(result.Slots, newScheduleSlot(a, cell, schoolID))
		if strategy.name != StrategyPreferred {
			e.logger.Debug("session relocated",
				zap.String("strategy", strategy.name),
				zap.String("class_id", a.ClassID),
				zap.String("subject_id", a.SubjectID),
				zap.Int("preferred_day", req.preferred.day),
				zap.Int("preferred_period", req.preferred.period),
				zap.Int("day", cell.day),
				zap.Int("period", cell.period),
			)
		}
		return
	}

	e.logger.Warn("could not place session",
		zap.String("class_id", a.ClassID),
		zap.String("subject_id", a.SubjectID),
		zap.String("teacher_id", a.TeacherID),
		zap.Int("preferred_day", req.preferred.day),
	)
	result.Shortfalls = append(result.Shortfalls, dto.PlacementShortfall{
		ClassID:      a.ClassID,
		ClassName:    a.ClassName,
		SubjectID:    a.SubjectID,
		SubjectName:  a.SubjectName,
		TeacherID:    a.TeacherID,
		TeacherName:  a.TeacherName,
		PreferredDay: req.preferred.day,
	})
}

func newScheduleSlot(a *models.TeachingAssignmentDetail, cell slotCell, schoolID string) models.ScheduleSlot {
	start, end := models.PeriodTimes(cell.period)
	return models.ScheduleSlot{
		Day:         cell.day,
		DayName:     models.DayName(cell.day),
		Period:      cell.period,
		StartTime:   start,
		EndTime:     end,
		TeacherID:   a.TeacherID,
		TeacherName: a.TeacherName,
		ClassID:     a.ClassID,
		ClassName:   a.ClassName,
		ClassCode:   a.ClassCode,
		SubjectID:   a.SubjectID,
		SubjectName: a.SubjectName,
		SubjectCode: a.SubjectCode,
		SchoolID:    schoolID,
		RoomNumber:  a.RoomNumber,
	}
}

// idLess orders numeric ids by value ("2" before "10") and ahead of non-numeric ones, which
// compare as strings.
func idLess(a, b string) bool {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		if na != nb {
			return na < nb
		}
		return a < b
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}
