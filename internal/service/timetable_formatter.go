package service

import (
	"fmt"
	"sort"

	"golang.org/x/exp/maps"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const missingRoom = "N/A"

// newFormattedSchedule returns a grid with every day and period present.
func newFormattedSchedule() dto.FormattedSchedule {
	schedule := make(dto.FormattedSchedule, models.DaysPerWeek)
	for day := 0; day < models.DaysPerWeek; day++ {
		periods := make(map[string][]dto.FormattedSlot, models.PeriodsPerDay)
		for period := 1; period <= models.PeriodsPerDay; period++ {
			periods[models.PeriodLabel(period)] = []dto.FormattedSlot{}
		}
		schedule[models.DayName(day)] = periods
	}
	return schedule
}

func addFormatted(schedule dto.FormattedSchedule, slot dto.FormattedSlot) {
	dayName := models.DayName(slot.Day)
	if dayName == "" || !models.ValidPeriod(slot.Period) {
		return
	}
	label := models.PeriodLabel(slot.Period)
	schedule[dayName][label] = append(schedule[dayName][label], slot)
}

func formatSlotsByDayPeriod(slots []models.ScheduleSlot) dto.FormattedSchedule {
	schedule := newFormattedSchedule()
	for _, slot := range slots {
		addFormatted(schedule, formatSlot(slot))
	}
	return schedule
}

func formatEntriesByDayPeriod(entries []models.TimetableEntryDetail) dto.FormattedSchedule {
	schedule := newFormattedSchedule()
	for _, entry := range entries {
		addFormatted(schedule, formatEntry(entry))
	}
	return schedule
}

func formatSlot(slot models.ScheduleSlot) dto.FormattedSlot {
	return dto.FormattedSlot{
		Day:         slot.Day,
		DayName:     models.DayName(slot.Day),
		Period:      slot.Period,
		Time:        timeRange(slot.StartTime, slot.EndTime, slot.Period),
		ClassID:     slot.ClassID,
		ClassName:   slot.ClassName,
		ClassCode:   slot.ClassCode,
		SubjectID:   slot.SubjectID,
		SubjectName: slot.SubjectName,
		SubjectCode: slot.SubjectCode,
		TeacherID:   slot.TeacherID,
		TeacherName: slot.TeacherName,
		Room:        roomLabel(slot.RoomNumber),
	}
}

func formatEntry(entry models.TimetableEntryDetail) dto.FormattedSlot {
	return dto.FormattedSlot{
		Day:         entry.Day,
		DayName:     models.DayName(entry.Day),
		Period:      entry.Period,
		Time:        timeRange(entry.StartTime, entry.EndTime, entry.Period),
		ClassID:     entry.ClassID,
		ClassName:   entry.ClassName,
		ClassCode:   entry.ClassCode,
		SubjectID:   entry.SubjectID,
		SubjectName: entry.SubjectName,
		SubjectCode: entry.SubjectCode,
		TeacherID:   entry.TeacherID,
		TeacherName: entry.TeacherName,
		Room:        roomLabel(entry.RoomNumber),
	}
}

// timeRange renders "HH:MM - HH:MM", falling back to the period's default window.
func timeRange(start, end string, period int) string {
	defaultStart, defaultEnd := models.PeriodTimes(period)
	return fmt.Sprintf("%s - %s", clock(start, defaultStart), clock(end, defaultEnd))
}

// clock trims database TIME values such as "08:00:00" to HH:MM.
func clock(value, fallback string) string {
	if len(value) < 5 {
		return fallback
	}
	return value[:5]
}

func roomLabel(room *string) string {
	if room == nil || *room == "" {
		return missingRoom
	}
	return *room
}

// buildScheduleStatistics summarises a generated slot list.
func buildScheduleStatistics(slots []models.ScheduleSlot, assignmentCount int, build *scheduleBuild) dto.ScheduleStatistics {
	stats := dto.ScheduleStatistics{
		TotalSlots:       len(slots),
		TotalAssignments: assignmentCount,
		SlotsPerDay:      make(map[string]int, models.DaysPerWeek),
		SlotsPerTeacher:  make(map[string]int),
		SlotsPerClass:    make(map[string]int),
		SlotsPerSubject:  make(map[string]int),
		SubjectDistribution: dto.SubjectDistribution{
			ByClassAndDay: make(map[string]map[string]map[string]int),
		},
	}
	for day := 0; day < models.DaysPerWeek; day++ {
		stats.SlotsPerDay[models.DayName(day)] = 0
	}

	teachers := make(map[string]struct{})
	classes := make(map[string]struct{})
	subjects := make(map[string]struct{})

	for _, slot := range slots {
		teachers[slot.TeacherID] = struct{}{}
		classes[slot.ClassID] = struct{}{}
		subjects[slot.SubjectID] = struct{}{}

		dayName := models.DayName(slot.Day)
		className := displayName(slot.ClassName, slot.ClassID)
		subjectName := displayName(slot.SubjectName, slot.SubjectID)

		stats.SlotsPerDay[dayName]++
		stats.SlotsPerTeacher[displayName(slot.TeacherName, slot.TeacherID)]++
		stats.SlotsPerClass[className]++
		stats.SlotsPerSubject[subjectName]++

		byDay := stats.SubjectDistribution.ByClassAndDay[className]
		if byDay == nil {
			byDay = make(map[string]map[string]int)
			stats.SubjectDistribution.ByClassAndDay[className] = byDay
		}
		if byDay[dayName] == nil {
			byDay[dayName] = make(map[string]int)
		}
		byDay[dayName][subjectName]++
	}

	stats.UniqueTeachers = len(teachers)
	stats.UniqueClasses = len(classes)
	stats.UniqueSubjects = len(subjects)
	stats.RepetitionSummary = repetitionSummary(slots)

	placement := dto.PlacementSummary{
		Placed:        len(slots),
		Details:       []dto.PlacementShortfall{},
		StrategyUsage: map[string]int{},
	}
	if build != nil {
		placement.Requested = build.Requested
		placement.Shortfalls = len(build.Shortfalls)
		if len(build.Shortfalls) > 0 {
			placement.Details = build.Shortfalls
		}
		placement.StrategyUsage = maps.Clone(build.StrategyUsage)
	}
	stats.Placement = placement

	return stats
}

func repetitionSummary(slots []models.ScheduleSlot) dto.RepetitionSummary {
	counts := make(map[classDaySubjectKey]int)
	first := make(map[classDaySubjectKey]models.ScheduleSlot)
	for _, slot := range slots {
		key := classDaySubjectKey{classID: slot.ClassID, day: slot.Day, subjectID: slot.SubjectID}
		if _, ok := first[key]; !ok {
			first[key] = slot
		}
		counts[key]++
	}

	summary := dto.RepetitionSummary{
		TotalSubjectSlots: len(slots),
		RepetitionDetails: []dto.RepetitionDetail{},
	}
	classesWithRepetition := make(map[string]struct{})
	for key, count := range counts {
		if count < 2 {
			continue
		}
		slot := first[key]
		classesWithRepetition[key.classID] = struct{}{}
		summary.TotalRepetitions += count - 1
		summary.RepetitionDetails = append(summary.RepetitionDetails, dto.RepetitionDetail{
			ClassID:     key.classID,
			ClassName:   slot.ClassName,
			Day:         key.day,
			DayName:     models.DayName(key.day),
			SubjectID:   key.subjectID,
			SubjectName: slot.SubjectName,
			Count:       count,
		})
	}
	sort.Slice(summary.RepetitionDetails, func(i, j int) bool {
		a, b := summary.RepetitionDetails[i], summary.RepetitionDetails[j]
		if a.ClassID != b.ClassID {
			return a.ClassID < b.ClassID
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		return a.SubjectID < b.SubjectID
	})
	summary.ClassesWithRepetition = len(classesWithRepetition)

	clean := 100.0
	if len(slots) > 0 {
		clean = float64(len(slots)-summary.TotalRepetitions) / float64(len(slots)) * 100
	}
	summary.PercentageClean = fmt.Sprintf("%.2f%%", clean)
	return summary
}

// schoolStatistics counts distinct classes, teachers and subjects in active entries.
func schoolStatistics(entries []models.TimetableEntryDetail) dto.SchoolScheduleStatistics {
	classes := make(map[string]struct{})
	teachers := make(map[string]struct{})
	subjects := make(map[string]struct{})
	for _, e := range entries {
		classes[e.ClassID] = struct{}{}
		teachers[e.TeacherID] = struct{}{}
		subjects[e.SubjectID] = struct{}{}
	}
	return dto.SchoolScheduleStatistics{
		TotalClasses:  len(classes),
		TotalTeachers: len(teachers),
		TotalSubjects: len(subjects),
	}
}

// daySlots flattens one day of a formatted grid in period order.
func daySlots(entries []models.TimetableEntryDetail, day int) []dto.FormattedSlot {
	slots := make([]dto.FormattedSlot, 0)
	for _, entry := range entries {
		if entry.Day == day {
			slots = append(slots, formatEntry(entry))
		}
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Period < slots[j].Period })
	return slots
}
