package service

import (
	"fmt"
	"sort"
	"time"

	"golang.org/x/exp/maps"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// Validation issue types and severities.
const (
	IssueTeacherDoubleBooking = "TEACHER_DOUBLE_BOOKING"
	IssueClassDoubleBooking   = "CLASS_DOUBLE_BOOKING"
	IssueSubjectRepetition    = "SUBJECT_REPETITION"

	SeverityError   = "ERROR"
	SeverityWarning = "WARNING"
)

type cellOwnerKey struct {
	day    int
	period int
	owner  string
}

type classDaySubjectKey struct {
	classID   string
	day       int
	subjectID string
}

// validateSchedule checks a slot list for double-booked teachers and classes (conflicts)
// and same-day subject repetition (warnings). Any slot list can be checked, not only
// generator output.
func validateSchedule(slots []models.ScheduleSlot, now time.Time) dto.ValidationResult {
	teacherCells := make(map[cellOwnerKey][]int)
	classCells := make(map[cellOwnerKey][]int)
	subjectDays := make(map[classDaySubjectKey][]int)

	for i, slot := range slots {
		teacherKey := cellOwnerKey{day: slot.Day, period: slot.Period, owner: slot.TeacherID}
		teacherCells[teacherKey] = append(teacherCells[teacherKey], i)
		classKey := cellOwnerKey{day: slot.Day, period: slot.Period, owner: slot.ClassID}
		classCells[classKey] = append(classCells[classKey], i)
		subjectKey := classDaySubjectKey{classID: slot.ClassID, day: slot.Day, subjectID: slot.SubjectID}
		subjectDays[subjectKey] = append(subjectDays[subjectKey], i)
	}

	conflicts := make([]dto.ScheduleIssue, 0)
	for _, key := range sortedCellKeys(teacherCells) {
		members := teacherCells[key]
		if len(members) < 2 {
			continue
		}
		first := slots[members[0]]
		conflicts = append(conflicts, dto.ScheduleIssue{
			Type:     IssueTeacherDoubleBooking,
			Severity: SeverityError,
			Message: fmt.Sprintf("Teacher %s is booked for %d classes on %s %s",
				displayName(first.TeacherName, first.TeacherID), len(members), models.DayName(key.day), models.PeriodLabel(key.period)),
			Details: issueSlots(slots, members),
		})
	}
	for _, key := range sortedCellKeys(classCells) {
		members := classCells[key]
		if len(members) < 2 {
			continue
		}
		first := slots[members[0]]
		conflicts = append(conflicts, dto.ScheduleIssue{
			Type:     IssueClassDoubleBooking,
			Severity: SeverityError,
			Message: fmt.Sprintf("Class %s has %d subjects on %s %s",
				displayName(first.ClassName, first.ClassID), len(members), models.DayName(key.day), models.PeriodLabel(key.period)),
			Details: issueSlots(slots, members),
		})
	}

	warnings := make([]dto.ScheduleIssue, 0)
	subjectKeys := maps.Keys(subjectDays)
	sort.Slice(subjectKeys, func(i, j int) bool {
		a, b := subjectKeys[i], subjectKeys[j]
		if a.classID != b.classID {
			return a.classID < b.classID
		}
		if a.day != b.day {
			return a.day < b.day
		}
		return a.subjectID < b.subjectID
	})
	for _, key := range subjectKeys {
		members := subjectDays[key]
		if len(members) < 2 {
			continue
		}
		first := slots[members[0]]
		warnings = append(warnings, dto.ScheduleIssue{
			Type:     IssueSubjectRepetition,
			Severity: SeverityWarning,
			Message: fmt.Sprintf("Subject %s appears %d times for class %s on %s",
				displayName(first.SubjectName, first.SubjectID), len(members), displayName(first.ClassName, first.ClassID), models.DayName(key.day)),
			Details: issueSlots(slots, members),
		})
	}

	return dto.ValidationResult{
		IsValid:        len(conflicts) == 0,
		Conflicts:      conflicts,
		Warnings:       warnings,
		TotalSlots:     len(slots),
		ValidationDate: now,
		Summary: dto.ValidationSummary{
			HasConflicts:  len(conflicts) > 0,
			HasWarnings:   len(warnings) > 0,
			ConflictCount: len(conflicts),
			WarningCount:  len(warnings),
		},
	}
}

func sortedCellKeys(groups map[cellOwnerKey][]int) []cellOwnerKey {
	keys := maps.Keys(groups)
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.day != b.day {
			return a.day < b.day
		}
		if a.period != b.period {
			return a.period < b.period
		}
		return a.owner < b.owner
	})
	return keys
}

func issueSlots(slots []models.ScheduleSlot, members []int) []dto.IssueSlot {
	details := make([]dto.IssueSlot, 0, len(members))
	for _, idx := range members {
		slot := slots[idx]
		details = append(details, dto.IssueSlot{
			Day:         slot.Day,
			DayName:     models.DayName(slot.Day),
			Period:      slot.Period,
			TeacherID:   slot.TeacherID,
			TeacherName: slot.TeacherName,
			ClassID:     slot.ClassID,
			ClassName:   slot.ClassName,
			SubjectID:   slot.SubjectID,
			SubjectName: slot.SubjectName,
		})
	}
	return details
}

func displayName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

// slotsFromEntries projects persisted entries back into slots for validation.
func slotsFromEntries(entries []models.TimetableEntryDetail) []models.ScheduleSlot {
	slots := make([]models.ScheduleSlot, 0, len(entries))
	for _, e := range entries {
		slots = append(slots, models.ScheduleSlot{
			Day:         e.Day,
			DayName:     models.DayName(e.Day),
			Period:      e.Period,
			StartTime:   e.StartTime,
			EndTime:     e.EndTime,
			TeacherID:   e.TeacherID,
			TeacherName: e.TeacherName,
			ClassID:     e.ClassID,
			ClassName:   e.ClassName,
			ClassCode:   e.ClassCode,
			SubjectID:   e.SubjectID,
			SubjectName: e.SubjectName,
			SubjectCode: e.SubjectCode,
			SchoolID:    e.SchoolID,
			RoomNumber:  e.RoomNumber,
		})
	}
	return slots
}
