package models

import "fmt"

// Weekly grid dimensions. Days run Saturday (0) through Thursday (5).
const (
	DaysPerWeek   = 6
	PeriodsPerDay = 6

	firstPeriodStartHour = 8
)

var dayNames = [DaysPerWeek]string{"Saturday", "Sunday", "Monday", "Tuesday", "Wednesday", "Thursday"}

// DayName returns the display name for a day index, or an empty string when out of range.
func DayName(day int) string {
	if !ValidDay(day) {
		return ""
	}
	return dayNames[day]
}

// ValidDay reports whether day is inside the weekly grid.
func ValidDay(day int) bool { return day >= 0 && day < DaysPerWeek }

// ValidPeriod reports whether period is inside the daily grid.
func ValidPeriod(period int) bool { return period >= 1 && period <= PeriodsPerDay }

// PeriodTimes returns the default one hour window of a period as HH:MM strings.
func PeriodTimes(period int) (string, string) {
	start := firstPeriodStartHour + period - 1
	return fmt.Sprintf("%02d:00", start), fmt.Sprintf("%02d:00", start+1)
}

// PeriodLabel is the key used for a period in formatted timetables.
func PeriodLabel(period int) string {
	return fmt.Sprintf("Period %d", period)
}

// ScheduleSlot is one placed teaching session in the weekly grid.
type ScheduleSlot struct {
	Day         int     `json:"day" validate:"min=0,max=5"`
	DayName     string  `json:"dayName"`
	Period      int     `json:"period" validate:"min=1,max=6"`
	StartTime   string  `json:"startTime"`
	EndTime     string  `json:"endTime"`
	TeacherID   string  `json:"teacherId" validate:"required"`
	TeacherName string  `json:"teacherName"`
	ClassID     string  `json:"classId" validate:"required"`
	ClassName   string  `json:"className"`
	ClassCode   string  `json:"classCode"`
	SubjectID   string  `json:"subjectId" validate:"required"`
	SubjectName string  `json:"subjectName"`
	SubjectCode string  `json:"subjectCode"`
	SchoolID    string  `json:"schoolId"`
	RoomNumber  *string `json:"roomNumber,omitempty"`
}

// Conflict dimensions shared by the validator and manual slot editing.
const (
	ConflictDimensionTeacher = "TEACHER"
	ConflictDimensionClass   = "CLASS"
)

// ScheduleConflict describes an existing timetable entry that blocks a slot.
type ScheduleConflict struct {
	EntryID   string `json:"entryId"`
	ClassID   string `json:"classId"`
	SubjectID string `json:"subjectId"`
	TeacherID string `json:"teacherId"`
	Day       int    `json:"day"`
	DayName   string `json:"dayName"`
	Period    int    `json:"period"`
	Dimension string `json:"dimension"`
}

// ScheduleConflictError is returned when a slot collides with an existing one.
type ScheduleConflictError struct {
	Type     string           `json:"type"`
	Message  string           `json:"message"`
	Conflict ScheduleConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
