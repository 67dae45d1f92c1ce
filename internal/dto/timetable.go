package dto

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// SubjectFrequencyOption overrides the weekly session count of one subject in a class.
type SubjectFrequencyOption struct {
	SubjectID string  `json:"subjectId" validate:"required"`
	Frequency float64 `json:"frequency" validate:"gte=0"`
}

// ClassGenerationOption groups frequency overrides for a class.
type ClassGenerationOption struct {
	ClassID  string                   `json:"classId" validate:"required"`
	Subjects []SubjectFrequencyOption `json:"subjects" validate:"omitempty,dive"`
}

// GenerateOptions tunes a generation run.
type GenerateOptions struct {
	Classes []ClassGenerationOption `json:"classes" validate:"omitempty,dive"`
}

// GenerateScheduleRequest asks for a fresh timetable for a school.
type GenerateScheduleRequest struct {
	SchoolID string          `json:"schoolId"`
	Options  GenerateOptions `json:"options"`
}

// FormattedSlot is the display shape of a slot.
type FormattedSlot struct {
	Day         int    `json:"day"`
	DayName     string `json:"dayName"`
	Period      int    `json:"period"`
	Time        string `json:"time"`
	ClassID     string `json:"classId"`
	ClassName   string `json:"className"`
	ClassCode   string `json:"classCode,omitempty"`
	SubjectID   string `json:"subjectId"`
	SubjectName string `json:"subjectName"`
	SubjectCode string `json:"subjectCode,omitempty"`
	TeacherID   string `json:"teacherId"`
	TeacherName string `json:"teacherName"`
	Room        string `json:"room"`
}

// FormattedSchedule nests slots by day name then period label.
type FormattedSchedule map[string]map[string][]FormattedSlot

// IssueSlot describes one slot taking part in a conflict or warning.
type IssueSlot struct {
	Day         int    `json:"day"`
	DayName     string `json:"dayName"`
	Period      int    `json:"period"`
	TeacherID   string `json:"teacherId"`
	TeacherName string `json:"teacherName"`
	ClassID     string `json:"classId"`
	ClassName   string `json:"className"`
	SubjectID   string `json:"subjectId"`
	SubjectName string `json:"subjectName"`
}

// ScheduleIssue is a conflict or warning raised by validation.
type ScheduleIssue struct {
	Type     string      `json:"type"`
	Severity string      `json:"severity"`
	Message  string      `json:"message"`
	Details  []IssueSlot `json:"details"`
}

// ValidationSummary condenses a validation result.
type ValidationSummary struct {
	HasConflicts  bool `json:"hasConflicts"`
	HasWarnings   bool `json:"hasWarnings"`
	ConflictCount int  `json:"conflictCount"`
	WarningCount  int  `json:"warningCount"`
}

// ValidationResult is the outcome of checking a slot list.
type ValidationResult struct {
	IsValid        bool              `json:"isValid"`
	Conflicts      []ScheduleIssue   `json:"conflicts"`
	Warnings       []ScheduleIssue   `json:"warnings"`
	TotalSlots     int               `json:"totalSlots"`
	ValidationDate time.Time         `json:"validationDate"`
	Summary        ValidationSummary `json:"summary"`
}

// ValidateScheduleRequest submits a flat slot list for checking.
type ValidateScheduleRequest struct {
	Slots []models.ScheduleSlot `json:"slots" validate:"dive"`
}

// RepetitionDetail reports a subject placed more than once in a class-day.
type RepetitionDetail struct {
	ClassID     string `json:"classId"`
	ClassName   string `json:"className"`
	Day         int    `json:"day"`
	DayName     string `json:"dayName"`
	SubjectID   string `json:"subjectId"`
	SubjectName string `json:"subjectName"`
	Count       int    `json:"count"`
}

// RepetitionSummary aggregates same-day subject repetition.
type RepetitionSummary struct {
	TotalSubjectSlots     int                `json:"totalSubjectSlots"`
	ClassesWithRepetition int                `json:"classesWithRepetition"`
	TotalRepetitions      int                `json:"totalRepetitions"`
	RepetitionDetails     []RepetitionDetail `json:"repetitionDetails"`
	PercentageClean       string             `json:"percentageClean"`
}

// PlacementShortfall is a session the engine could not place anywhere.
type PlacementShortfall struct {
	ClassID      string `json:"classId"`
	ClassName    string `json:"className"`
	SubjectID    string `json:"subjectId"`
	SubjectName  string `json:"subjectName"`
	TeacherID    string `json:"teacherId"`
	TeacherName  string `json:"teacherName"`
	PreferredDay int    `json:"preferredDay"`
}

// PlacementSummary reports how sessions were placed.
type PlacementSummary struct {
	Requested     int                  `json:"requested"`
	Placed        int                  `json:"placed"`
	Shortfalls    int                  `json:"shortfalls"`
	Details       []PlacementShortfall `json:"details"`
	StrategyUsage map[string]int       `json:"strategyUsage"`
}

// SubjectDistribution counts subjects per class name and day name.
type SubjectDistribution struct {
	ByClassAndDay map[string]map[string]map[string]int `json:"byClassAndDay"`
}

// ScheduleStatistics summarises a generated timetable.
type ScheduleStatistics struct {
	TotalSlots          int                 `json:"totalSlots"`
	TotalAssignments    int                 `json:"totalAssignments"`
	UniqueTeachers      int                 `json:"uniqueTeachers"`
	UniqueClasses       int                 `json:"uniqueClasses"`
	UniqueSubjects      int                 `json:"uniqueSubjects"`
	SlotsPerDay         map[string]int      `json:"slotsPerDay"`
	SlotsPerTeacher     map[string]int      `json:"slotsPerTeacher"`
	SlotsPerClass       map[string]int      `json:"slotsPerClass"`
	SlotsPerSubject     map[string]int      `json:"slotsPerSubject"`
	SubjectDistribution SubjectDistribution `json:"subjectDistribution"`
	RepetitionSummary   RepetitionSummary   `json:"repetitionSummary"`
	Placement           PlacementSummary    `json:"placement"`
}

// GenerateScheduleResponse returns the persisted timetable of a run.
type GenerateScheduleResponse struct {
	SchoolID    string             `json:"schoolId"`
	VersionDate time.Time          `json:"versionDate"`
	TotalSlots  int                `json:"totalSlots"`
	SavedSlots  int                `json:"savedSlots"`
	Schedule    FormattedSchedule  `json:"schedule"`
	Statistics  ScheduleStatistics `json:"statistics"`
	Validation  ValidationResult   `json:"validation"`
}

// ClassScheduleResponse is the active timetable of one class.
type ClassScheduleResponse struct {
	ClassID    string            `json:"classId"`
	TotalSlots int               `json:"totalSlots"`
	Schedule   FormattedSchedule `json:"schedule"`
}

// TeacherScheduleResponse is the active timetable of one teacher.
type TeacherScheduleResponse struct {
	TeacherID  string            `json:"teacherId"`
	TotalSlots int               `json:"totalSlots"`
	Schedule   FormattedSchedule `json:"schedule"`
}

// DayScheduleResponse lists the slots of a class or teacher on one day.
type DayScheduleResponse struct {
	Day     int             `json:"day"`
	DayName string          `json:"dayName"`
	Slots   []FormattedSlot `json:"slots"`
}

// SchoolScheduleStatistics counts the distinct participants of a timetable.
type SchoolScheduleStatistics struct {
	TotalClasses  int `json:"totalClasses"`
	TotalTeachers int `json:"totalTeachers"`
	TotalSubjects int `json:"totalSubjects"`
}

// SchoolScheduleResponse is the active timetable of a school.
type SchoolScheduleResponse struct {
	SchoolID   string                   `json:"schoolId"`
	TotalSlots int                      `json:"totalSlots"`
	Schedule   FormattedSchedule        `json:"schedule"`
	Statistics SchoolScheduleStatistics `json:"statistics"`
}

// Historical lookup outcomes.
const (
	HistoricalStatusFound         = "FOUND"
	HistoricalStatusNotFound      = "NOT_FOUND"
	HistoricalStatusNotYetCreated = "NOT_YET_CREATED"
)

// HistoricalSchedule is the version that was in force during a month.
type HistoricalSchedule struct {
	SchoolID    string            `json:"schoolId"`
	Year        int               `json:"year"`
	Month       int               `json:"month"`
	Status      string            `json:"status"`
	Message     string            `json:"message,omitempty"`
	VersionDate *time.Time        `json:"versionDate,omitempty"`
	ActiveUntil *time.Time        `json:"activeUntil,omitempty"`
	TotalSlots  int               `json:"totalSlots"`
	Schedule    FormattedSchedule `json:"schedule,omitempty"`
}

// HistoricalScheduleQuery selects a month.
type HistoricalScheduleQuery struct {
	SchoolID string `form:"schoolId"`
	Year     int    `form:"year" validate:"required,min=2000,max=9999"`
	Month    int    `form:"month" validate:"required,min=1,max=12"`
}

// ChangeHistoryQuery selects the two months to compare.
type ChangeHistoryQuery struct {
	SchoolID  string `form:"schoolId"`
	FromYear  int    `form:"fromYear" validate:"required,min=2000,max=9999"`
	FromMonth int    `form:"fromMonth" validate:"required,min=1,max=12"`
	ToYear    int    `form:"toYear" validate:"required,min=2000,max=9999"`
	ToMonth   int    `form:"toMonth" validate:"required,min=1,max=12"`
}

// SnapshotRef identifies one side of a comparison.
type SnapshotRef struct {
	Year        int        `json:"year"`
	Month       int        `json:"month"`
	Status      string     `json:"status"`
	VersionDate *time.Time `json:"versionDate,omitempty"`
	TotalSlots  int        `json:"totalSlots"`
}

// SlotChange pairs the before and after state of a modified slot.
type SlotChange struct {
	ClassID string        `json:"classId"`
	Day     int           `json:"day"`
	DayName string        `json:"dayName"`
	Period  int           `json:"period"`
	Fields  []string      `json:"fields"`
	From    FormattedSlot `json:"from"`
	To      FormattedSlot `json:"to"`
}

// ChangeSummary counts each change category.
type ChangeSummary struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Modified  int `json:"modified"`
	Unchanged int `json:"unchanged"`
}

// ChangeDetails lists the slots of each change category.
type ChangeDetails struct {
	Added     []FormattedSlot `json:"added"`
	Removed   []FormattedSlot `json:"removed"`
	Modified  []SlotChange    `json:"modified"`
	Unchanged []FormattedSlot `json:"unchanged"`
}

// ChangeHistory compares the timetables in force during two months.
type ChangeHistory struct {
	SchoolID string        `json:"schoolId"`
	From     SnapshotRef   `json:"from"`
	To       SnapshotRef   `json:"to"`
	Summary  ChangeSummary `json:"summary"`
	Details  ChangeDetails `json:"details"`
}

// ScheduleVersionSummary describes one stored version.
type ScheduleVersionSummary struct {
	VersionDate time.Time  `json:"versionDate"`
	Year        int        `json:"year"`
	Month       int        `json:"month"`
	TotalSlots  int        `json:"totalSlots"`
	ActiveUntil *time.Time `json:"activeUntil,omitempty"`
	IsCurrent   bool       `json:"isCurrent"`
}

// DeleteScheduleResponse reports a hard delete.
type DeleteScheduleResponse struct {
	SchoolID     string `json:"schoolId"`
	DeletedCount int64  `json:"deletedCount"`
}

// DeleteSlotResponse reports a manual slot removal. A missing slot yields DeletedCount 0.
type DeleteSlotResponse struct {
	SchoolID     string `json:"schoolId"`
	ClassID      string `json:"classId"`
	Day          int    `json:"day"`
	Period       int    `json:"period"`
	DeletedCount int64  `json:"deletedCount"`
}

// CreateSlotRequest places or replaces a single slot by hand.
type CreateSlotRequest struct {
	SchoolID   string  `json:"schoolId"`
	ClassID    string  `json:"classId" validate:"required"`
	SubjectID  string  `json:"subjectId" validate:"required"`
	TeacherID  string  `json:"teacherId" validate:"required"`
	Day        *int    `json:"day" validate:"required,min=0,max=5"`
	Period     *int    `json:"period" validate:"required,min=1,max=6"`
	RoomNumber *string `json:"roomNumber"`
	StartTime  string  `json:"startTime" validate:"omitempty,datetime=15:04"`
	EndTime    string  `json:"endTime" validate:"omitempty,datetime=15:04"`
}

// DeleteSlotQuery identifies the active slot to remove.
type DeleteSlotQuery struct {
	SchoolID string `form:"schoolId"`
	ClassID  string `form:"classId" validate:"required"`
	Day      *int   `form:"day" validate:"required,min=0,max=5"`
	Period   *int   `form:"period" validate:"required,min=1,max=6"`
}

// ClassTeacherSubject is a subject a teacher covers in a class.
type ClassTeacherSubject struct {
	SubjectID   string `json:"subjectId"`
	SubjectName string `json:"subjectName"`
	SubjectCode string `json:"subjectCode"`
}

// ClassTeacher groups the subjects one teacher covers in a class.
type ClassTeacher struct {
	TeacherID   string                `json:"teacherId"`
	TeacherName string                `json:"teacherName"`
	Subjects    []ClassTeacherSubject `json:"subjects"`
}

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// ExportScheduleQuery selects the timetable to render.
type ExportScheduleQuery struct {
	SchoolID  string `form:"schoolId"`
	Format    string `form:"format" validate:"omitempty,oneof=csv pdf"`
	ClassID   string `form:"classId"`
	TeacherID string `form:"teacherId"`
}

// ExportedFile is a rendered timetable ready to stream.
type ExportedFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
