package models

import "time"

// TimetableEntry is a persisted slot. Rows written by one generation run share CreatedAt,
// which identifies the version they belong to.
type TimetableEntry struct {
	ID         string     `db:"id" json:"id"`
	SchoolID   string     `db:"school_id" json:"schoolId"`
	ClassID    string     `db:"class_id" json:"classId"`
	SubjectID  string     `db:"subject_id" json:"subjectId"`
	TeacherID  string     `db:"teacher_id" json:"teacherId"`
	Day        int        `db:"day" json:"day"`
	Period     int        `db:"period" json:"period"`
	StartTime  string     `db:"start_time" json:"startTime"`
	EndTime    string     `db:"end_time" json:"endTime"`
	RoomNumber *string    `db:"room_number" json:"roomNumber,omitempty"`
	CreatedBy  *string    `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	DeletedAt  *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
}

// TimetableEntryDetail joins display names onto an entry.
type TimetableEntryDetail struct {
	TimetableEntry
	ClassName   string `db:"class_name" json:"className"`
	ClassCode   string `db:"class_code" json:"classCode"`
	SubjectName string `db:"subject_name" json:"subjectName"`
	SubjectCode string `db:"subject_code" json:"subjectCode"`
	TeacherName string `db:"teacher_name" json:"teacherName"`
}

// EntryFilter narrows active entry lookups.
type EntryFilter struct {
	SchoolID  string
	ClassID   string
	TeacherID string
	Day       *int
}

// ScheduleVersion summarises one generation batch.
type ScheduleVersion struct {
	CreatedAt   time.Time  `db:"created_at"`
	TotalSlots  int        `db:"total_slots"`
	ActiveUntil *time.Time `db:"active_until"`
	IsCurrent   bool       `db:"is_current"`
}
