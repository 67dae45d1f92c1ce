package models

import "github.com/jmoiron/sqlx/types"

// TeachingAssignment links a teacher to a class and subject within a school.
type TeachingAssignment struct {
	ID        string `db:"id" json:"id"`
	TeacherID string `db:"teacher_id" json:"teacherId"`
	ClassID   string `db:"class_id" json:"classId"`
	SubjectID string `db:"subject_id" json:"subjectId"`
	SchoolID  string `db:"school_id" json:"schoolId"`
}

// TeachingAssignmentDetail carries the display fields and frequency hints the
// generator needs.
type TeachingAssignmentDetail struct {
	TeachingAssignment
	TeacherName         string             `db:"teacher_name" json:"teacherName"`
	ClassName           string             `db:"class_name" json:"className"`
	ClassCode           string             `db:"class_code" json:"classCode"`
	RoomNumber          *string            `db:"room_number" json:"roomNumber,omitempty"`
	SubjectName         string             `db:"subject_name" json:"subjectName"`
	SubjectCode         string             `db:"subject_code" json:"subjectCode"`
	CreditHours         *float64           `db:"credit_hours" json:"creditHours,omitempty"`
	WeeklyHoursPerClass types.NullJSONText `db:"weekly_hours_per_class" json:"-"`
}
