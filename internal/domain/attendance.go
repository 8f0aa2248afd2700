package domain

import "time"

const (
	// DateLayout is the stored calendar date format.
	DateLayout = "2006-01-02"
	// TimeLayout is the stored time-of-day format.
	TimeLayout = "15:04:05"
)

// AttendanceRecord is one row of the attendance ledger.
// At most one row exists per (name, date); the unique index enforces it.
type AttendanceRecord struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"type:text;not null;uniqueIndex:idx_attendance_name_date,priority:1" json:"name"`
	Date string `gorm:"type:text;not null;uniqueIndex:idx_attendance_name_date,priority:2;index" json:"date"`
	Time string `gorm:"type:text;not null" json:"time"`
}

// TableName specifies the table name for AttendanceRecord.
func (AttendanceRecord) TableName() string {
	return "attendance"
}

// NewAttendanceRecord derives date and time-of-day from ts in local time.
func NewAttendanceRecord(name string, ts time.Time) *AttendanceRecord {
	local := ts.Local()
	return &AttendanceRecord{
		Name: name,
		Date: local.Format(DateLayout),
		Time: local.Format(TimeLayout),
	}
}

// MarkResult is the outcome of marking attendance. AlreadyMarked is an
// expected outcome, not an error.
type MarkResult string

const (
	Marked        MarkResult = "marked"
	AlreadyMarked MarkResult = "already_marked"
)

// AttendanceFilter narrows a ledger query. Empty fields match everything.
type AttendanceFilter struct {
	Name string
	Date string
}
