package schema

import "time"

// Status is the derived attendance state of a single day.
type Status string

const (
	StatusOK         Status = "OK"
	StatusLate       Status = "LATE"
	StatusAbsent     Status = "ABSENT"
	StatusIncomplete Status = "INCOMPLETE"
)

// AttendanceDay holds the two punches of one user on one calendar day.
// Status is recomputed on every read and is never authoritative in storage.
type AttendanceDay struct {
	Date    string     `json:"date"`
	InTime  *time.Time `json:"inTime"`
	OutTime *time.Time `json:"outTime"`
	Status  Status     `json:"status"`
}

// AdminRow is one line of the admin overview for a given date.
type AdminRow struct {
	UserID   string     `json:"userId"`
	FullName string     `json:"fullName"`
	InTime   *time.Time `json:"inTime"`
	OutTime  *time.Time `json:"outTime"`
	Status   Status     `json:"status"`
}

// Summary counts admin rows per status.
type Summary struct {
	Total      int `json:"total"`
	OK         int `json:"OK"`
	Late       int `json:"LATE"`
	Absent     int `json:"ABSENT"`
	Incomplete int `json:"INCOMPLETE"`
}
