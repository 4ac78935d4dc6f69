package sdk

import (
	"errors"

	"github.com/celerix-dev/celerix-checkin/pkg/schema"
)

var (
	// ErrKeyNotFound is returned by a Storage when a key has no value.
	ErrKeyNotFound = errors.New("key not found")

	// ErrMissingCredentials is returned when email or password is empty.
	ErrMissingCredentials = errors.New("email and password are required")
	// ErrInvalidCredentials is returned when no active user matches the credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDemoUnavailable is returned when no active user has the requested demo role.
	ErrDemoUnavailable = errors.New("demo user unavailable")
	// ErrMissingCode is returned when a scan carries no QR code.
	ErrMissingCode = errors.New("qr code is required")
	// ErrInvalidCode is returned when a scanned code is not the office code.
	ErrInvalidCode = errors.New("invalid qr code")
	// ErrAlreadyCompleted is returned by a third scan on the same day.
	ErrAlreadyCompleted = errors.New("already completed for today")
	// ErrRequestFailed is returned by the remote client for any failed request.
	ErrRequestFailed = errors.New("request failed")

	// ErrInvalidDate is returned for a date key that is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")
	// ErrInvalidMonth is returned for a month key that is not YYYY-MM.
	ErrInvalidMonth = errors.New("invalid month, expected YYYY-MM")
	// ErrInvalidRole is returned for a role other than employee or admin.
	ErrInvalidRole = errors.New("invalid role")
)

// Persisted keys of the check-in layout.
const (
	KeyUsers      = "users"
	KeyAttendance = "attendance"
	KeyAuth       = "auth"
)

// --- Storage (Interface Segregation) ---

// KVReader reads raw values.
type KVReader interface {
	Get(key string) (string, error)
}

// KVWriter writes and removes raw values.
type KVWriter interface {
	Set(key, value string) error
	Remove(key string) error
}

// Storage is the key-value substrate the stores persist to. Values are JSON documents.
type Storage interface {
	KVReader
	KVWriter
}

// --- Service Interfaces ---

// SessionAPI authenticates users and keeps the current session.
type SessionAPI interface {
	GetSession() (*schema.AuthSession, error)
	Login(email, password string) (schema.AuthSession, error)
	DemoLogin(role schema.Role) (schema.AuthSession, error)
	Logout() error
}

// AttendanceAPI records scans and reads derived attendance.
type AttendanceAPI interface {
	RecordScan(userID, code string) (schema.AttendanceDay, error)
	GetDay(userID, dateKey string) (schema.AttendanceDay, error)
	GetWeek(userID string) ([]schema.AttendanceDay, error)
	GetHistory(userID, monthKey string) ([]schema.AttendanceDay, error)
}

// AdminAPI lists attendance for all users and manages user records.
type AdminAPI interface {
	GetAdminRows(dateKey string) ([]schema.AdminRow, error)
	ListUsers() ([]schema.User, error)
	UpsertUser(user schema.User) (schema.User, error)
	ToggleUser(userID string) (*schema.User, error)
}

// CheckinAPI is the complete surface offered to callers. Both the local store-backed
// service and the remote HTTP client implement it.
type CheckinAPI interface {
	SessionAPI
	AttendanceAPI
	AdminAPI
}
