package attendance

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/celerix-dev/celerix-checkin/pkg/schema"
	"github.com/celerix-dev/celerix-checkin/pkg/sdk"
)

// DemoUsers are written into an empty user list when seeding is enabled.
var DemoUsers = []schema.User{
	{
		ID:       "user-employee",
		FullName: "Demo Employee",
		Email:    "employee@demo.local",
		Role:     schema.RoleEmployee,
		Active:   true,
	},
	{
		ID:       "user-admin",
		FullName: "Demo Admin",
		Email:    "admin@demo.local",
		Role:     schema.RoleAdmin,
		Active:   true,
	},
}

// storedDay is the persisted form of an AttendanceDay. Status is derived on read and
// therefore not part of it; a status present in older data is ignored.
type storedDay struct {
	Date    string     `json:"date"`
	InTime  *time.Time `json:"inTime"`
	OutTime *time.Time `json:"outTime"`
}

// book is the persisted attendance layout: userID -> dateKey -> day.
type book map[string]map[string]storedDay

// Options configures a Store.
type Options struct {
	// Verifier checks scanned codes. Required.
	Verifier CodeVerifier
	// Location is the office time zone. Defaults to time.Local.
	Location *time.Location
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
	// SeedDemoUsers writes DemoUsers into an empty user list.
	SeedDemoUsers bool
	Logger        *zap.Logger
}

// Store keeps users and attendance days in a Storage and derives day status on read.
// Mutations are read-modify-write sequences over whole collections, serialized by mu.
type Store struct {
	storage  sdk.Storage
	verifier CodeVerifier
	loc      *time.Location
	now      func() time.Time
	seed     bool
	log      *zap.Logger

	mu sync.Mutex
}

// NewStore creates a Store over storage.
func NewStore(storage sdk.Storage, opts Options) *Store {
	s := &Store{
		storage:  storage,
		verifier: opts.Verifier,
		loc:      opts.Location,
		now:      opts.Now,
		seed:     opts.SeedDemoUsers,
		log:      opts.Logger,
	}
	if s.verifier == nil {
		s.verifier = StaticCode("")
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Location returns the office time zone.
func (s *Store) Location() *time.Location {
	return s.loc
}

// Today returns the current instant in the office time zone.
func (s *Store) Today() time.Time {
	return s.now().In(s.loc)
}

// --- Days ---

// GetDay returns the day of userID at dateKey. A day without punches is a valid zero
// record, not an error.
func (s *Store) GetDay(userID, dateKey string) (schema.AttendanceDay, error) {
	b, err := s.readBook()
	if err != nil {
		return schema.AttendanceDay{}, err
	}
	return s.normalize(dateKey, b[userID][dateKey], s.Today()), nil
}

// RecordScan punches userID in, then out, for today. A failed scan never writes.
func (s *Store) RecordScan(userID, code string) (schema.AttendanceDay, error) {
	if code == "" {
		return schema.AttendanceDay{}, sdk.ErrMissingCode
	}

	now := s.Today()
	if !s.verifier.Verify(code, now) {
		s.log.Warn("scan rejected", zap.String("user_id", userID), zap.Error(sdk.ErrInvalidCode))
		return schema.AttendanceDay{}, sdk.ErrInvalidCode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.readBook()
	if err != nil {
		return schema.AttendanceDay{}, err
	}

	dateKey := ToDateKey(now)
	day := b[userID][dateKey]
	day.Date = dateKey
	stamp := now.UTC()

	switch {
	case day.InTime == nil:
		day.InTime = &stamp
	case day.OutTime == nil:
		day.OutTime = &stamp
	default:
		return schema.AttendanceDay{}, sdk.ErrAlreadyCompleted
	}

	if b[userID] == nil {
		b[userID] = make(map[string]storedDay)
	}
	b[userID][dateKey] = day
	if err := sdk.Set(s.storage, sdk.KeyAttendance, b); err != nil {
		return schema.AttendanceDay{}, fmt.Errorf("failed to save attendance: %w", err)
	}

	result := s.normalize(dateKey, day, now)
	s.log.Info("scan recorded",
		zap.String("user_id", userID),
		zap.String("date", dateKey),
		zap.Bool("check_out", day.OutTime != nil),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

// GetWeek returns Monday through Sunday of the current week.
func (s *Store) GetWeek(userID string) ([]schema.AttendanceDay, error) {
	b, err := s.readBook()
	if err != nil {
		return nil, err
	}

	now := s.Today()
	monday := MondayOf(now)
	days := make([]schema.AttendanceDay, 0, 7)
	for i := 0; i < 7; i++ {
		key := ToDateKey(AddDays(monday, i))
		days = append(days, s.normalize(key, b[userID][key], now))
	}
	return days, nil
}

// GetHistory returns one day per calendar day of monthKey (YYYY-MM).
func (s *Store) GetHistory(userID, monthKey string) ([]schema.AttendanceDay, error) {
	first, err := ParseMonthKey(monthKey, s.loc)
	if err != nil {
		return nil, sdk.ErrInvalidMonth
	}

	b, err := s.readBook()
	if err != nil {
		return nil, err
	}

	now := s.Today()
	n := DaysInMonth(first)
	days := make([]schema.AttendanceDay, 0, n)
	for i := 0; i < n; i++ {
		key := ToDateKey(AddDays(first, i))
		days = append(days, s.normalize(key, b[userID][key], now))
	}
	return days, nil
}

// GetAdminRows returns the day at dateKey for every active user.
func (s *Store) GetAdminRows(dateKey string) ([]schema.AdminRow, error) {
	users, err := s.ListUsers()
	if err != nil {
		return nil, err
	}
	b, err := s.readBook()
	if err != nil {
		return nil, err
	}

	now := s.Today()
	rows := make([]schema.AdminRow, 0, len(users))
	for _, u := range users {
		if !u.Active {
			continue
		}
		day := s.normalize(dateKey, b[u.ID][dateKey], now)
		rows = append(rows, schema.AdminRow{
			UserID:   u.ID,
			FullName: u.FullName,
			InTime:   day.InTime,
			OutTime:  day.OutTime,
			Status:   day.Status,
		})
	}
	return rows, nil
}

func (s *Store) normalize(dateKey string, day storedDay, now time.Time) schema.AttendanceDay {
	return schema.AttendanceDay{
		Date:    dateKey,
		InTime:  day.InTime,
		OutTime: day.OutTime,
		Status:  ComputeStatus(dateKey, day.InTime, day.OutTime, now),
	}
}

func (s *Store) readBook() (book, error) {
	b, err := sdk.Get(s.storage, sdk.KeyAttendance, book{})
	if err != nil {
		return nil, fmt.Errorf("failed to read attendance: %w", err)
	}
	if b == nil {
		b = book{}
	}
	return b, nil
}

// --- Users ---

// ListUsers returns all users, seeding the demo users into an empty list when enabled.
func (s *Store) ListUsers() ([]schema.User, error) {
	users, err := s.readUsers()
	if err != nil {
		return nil, err
	}
	if len(users) > 0 || !s.seed {
		return users, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seedLocked()
}

// FindUserByID returns the user with id, or nil.
func (s *Store) FindUserByID(id string) (*schema.User, error) {
	users, err := s.ListUsers()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == id {
			return &users[i], nil
		}
	}
	return nil, nil
}

// UpsertUser inserts user or replaces the user with the same id. An empty id is
// assigned a new one; an empty role defaults to employee.
func (s *Store) UpsertUser(user schema.User) (schema.User, error) {
	if user.Role == "" {
		user.Role = schema.RoleEmployee
	}
	if !user.Role.Valid() {
		return schema.User{}, sdk.ErrInvalidRole
	}
	if user.ID == "" {
		user.ID = "user-" + uuid.NewString()
	}

	if _, err := s.ListUsers(); err != nil {
		return schema.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.readUsers()
	if err != nil {
		return schema.User{}, err
	}

	replaced := false
	for i := range users {
		if users[i].ID == user.ID {
			users[i] = user
			replaced = true
			break
		}
	}
	if !replaced {
		users = append(users, user)
	}

	if err := sdk.Set(s.storage, sdk.KeyUsers, users); err != nil {
		return schema.User{}, fmt.Errorf("failed to save users: %w", err)
	}
	s.log.Info("user saved", zap.String("user_id", user.ID), zap.Bool("created", !replaced))
	return user, nil
}

// ToggleUser flips the active flag of userID. It returns nil, and writes nothing, when
// the id is unknown.
func (s *Store) ToggleUser(userID string) (*schema.User, error) {
	if _, err := s.ListUsers(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.readUsers()
	if err != nil {
		return nil, err
	}

	for i := range users {
		if users[i].ID != userID {
			continue
		}
		users[i].Active = !users[i].Active
		if err := sdk.Set(s.storage, sdk.KeyUsers, users); err != nil {
			return nil, fmt.Errorf("failed to save users: %w", err)
		}
		toggled := users[i]
		s.log.Info("user toggled", zap.String("user_id", userID), zap.Bool("active", toggled.Active))
		return &toggled, nil
	}
	return nil, nil
}

func (s *Store) readUsers() ([]schema.User, error) {
	users, err := sdk.Get(s.storage, sdk.KeyUsers, []schema.User{})
	if err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}
	return users, nil
}

// seedLocked writes the demo users when the list is still empty and makes sure the
// attendance key exists. It MUST be called while holding s.mu.
func (s *Store) seedLocked() ([]schema.User, error) {
	users, err := s.readUsers()
	if err != nil || len(users) > 0 {
		return users, err
	}

	users = append([]schema.User(nil), DemoUsers...)
	if err := sdk.Set(s.storage, sdk.KeyUsers, users); err != nil {
		return nil, fmt.Errorf("failed to seed users: %w", err)
	}
	if _, err := s.storage.Get(sdk.KeyAttendance); errors.Is(err, sdk.ErrKeyNotFound) {
		if err := sdk.Set(s.storage, sdk.KeyAttendance, book{}); err != nil {
			return nil, fmt.Errorf("failed to seed attendance: %w", err)
		}
	}
	s.log.Info("demo users seeded", zap.Int("count", len(users)))
	return users, nil
}
