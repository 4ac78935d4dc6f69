// Package service assembles the in-process check-in implementation from a storage
// driver and the configuration.
package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/celerix-dev/celerix-checkin/internal/attendance"
	"github.com/celerix-dev/celerix-checkin/internal/config"
	"github.com/celerix-dev/celerix-checkin/internal/engine"
	"github.com/celerix-dev/celerix-checkin/internal/session"
	"github.com/celerix-dev/celerix-checkin/internal/vault"
	"github.com/celerix-dev/celerix-checkin/pkg/schema"
	"github.com/celerix-dev/celerix-checkin/pkg/sdk"
)

// Local is the store-backed implementation of sdk.CheckinAPI.
type Local struct {
	Records  *attendance.Store
	Sessions *session.Store

	storage sdk.Storage
}

var _ sdk.CheckinAPI = (*Local)(nil)

// New builds a Local over storage. now may be nil.
func New(storage sdk.Storage, cfg *config.Config, now func() time.Time, log *zap.Logger) (*Local, error) {
	if log == nil {
		log = zap.NewNop()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone: %w", err)
	}

	records := attendance.NewStore(storage, attendance.Options{
		Verifier:      attendance.NewVerifier(cfg.OfficeQRCode, cfg.OfficeTOTPSecret),
		Location:      loc,
		Now:           now,
		SeedDemoUsers: cfg.SeedDemoUsers,
		Logger:        log.Named("attendance"),
	})
	tokens := session.NewTokens(cfg.JWTSecret, cfg.TokenTTL, storage, now)

	return &Local{
		Records:  records,
		Sessions: session.NewStore(storage, records, tokens, log.Named("session")),
		storage:  storage,
	}, nil
}

// Open opens the configured storage driver and builds a Local over it.
func Open(cfg *config.Config, log *zap.Logger) (*Local, error) {
	storage, err := OpenStorage(cfg, log)
	if err != nil {
		return nil, err
	}
	l, err := New(storage, cfg, nil, log)
	if err != nil {
		engine.Close(storage)
		return nil, err
	}
	return l, nil
}

// OpenStorage opens the storage driver selected by cfg.
func OpenStorage(cfg *config.Config, log *zap.Logger) (sdk.Storage, error) {
	key, err := vault.ParseKey(cfg.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("invalid storage key: %w", err)
	}
	return engine.Open(engine.Options{
		Driver:        cfg.StorageDriver,
		DSN:           cfg.StorageDSN,
		Key:           key,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		S3: engine.S3Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		},
	}, log)
}

// Storage returns the underlying storage.
func (l *Local) Storage() sdk.Storage {
	return l.storage
}

// Close waits for pending snapshot writes and closes the storage connection.
func (l *Local) Close() error {
	return engine.Close(l.storage)
}

// --- sdk.SessionAPI ---

func (l *Local) GetSession() (*schema.AuthSession, error) { return l.Sessions.GetSession() }

func (l *Local) Login(email, password string) (schema.AuthSession, error) {
	return l.Sessions.Login(email, password)
}

func (l *Local) DemoLogin(role schema.Role) (schema.AuthSession, error) {
	return l.Sessions.DemoLogin(role)
}

func (l *Local) Logout() error { return l.Sessions.Logout() }

// --- sdk.AttendanceAPI ---

func (l *Local) RecordScan(userID, code string) (schema.AttendanceDay, error) {
	return l.Records.RecordScan(userID, code)
}

func (l *Local) GetDay(userID, dateKey string) (schema.AttendanceDay, error) {
	return l.Records.GetDay(userID, dateKey)
}

func (l *Local) GetWeek(userID string) ([]schema.AttendanceDay, error) {
	return l.Records.GetWeek(userID)
}

func (l *Local) GetHistory(userID, monthKey string) ([]schema.AttendanceDay, error) {
	return l.Records.GetHistory(userID, monthKey)
}

// --- sdk.AdminAPI ---

func (l *Local) GetAdminRows(dateKey string) ([]schema.AdminRow, error) {
	return l.Records.GetAdminRows(dateKey)
}

func (l *Local) ListUsers() ([]schema.User, error) { return l.Records.ListUsers() }

func (l *Local) UpsertUser(user schema.User) (schema.User, error) {
	return l.Records.UpsertUser(user)
}

func (l *Local) ToggleUser(userID string) (*schema.User, error) {
	return l.Records.ToggleUser(userID)
}
