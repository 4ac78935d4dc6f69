package engine

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/celerix-dev/celerix-checkin/pkg/sdk"
)

// kvEntry is one persisted key. Size maps to text on postgres and mediumtext on mysql.
type kvEntry struct {
	Name      string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"size:16777215;not null"`
	UpdatedAt time.Time
}

func (kvEntry) TableName() string {
	return "checkin_kv"
}

// SQLStore keeps the persisted keys in a single key/value table.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore opens a postgres or mysql database and migrates the key/value table.
func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&kvEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate key/value table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Get(key string) (string, error) {
	var e kvEntry
	if err := s.db.Where("name = ?", key).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", sdk.ErrKeyNotFound
		}
		return "", err
	}
	return e.Value, nil
}

func (s *SQLStore) Set(key, value string) error {
	e := kvEntry{Name: key, Value: value, UpdatedAt: time.Now()}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&e).Error
}

func (s *SQLStore) Remove(key string) error {
	return s.db.Delete(&kvEntry{Name: key}).Error
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
