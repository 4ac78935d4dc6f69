package engine

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/celerix-dev/celerix-checkin/pkg/sdk"
)

// Supported storage drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverS3       = "s3"
)

// Options selects and configures a storage driver.
type Options struct {
	Driver string
	// DSN is the data directory (file), address (redis), connection string (postgres,
	// mysql) or bucket name (s3).
	DSN string
	// Key encrypts file snapshots when set.
	Key []byte

	RedisPassword string
	RedisDB       int
	S3            S3Options
}

// Open returns the storage for opts. Release it with Close.
func Open(opts Options, log *zap.Logger) (sdk.Storage, error) {
	if log == nil {
		log = zap.NewNop()
	}

	switch opts.Driver {
	case DriverMemory:
		return NewMemStore(nil, nil), nil

	case DriverFile, "":
		p, err := NewPersistence(opts.DSN, opts.Key, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize persistence: %w", err)
		}
		initialData, err := p.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load snapshot: %w", err)
		}
		log.Info("file storage loaded", zap.String("dir", opts.DSN), zap.Int("keys", len(initialData)))
		return NewMemStore(initialData, p), nil

	case DriverRedis:
		return NewRedisStore(opts.DSN, opts.RedisPassword, opts.RedisDB)

	case DriverPostgres, DriverMySQL:
		return NewSQLStore(opts.Driver, opts.DSN)

	case DriverS3:
		s3opts := opts.S3
		if s3opts.Bucket == "" {
			s3opts.Bucket = opts.DSN
		}
		return NewS3Store(s3opts), nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
}

// Close releases the connection held by s, if any.
func Close(s sdk.Storage) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
