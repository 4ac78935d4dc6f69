package engine

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/storage/s3/v2"

	"github.com/celerix-dev/celerix-checkin/pkg/sdk"
)

// S3Options configures the object storage driver.
type S3Options struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// S3Store keeps each persisted key as one object in a bucket.
type S3Store struct {
	storage *s3.Storage
}

// NewS3Store connects to the bucket described by opts.
func NewS3Store(opts S3Options) *S3Store {
	return &S3Store{storage: s3.New(s3.Config{
		Bucket:   opts.Bucket,
		Endpoint: opts.Endpoint,
		Region:   opts.Region,
		Reset:    false,
		Credentials: s3.Credentials{
			AccessKey:       opts.AccessKey,
			SecretAccessKey: opts.SecretKey,
		},
	})}
}

func (s *S3Store) Get(key string) (string, error) {
	val, err := s.storage.Get(key)
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return "", sdk.ErrKeyNotFound
		}
		return "", err
	}
	if val == nil {
		return "", sdk.ErrKeyNotFound
	}
	return string(val), nil
}

func (s *S3Store) Set(key, value string) error {
	return s.storage.Set(key, []byte(value), 0)
}

func (s *S3Store) Remove(key string) error {
	return s.storage.Delete(key)
}

// Close releases the client.
func (s *S3Store) Close() error {
	return s.storage.Close()
}
