package engine

import (
	"errors"
	"fmt"

	"github.com/celerix-dev/celerix-checkin/pkg/sdk"
)

// Migrate copies the given keys from a source storage to a destination storage.
// Keys missing in the source are skipped. This works for:
// - file -> redis/postgres/mysql/s3 (moving the service onto shared storage)
// - any driver -> file (backup)
func Migrate(src sdk.KVReader, dst sdk.KVWriter, keys ...string) (int, error) {
	copied := 0
	for _, k := range keys {
		val, err := src.Get(k)
		if err != nil {
			if errors.Is(err, sdk.ErrKeyNotFound) {
				continue
			}
			return copied, fmt.Errorf("failed to read key %s: %w", k, err)
		}
		if err := dst.Set(k, val); err != nil {
			return copied, fmt.Errorf("failed to set key %s in destination: %w", k, err)
		}
		copied++
	}
	return copied, nil
}
