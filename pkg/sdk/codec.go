package sdk

import (
	"encoding/json"
	"errors"
)

// --- Generics Support ---

// Get reads the JSON document stored under key into a T.
// A missing, empty or malformed value yields fallback; only substrate failures are
// returned as errors.
func Get[T any](s KVReader, key string, fallback T) (T, error) {
	raw, err := s.Get(key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return fallback, nil
		}
		return fallback, err
	}
	if raw == "" {
		return fallback, nil
	}

	var target T
	if err := json.Unmarshal([]byte(raw), &target); err != nil {
		return fallback, nil
	}
	return target, nil
}

// Set stores val as a JSON document under key.
func Set[T any](s KVWriter, key string, val T) error {
	bytes, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return s.Set(key, string(bytes))
}
