package sdk

import (
	"errors"
	"time"
)

// Options selects the CheckinAPI implementation.
type Options struct {
	// UseMock selects the in-process implementation.
	UseMock bool
	// BaseURL of the HTTP API. Required when UseMock is false.
	BaseURL string
	// Session keeps the remote session between runs. Optional.
	Session Storage
	Timeout time.Duration
}

// LocalFunc builds the in-process implementation.
type LocalFunc func() (CheckinAPI, error)

// New returns the in-process implementation or the remote client, so callers don't
// care which one they talk to.
func New(opts Options, local LocalFunc) (CheckinAPI, error) {
	if !opts.UseMock {
		if opts.BaseURL == "" {
			return nil, errors.New("api base url is required when the mock api is disabled")
		}
		return NewClient(opts.BaseURL, opts.Session, opts.Timeout), nil
	}
	if local == nil {
		return nil, errors.New("no local implementation available")
	}
	return local()
}
