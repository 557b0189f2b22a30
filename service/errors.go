package service

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceNotFound      = errors.New("device not found")
	ErrApplicationNotFound = errors.New("application not found")
)

// RefreshError means the device enumeration step failed and no snapshot was
// produced. The previous catalog stays authoritative.
type RefreshError struct {
	Cause error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("inventory unavailable: %v", e.Cause)
}

func (e *RefreshError) Unwrap() error {
	return e.Cause
}

// IsRefreshError reports whether err is or wraps a RefreshError
func IsRefreshError(err error) bool {
	var refreshErr *RefreshError
	return errors.As(err, &refreshErr)
}
