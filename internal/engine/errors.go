package engine

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes sync failures.
type ErrorCode string

const (
	// ErrCodeFetchFailed: the source could not deliver events.
	ErrCodeFetchFailed ErrorCode = "FETCH_FAILED"

	// ErrCodeStoreWriteFailed: batch insert or watermark advance failed.
	ErrCodeStoreWriteFailed ErrorCode = "STORE_WRITE_FAILED"

	// ErrCodeStoreReadFailed: watermark read, existence check, or window
	// read failed.
	ErrCodeStoreReadFailed ErrorCode = "STORE_READ_FAILED"

	// ErrCodeStoreUnavailable: the store is unreachable; the pass aborts.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
)

// SyncError is a failure during a pass. Source is empty for pass-level
// failures.
type SyncError struct {
	Code   ErrorCode
	Source string
	Err    error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s: %v (source=%s)", e.Code, e.Err, e.Source)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Code returns the ErrorCode of the first SyncError in err's chain, or ""
// if there is none.
func Code(err error) ErrorCode {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsStoreUnavailable reports whether err aborted a whole pass.
// Uses errors.As to handle wrapped errors.
func IsStoreUnavailable(err error) bool {
	return Code(err) == ErrCodeStoreUnavailable
}

func newSyncError(code ErrorCode, source string, err error) *SyncError {
	return &SyncError{Code: code, Source: source, Err: err}
}
