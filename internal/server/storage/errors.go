package storage

import "errors"

// Common storage errors
var (
	// ErrRecordNotFound indicates that record was not found in storage
	ErrRecordNotFound = errors.New("record not found")

	// ErrRecordExists indicates that record with this key already exists
	ErrRecordExists = errors.New("record already exists")

	// ErrVersionMismatch indicates that the stored version differs from the expected one
	ErrVersionMismatch = errors.New("record version mismatch")
)
