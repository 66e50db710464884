package kv

import "errors"

var (
	// ErrSerialization is returned when a value cannot be encoded to or decoded from JSON.
	ErrSerialization = errors.New("serialization error")
	// ErrStorage is returned when a statement fails against the backing database.
	ErrStorage = errors.New("storage error")
)
