package core

import "errors"

var (
	// ErrClosed is returned when writing to a db that has been closed.
	ErrClosed = errors.New("db is closed")
	// ErrNotFound is returned when a document or version does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnexpectedRowType is returned when a batch contains a row that is neither a put nor a del.
	ErrUnexpectedRowType = errors.New("unexpected row type")
)
