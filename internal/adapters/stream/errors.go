package stream

import "errors"

// Sentinel errors returned by stream backends.
var (
	ErrClosed        = errors.New("stream backend closed")
	ErrTxNotFound    = errors.New("transaction not found")
	ErrEmptyBatch    = errors.New("no records to set")
	ErrEmptyRecord   = errors.New("record data is empty")
	ErrInvalidCursor = errors.New("invalid page cursor")
	ErrNoPublisher   = errors.New("publisher address is required")
)
