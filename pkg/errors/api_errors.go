package errors

import "errors"

// Sentinel errors for conditions that carry no extra context
var (
	ErrNotConnected      = errors.New("not connected")
	ErrTransactionActive = errors.New("a transaction is already active")
	ErrNoTransaction     = errors.New("no active transaction")
	ErrUnregisteredClass = errors.New("entity class is not registered")
	ErrNilEntity         = errors.New("entity cannot be nil")
)
