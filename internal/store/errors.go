package store

import "errors"

var (
	// ErrInvalidToken reports a namespace or key that does not match the
	// token grammar [A-Za-z0-9][A-Za-z0-9._=-]*.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidMode reports an unrecognized store mode string.
	ErrInvalidMode = errors.New("invalid mode")

	// ErrUnsupportedKind reports a value outside the supported kind set.
	ErrUnsupportedKind = errors.New("unsupported value kind")

	// ErrKeyNotFound reports a missing (or expired) cache key.
	ErrKeyNotFound = errors.New("key not found")

	// ErrTooLarge reports a blob write that would exceed the combined
	// size cap for the namespace.
	ErrTooLarge = errors.New("content exceeds maximum size")

	// ErrMemoryMode reports a disk operation attempted on a memory-only
	// store.
	ErrMemoryMode = errors.New("store is memory-only")

	// ErrClosed reports an operation on a closed store.
	ErrClosed = errors.New("store is closed")
)
